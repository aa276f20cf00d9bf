package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/export"
	"github.com/JonMunkholm/patients/internal/ingest"
	"github.com/JonMunkholm/patients/internal/web"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return a.serve(cmd.Context(), s)
		},
	}
}

// serve runs the server until ctx is cancelled, then lets a running bulk
// load finish before shutting down.
func (a *app) serve(ctx context.Context, s *session) error {
	srv := web.NewServer(s.repo, s.gate, a.cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.gate.Busy() {
		slog.Info("waiting for bulk load to complete")
		if err := s.gate.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("bulk load did not complete in time", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [csv]",
		Short: "Replace the collection with the rows of a CSV file",
		Long: "Reads the CSV (LOAD_CSV_PATH when omitted), validates every row and " +
			"replaces the stored collection. Identifiers are assigned by row position.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Load.CSVPath
			if len(args) == 1 {
				path = args[0]
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return a.runLoad(cliContext(cmd.Context()), s, path, cmd.OutOrStdout())
		},
	}
}

func (a *app) runLoad(ctx context.Context, s *session, path string, w io.Writer) error {
	table, err := ingest.ReadCSVFile(path, a.cfg.Load.MaxFileSize)
	if err != nil {
		return err
	}
	report := ingest.Check(table)
	report.Log(slog.Default())

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Load.Timeout)
	defer cancel()

	summary, err := s.repo.BulkLoad(ctx, table.Rows)
	if err != nil {
		return err
	}
	printLoad(w, report, summary)
	return nil
}

func (a *app) addCmd() *cobra.Command {
	var (
		sets     []string
		jsonPath string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one patient",
		Example: `  patients add --json patient.json
  patients add --json patient.json --set "Age=46"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := recordInput(jsonPath, sets)
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return runAdd(cliContext(cmd.Context()), s, raw, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, `field value as "Field=value" (repeatable)`)
	cmd.Flags().StringVar(&jsonPath, "json", "", "file holding the record as a JSON object")
	return cmd
}

func runAdd(ctx context.Context, s *session, raw core.RawRecord, w io.Writer) error {
	res, err := s.repo.Add(ctx, raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Patient %s added with id %s\n", res.Name, res.PatientID)
	return nil
}

func (a *app) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <term>",
		Short: "Find patients by identifier or name",
		Long: "A term like P00042 is looked up as an identifier first. Otherwise, or " +
			"when no such patient exists, names containing the term are listed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return runFind(cliContext(cmd.Context()), s, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

func runFind(ctx context.Context, s *session, term string, w io.Writer) error {
	ps, err := s.repo.Search(ctx, term)
	if err != nil {
		return err
	}
	if len(ps) == 1 && ps[0].PatientID == core.NormalizePatientID(term) {
		fmt.Fprintf(w, "Patient %s:\n", ps[0].PatientID)
		printPatient(w, ps[0])
		return nil
	}
	printMatches(w, term, ps)
	return nil
}

func (a *app) updateCmd() *cobra.Command {
	var (
		sets     []string
		jsonPath string
	)
	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Change fields of one patient",
		Example: `  patients update P00042 --set "Age=46" --set "Test Results=Normal"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := recordInput(jsonPath, sets)
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return runUpdate(cliContext(cmd.Context()), s, args[0], raw, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, `field value as "Field=value" (repeatable)`)
	cmd.Flags().StringVar(&jsonPath, "json", "", "file holding the changed fields as a JSON object")
	return cmd
}

func runUpdate(ctx context.Context, s *session, id string, raw core.RawRecord, w io.Writer) error {
	res, err := s.repo.Update(ctx, id, raw)
	if err != nil {
		return err
	}
	if res.Outcome == core.UpdateNoOp {
		fmt.Fprintf(w, "No change for %s: values were identical\n", res.PatientID)
		return nil
	}
	fmt.Fprintf(w, "Patient %s updated: %s\n", res.PatientID, strings.Join(res.Fields, ", "))
	return nil
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one patient",
		Long: "Asks for confirmation when stdin is a terminal, unless --yes is given. " +
			"Scripts with redirected stdin are not prompted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			var ask func(string) bool
			if !yes && stdinIsTerminal() {
				ask = func(q string) bool { return confirm(os.Stdin, cmd.OutOrStdout(), q) }
			}
			return runDelete(cliContext(cmd.Context()), s, args[0], ask, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

// runDelete removes a patient. When ask is set it is consulted first and a
// refusal leaves the record in place.
func runDelete(ctx context.Context, s *session, id string, ask func(string) bool, w io.Writer) error {
	if ask != nil {
		p, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !ask(fmt.Sprintf("Delete %s (%s)?", p.PatientID, p.Name)) {
			fmt.Fprintln(w, "Deletion cancelled")
			return nil
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "Patient %s deleted\n", core.NormalizePatientID(id))
	return nil
}

func (a *app) exportCmd() *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the collection to JSON, CSV or XLSX files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formats, err := exportFormats(format)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Export.Dir
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return runExport(cliContext(cmd.Context()), s, formats, dir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", "all", "json, csv, xlsx or all")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default EXPORT_DIR)")
	return cmd
}

// exportFormats resolves the --format flag; "all" selects every format.
func exportFormats(name string) ([]export.Format, error) {
	if strings.EqualFold(strings.TrimSpace(name), "all") {
		return export.Formats, nil
	}
	f, err := export.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return []export.Format{f}, nil
}

func runExport(ctx context.Context, s *session, formats []export.Format, dir string, w io.Writer) error {
	ps, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, f := range formats {
		path, err := export.ToFile(dir, f, ps)
		if err != nil {
			return err
		}
		slog.Info("export written", "format", f, "path", path, "records", len(ps))
		fmt.Fprintf(w, "Exported %d patients to %s\n", len(ps), path)
	}
	return nil
}
