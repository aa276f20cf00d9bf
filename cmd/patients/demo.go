package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/export"
)

// demoPatient is added, changed and removed again by the demo.
var demoPatient = core.RawRecord{
	"Name":               "John Doe",
	"Age":                "45",
	"Gender":             "Male",
	"Blood Type":         "O+",
	"Medical Condition":  "Diabetes",
	"Date of Admission":  "2024-01-15",
	"Doctor":             "Dr. Smith",
	"Hospital":           "General Hospital",
	"Insurance Provider": "Mutuelle X",
	"Billing Amount":     "1234.5666666",
	"Room Number":        "101",
	"Admission Type":     "Emergency",
	"Discharge Date":     "2024-01-20",
	"Medication":         "Insulin",
	"Test Results":       "Stable",
}

var demoUpdate = core.RawRecord{
	"Age":               46,
	"Medical Condition": "Type 2 diabetes, stable",
	"Test Results":      "Normal",
}

const demoSearch = "jackson"

func (a *app) demoCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a full load, CRUD and export cycle",
		Long: "Loads LOAD_CSV_PATH, then adds, reads, updates, reads and deletes a " +
			"sample patient, searches by name and exports every format.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Export.Dir
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			return a.runDemo(cliContext(cmd.Context()), s, dir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "export directory (default EXPORT_DIR)")
	return cmd
}

// runDemo stops at the first failing step. A failed load is reported and
// the remaining steps run against whatever the store holds.
func (a *app) runDemo(ctx context.Context, s *session, dir string, w io.Writer) error {
	section(w, "Load "+a.cfg.Load.CSVPath)
	if err := a.runLoad(ctx, s, a.cfg.Load.CSVPath, w); err != nil {
		reportError(w, err)
	}

	section(w, "Add")
	res, err := s.repo.Add(ctx, demoPatient)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Patient %s added with id %s\n", res.Name, res.PatientID)

	section(w, "Read "+res.PatientID)
	if err := runFind(ctx, s, res.PatientID, w); err != nil {
		return err
	}

	section(w, "Update "+res.PatientID)
	if err := runUpdate(ctx, s, res.PatientID, demoUpdate, w); err != nil {
		return err
	}

	section(w, "Read after update")
	if err := runFind(ctx, s, res.PatientID, w); err != nil {
		return err
	}

	section(w, "Delete "+res.PatientID)
	if err := runDelete(ctx, s, res.PatientID, nil, w); err != nil {
		return err
	}

	section(w, fmt.Sprintf("Search %q", demoSearch))
	if err := runFind(ctx, s, demoSearch, w); err != nil {
		return err
	}

	section(w, "Export")
	return runExport(ctx, s, export.Formats, dir, w)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n--- %s ---\n", title)
}
