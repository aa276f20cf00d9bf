// Command patients loads, queries and edits the patient collection, and
// serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/patients/internal/config"
	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand once the root has run.
type app struct {
	envFile string
	backend string

	cfg      *config.Config
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "patients",
		Short:         "Patient record ingestion and management",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&a.backend, "backend", "", "override STORE_BACKEND (mongo, postgres, memory)")

	rootCmd.AddCommand(a.serveCmd())
	rootCmd.AddCommand(a.loadCmd())
	rootCmd.AddCommand(a.addCmd())
	rootCmd.AddCommand(a.findCmd())
	rootCmd.AddCommand(a.updateCmd())
	rootCmd.AddCommand(a.deleteCmd())
	rootCmd.AddCommand(a.exportCmd())
	rootCmd.AddCommand(a.demoCmd())

	return rootCmd
}

// setup loads .env, the configuration and the logger.
func (a *app) setup() error {
	// Values in the file win over the inherited environment.
	if err := godotenv.Overload(a.envFile); err != nil {
		slog.Debug("no env file loaded", "path", a.envFile, "error", err)
	}
	if a.backend != "" {
		if err := os.Setenv("STORE_BACKEND", a.backend); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	closeLog, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.LogFile())
	if err != nil {
		return err
	}
	a.closeLog = closeLog

	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog()
	a.closeLog = nil
	return err
}

// reportError prints err with its support code when it maps to one.
func reportError(w io.Writer, err error) {
	if core.IsUserFacing(err) {
		ue := core.NewUserError(err)
		fmt.Fprintln(w, "Error:", core.FormatUserError(ue))
		fmt.Fprintln(w, "  cause:", ue.Technical)
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
