// Package cli implements the docai command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docai"
)

type openFunc func(cfg docai.Config) (docai.Engine, error)

func openEngine(cfg docai.Config) (docai.Engine, error) {
	return docai.New(cfg)
}

type app struct {
	open openFunc

	configPath string
	dbPath     string
	sourceDir  string
	verbose    bool

	cfg *fileConfig
}

// Execute runs the docai command line and exits non-zero on failure.
func Execute() {
	_ = godotenv.Load()

	if err := newRootCommand(openEngine).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(open openFunc) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:          "docai",
		Short:        "Answer questions from a folder of documentation",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default ./docai.yaml if present)")
	pf.StringVar(&a.dbPath, "db", "", "SQLite database path")
	pf.StringVar(&a.sourceDir, "source", "", "Documentation folder")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		a.reloadCommand(),
		a.ingestCommand(),
		a.askCommand(),
		a.statsCommand(),
		a.summaryCommand(),
		a.documentsCommand(),
		a.indexCommand(),
		a.chatCommand(),
		a.serveCommand(),
		a.watchCommand(),
	)
	return root
}

// engine loads configuration, installs the logger and opens the engine.
// The caller closes the engine.
func (a *app) engine(cmd *cobra.Command, jsonLogs bool) (docai.Engine, error) {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.sourceDir != "" {
		cfg.SourceDir = a.sourceDir
	}
	a.cfg = cfg

	setupLogger(cmd.ErrOrStderr(), cfg.Log, a.verbose, jsonLogs)

	eng, err := a.open(cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("opening engine: %w", err)
	}
	return eng, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
