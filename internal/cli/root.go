// Package cli implements roomctl, the operator command line for the hold
// engine: schema setup, seeding, slot inspection, reconciliation and sweeps.
package cli

import (
	"fmt"
	"io"
	"slices"

	"escaperoom/internal/server"
	"escaperoom/internal/storage"
	"escaperoom/pkg/clock"
	"escaperoom/pkg/config"
	"escaperoom/pkg/logger"

	"github.com/spf13/cobra"
)

const ServiceName = "roomctl"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	Backend    string
	SQLitePath string
	Verbose    bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "roomctl",
		Short: "roomctl - escape room slot administration",
		Long:  "Administer escape room slots and holds: migrate storage, seed slots, inspect availability, reconcile and sweep.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend (memory|sqlite|mongo); defaults to STORAGE_BACKEND")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "db", "", "SQLite database path; defaults to SQLITE_PATH")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewSlotsCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))

	return cmd
}

// env is what a command needs to talk to storage.
type env struct {
	cfg      *config.Config
	backend  *storage.Backend
	services *server.Services
}

func (e *env) Close() {
	if err := e.backend.Close(); err != nil {
		e.cfg.Log.Error("Failed to close storage", "error", err)
	}
	e.cfg.Client.GracefulShutdown(e.cfg.Log)
}

// loadConfig reads the environment and applies flag overrides. Logs go to
// logOut as text so stdout stays parseable.
func loadConfig(opts *RootOptions, logOut io.Writer) (*config.Config, error) {
	cfg := config.FromEnv(ServiceName)

	level := logger.WARN
	if opts.Verbose {
		level = logger.DEBUG
	}
	cfg.Log = logger.New(logger.Config{
		Level:   level,
		Format:  logger.TEXT,
		Output:  logOut,
		Service: ServiceName,
	})

	if opts.Backend != "" {
		cfg.StorageBackend = opts.Backend
	}
	if opts.SQLitePath != "" {
		cfg.SQLitePath = opts.SQLitePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

func openEnv(opts *RootOptions, logOut io.Writer) (*env, error) {
	cfg, err := loadConfig(opts, logOut)
	if err != nil {
		return nil, err
	}
	if cfg.StorageBackend == config.BackendMongo {
		cfg.SetMongo()
	}

	backend, err := storage.Open(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	return &env{
		cfg:      cfg,
		backend:  backend,
		services: server.NewServices(cfg, backend, nil, clock.System()),
	}, nil
}
