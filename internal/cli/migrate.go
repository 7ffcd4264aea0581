package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	mongoMigration "escaperoom/internal/migrations/mongo"
	"escaperoom/pkg/config"

	"github.com/spf13/cobra"
)

const migrateTimeout = 120 * time.Second

type MigrateResult struct {
	Backend       string `json:"backend"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}

// schemaVersioner is implemented by the SQLite backend.
type schemaVersioner interface {
	SchemaVersion(ctx context.Context) (int, error)
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the storage schema",
		Long: `Create collections, validators and indexes on MongoDB, or apply the
embedded schema to a SQLite file. The memory backend needs no migration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runMigrate(ctx context.Context, opts *RootOptions, out, logOut io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()

	e, err := openEnv(opts, logOut)
	if err != nil {
		return err
	}
	defer e.Close()

	result := MigrateResult{Backend: e.backend.Name}
	switch e.backend.Name {
	case config.BackendMongo:
		if err := mongoMigration.RunMigration(ctx, e.backend.Mongo, e.cfg.Log); err != nil {
			return WrapExitError(ExitCommandError, "migration failed", err)
		}
	case config.BackendSQLite:
		// Opening the file already applied the schema.
		if v, ok := e.backend.Pinger.(schemaVersioner); ok {
			version, err := v.SchemaVersion(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read schema version", err)
			}
			result.SchemaVersion = version
		}
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: out}
	return formatter.Success(result, func(w io.Writer) {
		if result.SchemaVersion > 0 {
			fmt.Fprintf(w, "%s schema is at version %d\n", result.Backend, result.SchemaVersion)
			return
		}
		fmt.Fprintf(w, "%s schema is up to date\n", result.Backend)
	})
}
