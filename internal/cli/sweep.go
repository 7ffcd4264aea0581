package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type SweepResult struct {
	Expired int64 `json:"expired"`
}

func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark stale HOLD rows as EXPIRED",
		Long: `Rewrite holds whose expiry has passed to EXPIRED. Reads already treat
them as expired, so this only tidies storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.services.Holds.SweepExpired(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "sweep failed", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Success(SweepResult{Expired: n}, func(w io.Writer) {
				fmt.Fprintf(w, "expired %d hold(s)\n", n)
			})
		},
	}
}
