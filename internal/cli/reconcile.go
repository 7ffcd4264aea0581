package cli

import (
	"fmt"
	"io"

	"escaperoom/internal/holds/service"

	"github.com/spf13/cobra"
)

type ReconcileResult struct {
	Anomalies []service.Anomaly `json:"anomalies"`
}

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Report slots whose booked flag disagrees with their holds",
		Long: `Compare every slot's booked flag with its CONFIRMED hold and report
mismatches. Nothing is modified. Exits 1 when anomalies are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			anomalies, err := e.services.Holds.Reconcile(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "reconciliation failed", err)
			}
			if anomalies == nil {
				anomalies = []service.Anomaly{}
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if err := formatter.Success(ReconcileResult{Anomalies: anomalies}, func(w io.Writer) {
				if len(anomalies) == 0 {
					fmt.Fprintln(w, "no anomalies")
					return
				}
				for _, a := range anomalies {
					fmt.Fprintf(w, "%s\troom=%s\t%s", a.SlotID, a.RoomID, a.Kind)
					if a.HolderID != "" {
						fmt.Fprintf(w, "\tuser=%s", a.HolderID)
					}
					fmt.Fprintln(w)
				}
			}); err != nil {
				return err
			}

			if len(anomalies) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d anomalies found", len(anomalies)))
			}
			return nil
		},
	}
}
