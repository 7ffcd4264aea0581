package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"escaperoom/pkg/model"

	"github.com/spf13/cobra"
)

func NewSlotsCommand(rootOpts *RootOptions) *cobra.Command {
	var roomID, userID string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List slots and their availability",
		Long: `List slots ordered by start time with their status. With --user the
status is relative to that user (HELD_BY_ME, BOOKED_BY_OTHER, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			views, err := e.services.Slots.ListStatuses(cmd.Context(), roomID, userID)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list slots", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Success(views, func(w io.Writer) {
				printSlots(w, views)
			})
		},
	}

	cmd.Flags().StringVar(&roomID, "room", "", "only list slots of this room")
	cmd.Flags().StringVar(&userID, "user", "", "show statuses relative to this user")

	return cmd
}

func printSlots(w io.Writer, views []*model.SlotView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "no slots")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tROOM\tSTART\tEND\tSTATUS")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.SlotID, v.RoomID,
			v.StartTime.Format(time.RFC3339), v.EndTime.Format(time.RFC3339),
			v.Status,
		)
	}
	tw.Flush()
}
