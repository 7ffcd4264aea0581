package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	apperrors "escaperoom/pkg/errors"
	"escaperoom/pkg/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	DemoRoomID    = "r-101"
	demoSlotCount = 3
)

// SeedFile is the YAML layout accepted by `roomctl seed --file`.
//
//	slots:
//	  - id: s-1
//	    room_id: r-101
//	    start_time: 2026-05-01T18:00:00Z
//	    end_time: 2026-05-01T19:00:00Z
type SeedFile struct {
	Slots []*model.Slot `yaml:"slots"`
}

type SeedResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped,omitempty"`
}

type seedOptions struct {
	demo bool
	file string
}

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision slots",
		Long: `Provision slots from a YAML file, or the demo room (r-101 with three
one-hour slots s-1..s-3 starting at the next full hour). Slots that already
exist are skipped, so seeding is safe to repeat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var slots []*model.Slot
			switch {
			case opts.demo && opts.file != "":
				return NewExitError(ExitCommandError, "--demo and --file are mutually exclusive")
			case opts.demo:
				slots = DemoSlots(time.Now().UTC())
			case opts.file != "":
				loaded, err := LoadSeedFile(opts.file)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load seed file", err)
				}
				slots = loaded
			default:
				return NewExitError(ExitCommandError, "one of --demo or --file is required")
			}
			return runSeed(cmd.Context(), rootOpts, slots, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.demo, "demo", false, "seed the demo room")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML file with slots to provision")

	return cmd
}

// DemoSlots returns the demo room's slots: consecutive hours starting at the
// first full hour after now.
func DemoSlots(now time.Time) []*model.Slot {
	base := now.UTC().Truncate(time.Hour).Add(time.Hour)
	slots := make([]*model.Slot, 0, demoSlotCount)
	for i := 0; i < demoSlotCount; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		slots = append(slots, &model.Slot{
			ID:        fmt.Sprintf("s-%d", i+1),
			RoomID:    DemoRoomID,
			StartTime: start,
			EndTime:   start.Add(time.Hour),
		})
	}
	return slots
}

func LoadSeedFile(path string) ([]*model.Slot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file SeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if len(file.Slots) == 0 {
		return nil, fmt.Errorf("%s contains no slots", path)
	}
	for i, s := range file.Slots {
		if s == nil {
			return nil, fmt.Errorf("%s: slot %d is empty", path, i)
		}
		s.StartTime = s.StartTime.UTC()
		s.EndTime = s.EndTime.UTC()
	}
	return file.Slots, nil
}

func runSeed(ctx context.Context, opts *RootOptions, slots []*model.Slot, out, logOut io.Writer) error {
	e, err := openEnv(opts, logOut)
	if err != nil {
		return err
	}
	defer e.Close()

	result := SeedResult{Created: []string{}}
	for _, slot := range slots {
		err := e.services.Slots.Provision(ctx, slot)
		switch {
		case err == nil:
			result.Created = append(result.Created, slot.ID)
		case apperrors.HasCode(err, apperrors.CodeConflict):
			result.Skipped = append(result.Skipped, slot.ID)
		default:
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to provision slot %s", slot.ID), err)
		}
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: out}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "created %d slot(s), skipped %d existing\n", len(result.Created), len(result.Skipped))
	})
}
