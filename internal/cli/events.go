package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"escaperoom/internal/holds/events"
	"escaperoom/pkg/kafka"
	kafka_config "escaperoom/pkg/kafka/config"
	kafkamw "escaperoom/pkg/kafka/middleware"

	"github.com/spf13/cobra"
)

const defaultTailGroup = "roomctl-tail"

func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect hold lifecycle events",
	}
	cmd.AddCommand(newEventsTailCommand(rootOpts))
	return cmd
}

func newEventsTailCommand(rootOpts *RootOptions) *cobra.Command {
	var topic, group string
	var fromBeginning bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print hold events as they are published",
		Long: `Consume the hold events topic and print one line per event until
interrupted. Brokers come from KAFKA_BROKERS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if topic == "" {
				topic = cfg.EventsTopic
			}

			kcfg, err := kafka_config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid kafka configuration", err)
			}
			if fromBeginning {
				kcfg.TailStart = kafka_config.TailStartOldest
			}
			kcfg.LogConfiguration(cfg.Log)

			consumer, err := kafka.NewConsumer(kcfg, topic, group, printEvent(rootOpts.Format, cmd.OutOrStdout()), cfg.Log)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create consumer", err)
			}
			if kcfg.EnableMiddleware {
				consumer.Use(kafkamw.LoggingConsumerMiddleware(cfg.Log))
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return WrapExitError(ExitCommandError, "consumer stopped", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "topic to read; defaults to EVENTS_TOPIC")
	cmd.Flags().StringVar(&group, "group", defaultTailGroup, "consumer group id")
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start a new group at the oldest event instead of KAFKA_TAIL_START")

	return cmd
}

// printEvent writes each hold event as a JSON line or a short text line.
// Undecodable payloads are reported as permanent errors so they are not retried.
func printEvent(format string, w io.Writer) kafka.MessageHandler {
	return func(_ context.Context, msg kafka.Message) error {
		var event events.HoldEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("undecodable hold event", err)
		}

		if format == "json" {
			return json.NewEncoder(w).Encode(event)
		}
		_, err := fmt.Fprintf(w, "%s\t%s\thold=%s\tslot=%s\tuser=%s\tstatus=%s\n",
			event.At.Format("2006-01-02T15:04:05.000Z07:00"),
			event.Type, event.HoldID, event.SlotID, event.HolderID, event.Status,
		)
		return err
	}
}
