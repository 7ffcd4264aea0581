// Package server wires the hold engine, the slot projector and their HTTP
// handlers onto an app.Application.
package server

import (
	"context"

	"escaperoom/internal/holds/events"
	holdhandler "escaperoom/internal/holds/handler"
	holdservice "escaperoom/internal/holds/service"
	holdvalidator "escaperoom/internal/holds/validator"
	slothandler "escaperoom/internal/slots/handler"
	slotservice "escaperoom/internal/slots/service"
	slotvalidator "escaperoom/internal/slots/validator"
	"escaperoom/internal/storage"
	"escaperoom/pkg/app"
	"escaperoom/pkg/clock"
	"escaperoom/pkg/config"
)

type Services struct {
	Holds holdservice.HoldService
	Slots slotservice.SlotService
}

func NewServices(cfg *config.Config, backend *storage.Backend, publisher events.Publisher, clk clock.Clock) *Services {
	holds := holdservice.NewHoldService(
		backend.Holds,
		backend.Slots,
		backend.Tx,
		holdvalidator.NewHoldValidator(cfg.Log),
		publisher,
		clk,
		cfg,
	)
	slots := slotservice.NewSlotService(
		backend.Slots,
		backend.Holds,
		slotvalidator.NewSlotValidator(cfg.Log),
		clk,
		cfg,
	)

	cfg.Log.Info("Services initialized", "backend", backend.Name, "hold_ttl", cfg.HoldTTL)
	return &Services{Holds: holds, Slots: slots}
}

// New builds the application. The sweeper is registered only when
// cfg.SweepInterval is positive.
func New(cfg *config.Config, backend *storage.Backend, publisher events.Publisher, clk clock.Clock) *app.Application {
	svcs := NewServices(cfg, backend, publisher, clk)

	a := app.NewApplication(cfg)
	a.SetApp(
		holdhandler.NewHealthHandler(backend, cfg.Log),
		holdhandler.NewBannerHandler(cfg.Log),
		holdhandler.NewHoldHandler(svcs.Holds, cfg.Log),
		slothandler.NewSlotHandler(svcs.Slots, cfg.Log),
	)

	if cfg.SweepInterval > 0 {
		a.AddWorker("hold-sweeper", func(ctx context.Context) {
			holdservice.RunSweeper(ctx, svcs.Holds, cfg.SweepInterval)
		})
	}
	if publisher != nil {
		a.OnShutdown("hold-events", publisher.Close)
	}
	a.OnShutdown("storage", backend.Close)
	return a
}
