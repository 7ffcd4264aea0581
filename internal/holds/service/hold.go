package service

import (
	"context"
	"errors"
	"time"

	"escaperoom/internal/holds/events"
	holdserrors "escaperoom/internal/holds/errors"
	"escaperoom/internal/holds/repository"
	"escaperoom/internal/holds/validator"
	slotrepo "escaperoom/internal/slots/repository"
	"escaperoom/pkg/clock"
	"escaperoom/pkg/config"
	"escaperoom/pkg/db"
	apperrors "escaperoom/pkg/errors"
	"escaperoom/pkg/model"
	"escaperoom/pkg/sanitizer"
)

type HoldService interface {
	CreateHold(ctx context.Context, req *model.CreateHoldRequest) (*model.Hold, error)
	Confirm(ctx context.Context, holdID string, req *model.HoldActionRequest) (*model.Hold, error)
	Release(ctx context.Context, holdID string, req *model.HoldActionRequest) error
	GetByID(ctx context.Context, holdID string) (*model.Hold, error)
	Reconcile(ctx context.Context) ([]Anomaly, error)
	SweepExpired(ctx context.Context) (int64, error)
}

type holdService struct {
	holds     repository.HoldRepository
	slots     slotrepo.SlotRepository
	tx        db.TransactionManager
	validator *validator.HoldValidator
	events    events.Publisher
	clock     clock.Clock
	cfg       *config.Config
}

func NewHoldService(
	holds repository.HoldRepository,
	slots slotrepo.SlotRepository,
	tx db.TransactionManager,
	validator *validator.HoldValidator,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) HoldService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &holdService{
		holds:     holds,
		slots:     slots,
		tx:        tx,
		validator: validator,
		events:    publisher,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *holdService) CreateHold(ctx context.Context, req *model.CreateHoldRequest) (*model.Hold, error) {
	sanitizer.NormalizeCreateHold(req)
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, s.validationFailed(err)
	}

	now := s.clock.Now()
	var hold *model.Hold
	err := s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		h, err := s.holds.TryCreateHold(ctx, req.SlotID, req.UserID, s.cfg.HoldTTL, now)
		if err != nil {
			return err
		}
		hold = h
		return nil
	})
	if err != nil {
		if errors.Is(err, holdserrors.ErrHoldRejected) {
			s.cfg.Log.Info("Hold rejected", "slot_id", req.SlotID, "user_id", req.UserID)
			return nil, apperrors.Conflict("Slot is not available")
		}
		return nil, s.storageFault(ctx, "CreateHold", err)
	}

	s.cfg.Log.Info("Hold created",
		"hold_id", hold.ID,
		"slot_id", hold.SlotID,
		"user_id", hold.HolderID,
		"expires_at", hold.ExpiresAt,
	)
	s.publish(ctx, events.TypeHoldCreated, hold, now)
	return hold, nil
}

// Confirm checks the hold, books the slot and marks the hold CONFIRMED as one
// transaction. If the slot is already booked nothing is written.
func (s *holdService) Confirm(ctx context.Context, holdID string, req *model.HoldActionRequest) (*model.Hold, error) {
	if !validator.ValidIdentifier(holdID) {
		return nil, holdGone(holdID)
	}
	sanitizer.NormalizeHoldAction(req)
	if err := s.validator.ValidateAction(req); err != nil {
		return nil, s.validationFailed(err)
	}

	now := s.clock.Now()
	var confirmed *model.Hold
	err := s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		hold, err := s.holds.TryConfirm(ctx, holdID, req.UserID, now)
		if err != nil {
			return err
		}

		booked, err := s.slots.TryBook(ctx, hold.SlotID)
		if err != nil {
			return err
		}
		if !booked {
			return holdserrors.ErrSlotAlreadyBooked
		}

		if err := s.holds.CommitConfirm(ctx, hold.ID); err != nil {
			return err
		}
		hold.Status = model.HoldConfirmed
		confirmed = hold
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, holdserrors.ErrHoldInvalid):
			return nil, holdGone(holdID)
		case errors.Is(err, holdserrors.ErrSlotAlreadyBooked):
			s.cfg.Log.Warn("Confirm lost booking race", "hold_id", holdID)
			return nil, apperrors.Conflict("Slot is already booked")
		}
		return nil, s.storageFault(ctx, "Confirm", err)
	}

	s.cfg.Log.Info("Hold confirmed",
		"hold_id", confirmed.ID,
		"slot_id", confirmed.SlotID,
		"user_id", confirmed.HolderID,
	)
	s.publish(ctx, events.TypeHoldConfirmed, confirmed, now)
	return confirmed, nil
}

func (s *holdService) Release(ctx context.Context, holdID string, req *model.HoldActionRequest) error {
	if !validator.ValidIdentifier(holdID) {
		return activeHoldNotFound(holdID)
	}
	sanitizer.NormalizeHoldAction(req)
	if err := s.validator.ValidateAction(req); err != nil {
		return s.validationFailed(err)
	}

	var released bool
	err := s.tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.holds.TryRelease(ctx, holdID, req.UserID)
		released = ok
		return err
	})
	if err != nil {
		return s.storageFault(ctx, "Release", err)
	}
	if !released {
		return activeHoldNotFound(holdID)
	}

	s.cfg.Log.Info("Hold released", "hold_id", holdID, "user_id", req.UserID)

	now := s.clock.Now()
	if hold, err := s.holds.FindByID(ctx, holdID); err == nil {
		s.publish(ctx, events.TypeHoldReleased, hold, now)
	} else {
		s.cfg.Log.Warn("Released hold could not be reloaded for its event", "hold_id", holdID, "error", err)
	}
	return nil
}

// GetByID returns the hold with its effective status: a HOLD past its expiry
// reads as EXPIRED. Nothing is written.
func (s *holdService) GetByID(ctx context.Context, holdID string) (*model.Hold, error) {
	if !validator.ValidIdentifier(holdID) {
		return nil, apperrors.NotFoundWithID("Hold", holdID)
	}

	hold, err := s.holds.FindByID(ctx, holdID)
	if err != nil {
		if errors.Is(err, holdserrors.ErrHoldNotFound) {
			return nil, apperrors.NotFoundWithID("Hold", holdID)
		}
		return nil, s.storageFault(ctx, "GetByID", err)
	}

	hold.Status = hold.EffectiveStatus(s.clock.Now())
	return hold, nil
}

// Malformed ids get the same answer as unknown ones.
func holdGone(holdID string) error {
	return apperrors.Gone("Hold is expired, released or not owned by this user").
		WithDetails(map[string]any{"hold_id": holdID})
}

func activeHoldNotFound(holdID string) error {
	return apperrors.NotFound("Active hold").
		WithDetails(map[string]any{"hold_id": holdID})
}

func (s *holdService) validationFailed(err error) error {
	s.cfg.Log.Warn("Hold request validation failed", "error", err)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return apperrors.Validation("Hold request validation failed", fieldErrs.Fields())
	}
	return apperrors.Validation("Hold request validation failed", map[string]any{"error": err.Error()})
}

// storageFault reports infrastructure failures as retryable. They are never
// reported as a conflict, since the caller cannot tell whether the slot is free.
func (s *holdService) storageFault(ctx context.Context, operation string, err error) error {
	if apperrors.IsAppError(err) {
		return apperrors.AsAppError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		s.cfg.Log.Warn("Hold operation timed out", "operation", operation, "error", err)
		return apperrors.Timeout("Hold storage did not respond in time")
	}
	s.cfg.Log.Error("Hold storage operation failed",
		"operation", operation,
		"error", err,
	)
	return apperrors.Unavailable("Hold storage", err)
}

func (s *holdService) publish(ctx context.Context, eventType string, hold *model.Hold, at time.Time) {
	if err := s.events.Publish(ctx, events.NewHoldEvent(eventType, hold, at)); err != nil {
		s.cfg.Log.Warn("Failed to publish hold event",
			"event_type", eventType,
			"hold_id", hold.ID,
			"error", err,
		)
	}
}
