package service

import (
	"context"
	"errors"

	holdrepo "escaperoom/internal/holds/repository"
	slotserrors "escaperoom/internal/slots/errors"
	"escaperoom/internal/slots/repository"
	"escaperoom/internal/slots/validator"
	"escaperoom/pkg/clock"
	"escaperoom/pkg/config"
	apperrors "escaperoom/pkg/errors"
	"escaperoom/pkg/model"
	"escaperoom/pkg/sanitizer"
)

// SlotService is the read side: it projects slot rows and hold rows into the
// status a given viewer should see. It never writes hold state, except that
// Provision creates new slots.
type SlotService interface {
	Status(ctx context.Context, slot *model.Slot, viewerID string) (model.SlotStatus, error)
	ListStatuses(ctx context.Context, roomID, viewerID string) ([]*model.SlotView, error)
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	Provision(ctx context.Context, slot *model.Slot) error
}

type slotService struct {
	slots     repository.SlotRepository
	holds     holdrepo.HoldRepository
	validator *validator.SlotValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewSlotService(
	slots repository.SlotRepository,
	holds holdrepo.HoldRepository,
	validator *validator.SlotValidator,
	clk clock.Clock,
	cfg *config.Config,
) SlotService {
	return &slotService{
		slots:     slots,
		holds:     holds,
		validator: validator,
		clock:     clk,
		cfg:       cfg,
	}
}

// Status resolves booked first, then a live hold, then AVAILABLE. An empty
// viewerID yields the collapsed HELD and BOOKED values.
// The slot is re-read before reporting AVAILABLE: a confirm that commits
// after slot was loaded has consumed the live hold and set booked.
func (s *slotService) Status(ctx context.Context, slot *model.Slot, viewerID string) (model.SlotStatus, error) {
	if slot.Booked {
		return s.bookedStatus(ctx, slot.ID, viewerID)
	}

	holder, live, err := s.holds.LiveHolderOf(ctx, slot.ID, s.clock.Now())
	if err != nil {
		return "", s.storageFault("LiveHolderOf", err)
	}
	if !live {
		current, err := s.slots.FindByID(ctx, slot.ID)
		if err != nil {
			return "", s.storageFault("FindByID", err)
		}
		if current.Booked {
			return s.bookedStatus(ctx, slot.ID, viewerID)
		}
		return model.SlotAvailable, nil
	}
	switch {
	case viewerID == "":
		return model.SlotHeld, nil
	case holder == viewerID:
		return model.SlotHeldByMe, nil
	default:
		return model.SlotHeldByOther, nil
	}
}

func (s *slotService) bookedStatus(ctx context.Context, slotID, viewerID string) (model.SlotStatus, error) {
	holder, ok, err := s.holds.ConfirmedHolderOf(ctx, slotID)
	if err != nil {
		return "", s.storageFault("ConfirmedHolderOf", err)
	}
	switch {
	case viewerID == "":
		return model.SlotBooked, nil
	case ok && holder == viewerID:
		return model.SlotBookedByMe, nil
	default:
		return model.SlotBookedByOther, nil
	}
}

func (s *slotService) ListStatuses(ctx context.Context, roomID, viewerID string) ([]*model.SlotView, error) {
	if roomID != "" && !validator.ValidRoomID(roomID) {
		return nil, apperrors.InvalidInput("Invalid room_id")
	}

	slots, err := s.slots.List(ctx, roomID)
	if err != nil {
		return nil, s.storageFault("List", err)
	}

	views := make([]*model.SlotView, 0, len(slots))
	for _, slot := range slots {
		status, err := s.Status(ctx, slot, viewerID)
		if err != nil {
			return nil, err
		}
		views = append(views, &model.SlotView{
			SlotID:    slot.ID,
			RoomID:    slot.RoomID,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Status:    status,
		})
	}
	return views, nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", id)
		}
		return nil, s.storageFault("FindByID", err)
	}
	return slot, nil
}

func (s *slotService) Provision(ctx context.Context, slot *model.Slot) error {
	sanitizer.NormalizeSlot(slot)
	if err := s.validator.Validate(slot); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "error", err)
		return apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		switch {
		case errors.Is(err, slotserrors.ErrDuplicate):
			return apperrors.Conflict("Slot already exists for this room and time window")
		case errors.Is(err, slotserrors.ErrInvalidTimeRange):
			return apperrors.Validation("Slot validation failed", map[string]any{"end_time": "must be after start_time"})
		case errors.Is(err, slotserrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid slot ID")
		}
		return s.storageFault("Create", err)
	}

	s.cfg.Log.Info("Slot provisioned",
		"slot_id", slot.ID,
		"room_id", slot.RoomID,
		"start_time", slot.StartTime,
	)
	return nil
}

func (s *slotService) storageFault(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("Slot storage did not respond in time")
	}
	s.cfg.Log.Error("Slot storage operation failed",
		"operation", operation,
		"error", err,
	)
	return apperrors.Unavailable("slot storage", err)
}
