package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	holdserrors "escaperoom/internal/holds/errors"
	slotserrors "escaperoom/internal/slots/errors"
	slotrepo "escaperoom/internal/slots/repository"
	"escaperoom/pkg/db/memory"
	"escaperoom/pkg/model"

	"github.com/google/uuid"
)

type memoryHoldRepository struct {
	locker *memory.Locker
	slots  slotrepo.SlotRepository

	mu     sync.RWMutex
	holds  map[string]*model.Hold
	bySlot map[string][]string
}

// NewMemoryHoldRepository keeps holds in process memory. Every write takes
// the stripe of the hold's slot, which must be the stripe the memory slot
// repository takes, so locker has to be shared between the two.
func NewMemoryHoldRepository(locker *memory.Locker, slots slotrepo.SlotRepository) HoldRepository {
	return &memoryHoldRepository{
		locker: locker,
		slots:  slots,
		holds:  make(map[string]*model.Hold),
		bySlot: make(map[string][]string),
	}
}

func (r *memoryHoldRepository) TryCreateHold(ctx context.Context, slotID, holderID string, ttl time.Duration, now time.Time) (*model.Hold, error) {
	unlock := memory.Lock(ctx, r.locker, slotID)
	defer unlock()

	slot, err := r.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, holdserrors.ErrHoldRejected
		}
		return nil, err
	}
	if slot.Booked {
		return nil, holdserrors.ErrHoldRejected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.liveLocked(slotID, now); live != nil {
		return nil, holdserrors.ErrHoldRejected
	}

	hold := &model.Hold{
		ID:        uuid.New().String(),
		SlotID:    slotID,
		HolderID:  holderID,
		Status:    model.HoldActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	r.holds[hold.ID] = hold
	r.bySlot[slotID] = append(r.bySlot[slotID], hold.ID)

	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.holds, hold.ID)
		ids := r.bySlot[slotID]
		for i, id := range ids {
			if id == hold.ID {
				r.bySlot[slotID] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	})
	return hold.Clone(), nil
}

func (r *memoryHoldRepository) TryConfirm(ctx context.Context, holdID, holderID string, now time.Time) (*model.Hold, error) {
	slotID, ok := r.slotOf(holdID)
	if !ok {
		return nil, holdserrors.ErrHoldInvalid
	}

	unlock := memory.Lock(ctx, r.locker, slotID)
	defer unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()

	hold := r.holds[holdID]
	if hold.HolderID != holderID || !model.IsLive(hold, now) {
		return nil, holdserrors.ErrHoldInvalid
	}
	return hold.Clone(), nil
}

func (r *memoryHoldRepository) CommitConfirm(ctx context.Context, holdID string) error {
	slotID, ok := r.slotOf(holdID)
	if !ok {
		return holdserrors.ErrHoldInvalid
	}

	unlock := memory.Lock(ctx, r.locker, slotID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	hold := r.holds[holdID]
	if hold.Status != model.HoldActive {
		return holdserrors.ErrHoldInvalid
	}
	for _, id := range r.bySlot[slotID] {
		if r.holds[id].Status == model.HoldConfirmed {
			return fmt.Errorf("%w: slot %s already has a confirmed hold", holdserrors.ErrHoldInvalid, slotID)
		}
	}
	r.transitionLocked(ctx, hold, model.HoldConfirmed)
	return nil
}

func (r *memoryHoldRepository) TryRelease(ctx context.Context, holdID, holderID string) (bool, error) {
	slotID, ok := r.slotOf(holdID)
	if !ok {
		return false, nil
	}

	unlock := memory.Lock(ctx, r.locker, slotID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	hold := r.holds[holdID]
	if hold.HolderID != holderID || hold.Status != model.HoldActive {
		return false, nil
	}
	r.transitionLocked(ctx, hold, model.HoldReleased)
	return true, nil
}

func (r *memoryHoldRepository) LiveHolderOf(_ context.Context, slotID string, now time.Time) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	holder, live := r.liveLocked(slotID, now)
	return holder, live != nil, nil
}

func (r *memoryHoldRepository) ConfirmedHolderOf(_ context.Context, slotID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.bySlot[slotID] {
		if h := r.holds[id]; h.Status == model.HoldConfirmed {
			return h.HolderID, true, nil
		}
	}
	return "", false, nil
}

func (r *memoryHoldRepository) FindByID(_ context.Context, holdID string) (*model.Hold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hold, ok := r.holds[holdID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", holdserrors.ErrHoldNotFound, holdID)
	}
	return hold.Clone(), nil
}

// ExpireStale locks one slot at a time so a sweep never holds more than a
// single stripe.
func (r *memoryHoldRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	r.mu.RLock()
	var stale []*model.Hold
	for _, h := range r.holds {
		if h.Status == model.HoldActive && !model.IsLive(h, now) {
			stale = append(stale, h)
		}
	}
	r.mu.RUnlock()

	var expired int64
	for _, h := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		unlock := memory.Lock(ctx, r.locker, h.SlotID)
		r.mu.Lock()
		if h.Status == model.HoldActive && !model.IsLive(h, now) {
			r.transitionLocked(ctx, h, model.HoldExpired)
			expired++
		}
		r.mu.Unlock()
		unlock()
	}
	return expired, nil
}

func (r *memoryHoldRepository) slotOf(holdID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hold, ok := r.holds[holdID]
	if !ok {
		return "", false
	}
	return hold.SlotID, true
}

// liveLocked expects r.mu to be held.
func (r *memoryHoldRepository) liveLocked(slotID string, now time.Time) (string, *model.Hold) {
	for _, id := range r.bySlot[slotID] {
		if h := r.holds[id]; model.IsLive(h, now) {
			return h.HolderID, h
		}
	}
	return "", nil
}

// transitionLocked expects r.mu to be held.
func (r *memoryHoldRepository) transitionLocked(ctx context.Context, hold *model.Hold, to model.HoldStatus) {
	from := hold.Status
	hold.Status = to
	memory.OnRollback(ctx, func() {
		r.mu.Lock()
		hold.Status = from
		r.mu.Unlock()
	})
}
