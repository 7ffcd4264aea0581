package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	holdserrors "escaperoom/internal/holds/errors"
	"escaperoom/internal/holds/validator"
	"escaperoom/pkg/clock"
	"escaperoom/pkg/db"
	apperrors "escaperoom/pkg/errors"
	"escaperoom/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("connection refused")

type mockHoldRepository struct {
	tryCreateHoldFunc     func(ctx context.Context, slotID, holderID string, ttl time.Duration, now time.Time) (*model.Hold, error)
	tryConfirmFunc        func(ctx context.Context, holdID, holderID string, now time.Time) (*model.Hold, error)
	commitConfirmFunc     func(ctx context.Context, holdID string) error
	tryReleaseFunc        func(ctx context.Context, holdID, holderID string) (bool, error)
	liveHolderOfFunc      func(ctx context.Context, slotID string, now time.Time) (string, bool, error)
	confirmedHolderOfFunc func(ctx context.Context, slotID string) (string, bool, error)
	findByIDFunc          func(ctx context.Context, holdID string) (*model.Hold, error)
	expireStaleFunc       func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockHoldRepository) TryCreateHold(ctx context.Context, slotID, holderID string, ttl time.Duration, now time.Time) (*model.Hold, error) {
	if m.tryCreateHoldFunc != nil {
		return m.tryCreateHoldFunc(ctx, slotID, holderID, ttl, now)
	}
	return nil, holdserrors.ErrHoldRejected
}

func (m *mockHoldRepository) TryConfirm(ctx context.Context, holdID, holderID string, now time.Time) (*model.Hold, error) {
	if m.tryConfirmFunc != nil {
		return m.tryConfirmFunc(ctx, holdID, holderID, now)
	}
	return nil, holdserrors.ErrHoldInvalid
}

func (m *mockHoldRepository) CommitConfirm(ctx context.Context, holdID string) error {
	if m.commitConfirmFunc != nil {
		return m.commitConfirmFunc(ctx, holdID)
	}
	return nil
}

func (m *mockHoldRepository) TryRelease(ctx context.Context, holdID, holderID string) (bool, error) {
	if m.tryReleaseFunc != nil {
		return m.tryReleaseFunc(ctx, holdID, holderID)
	}
	return false, nil
}

func (m *mockHoldRepository) LiveHolderOf(ctx context.Context, slotID string, now time.Time) (string, bool, error) {
	if m.liveHolderOfFunc != nil {
		return m.liveHolderOfFunc(ctx, slotID, now)
	}
	return "", false, nil
}

func (m *mockHoldRepository) ConfirmedHolderOf(ctx context.Context, slotID string) (string, bool, error) {
	if m.confirmedHolderOfFunc != nil {
		return m.confirmedHolderOfFunc(ctx, slotID)
	}
	return "", false, nil
}

func (m *mockHoldRepository) FindByID(ctx context.Context, holdID string) (*model.Hold, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, holdID)
	}
	return nil, fmt.Errorf("%w: %s", holdserrors.ErrHoldNotFound, holdID)
}

func (m *mockHoldRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	if m.expireStaleFunc != nil {
		return m.expireStaleFunc(ctx, now)
	}
	return 0, nil
}

type mockSlotRepository struct {
	tryBookFunc func(ctx context.Context, id string) (bool, error)
	listFunc    func(ctx context.Context, roomID string) ([]*model.Slot, error)
}

func (m *mockSlotRepository) Create(context.Context, *model.Slot) error { return nil }

func (m *mockSlotRepository) FindByID(context.Context, string) (*model.Slot, error) {
	return nil, errBackendDown
}

func (m *mockSlotRepository) List(ctx context.Context, roomID string) ([]*model.Slot, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, roomID)
	}
	return nil, nil
}

func (m *mockSlotRepository) Count(context.Context) (int64, error) { return 0, nil }

func (m *mockSlotRepository) TryBook(ctx context.Context, id string) (bool, error) {
	if m.tryBookFunc != nil {
		return m.tryBookFunc(ctx, id)
	}
	return true, nil
}

// passthroughTx runs fn directly and reports whether it was rolled back.
type passthroughTx struct {
	rolledBack bool
}

func (p *passthroughTx) ExecuteTransaction(ctx context.Context, fn db.TxFunc) error {
	err := fn(ctx)
	p.rolledBack = err != nil
	return err
}

func newMockService(holds *mockHoldRepository, slots *mockSlotRepository, tx *passthroughTx) HoldService {
	cfg := testConfig()
	return NewHoldService(holds, slots, tx, validator.NewHoldValidator(cfg.Log), nil, clock.NewManual(start), cfg)
}

func liveHold() *model.Hold {
	return &model.Hold{
		ID:        "h-1",
		SlotID:    "s-1",
		HolderID:  "alice",
		Status:    model.HoldActive,
		CreatedAt: start,
		ExpiresAt: start.Add(5 * time.Minute),
	}
}

func TestHoldService_StorageFaultIsNeverAConflict(t *testing.T) {
	tests := []struct {
		name  string
		holds *mockHoldRepository
		slots *mockSlotRepository
		call  func(svc HoldService) error
	}{
		{
			name: "create",
			holds: &mockHoldRepository{
				tryCreateHoldFunc: func(context.Context, string, string, time.Duration, time.Time) (*model.Hold, error) {
					return nil, errBackendDown
				},
			},
			slots: &mockSlotRepository{},
			call: func(svc HoldService) error {
				_, err := svc.CreateHold(context.Background(), hold("s-1", "alice"))
				return err
			},
		},
		{
			name: "confirm lookup",
			holds: &mockHoldRepository{
				tryConfirmFunc: func(context.Context, string, string, time.Time) (*model.Hold, error) {
					return nil, errBackendDown
				},
			},
			slots: &mockSlotRepository{},
			call: func(svc HoldService) error {
				_, err := svc.Confirm(context.Background(), "h-1", as("alice"))
				return err
			},
		},
		{
			name: "confirm booking",
			holds: &mockHoldRepository{
				tryConfirmFunc: func(context.Context, string, string, time.Time) (*model.Hold, error) {
					return liveHold(), nil
				},
			},
			slots: &mockSlotRepository{
				tryBookFunc: func(context.Context, string) (bool, error) {
					return false, errBackendDown
				},
			},
			call: func(svc HoldService) error {
				_, err := svc.Confirm(context.Background(), "h-1", as("alice"))
				return err
			},
		},
		{
			name: "release",
			holds: &mockHoldRepository{
				tryReleaseFunc: func(context.Context, string, string) (bool, error) {
					return false, errBackendDown
				},
			},
			slots: &mockSlotRepository{},
			call: func(svc HoldService) error {
				return svc.Release(context.Background(), "h-1", as("alice"))
			},
		},
		{
			name: "get",
			holds: &mockHoldRepository{
				findByIDFunc: func(context.Context, string) (*model.Hold, error) {
					return nil, errBackendDown
				},
			},
			slots: &mockSlotRepository{},
			call: func(svc HoldService) error {
				_, err := svc.GetByID(context.Background(), "h-1")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockService(tt.holds, tt.slots, &passthroughTx{})

			err := tt.call(svc)
			requireCode(t, err, apperrors.CodeUnavailable)
			assert.False(t, apperrors.HasCode(err, apperrors.CodeConflict))
			assert.ErrorIs(t, err, errBackendDown)
		})
	}
}

func TestHoldService_CommitFailureRollsBackBooking(t *testing.T) {
	tx := &passthroughTx{}
	holds := &mockHoldRepository{
		tryConfirmFunc: func(context.Context, string, string, time.Time) (*model.Hold, error) {
			return liveHold(), nil
		},
		commitConfirmFunc: func(context.Context, string) error {
			return errBackendDown
		},
	}
	booked := false
	slots := &mockSlotRepository{
		tryBookFunc: func(context.Context, string) (bool, error) {
			booked = true
			return true, nil
		},
	}

	_, err := newMockService(holds, slots, tx).Confirm(context.Background(), "h-1", as("alice"))
	requireCode(t, err, apperrors.CodeUnavailable)
	assert.True(t, booked)
	assert.True(t, tx.rolledBack, "booking and confirmation must share one transaction")
}

func TestHoldService_DeadlineMapsToTimeout(t *testing.T) {
	holds := &mockHoldRepository{
		tryCreateHoldFunc: func(ctx context.Context, _ string, _ string, _ time.Duration, _ time.Time) (*model.Hold, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("failed to create hold: %w", ctx.Err())
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newMockService(holds, &mockSlotRepository{}, &passthroughTx{}).CreateHold(ctx, hold("s-1", "alice"))
	requireCode(t, err, apperrors.CodeTimeout)
}

func TestHoldService_ReconcileReportsBothDirections(t *testing.T) {
	slots := &mockSlotRepository{
		listFunc: func(context.Context, string) ([]*model.Slot, error) {
			return []*model.Slot{
				{ID: "s-1", RoomID: "r-101", Booked: true},
				{ID: "s-2", RoomID: "r-101", Booked: false},
				{ID: "s-3", RoomID: "r-101", Booked: true},
			}, nil
		},
	}
	holds := &mockHoldRepository{
		confirmedHolderOfFunc: func(_ context.Context, slotID string) (string, bool, error) {
			switch slotID {
			case "s-2":
				return "bob", true, nil
			case "s-3":
				return "carol", true, nil
			}
			return "", false, nil
		},
	}

	anomalies, err := newMockService(holds, slots, &passthroughTx{}).Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 2)

	assert.Equal(t, "s-1", anomalies[0].SlotID)
	assert.Equal(t, AnomalyBookedWithoutHold, anomalies[0].Kind)
	assert.Equal(t, "s-2", anomalies[1].SlotID)
	assert.Equal(t, AnomalyHoldWithoutBooking, anomalies[1].Kind)
	assert.Equal(t, "bob", anomalies[1].HolderID)
}

func TestHoldService_ReconcileStorageFault(t *testing.T) {
	slots := &mockSlotRepository{
		listFunc: func(context.Context, string) ([]*model.Slot, error) {
			return nil, errBackendDown
		},
	}

	_, err := newMockService(&mockHoldRepository{}, slots, &passthroughTx{}).Reconcile(context.Background())
	requireCode(t, err, apperrors.CodeUnavailable)
}
