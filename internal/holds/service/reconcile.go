package service

import (
	"context"
	"time"
)

type AnomalyKind string

const (
	// AnomalyBookedWithoutHold: booked=true but no CONFIRMED hold. Only a
	// partially applied confirm on a non-transactional store leaves this.
	AnomalyBookedWithoutHold AnomalyKind = "BOOKED_WITHOUT_CONFIRMED_HOLD"
	// AnomalyHoldWithoutBooking: a CONFIRMED hold on a slot that is not booked.
	AnomalyHoldWithoutBooking AnomalyKind = "CONFIRMED_HOLD_ON_UNBOOKED_SLOT"
)

type Anomaly struct {
	SlotID   string      `json:"slot_id"`
	RoomID   string      `json:"room_id"`
	Kind     AnomalyKind `json:"kind"`
	HolderID string      `json:"user_id,omitempty"`
}

// Reconcile compares every slot's booked flag with its CONFIRMED hold and
// reports disagreements. It never modifies either side; in particular a
// booked flag is never cleared.
func (s *holdService) Reconcile(ctx context.Context) ([]Anomaly, error) {
	slots, err := s.slots.List(ctx, "")
	if err != nil {
		return nil, s.storageFault(ctx, "Reconcile", err)
	}

	var anomalies []Anomaly
	for _, slot := range slots {
		holder, confirmed, err := s.holds.ConfirmedHolderOf(ctx, slot.ID)
		if err != nil {
			return nil, s.storageFault(ctx, "Reconcile", err)
		}

		var kind AnomalyKind
		switch {
		case slot.Booked && !confirmed:
			kind = AnomalyBookedWithoutHold
		case !slot.Booked && confirmed:
			kind = AnomalyHoldWithoutBooking
		default:
			continue
		}

		a := Anomaly{SlotID: slot.ID, RoomID: slot.RoomID, Kind: kind, HolderID: holder}
		s.cfg.Log.Warn("Slot and hold state disagree",
			"slot_id", a.SlotID,
			"room_id", a.RoomID,
			"kind", a.Kind,
			"user_id", a.HolderID,
		)
		anomalies = append(anomalies, a)
	}

	s.cfg.Log.Info("Reconciliation finished", "slots", len(slots), "anomalies", len(anomalies))
	return anomalies, nil
}

// SweepExpired rewrites stale HOLD rows to EXPIRED. Reads already treat them
// as expired, so this only tidies storage.
func (s *holdService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.holds.ExpireStale(ctx, s.clock.Now())
	if err != nil {
		return n, s.storageFault(ctx, "SweepExpired", err)
	}
	if n > 0 {
		s.cfg.Log.Info("Expired stale holds", "count", n)
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done. A failed
// sweep is logged and retried on the next tick.
func RunSweeper(ctx context.Context, svc HoldService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = svc.SweepExpired(ctx)
		}
	}
}
