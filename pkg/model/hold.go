package model

import "time"

type HoldStatus string

const (
	HoldActive    HoldStatus = "HOLD"
	HoldConfirmed HoldStatus = "CONFIRMED"
	HoldReleased  HoldStatus = "RELEASED"
	HoldExpired   HoldStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s HoldStatus) IsTerminal() bool {
	return s == HoldConfirmed || s == HoldReleased || s == HoldExpired
}

func (s HoldStatus) Valid() bool {
	switch s {
	case HoldActive, HoldConfirmed, HoldReleased, HoldExpired:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the hold lifecycle.
// HOLD is the only non-terminal state.
func CanTransition(from, to HoldStatus) bool {
	if from != HoldActive {
		return false
	}
	return to == HoldConfirmed || to == HoldReleased || to == HoldExpired
}

type Hold struct {
	ID        string     `json:"hold_id" bson:"_id"`
	SlotID    string     `json:"slot_id" bson:"slot_id"`
	HolderID  string     `json:"user_id" bson:"holder_id"`
	Status    HoldStatus `json:"status" bson:"status"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" bson:"expires_at"`
}

// IsLive is the single definition of a live hold: status HOLD and an expiry
// strictly after now. Storage backends that filter on liveness inside a query
// must encode exactly this predicate.
func IsLive(h *Hold, now time.Time) bool {
	if h == nil {
		return false
	}
	return h.Status == HoldActive && h.ExpiresAt.After(now)
}

// EffectiveStatus returns the status a reader should observe at now. A HOLD
// row past its expiry reads as EXPIRED even though storage still says HOLD.
func (h *Hold) EffectiveStatus(now time.Time) HoldStatus {
	if h.Status == HoldActive && !h.ExpiresAt.After(now) {
		return HoldExpired
	}
	return h.Status
}

// Clone returns a copy safe to hand out of an in-memory store.
func (h *Hold) Clone() *Hold {
	c := *h
	return &c
}

type CreateHoldRequest struct {
	SlotID string `json:"slot_id" validate:"required,identifier"`
	UserID string `json:"user_id" validate:"required,identifier"`
}

// HoldActionRequest is the body of confirm and release.
type HoldActionRequest struct {
	UserID string `json:"user_id" validate:"required,identifier"`
}
