package repository

import (
	"context"
	"time"

	"escaperoom/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// HoldRepository owns hold rows. Every Try* method is a single atomic unit on
// its own and joins the caller's transaction when ctx carries one.
type HoldRepository interface {
	// TryCreateHold inserts a HOLD expiring at now+ttl iff the slot exists, is
	// not booked and has no live hold. Otherwise it returns ErrHoldRejected.
	TryCreateHold(ctx context.Context, slotID, holderID string, ttl time.Duration, now time.Time) (*model.Hold, error)

	// TryConfirm checks that holdID exists, belongs to holderID and is live at
	// now. It writes nothing. Any failed check is ErrHoldInvalid.
	TryConfirm(ctx context.Context, holdID, holderID string, now time.Time) (*model.Hold, error)

	// CommitConfirm moves holdID from HOLD to CONFIRMED, or returns
	// ErrHoldInvalid when the hold already left HOLD.
	CommitConfirm(ctx context.Context, holdID string) error

	// TryRelease moves an owned HOLD to RELEASED whether or not it expired.
	TryRelease(ctx context.Context, holdID, holderID string) (bool, error)

	LiveHolderOf(ctx context.Context, slotID string, now time.Time) (string, bool, error)
	ConfirmedHolderOf(ctx context.Context, slotID string) (string, bool, error)

	FindByID(ctx context.Context, holdID string) (*model.Hold, error)

	// ExpireStale rewrites HOLD rows whose expiry is at or before now to
	// EXPIRED and returns how many changed. Readers never depend on it.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
