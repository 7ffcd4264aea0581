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

// SlotRepository owns slot rows. TryBook is the only way the booked flag
// changes, and it only ever moves false to true.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	// List returns slots ordered by start time ascending. An empty roomID lists every room.
	List(ctx context.Context, roomID string) ([]*model.Slot, error)
	Count(ctx context.Context) (int64, error)
	// TryBook sets booked=true iff the slot exists and is not booked yet.
	// The error is reserved for storage faults.
	TryBook(ctx context.Context, id string) (bool, error)
}

// withTimeout bounds a single repository call unless the caller already set a
// deadline or the call runs inside a Mongo session, which must not be wrapped.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
