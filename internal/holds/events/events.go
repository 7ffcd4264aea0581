// Package events announces hold lifecycle changes after they commit.
package events

import (
	"context"
	"time"

	"escaperoom/pkg/kafka"
	"escaperoom/pkg/middleware"
	"escaperoom/pkg/model"
)

const (
	TypeHoldCreated   = "hold.created"
	TypeHoldConfirmed = "hold.confirmed"
	TypeHoldReleased  = "hold.released"

	schemaVersion = "1"
	source        = "escaperoom-holds"
)

type HoldEvent struct {
	Type      string           `json:"type"`
	HoldID    string           `json:"hold_id"`
	SlotID    string           `json:"slot_id"`
	HolderID  string           `json:"user_id"`
	Status    model.HoldStatus `json:"status"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	At        time.Time        `json:"at"`
}

// NewHoldEvent snapshots hold for eventType at the given time.
func NewHoldEvent(eventType string, hold *model.Hold, at time.Time) HoldEvent {
	e := HoldEvent{
		Type:     eventType,
		HoldID:   hold.ID,
		SlotID:   hold.SlotID,
		HolderID: hold.HolderID,
		Status:   hold.Status,
		At:       at,
	}
	if hold.Status == model.HoldActive {
		expires := hold.ExpiresAt
		e.ExpiresAt = &expires
	}
	return e
}

// Publisher is best effort: the hold state is already committed when Publish
// runs, so implementations report failures but callers only log them.
type Publisher interface {
	Publish(ctx context.Context, event HoldEvent) error
	Close() error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, HoldEvent) error { return nil }
func (noopPublisher) Close() error                             { return nil }

// MessageWriter is satisfied by *kafka.Producer.
type MessageWriter interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) Publisher {
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event HoldEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.SlotID).
		WithValue(event).
		WithTimestamp(event.At).
		WithEventType(event.Type).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		Build()
	if err != nil {
		return err
	}
	return p.writer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
