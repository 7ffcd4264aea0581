package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "escaperoom/internal/slots/errors"
	"escaperoom/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Slots"
)

type mongoSlotRepository struct {
	collection *mongo.Collection
}

func NewMongoSlotRepository(db *mongo.Database) SlotRepository {
	return &mongoSlotRepository{
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	if !slot.EndTime.After(slot.StartTime) {
		return slotserrors.ErrInvalidTimeRange
	}
	slot.StartTime = slot.StartTime.UTC().Truncate(time.Millisecond)
	slot.EndTime = slot.EndTime.UTC().Truncate(time.Millisecond)
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	slot.Booked = false

	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", slotserrors.ErrDuplicate, slot.ID)
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) List(ctx context.Context, roomID string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	filter := bson.M{}
	if roomID != "" {
		filter["room_id"] = roomID
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count slots: %w", err)
	}
	return count, nil
}

func (r *mongoSlotRepository) TryBook(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "booked": false},
		bson.M{"$set": bson.M{"booked": true}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to book slot: %w", err)
	}
	return res.ModifiedCount == 1, nil
}
