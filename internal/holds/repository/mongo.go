package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	holdserrors "escaperoom/internal/holds/errors"
	slotrepo "escaperoom/internal/slots/repository"
	"escaperoom/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName      = "Holds"
	ClaimCollectionName = "Slot_claims"
)

// A claim document (_id = slot id, hold_id, holder_id, status, expires_at)
// mirrors the newest hold that reached a slot. Creating, confirming and
// releasing a hold all write it, so two transactions touching the same slot
// always write-conflict and the driver retries one of them.
type mongoHoldRepository struct {
	holds  *mongo.Collection
	claims *mongo.Collection
	slots  *mongo.Collection
}

// NewMongoHoldRepository expects every Try* call to run inside a session
// transaction from pkg/db/mongo.
func NewMongoHoldRepository(db *mongo.Database) HoldRepository {
	return &mongoHoldRepository{
		holds:  db.Collection(CollectionName),
		claims: db.Collection(ClaimCollectionName),
		slots:  db.Collection(slotrepo.CollectionName),
	}
}

// freeClaimFilter matches a claim that no longer blocks the slot. Its HOLD
// branch is the negation of model.IsLive: expires_at at or before now.
func freeClaimFilter(slotID string, now time.Time) bson.M {
	return bson.M{
		"_id": slotID,
		"$or": bson.A{
			bson.M{"status": bson.M{"$in": bson.A{model.HoldReleased, model.HoldExpired}}},
			bson.M{"status": model.HoldActive, "expires_at": bson.M{"$lte": now}},
		},
	}
}

func (r *mongoHoldRepository) TryCreateHold(ctx context.Context, slotID, holderID string, ttl time.Duration, now time.Time) (*model.Hold, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	var slot model.Slot
	if err := r.slots.FindOne(ctx, bson.M{"_id": slotID}).Decode(&slot); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, holdserrors.ErrHoldRejected
		}
		return nil, fmt.Errorf("failed to read slot: %w", err)
	}
	if slot.Booked {
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

	claim := bson.M{"$set": bson.M{
		"hold_id":    hold.ID,
		"holder_id":  holderID,
		"status":     model.HoldActive,
		"expires_at": hold.ExpiresAt,
	}}
	_, err := r.claims.UpdateOne(ctx, freeClaimFilter(slotID, now), claim, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, holdserrors.ErrHoldRejected
		}
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}

	if _, err := r.holds.InsertOne(ctx, hold); err != nil {
		return nil, fmt.Errorf("failed to create hold: %w", err)
	}
	return hold, nil
}

func (r *mongoHoldRepository) TryConfirm(ctx context.Context, holdID, holderID string, now time.Time) (*model.Hold, error) {
	hold, err := r.FindByID(ctx, holdID)
	if err != nil {
		if errors.Is(err, holdserrors.ErrHoldNotFound) {
			return nil, holdserrors.ErrHoldInvalid
		}
		return nil, err
	}
	if hold.HolderID != holderID || !model.IsLive(hold, now) {
		return nil, holdserrors.ErrHoldInvalid
	}
	return hold, nil
}

func (r *mongoHoldRepository) CommitConfirm(ctx context.Context, holdID string) error {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	var hold model.Hold
	err := r.holds.FindOneAndUpdate(ctx,
		bson.M{"_id": holdID, "status": model.HoldActive},
		bson.M{"$set": bson.M{"status": model.HoldConfirmed}},
	).Decode(&hold)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return holdserrors.ErrHoldInvalid
		}
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: slot already has a confirmed hold", holdserrors.ErrHoldInvalid)
		}
		return fmt.Errorf("failed to confirm hold: %w", err)
	}

	res, err := r.claims.UpdateOne(ctx,
		bson.M{"_id": hold.SlotID, "hold_id": holdID},
		bson.M{"$set": bson.M{"status": model.HoldConfirmed}},
	)
	if err != nil {
		return fmt.Errorf("failed to update slot claim: %w", err)
	}
	if res.MatchedCount != 1 {
		return fmt.Errorf("%w: claim for slot %s moved to another hold", holdserrors.ErrHoldInvalid, hold.SlotID)
	}
	return nil
}

func (r *mongoHoldRepository) TryRelease(ctx context.Context, holdID, holderID string) (bool, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	var hold model.Hold
	err := r.holds.FindOneAndUpdate(ctx,
		bson.M{"_id": holdID, "holder_id": holderID, "status": model.HoldActive},
		bson.M{"$set": bson.M{"status": model.HoldReleased}},
	).Decode(&hold)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to release hold: %w", err)
	}

	// The claim may already point at a newer hold if this one had expired.
	_, err = r.claims.UpdateOne(ctx,
		bson.M{"_id": hold.SlotID, "hold_id": holdID},
		bson.M{"$set": bson.M{"status": model.HoldReleased}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update slot claim: %w", err)
	}
	return true, nil
}

func (r *mongoHoldRepository) LiveHolderOf(ctx context.Context, slotID string, now time.Time) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	cursor, err := r.holds.Find(ctx, bson.M{"slot_id": slotID, "status": model.HoldActive})
	if err != nil {
		return "", false, fmt.Errorf("failed to query live holds: %w", err)
	}
	defer cursor.Close(ctx)

	var holds []*model.Hold
	if err := cursor.All(ctx, &holds); err != nil {
		return "", false, fmt.Errorf("failed to decode holds: %w", err)
	}
	for _, h := range holds {
		if model.IsLive(h, now) {
			return h.HolderID, true, nil
		}
	}
	return "", false, nil
}

func (r *mongoHoldRepository) ConfirmedHolderOf(ctx context.Context, slotID string) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var hold model.Hold
	err := r.holds.FindOne(ctx, bson.M{"slot_id": slotID, "status": model.HoldConfirmed}).Decode(&hold)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query confirmed hold: %w", err)
	}
	return hold.HolderID, true, nil
}

func (r *mongoHoldRepository) FindByID(ctx context.Context, holdID string) (*model.Hold, error) {
	ctx, cancel := withTimeout(ctx, readTimeout)
	defer cancel()

	var hold model.Hold
	if err := r.holds.FindOne(ctx, bson.M{"_id": holdID}).Decode(&hold); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", holdserrors.ErrHoldNotFound, holdID)
		}
		return nil, fmt.Errorf("failed to find hold: %w", err)
	}
	hold.CreatedAt = hold.CreatedAt.UTC()
	hold.ExpiresAt = hold.ExpiresAt.UTC()
	return &hold, nil
}

func (r *mongoHoldRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, writeTimeout)
	defer cancel()

	stale := bson.M{"status": model.HoldActive, "expires_at": bson.M{"$lte": now}}
	expire := bson.M{"$set": bson.M{"status": model.HoldExpired}}

	res, err := r.holds.UpdateMany(ctx, stale, expire)
	if err != nil {
		return 0, fmt.Errorf("failed to expire holds: %w", err)
	}
	if _, err := r.claims.UpdateMany(ctx, stale, expire); err != nil {
		return res.ModifiedCount, fmt.Errorf("failed to expire slot claims: %w", err)
	}
	return res.ModifiedCount, nil
}
