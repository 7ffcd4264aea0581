package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	holdrepo "escaperoom/internal/holds/repository"
	"escaperoom/internal/migrations/mongo/validators"
	slotrepo "escaperoom/internal/slots/repository"
	"escaperoom/pkg/logger"
	"escaperoom/pkg/model"
)

var (
	SlotsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "start_time", Value: 1},
				{Key: "end_time", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_room_window"),
		},
		{Keys: bson.D{{Key: "start_time", Value: 1}}},
	}

	HoldsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "slot_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "expires_at", Value: 1},
		}},
		// Second line of defence behind the claim document: a slot can carry
		// at most one CONFIRMED hold.
		{
			Keys: bson.D{{Key: "slot_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_confirmed_per_slot").
				SetPartialFilterExpression(bson.M{"status": model.HoldConfirmed}),
		},
	}

	SlotClaimsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
	}
)

type collectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// RunMigration creates the collections with their schema validators and
// indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	collections := []collectionDef{
		{Name: slotrepo.CollectionName, Indexes: SlotsIndexes, Validator: validators.SlotValidator},
		{Name: holdrepo.CollectionName, Indexes: HoldsIndexes, Validator: validators.HoldValidator},
		{Name: holdrepo.ClaimCollectionName, Indexes: SlotClaimsIndexes, Validator: validators.SlotClaimValidator},
	}

	for _, def := range collections {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
