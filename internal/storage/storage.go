// Package storage assembles the repositories and transaction manager for the
// configured backend. Every backend is built explicitly and handed to the
// services; nothing here is process-global.
package storage

import (
	"context"
	"fmt"

	holdrepo "escaperoom/internal/holds/repository"
	slotrepo "escaperoom/internal/slots/repository"
	"escaperoom/pkg/config"
	"escaperoom/pkg/db"
	"escaperoom/pkg/db/memory"
	dbmongo "escaperoom/pkg/db/mongo"
	"escaperoom/pkg/db/sqlite"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const memoryStripes = 256

type Backend struct {
	Name  string
	Slots slotrepo.SlotRepository
	Holds holdrepo.HoldRepository
	Tx    db.TransactionManager
	db.Pinger

	// Mongo is set for the mongo backend only; migrations run against it.
	Mongo *mongo.Database

	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open builds the backend named by cfg.StorageBackend. For mongo the client
// must already be connected through cfg.SetMongo.
func Open(cfg *config.Config) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.BackendMongo:
		if cfg.Client == nil || cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("mongo backend selected but no client is connected")
		}
		return NewMongo(cfg.Client.Mongo, cfg.MongoDatabaseName), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func NewMemory() *Backend {
	locker := memory.NewLocker(memoryStripes)
	slots := slotrepo.NewMemorySlotRepository(locker)
	tx := memory.NewTxManager(locker)
	return &Backend{
		Name:   config.BackendMemory,
		Slots:  slots,
		Holds:  holdrepo.NewMemoryHoldRepository(locker, slots),
		Tx:     tx,
		Pinger: tx,
	}
}

func OpenSQLite(path string) (*Backend, error) {
	sdb, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Name:   config.BackendSQLite,
		Slots:  slotrepo.NewSQLiteSlotRepository(sdb),
		Holds:  holdrepo.NewSQLiteHoldRepository(sdb),
		Tx:     sdb,
		Pinger: sdb,
		close:  sdb.Close,
	}, nil
}

// NewMongo does not own the client; disconnecting it is left to
// config.Client.GracefulShutdown.
func NewMongo(client *mongo.Client, database string) *Backend {
	mdb := client.Database(database)
	return &Backend{
		Name:   config.BackendMongo,
		Slots:  slotrepo.NewMongoSlotRepository(mdb),
		Holds:  holdrepo.NewMongoHoldRepository(mdb),
		Tx:     dbmongo.NewTransactionManager(client),
		Pinger: mongoPinger{client},
		Mongo:  mdb,
	}
}

type mongoPinger struct {
	client *mongo.Client
}

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}
