// Package db defines the transaction boundary shared by every storage backend.
//
// Repositories never begin transactions themselves. A service wraps a unit of
// work in ExecuteTransaction and passes the returned context down; each
// backend recovers its transaction handle from that context.
package db

import "context"

type TxFunc func(ctx context.Context) error

type TransactionManager interface {
	// ExecuteTransaction runs fn atomically. If fn returns an error every
	// write made through ctx is discarded and the error is returned as is.
	// Calling it with a context that already carries a transaction runs fn
	// inside the outer transaction.
	ExecuteTransaction(ctx context.Context, fn TxFunc) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}
