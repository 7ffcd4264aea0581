package memory

import (
	"context"
	"sort"
	"sync"

	"escaperoom/pkg/db"
)

type txKey struct{}

// tx records the stripes acquired so far and the undo steps for every write.
// Stripes stay locked until the transaction ends.
type tx struct {
	locker *Locker
	mu     sync.Mutex
	held   map[int]struct{}
	undo   []func()
}

type TxManager struct {
	locker *Locker
}

var _ db.TransactionManager = (*TxManager)(nil)

func NewTxManager(locker *Locker) *TxManager {
	return &TxManager{locker: locker}
}

func (m *TxManager) Locker() *Locker {
	return m.locker
}

func (m *TxManager) ExecuteTransaction(ctx context.Context, fn db.TxFunc) error {
	if t := txFromContext(ctx); t != nil && t.locker == m.locker {
		return fn(ctx)
	}

	t := &tx{locker: m.locker, held: make(map[int]struct{})}
	err := fn(context.WithValue(ctx, txKey{}, t))
	if err != nil {
		t.rollback()
	}
	t.release()
	return err
}

func (m *TxManager) Ping(context.Context) error {
	return nil
}

// Lock serializes access to key. Inside a transaction the stripe is kept until
// the transaction ends and the returned func is a no-op; outside one the
// caller must invoke the returned func to unlock.
func Lock(ctx context.Context, l *Locker, key string) (unlock func()) {
	i := l.stripe(key)

	if t := txFromContext(ctx); t != nil && t.locker == l {
		t.mu.Lock()
		_, already := t.held[i]
		t.mu.Unlock()
		if !already {
			l.lockStripe(i)
			t.mu.Lock()
			t.held[i] = struct{}{}
			t.mu.Unlock()
		}
		return func() {}
	}

	l.lockStripe(i)
	return func() { l.unlockStripe(i) }
}

// OnRollback registers an undo step for the transaction in ctx. Outside a
// transaction the write is already final and nothing is recorded.
func OnRollback(ctx context.Context, undo func()) {
	if t := txFromContext(ctx); t != nil {
		t.mu.Lock()
		t.undo = append(t.undo, undo)
		t.mu.Unlock()
	}
}

func (t *tx) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	stripes := make([]int, 0, len(t.held))
	for i := range t.held {
		stripes = append(stripes, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(stripes)))
	for _, i := range stripes {
		t.locker.unlockStripe(i)
	}
	t.held = nil
}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}
