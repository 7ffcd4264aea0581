// Package memory provides the locking and transaction primitives for the
// in-process storage backend.
//
// Keys (slot ids) hash onto a fixed set of mutex stripes, so operations on
// different slots rarely contend while two operations on the same slot are
// always serialized.
package memory

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const DefaultStripes = 256

type Locker struct {
	stripes []sync.Mutex
}

func NewLocker(stripes int) *Locker {
	if stripes <= 0 {
		stripes = DefaultStripes
	}
	return &Locker{stripes: make([]sync.Mutex, stripes)}
}

func (l *Locker) stripe(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(l.stripes)))
}

func (l *Locker) lockStripe(i int) {
	l.stripes[i].Lock()
}

func (l *Locker) unlockStripe(i int) {
	l.stripes[i].Unlock()
}
