// Package keymutex provides striped per-key locking, used to serialize
// webhook ingestion and rule evaluation for the same transaction id so a
// stale merge never overwrites a fresher one.
package keymutex

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// KeyMutex maps string keys onto a fixed set of mutex stripes. Two distinct
// keys may share a stripe; the same key always hits the same stripe, which is
// the only guarantee callers rely on.
type KeyMutex struct {
	stripes []sync.Mutex
}

// New returns a KeyMutex with the given stripe count, or the default when
// n <= 0.
func New(n int) *KeyMutex {
	if n <= 0 {
		n = defaultStripes
	}
	return &KeyMutex{stripes: make([]sync.Mutex, n)}
}

func (m *KeyMutex) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.stripes[h.Sum32()%uint32(len(m.stripes))]
}

// Lock acquires the stripe for key.
func (m *KeyMutex) Lock(key string) {
	m.stripe(key).Lock()
}

// Unlock releases the stripe for key.
func (m *KeyMutex) Unlock(key string) {
	m.stripe(key).Unlock()
}
