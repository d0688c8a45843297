// Package transfer drives a group sale from quote to settlement.
package transfer

import (
	"sync"
	"time"
)

// Entry is a quoted but unsettled sale. The prices are fixed at quote time
// and are the only amounts settlement may credit.
type Entry struct {
	UserID    int64
	Link      string
	Title     string
	PriceINR  int64
	PriceUSD  int64
	ExpiresAt time.Time
}

// Registry keeps pending transfers keyed by their opaque token. Entries are
// not swept on a timer; expiry is checked by callers at the moment of use.
// A consumed or invalidated key is indistinguishable from one that never
// existed.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

func (r *Registry) Create(key string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = e
}

func (r *Registry) Load(key string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return e, ok
}

func (r *Registry) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Consume removes and returns the entry in one step. Exactly one caller can
// win a key; settlement goes through here so a transfer can never be
// credited twice.
func (r *Registry) Consume(key string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return e, ok
}
