package services

import (
	"sync"
	"time"

	"github.com/cafe-delivery/storefront/internal/domain"
)

// DefaultCheckoutIdleTTL is how long an untouched checkout session is kept.
const DefaultCheckoutIdleTTL = 30 * time.Minute

// CheckoutRegistry holds one in-memory checkout session per visitor. Sessions are never
// persisted and disappear after submission, abandonment or the idle TTL.
type CheckoutRegistry struct {
	mu       sync.Mutex
	sessions map[string]*checkoutEntry
	ttl      time.Duration
	now      func() time.Time
}

type checkoutEntry struct {
	mu      sync.Mutex
	ready   bool
	session domain.CheckoutSession
}

// NewCheckoutRegistry creates a registry. A non-positive ttl selects DefaultCheckoutIdleTTL.
func NewCheckoutRegistry(ttl time.Duration, clock func() time.Time) *CheckoutRegistry {
	if ttl <= 0 {
		ttl = DefaultCheckoutIdleTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &CheckoutRegistry{
		sessions: make(map[string]*checkoutEntry),
		ttl:      ttl,
		now:      clock,
	}
}

// acquire returns the visitor's entry, replacing it when idle for longer than the TTL.
func (r *CheckoutRegistry) acquire(visitor string) *checkoutEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[visitor]
	if ok && r.expired(entry) {
		ok = false
	}
	if !ok {
		entry = &checkoutEntry{}
		r.sessions[visitor] = entry
	}
	return entry
}

// expired treats an entry that is busy as live.
func (r *CheckoutRegistry) expired(entry *checkoutEntry) bool {
	if !entry.mu.TryLock() {
		return false
	}
	defer entry.mu.Unlock()
	return entry.ready && r.now().Sub(entry.session.UpdatedAt) > r.ttl
}

// discard drops the visitor's session if entry is still the current one.
func (r *CheckoutRegistry) discard(visitor string, entry *checkoutEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[visitor]; ok && (entry == nil || current == entry) {
		delete(r.sessions, visitor)
	}
}

// Sweep removes idle sessions and reports how many were dropped.
func (r *CheckoutRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for visitor, entry := range r.sessions {
		if r.expired(entry) {
			delete(r.sessions, visitor)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (r *CheckoutRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
