package mcp

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kokistudios/keyline/internal/article"
)

// DefaultPendingTTL is how long an unconfirmed addition is kept.
const DefaultPendingTTL = 30 * time.Minute

// PendingAdd is an article held back because its title already exists.
type PendingAdd struct {
	ID         string           `json:"id"`
	Article    article.Article  `json:"-"`
	Duplicates []ArticleSummary `json:"duplicates"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// IsExpired returns true if the pending addition has exceeded its TTL.
func (p *PendingAdd) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}

// PendingStore keeps unconfirmed additions in memory.
type PendingStore struct {
	pending map[string]*PendingAdd
	mu      sync.RWMutex
	ttl     time.Duration
}

// NewPendingStore creates a pending store with the default TTL.
func NewPendingStore() *PendingStore {
	return NewPendingStoreWithTTL(DefaultPendingTTL)
}

// NewPendingStoreWithTTL creates a pending store with a custom TTL.
func NewPendingStoreWithTTL(ttl time.Duration) *PendingStore {
	return &PendingStore{
		pending: make(map[string]*PendingAdd),
		ttl:     ttl,
	}
}

func generatePendingID() string {
	return "pending-" + uuid.NewString()[:8]
}

// Create stores p and returns its id.
func (ps *PendingStore) Create(p *PendingAdd) string {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if p.ID == "" {
		p.ID = generatePendingID()
	}
	p.CreatedAt = time.Now().UTC()
	p.ExpiresAt = p.CreatedAt.Add(ps.ttl)

	ps.pending[p.ID] = p
	return p.ID
}

// Take removes and returns a pending addition. Expired entries are reported
// as such and dropped.
func (ps *PendingStore) Take(id string) (*PendingAdd, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.pending[id]
	if !ok {
		return nil, fmt.Errorf("pending addition not found: %s", id)
	}
	delete(ps.pending, id)
	if p.IsExpired() {
		return nil, fmt.Errorf("pending addition expired: %s", id)
	}
	return p, nil
}

// Cleanup removes all expired entries and returns how many were dropped.
func (ps *PendingStore) Cleanup() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	count := 0
	now := time.Now()
	for id, p := range ps.pending {
		if now.After(p.ExpiresAt) {
			delete(ps.pending, id)
			count++
		}
	}
	return count
}

// Count returns the number of live entries.
func (ps *PendingStore) Count() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	count := 0
	now := time.Now()
	for _, p := range ps.pending {
		if !now.After(p.ExpiresAt) {
			count++
		}
	}
	return count
}

// StartCleanupRoutine periodically drops expired entries until the returned
// channel is closed.
func (ps *PendingStore) StartCleanupRoutine(interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ps.Cleanup()
			case <-stop:
				return
			}
		}
	}()
	return stop
}
