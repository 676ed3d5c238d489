package cart

import (
	"context"
	"sync"

	"github.com/valleygoods/storefront/internal/obs"
)

// entry pairs a session's cart with its own lock so long-running work in one
// session (the commit settle wait) never blocks another session's requests.
type entry struct {
	mu   sync.Mutex
	cart *Cart
}

// Store keeps one cart per session and serializes access per session. Carts
// are created on first use and loaded through the persister so they survive
// session restarts.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	persist Persister
}

// NewStore builds a Store over a persistence adapter.
func NewStore(p Persister) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	return &Store{entries: make(map[string]*entry), persist: p}
}

// entryFor returns the session's entry, creating it if needed. The store
// lock guards only the map; the per-entry lock guards the cart.
func (s *Store) entryFor(sessionID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		e = &entry{}
		s.entries[sessionID] = e
	}
	return e
}

// Update runs fn against the session's cart under that session's lock and
// saves the result. Persistence failures are logged, not surfaced: the
// in-memory cart stays authoritative for the session.
func (s *Store) Update(ctx context.Context, sessionID string, fn func(*Cart) error) error {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	c := s.load(ctx, e, sessionID)
	if err := fn(c); err != nil {
		return err
	}
	if err := s.persist.Save(ctx, c); err != nil {
		obs.Logger.Warn("cart_persist_failed", "session_id", sessionID, "error", err)
	}
	return nil
}

// View runs fn against a read-only view of the session's cart.
func (s *Store) View(ctx context.Context, sessionID string, fn func(*Cart)) {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(s.load(ctx, e, sessionID))
}

// Clear empties the session's cart and deletes its persisted copy.
func (s *Store) Clear(ctx context.Context, sessionID string) {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cart != nil {
		e.cart.Clear()
	}
	if err := s.persist.Delete(ctx, sessionID); err != nil {
		obs.Logger.Warn("cart_persist_delete_failed", "session_id", sessionID, "error", err)
	}
}

// load must be called with the entry lock held.
func (s *Store) load(ctx context.Context, e *entry, sessionID string) *Cart {
	if e.cart != nil {
		return e.cart
	}
	c, err := s.persist.Load(ctx, sessionID)
	if err != nil {
		obs.Logger.Warn("cart_load_failed", "session_id", sessionID, "error", err)
	}
	if c == nil {
		c = New(sessionID)
	}
	e.cart = c
	return c
}
