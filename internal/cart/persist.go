package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valleygoods/storefront/internal/fulfillment"
	"github.com/valleygoods/storefront/internal/model"
)

// Persister is the adapter boundary for cart persistence. Implementations
// serialize on save and deserialize on load; the cart itself carries no
// storage concerns.
type Persister interface {
	// Load returns the persisted cart for a session, or nil when none exists.
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type lineDoc struct {
	Item        model.CatalogItem `json:"item"`
	Quantity    int               `json:"quantity"`
	Fulfillment json.RawMessage   `json:"fulfillment,omitempty"`
}

type cartDoc struct {
	SessionID string    `json:"session_id"`
	Lines     []lineDoc `json:"lines"`
}

func encode(c *Cart) ([]byte, error) {
	doc := cartDoc{SessionID: c.SessionID}
	for _, ln := range c.lines {
		fb, err := fulfillment.MarshalAssignment(ln.Fulfillment)
		if err != nil {
			return nil, err
		}
		doc.Lines = append(doc.Lines, lineDoc{Item: ln.Item, Quantity: ln.Quantity, Fulfillment: fb})
	}
	return json.Marshal(doc)
}

func decode(b []byte) (*Cart, error) {
	var doc cartDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	c := New(doc.SessionID)
	for _, ln := range doc.Lines {
		f, err := fulfillment.UnmarshalAssignment(ln.Fulfillment)
		if err != nil {
			return nil, err
		}
		c.lines = append(c.lines, &LineItem{Item: ln.Item, Quantity: ln.Quantity, Fulfillment: f})
	}
	return c, nil
}

// MemoryPersister keeps serialized carts in a map. Default adapter.
type MemoryPersister struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{docs: make(map[string][]byte)}
}

// Load implements Persister.
func (p *MemoryPersister) Load(_ context.Context, sessionID string) (*Cart, error) {
	p.mu.RLock()
	b, ok := p.docs[sessionID]
	p.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(b)
}

// Save implements Persister.
func (p *MemoryPersister) Save(_ context.Context, c *Cart) error {
	b, err := encode(c)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.docs[c.SessionID] = b
	p.mu.Unlock()
	return nil
}

// Delete implements Persister.
func (p *MemoryPersister) Delete(_ context.Context, sessionID string) error {
	p.mu.Lock()
	delete(p.docs, sessionID)
	p.mu.Unlock()
	return nil
}

// RedisPersister stores serialized carts under cart:<session-id> with a TTL,
// so carts survive process restarts.
type RedisPersister struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPersister builds a persister over an existing redis client.
func NewRedisPersister(rdb *redis.Client, ttl time.Duration) *RedisPersister {
	return &RedisPersister{rdb: rdb, ttl: ttl}
}

func redisKey(sessionID string) string { return "cart:" + sessionID }

// Load implements Persister.
func (p *RedisPersister) Load(ctx context.Context, sessionID string) (*Cart, error) {
	b, err := p.rdb.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

// Save implements Persister.
func (p *RedisPersister) Save(ctx context.Context, c *Cart) error {
	b, err := encode(c)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, redisKey(c.SessionID), b, p.ttl).Err()
}

// Delete implements Persister.
func (p *RedisPersister) Delete(ctx context.Context, sessionID string) error {
	return p.rdb.Del(ctx, redisKey(sessionID)).Err()
}
