// Package inventory reconciles the commerce platform's combined stock counts
// with the secondary location feed into per-location numbers.
package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/valleygoods/storefront/internal/feed"
	"github.com/valleygoods/storefront/internal/model"
	"github.com/valleygoods/storefront/internal/obs"
)

// Cache is a time-boxed in-memory view of the secondary location's stock
// feed, keyed by normalized SKU. Catalog and detail views may query it
// concurrently; refreshes are additive merges, last write wins.
type Cache struct {
	client    feed.Client
	freshness time.Duration

	mu       sync.RWMutex
	records  map[string]model.LocationStockRecord
	lastFull time.Time
	lastErr  error
}

// NewCache wraps a feed client with a freshness window for full fetches.
func NewCache(client feed.Client, freshness time.Duration) *Cache {
	return &Cache{
		client:    client,
		freshness: freshness,
		records:   make(map[string]model.LocationStockRecord),
	}
}

// Refresh populates the cache from the feed. With no SKUs a full fetch is
// issued unless the last one completed inside the freshness window. Naming
// SKUs always issues a fetch for those SKUs and merges the result, because
// detail views need guaranteed-fresh numbers. A fetch failure sets the error
// flag and leaves the existing cache untouched.
func (c *Cache) Refresh(ctx context.Context, skus ...string) error {
	norm := make([]string, 0, len(skus))
	for _, s := range skus {
		if n := model.NormalizeSKU(s); n != "" {
			norm = append(norm, n)
		}
	}
	if len(norm) == 0 {
		c.mu.RLock()
		fresh := !c.lastFull.IsZero() && time.Since(c.lastFull) < c.freshness
		c.mu.RUnlock()
		if fresh {
			return nil
		}
	}
	recs, err := c.client.ListInventory(ctx, norm)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		obs.Logger.Warn("inventory_fetch_failed", "error", err, "sku_count", len(norm))
		return err
	}
	c.mu.Lock()
	for k, rec := range recs {
		c.records[model.NormalizeSKU(k)] = rec
	}
	if len(norm) == 0 {
		c.lastFull = time.Now()
	}
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}

// StockFor returns the feed's open stock for a SKU, or 0 if unknown.
func (c *Cache) StockFor(sku string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[model.NormalizeSKU(sku)]
	if !ok {
		return 0
	}
	return rec.OpenStock
}

// HasRecord reports whether the feed has a record for the SKU.
func (c *Cache) HasRecord(sku string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[model.NormalizeSKU(sku)]
	return ok
}

// Record returns the cached record for a SKU.
func (c *Cache) Record(sku string) (model.LocationStockRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[model.NormalizeSKU(sku)]
	return rec, ok
}

// LastErr returns the error from the most recent failed fetch, cleared by
// the next successful one.
func (c *Cache) LastErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Size returns the number of cached records.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Start runs a background full refresh on the given interval until ctx is
// done. Failures are absorbed; the next tick retries naturally.
func (c *Cache) Start(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_ = c.Refresh(ctx)
			}
		}
	}()
}
