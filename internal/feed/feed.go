// Package feed defines the contract for the secondary location's stock feed
// and provides an in-process implementation for the simulator and tests.
package feed

import (
	"context"
	"sync"

	"github.com/valleygoods/storefront/internal/model"
)

// Client fetches stock records from the secondary location's feed.
type Client interface {
	// ListInventory returns records keyed by normalized SKU. An empty skus
	// slice requests the full feed; a non-empty slice restricts the result
	// to those SKUs.
	ListInventory(ctx context.Context, skus []string) (map[string]model.LocationStockRecord, error)
}

// Memory is an in-process feed backed by a map. It stands in for the real
// feed endpoint and supports fault injection for tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]model.LocationStockRecord
	failErr error

	calls int
}

// NewMemory returns an empty in-memory feed.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.LocationStockRecord)}
}

// Set stores a record under its normalized SKU.
func (m *Memory) Set(rec model.LocationStockRecord) {
	key := model.NormalizeSKU(rec.SKU)
	if key == "" {
		return
	}
	m.mu.Lock()
	m.records[key] = rec
	m.mu.Unlock()
}

// Delete removes a record.
func (m *Memory) Delete(sku string) {
	m.mu.Lock()
	delete(m.records, model.NormalizeSKU(sku))
	m.mu.Unlock()
}

// FailNext makes the next ListInventory call return err, then clears.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// Calls returns how many ListInventory calls were served.
func (m *Memory) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// ListInventory implements Client.
func (m *Memory) ListInventory(ctx context.Context, skus []string) (map[string]model.LocationStockRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failErr != nil {
		err := m.failErr
		m.failErr = nil
		return nil, err
	}
	out := make(map[string]model.LocationStockRecord)
	if len(skus) == 0 {
		for k, v := range m.records {
			out[k] = v
		}
		return out, nil
	}
	for _, s := range skus {
		key := model.NormalizeSKU(s)
		if rec, ok := m.records[key]; ok {
			out[key] = rec
		}
	}
	return out, nil
}
