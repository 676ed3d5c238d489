// Package platform defines the commerce platform contract (catalog, orders)
// and an in-process implementation for the simulator and tests.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valleygoods/storefront/internal/model"
)

// ErrOrderNotFound is returned for operations on unknown order ids.
var ErrOrderNotFound = errors.New("platform: order not found")

// ErrStatusUpdateFailed wraps injected or transport-level failures of the
// status transition call.
var ErrStatusUpdateFailed = errors.New("platform: status update failed")

// Filters narrows a product listing.
type Filters struct {
	Page    int
	PerPage int
	Search  string
	ID      int64
}

// ProductPage is one page of catalog items.
type ProductPage struct {
	Items      []model.CatalogItem
	Total      int
	TotalPages int
}

// OrderPayload is the order submission body.
type OrderPayload struct {
	Status        model.OrderStatus
	Customer      model.CustomerIdentity
	Lines         []model.OrderLine
	Subtotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Metadata      map[string]string
}

// Client is the commerce platform contract. The platform owns the catalog
// and order records of truth; this core reads products and issues order
// mutations only through these calls.
type Client interface {
	ListProducts(ctx context.Context, f Filters) (ProductPage, error)
	CreateOrder(ctx context.Context, p OrderPayload) (model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (model.Order, error)
	ListOrders(ctx context.Context, customerEmail string) ([]model.Order, error)
}

// StatusTransition records one order status change for assertions on the
// processing -> completed ordering the downstream system depends on.
type StatusTransition struct {
	OrderID int64
	From    model.OrderStatus
	To      model.OrderStatus
	At      time.Time
}

// Memory is an in-process platform backed by maps.
type Memory struct {
	mu          sync.Mutex
	products    []model.CatalogItem
	orders      map[int64]model.Order
	nextOrderID int64
	transitions []StatusTransition

	failStatusUpdates int
	failCreate        error
}

// NewMemory returns an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{orders: make(map[int64]model.Order), nextOrderID: 1000}
}

// SeedProducts replaces the catalog.
func (m *Memory) SeedProducts(items []model.CatalogItem) {
	m.mu.Lock()
	m.products = append([]model.CatalogItem(nil), items...)
	m.mu.Unlock()
}

// FailStatusUpdates makes the next n UpdateOrderStatus calls fail.
func (m *Memory) FailStatusUpdates(n int) {
	m.mu.Lock()
	m.failStatusUpdates = n
	m.mu.Unlock()
}

// FailNextCreate makes the next CreateOrder call fail with err.
func (m *Memory) FailNextCreate(err error) {
	m.mu.Lock()
	m.failCreate = err
	m.mu.Unlock()
}

// Transitions returns the recorded status transitions in order.
func (m *Memory) Transitions() []StatusTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusTransition(nil), m.transitions...)
}

// ListProducts implements Client.
func (m *Memory) ListProducts(ctx context.Context, f Filters) (ProductPage, error) {
	if err := ctx.Err(); err != nil {
		return ProductPage{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []model.CatalogItem
	for _, p := range m.products {
		if f.ID != 0 && p.ID != f.ID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		items = append(items, p)
	}
	total := len(items)
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	totalPages := (total + perPage - 1) / perPage
	page := f.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return ProductPage{Items: items[start:end], Total: total, TotalPages: totalPages}, nil
}

// CreateOrder implements Client. Orders are numbered from a platform-side
// sequence.
func (m *Memory) CreateOrder(ctx context.Context, p OrderPayload) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		err := m.failCreate
		m.failCreate = nil
		return model.Order{}, err
	}
	id := m.nextOrderID
	m.nextOrderID++
	ord := model.Order{
		ID:            id,
		Number:        fmt.Sprintf("VG-%06d", id),
		Status:        p.Status,
		CustomerEmail: p.Customer.Email,
		Lines:         append([]model.OrderLine(nil), p.Lines...),
		Subtotal:      p.Subtotal,
		ShippingTotal: p.ShippingTotal,
		Tax:           p.Tax,
		Total:         p.Total,
		Metadata:      p.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if ref, ok := p.Metadata["payment_ref"]; ok {
		ord.PaymentRef = ref
	}
	m.orders[id] = ord
	m.transitions = append(m.transitions, StatusTransition{OrderID: id, To: p.Status, At: ord.CreatedAt})
	return ord, nil
}

// UpdateOrderStatus implements Client. The call is idempotent: repeating a
// transition to the current status is a no-op success.
func (m *Memory) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStatusUpdates > 0 {
		m.failStatusUpdates--
		return model.Order{}, ErrStatusUpdateFailed
	}
	ord, ok := m.orders[orderID]
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	if ord.Status == status {
		return ord, nil
	}
	m.transitions = append(m.transitions, StatusTransition{OrderID: orderID, From: ord.Status, To: status, At: time.Now().UTC()})
	ord.Status = status
	m.orders[orderID] = ord
	return ord, nil
}

// GetOrder implements Client.
func (m *Memory) GetOrder(ctx context.Context, orderID int64) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ord, ok := m.orders[orderID]
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	return ord, nil
}

// ListOrders implements Client.
func (m *Memory) ListOrders(ctx context.Context, customerEmail string) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, ord := range m.orders {
		if customerEmail == "" || strings.EqualFold(ord.CustomerEmail, customerEmail) {
			out = append(out, ord)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
