package platform

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/valleygoods/storefront/internal/model"
)

func seeded() *Memory {
	m := NewMemory()
	m.SeedProducts([]model.CatalogItem{
		{ID: 1, SKU: "a", Name: "Apple Box", Price: decimal.RequireFromString("24.50")},
		{ID: 2, SKU: "b", Name: "Hop Wreath", Price: decimal.RequireFromString("58.00")},
		{ID: 3, SKU: "c", Name: "Cider Pack", Price: decimal.RequireFromString("21.99")},
	})
	return m
}

func TestListProductsFilters(t *testing.T) {
	ctx := context.Background()
	m := seeded()

	page, err := m.ListProducts(ctx, Filters{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.Equal(t, 3, page.Total)

	page, err = m.ListProducts(ctx, Filters{ID: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "Hop Wreath", page.Items[0].Name)

	page, err = m.ListProducts(ctx, Filters{Search: "cider"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = m.ListProducts(ctx, Filters{PerPage: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, 2, page.TotalPages)
}

func TestCreateOrderAssignsSequentialNumbers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.CreateOrder(ctx, OrderPayload{Status: model.StatusProcessing, Metadata: map[string]string{"payment_ref": "pi_1"}})
	require.NoError(t, err)
	second, err := m.CreateOrder(ctx, OrderPayload{Status: model.StatusProcessing})
	require.NoError(t, err)

	require.Equal(t, first.ID+1, second.ID)
	require.Equal(t, "VG-001000", first.Number)
	require.Equal(t, "pi_1", first.PaymentRef)
	require.Equal(t, model.StatusProcessing, first.Status)
}

func TestUpdateOrderStatusRecordsTransition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ord, _ := m.CreateOrder(ctx, OrderPayload{Status: model.StatusProcessing})

	updated, err := m.UpdateOrderStatus(ctx, ord.ID, model.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, updated.Status)

	trs := m.Transitions()
	require.Len(t, trs, 2)
	require.Equal(t, model.StatusProcessing, trs[0].To)
	require.Equal(t, model.StatusProcessing, trs[1].From)
	require.Equal(t, model.StatusCompleted, trs[1].To)
}

func TestUpdateOrderStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ord, _ := m.CreateOrder(ctx, OrderPayload{Status: model.StatusProcessing})

	_, err := m.UpdateOrderStatus(ctx, ord.ID, model.StatusCompleted)
	require.NoError(t, err)
	_, err = m.UpdateOrderStatus(ctx, ord.ID, model.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, m.Transitions(), 2, "repeating the transition must not record it twice")
}

func TestFailStatusUpdatesInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ord, _ := m.CreateOrder(ctx, OrderPayload{Status: model.StatusProcessing})

	m.FailStatusUpdates(2)
	_, err := m.UpdateOrderStatus(ctx, ord.ID, model.StatusCompleted)
	require.ErrorIs(t, err, ErrStatusUpdateFailed)
	_, err = m.UpdateOrderStatus(ctx, ord.ID, model.StatusCompleted)
	require.ErrorIs(t, err, ErrStatusUpdateFailed)
	_, err = m.UpdateOrderStatus(ctx, ord.ID, model.StatusCompleted)
	require.NoError(t, err)
}

func TestGetAndListOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ord, _ := m.CreateOrder(ctx, OrderPayload{
		Status:   model.StatusProcessing,
		Customer: model.CustomerIdentity{Email: "pat@example.com"},
	})
	_, _ = m.CreateOrder(ctx, OrderPayload{
		Status:   model.StatusProcessing,
		Customer: model.CustomerIdentity{Email: "other@example.com"},
	})

	got, err := m.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	require.Equal(t, ord.Number, got.Number)

	_, err = m.GetOrder(ctx, 999999)
	require.ErrorIs(t, err, ErrOrderNotFound)

	mine, err := m.ListOrders(ctx, "PAT@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	all, err := m.ListOrders(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}
