package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/valleygoods/storefront/internal/fulfillment"
	"github.com/valleygoods/storefront/internal/model"
)

func item(id int64, price string) model.CatalogItem {
	return model.CatalogItem{ID: id, SKU: "sku", Name: "item", Price: decimal.RequireFromString(price)}
}

func TestAddItemIncrementsWithoutResettingFulfillment(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 1, fulfillment.Delivery{})
	c.AddItem(item(1, "10.00"), 2, nil)

	ln, ok := c.Line(1)
	require.True(t, ok)
	require.Equal(t, 3, ln.Quantity)
	require.Equal(t, fulfillment.Delivery{}, ln.Fulfillment, "repeated add without fulfillment must not reset the choice")

	// An explicitly supplied assignment does replace it.
	c.AddItem(item(1, "10.00"), 1, fulfillment.Pickup{Location: "yakima"})
	ln, _ = c.Line(1)
	require.Equal(t, fulfillment.Pickup{Location: "yakima"}, ln.Fulfillment)
}

func TestSetQuantityRemovesAtZero(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 2, nil)
	c.SetQuantity(1, 5)
	ln, _ := c.Line(1)
	require.Equal(t, 5, ln.Quantity)

	c.SetQuantity(1, 0)
	_, ok := c.Line(1)
	require.False(t, ok)
	require.True(t, c.IsEmpty())
}

func TestSubtotalAndItemCount(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.50"), 2, nil)
	c.AddItem(item(2, "4.25"), 1, nil)
	require.True(t, c.Subtotal().Equal(decimal.RequireFromString("25.25")))
	require.Equal(t, 3, c.ItemCount())
	require.Equal(t, 2, c.Len())
}

func TestFulfillmentForMaterializesDefaultWithoutPersisting(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 1, nil)

	f, err := c.FulfillmentFor(1, "ellensburg")
	require.NoError(t, err)
	require.Equal(t, fulfillment.Pickup{Location: "ellensburg"}, f)

	ln, _ := c.Line(1)
	require.Nil(t, ln.Fulfillment, "reading must not persist the default")

	_, err = c.FulfillmentFor(99, "yakima")
	require.ErrorIs(t, err, ErrNoSuchLine)
}

func TestSwitchingAwayFromShippingClearsCost(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 1, fulfillment.Shipping{})
	require.NoError(t, c.AttachShippingCost(1, decimal.RequireFromString("12.99")))

	ln, _ := c.Line(1)
	s := ln.Fulfillment.(fulfillment.Shipping)
	require.True(t, s.Calculated)

	require.NoError(t, c.SetFulfillment(1, fulfillment.Pickup{Location: "yakima"}))
	ln, _ = c.Line(1)
	require.Equal(t, fulfillment.MethodPickup, ln.Fulfillment.Method())

	// Switching back to shipping starts without a cost again.
	require.NoError(t, c.SetFulfillment(1, fulfillment.Shipping{}))
	require.Len(t, c.ItemsNeedingShippingCalculation(), 1)
	require.True(t, c.ShippingTotal().IsZero())
}

func TestAttachShippingCostRequiresShippingMethod(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 1, fulfillment.Delivery{})
	err := c.AttachShippingCost(1, decimal.RequireFromString("5.00"))
	require.ErrorIs(t, err, ErrNotShipping)

	err = c.AttachShippingCost(42, decimal.RequireFromString("5.00"))
	require.ErrorIs(t, err, ErrNoSuchLine)
}

func TestItemsNeedingShippingCalculation(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 1, fulfillment.Pickup{Location: "yakima"})
	c.AddItem(item(2, "10.00"), 1, fulfillment.Delivery{})
	c.AddItem(item(3, "10.00"), 1, fulfillment.Shipping{})
	c.AddItem(item(4, "10.00"), 1, nil)

	pending := c.ItemsNeedingShippingCalculation()
	require.Len(t, pending, 1)
	require.Equal(t, int64(3), pending[0].Item.ID)

	// The set is empty iff every item is pickup, delivery, or
	// shipping-with-cost-attached.
	require.NoError(t, c.AttachShippingCost(3, decimal.RequireFromString("12.99")))
	require.Empty(t, c.ItemsNeedingShippingCalculation())
	require.True(t, c.ShippingTotal().Equal(decimal.RequireFromString("12.99")))
}

func TestCopyFulfillment(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 1, fulfillment.Pickup{Location: "ellensburg"})
	c.AddItem(item(2, "10.00"), 1, nil)
	c.AddItem(item(3, "10.00"), 1, fulfillment.Shipping{Cost: decimal.RequireFromString("12.99"), Calculated: true})
	c.AddItem(item(4, "10.00"), 1, nil)

	require.NoError(t, c.CopyFulfillment(1, 2))
	ln, _ := c.Line(2)
	require.Equal(t, fulfillment.Pickup{Location: "ellensburg"}, ln.Fulfillment)

	// Copying a shipping choice does not copy the computed cost.
	require.NoError(t, c.CopyFulfillment(3, 4))
	ln, _ = c.Line(4)
	s := ln.Fulfillment.(fulfillment.Shipping)
	require.False(t, s.Calculated)

	require.ErrorIs(t, c.CopyFulfillment(99, 1), ErrNoSuchLine)
	require.ErrorIs(t, c.CopyFulfillment(1, 99), ErrNoSuchLine)
}

func TestClear(t *testing.T) {
	c := New("s1")
	c.AddItem(item(1, "10.00"), 2, nil)
	c.Clear()
	require.True(t, c.IsEmpty())
	require.True(t, c.Subtotal().IsZero())
}
