package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/valleygoods/storefront/internal/fulfillment"
)

func TestMemoryPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()

	c := New("s1")
	c.AddItem(item(1, "10.50"), 2, fulfillment.Pickup{Location: "yakima"})
	c.AddItem(item(2, "4.00"), 1, fulfillment.Shipping{Cost: decimal.RequireFromString("12.99"), Calculated: true})
	c.AddItem(item(3, "9.99"), 1, nil)
	require.NoError(t, p.Save(ctx, c))

	got, err := p.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 3, got.Len())
	require.True(t, got.Subtotal().Equal(c.Subtotal()))

	ln, ok := got.Line(1)
	require.True(t, ok)
	require.Equal(t, fulfillment.Pickup{Location: "yakima"}, ln.Fulfillment)

	ln, _ = got.Line(2)
	s := ln.Fulfillment.(fulfillment.Shipping)
	require.True(t, s.Calculated)
	require.True(t, s.Cost.Equal(decimal.RequireFromString("12.99")))

	ln, _ = got.Line(3)
	require.Nil(t, ln.Fulfillment, "unconfirmed fulfillment must round-trip as unset")
}

func TestMemoryPersisterLoadMissing(t *testing.T) {
	p := NewMemoryPersister()
	got, err := p.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStoreLoadsPersistedCartOnFirstUse(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()

	seeded := New("s1")
	seeded.AddItem(item(1, "10.00"), 2, nil)
	require.NoError(t, p.Save(ctx, seeded))

	st := NewStore(p)
	st.View(ctx, "s1", func(c *Cart) {
		require.Equal(t, 2, c.ItemCount())
	})
}

func TestStoreClearDeletesPersistedCopy(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	st := NewStore(p)

	require.NoError(t, st.Update(ctx, "s1", func(c *Cart) error {
		c.AddItem(item(1, "10.00"), 1, nil)
		return nil
	}))
	st.Clear(ctx, "s1")

	got, err := p.Load(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, got)
	st.View(ctx, "s1", func(c *Cart) {
		require.True(t, c.IsEmpty())
	})
}
