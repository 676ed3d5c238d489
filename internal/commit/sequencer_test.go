package commit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/valleygoods/storefront/internal/cart"
	"github.com/valleygoods/storefront/internal/fulfillment"
	"github.com/valleygoods/storefront/internal/model"
	"github.com/valleygoods/storefront/internal/platform"
)

var locs = model.StoreLocations{
	Primary:   model.Location{ID: "yakima", Name: "Yakima"},
	Secondary: model.Location{ID: "ellensburg", Name: "Ellensburg"},
}

func newSequencer(pc platform.Client) *Sequencer {
	return &Sequencer{
		Platform:         pc,
		Locations:        locs,
		SettleDelay:      time.Millisecond,
		CompleteAttempts: 3,
		CompleteBackoff:  time.Millisecond,
	}
}

func testCart() *cart.Cart {
	c := cart.New("s1")
	c.AddItem(model.CatalogItem{ID: 1, SKU: "ABC", Name: "Apple Box", Price: decimal.RequireFromString("24.50")}, 2, fulfillment.Pickup{Location: "ellensburg"})
	c.AddItem(model.CatalogItem{ID: 2, SKU: "DEF", Name: "Hop Wreath", Price: decimal.RequireFromString("58.00")}, 1, fulfillment.Shipping{Cost: decimal.RequireFromString("12.99"), Calculated: true})
	return c
}

func testTotals() Totals {
	return Totals{
		Subtotal:      decimal.RequireFromString("107.00"),
		ShippingTotal: decimal.RequireFromString("12.99"),
		Tax:           decimal.RequireFromString("9.10"),
		Total:         decimal.RequireFromString("129.09"),
	}
}

func TestCommitRunsProcessingThenCompleted(t *testing.T) {
	pc := platform.NewMemory()
	s := newSequencer(pc)
	ident := model.CustomerIdentity{Email: "pat@example.com", FirstName: "Pat", LastName: "Lee", Phone: "555-0100"}

	res, err := s.Commit(context.Background(), "pi_123", testCart(), ident, testTotals())
	require.NoError(t, err)
	require.NotZero(t, res.OrderID)
	require.NotEmpty(t, res.OrderNumber)

	ord, err := pc.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, ord.Status)
	require.Equal(t, "pi_123", ord.PaymentRef)
	require.Len(t, ord.Lines, 2)
	require.Equal(t, "pickup @ Ellensburg", ord.Lines[0].FulfillmentNote)
	require.Equal(t, "shipping ($12.99)", ord.Lines[1].FulfillmentNote)
	require.True(t, strings.Contains(ord.Metadata["fulfillment_note"], "ABC x2"))

	// The downstream system consumes transitions: create must land as
	// processing and the completion must follow it.
	trs := pc.Transitions()
	require.Len(t, trs, 2)
	require.Equal(t, model.StatusProcessing, trs[0].To)
	require.Equal(t, model.StatusCompleted, trs[1].To)
	require.False(t, trs[1].At.Before(trs[0].At))
	require.Zero(t, s.PartialFailures())
}

func TestCommitRetriesCompletionTransition(t *testing.T) {
	pc := platform.NewMemory()
	pc.FailStatusUpdates(2) // first two attempts fail, third lands
	s := newSequencer(pc)

	res, err := s.Commit(context.Background(), "pi_retry", testCart(), model.CustomerIdentity{}, testTotals())
	require.NoError(t, err)

	ord, _ := pc.GetOrder(context.Background(), res.OrderID)
	require.Equal(t, model.StatusCompleted, ord.Status)
	require.Zero(t, s.PartialFailures())
}

func TestCommitSurvivesCompletionFailure(t *testing.T) {
	pc := platform.NewMemory()
	pc.FailStatusUpdates(10) // more than the attempt budget
	s := newSequencer(pc)

	res, err := s.Commit(context.Background(), "pi_partial", testCart(), model.CustomerIdentity{}, testTotals())
	require.NoError(t, err, "a failed completion transition must not fail the commit")
	require.NotZero(t, res.OrderID)

	ord, _ := pc.GetOrder(context.Background(), res.OrderID)
	require.Equal(t, model.StatusProcessing, ord.Status, "the order stays valid and payable in processing")
	require.Equal(t, uint64(1), s.PartialFailures())
}

func TestCommitCreateFailureAborts(t *testing.T) {
	pc := platform.NewMemory()
	pc.FailNextCreate(platform.ErrStatusUpdateFailed)
	s := newSequencer(pc)

	_, err := s.Commit(context.Background(), "pi_fail", testCart(), model.CustomerIdentity{}, testTotals())
	var cf *CreateFailedError
	require.ErrorAs(t, err, &cf)
}

func TestCommitDefaultsUnconfirmedFulfillmentToPrimaryPickup(t *testing.T) {
	pc := platform.NewMemory()
	s := newSequencer(pc)

	c := cart.New("s2")
	c.AddItem(model.CatalogItem{ID: 1, SKU: "ABC", Name: "Apple Box", Price: decimal.RequireFromString("24.50")}, 1, nil)

	res, err := s.Commit(context.Background(), "pi_def", c, model.CustomerIdentity{}, testTotals())
	require.NoError(t, err)
	ord, _ := pc.GetOrder(context.Background(), res.OrderID)
	require.Equal(t, "pickup @ Yakima", ord.Lines[0].FulfillmentNote)
}
