// Package commit drives the two-phase order lifecycle against the commerce
// platform. The downstream fulfillment system consumes status transitions,
// not order creation: creating the order in processing triggers its
// create-sync, and the later transition to completed triggers its
// update-sync, so the two calls must happen in that order with a settle
// interval between them.
package commit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valleygoods/storefront/internal/cart"
	"github.com/valleygoods/storefront/internal/fulfillment"
	"github.com/valleygoods/storefront/internal/model"
	"github.com/valleygoods/storefront/internal/obs"
	"github.com/valleygoods/storefront/internal/platform"
)

// Result identifies the committed order.
type Result struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

// Totals are the amounts already charged through the payment gateway.
type Totals struct {
	Subtotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// CreateFailedError means the order could not be created after payment was
// captured. This is the one failure that needs manual reconciliation and a
// support contact, so it gets its own type.
type CreateFailedError struct {
	Err error
}

func (e *CreateFailedError) Error() string {
	return "order could not be created after payment capture: " + e.Err.Error()
}

func (e *CreateFailedError) Unwrap() error { return e.Err }

// Sequencer performs the create-settle-complete sequence.
type Sequencer struct {
	Platform  platform.Client
	Locations model.StoreLocations

	// SettleDelay gives the downstream create-handler time to read the
	// processing-state order before the completion transition fires.
	SettleDelay time.Duration

	// CompleteAttempts and CompleteBackoff bound the retry loop around the
	// idempotent completion transition.
	CompleteAttempts int
	CompleteBackoff  time.Duration

	partialFailures atomic.Uint64
}

// PartialFailures counts commits whose completion transition never landed.
func (s *Sequencer) PartialFailures() uint64 { return s.partialFailures.Load() }

// Commit creates the order in processing, waits the settle interval, then
// transitions it to completed with retries. Once the create call succeeds
// the commit cannot fail: payment is already captured, so a failed
// completion transition is logged and counted but the result is returned
// regardless. A failed create returns CreateFailedError.
func (s *Sequencer) Commit(ctx context.Context, paymentRef string, c *cart.Cart, ident model.CustomerIdentity, t Totals) (Result, error) {
	payload := s.buildPayload(paymentRef, c, ident, t)
	obs.Logger.Info("order_commit_begin", "session_id", c.SessionID, "payment_ref", paymentRef, "lines", len(payload.Lines))

	ord, err := s.Platform.CreateOrder(ctx, payload)
	if err != nil {
		obs.Logger.Error("order_create_failed", "payment_ref", paymentRef, "error", err)
		return Result{}, &CreateFailedError{Err: err}
	}
	obs.Logger.Info("order_created", "order_id", ord.ID, "order_number", ord.Number, "status", string(ord.Status))

	// Point of no return: from here the commit always succeeds. The shopper
	// must not observe cancellation, so the waits below ignore ctx.
	if s.SettleDelay > 0 {
		time.Sleep(s.SettleDelay)
	}

	attempts := s.CompleteAttempts
	if attempts < 1 {
		attempts = 1
	}
	var uerr error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, uerr = s.Platform.UpdateOrderStatus(context.WithoutCancel(ctx), ord.ID, model.StatusCompleted)
		if uerr == nil {
			obs.Logger.Info("order_completed", "order_id", ord.ID, "attempt", attempt)
			break
		}
		obs.Logger.Warn("order_complete_attempt_failed", "order_id", ord.ID, "attempt", attempt, "error", uerr)
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * s.CompleteBackoff)
		}
	}
	if uerr != nil {
		s.partialFailures.Add(1)
		obs.Logger.Error("order_complete_transition_failed", "order_id", ord.ID, "attempts", attempts, "error", uerr)
	}
	return Result{OrderID: ord.ID, OrderNumber: ord.Number}, nil
}

func (s *Sequencer) buildPayload(paymentRef string, c *cart.Cart, ident model.CustomerIdentity, t Totals) platform.OrderPayload {
	lines := make([]model.OrderLine, 0, c.Len())
	for _, ln := range c.Lines() {
		f := ln.Fulfillment
		if f == nil {
			f = fulfillment.Default(s.Locations.Primary.ID)
		}
		lines = append(lines, model.OrderLine{
			ItemID:          ln.Item.ID,
			SKU:             ln.Item.SKU,
			Name:            ln.Item.Name,
			UnitPrice:       ln.Item.Price,
			Quantity:        ln.Quantity,
			FulfillmentNote: fulfillment.Describe(f, s.Locations),
		})
	}
	return platform.OrderPayload{
		Status:        model.StatusProcessing,
		Customer:      ident,
		Lines:         lines,
		Subtotal:      t.Subtotal,
		ShippingTotal: t.ShippingTotal,
		Tax:           t.Tax,
		Total:         t.Total,
		Metadata: map[string]string{
			"payment_ref":      paymentRef,
			"fulfillment_note": summarize(lines),
			"session_id":       c.SessionID,
		},
	}
}

// summarize joins per-line fulfillment notes for the downstream parser.
func summarize(lines []model.OrderLine) string {
	out := ""
	for i, ln := range lines {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s x%d: %s", ln.SKU, ln.Quantity, ln.FulfillmentNote)
	}
	return out
}
