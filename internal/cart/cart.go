// Package cart holds the shopper's line items, their quantities, and each
// item's fulfillment assignment, and derives the totals checkout needs.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/valleygoods/storefront/internal/fulfillment"
	"github.com/valleygoods/storefront/internal/model"
)

// ErrNotShipping is returned when a shipping cost is attached to a line item
// whose fulfillment method is not shipping.
var ErrNotShipping = errors.New("cart: line item fulfillment is not shipping")

// ErrNoSuchLine is returned for operations naming an absent line item.
var ErrNoSuchLine = errors.New("cart: no such line item")

// LineItem is one entry of the cart, unique by the catalog item's id.
// Fulfillment is nil until the shopper confirms a choice; reads materialize
// a default without persisting it.
type LineItem struct {
	Item        model.CatalogItem
	Quantity    int
	Fulfillment fulfillment.Assignment
}

// Cart is an ordered collection of line items for one session. It is not
// self-synchronized; Store serializes access per session.
type Cart struct {
	SessionID string
	lines     []*LineItem
}

// New returns an empty cart bound to a session.
func New(sessionID string) *Cart {
	return &Cart{SessionID: sessionID}
}

// AddItem appends a line item, or increments quantity when the item is
// already present. An existing fulfillment choice is overwritten only when a
// new assignment is explicitly supplied; repeated adds without one never
// silently reset it.
func (c *Cart) AddItem(item model.CatalogItem, qty int, f fulfillment.Assignment) {
	if qty < 1 {
		qty = 1
	}
	for _, ln := range c.lines {
		if ln.Item.ID == item.ID {
			ln.Quantity += qty
			if f != nil {
				ln.Fulfillment = f
			}
			return
		}
	}
	c.lines = append(c.lines, &LineItem{Item: item, Quantity: qty, Fulfillment: f})
}

// RemoveItem deletes a line item.
func (c *Cart) RemoveItem(itemID int64) {
	for i, ln := range c.lines {
		if ln.Item.ID == itemID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// SetQuantity updates a line item's quantity; zero or less removes it.
func (c *Cart) SetQuantity(itemID int64, qty int) {
	if qty <= 0 {
		c.RemoveItem(itemID)
		return
	}
	if ln, ok := c.Line(itemID); ok {
		ln.Quantity = qty
	}
}

// Line returns the line item for a catalog item id.
func (c *Cart) Line(itemID int64) (*LineItem, bool) {
	for _, ln := range c.lines {
		if ln.Item.ID == itemID {
			return ln, true
		}
	}
	return nil, false
}

// Lines returns the ordered line items.
func (c *Cart) Lines() []*LineItem { return c.lines }

// Len returns the number of distinct line items.
func (c *Cart) Len() int { return len(c.lines) }

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Clear drops all line items. Called on successful order commit.
func (c *Cart) Clear() { c.lines = nil }

// Subtotal is the sum of unit price times quantity over all line items.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, ln := range c.lines {
		total = total.Add(ln.Item.Price.Mul(decimal.NewFromInt(int64(ln.Quantity))))
	}
	return total
}

// ItemCount is the total quantity across all line items.
func (c *Cart) ItemCount() int {
	n := 0
	for _, ln := range c.lines {
		n += ln.Quantity
	}
	return n
}

// ShippingTotal sums the attached shipping costs of shipping-method items.
func (c *Cart) ShippingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, ln := range c.lines {
		if s, ok := ln.Fulfillment.(fulfillment.Shipping); ok && s.Calculated {
			total = total.Add(s.Cost)
		}
	}
	return total
}

// FulfillmentFor returns the line item's assignment, materializing the
// pickup-at-selected-store default when none has been confirmed yet. The
// default is not stored; only Set persists a choice.
func (c *Cart) FulfillmentFor(itemID int64, selected model.LocationID) (fulfillment.Assignment, error) {
	ln, ok := c.Line(itemID)
	if !ok {
		return nil, ErrNoSuchLine
	}
	if ln.Fulfillment == nil {
		return fulfillment.Default(selected), nil
	}
	return ln.Fulfillment, nil
}

// SetFulfillment replaces the line item's assignment. A line item carries at
// most one assignment; switching away from shipping drops any attached cost
// with the old variant.
func (c *Cart) SetFulfillment(itemID int64, a fulfillment.Assignment) error {
	ln, ok := c.Line(itemID)
	if !ok {
		return ErrNoSuchLine
	}
	ln.Fulfillment = a
	return nil
}

// CopyFulfillment applies the source line item's assignment to the target,
// for "same as" bulk actions. An uncalculated shipping choice copies as
// shipping-without-cost; an attached cost is not copied because it was
// computed for checkout state that may have changed.
func (c *Cart) CopyFulfillment(srcItemID, dstItemID int64) error {
	src, ok := c.Line(srcItemID)
	if !ok {
		return ErrNoSuchLine
	}
	dst, ok := c.Line(dstItemID)
	if !ok {
		return ErrNoSuchLine
	}
	switch src.Fulfillment.(type) {
	case nil:
		dst.Fulfillment = nil
	case fulfillment.Shipping:
		dst.Fulfillment = fulfillment.Shipping{}
	default:
		dst.Fulfillment = src.Fulfillment
	}
	return nil
}

// AttachShippingCost records the computed rate on a shipping-method item.
func (c *Cart) AttachShippingCost(itemID int64, cost decimal.Decimal) error {
	ln, ok := c.Line(itemID)
	if !ok {
		return ErrNoSuchLine
	}
	if _, ok := ln.Fulfillment.(fulfillment.Shipping); !ok {
		return ErrNotShipping
	}
	ln.Fulfillment = fulfillment.Shipping{Cost: cost, Calculated: true}
	return nil
}

// ItemsNeedingShippingCalculation returns the line items whose method is
// shipping with no cost attached yet. Checkout treats a non-empty result as
// a hard gate before the payment step.
func (c *Cart) ItemsNeedingShippingCalculation() []*LineItem {
	var out []*LineItem
	for _, ln := range c.lines {
		if s, ok := ln.Fulfillment.(fulfillment.Shipping); ok && !s.Calculated {
			out = append(out, ln)
		}
	}
	return out
}
