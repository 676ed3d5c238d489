// Package fulfillment models the per-line-item fulfillment choice as a
// closed set of variants: pickup at a named location, local delivery, or
// ship-to-address. The shipping cost lives only on the shipping variant, so
// switching a line item to any other method structurally discards it.
package fulfillment

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/valleygoods/storefront/internal/model"
)

// Method names a fulfillment method on the wire.
type Method string

const (
	MethodPickup   Method = "pickup"
	MethodDelivery Method = "delivery"
	MethodShipping Method = "shipping"
)

// Assignment is the fulfillment choice attached to one cart line item.
// Exactly one of Pickup, Delivery, or Shipping implements it.
type Assignment interface {
	Method() Method
	sealed()
}

// Pickup fulfills the line item at a physical location.
type Pickup struct {
	Location model.LocationID
}

// Delivery fulfills the line item by local delivery. Fulfilled centrally,
// no location stock check applies.
type Delivery struct{}

// Shipping fulfills the line item by carrier. Cost is attached by an
// explicit calculation step; until Calculated is set the item blocks
// checkout from advancing past the fulfillment step.
type Shipping struct {
	Cost       decimal.Decimal
	Calculated bool
}

func (Pickup) Method() Method   { return MethodPickup }
func (Delivery) Method() Method { return MethodDelivery }
func (Shipping) Method() Method { return MethodShipping }

func (Pickup) sealed()   {}
func (Delivery) sealed() {}
func (Shipping) sealed() {}

// Default is the assignment materialized the first time a line item's
// fulfillment is read: pickup at the shopper's currently selected store.
func Default(selected model.LocationID) Assignment {
	return Pickup{Location: selected}
}

// CanPickup reports whether pickup is selectable at the given location for
// an item with the given reconciled inventory. Delivery and shipping are
// unconditionally selectable and have no such gate.
func CanPickup(inv model.LocationInventory, loc model.LocationID) bool {
	return inv.StockAt(loc) > 0
}

// wire is the JSON shape shared by the HTTP tier and cart persistence.
type wire struct {
	Method         Method           `json:"method"`
	PickupLocation model.LocationID `json:"pickup_location,omitempty"`
	ShippingCost   *decimal.Decimal `json:"shipping_cost,omitempty"`
}

// MarshalAssignment encodes an assignment to its wire form.
func MarshalAssignment(a Assignment) ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var w wire
	switch v := a.(type) {
	case Pickup:
		w = wire{Method: MethodPickup, PickupLocation: v.Location}
	case Delivery:
		w = wire{Method: MethodDelivery}
	case Shipping:
		w = wire{Method: MethodShipping}
		if v.Calculated {
			cost := v.Cost
			w.ShippingCost = &cost
		}
	default:
		return nil, fmt.Errorf("fulfillment: unknown assignment %T", a)
	}
	return json.Marshal(w)
}

// UnmarshalAssignment decodes an assignment from its wire form. A null
// document yields nil (no assignment chosen yet).
func UnmarshalAssignment(b []byte) (Assignment, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	switch w.Method {
	case MethodPickup:
		if w.PickupLocation == "" {
			return nil, fmt.Errorf("fulfillment: pickup requires pickup_location")
		}
		return Pickup{Location: w.PickupLocation}, nil
	case MethodDelivery:
		return Delivery{}, nil
	case MethodShipping:
		s := Shipping{}
		if w.ShippingCost != nil {
			s.Cost = *w.ShippingCost
			s.Calculated = true
		}
		return s, nil
	}
	return nil, fmt.Errorf("fulfillment: unknown method %q", w.Method)
}

// Describe renders a human-readable note for order metadata, e.g.
// "pickup @ Yakima" or "shipping ($12.99)".
func Describe(a Assignment, locs model.StoreLocations) string {
	switch v := a.(type) {
	case Pickup:
		return "pickup @ " + locs.NameOf(v.Location)
	case Delivery:
		return "local delivery"
	case Shipping:
		if v.Calculated {
			return "shipping ($" + v.Cost.StringFixed(2) + ")"
		}
		return "shipping"
	}
	return ""
}
