// Package model defines domain types shared across the storefront core.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LocationID identifies one of the two physical store locations.
type LocationID string

// Location pairs a location id with its display name.
type Location struct {
	ID   LocationID `json:"id"`
	Name string     `json:"name"`
}

// StoreLocations holds the two physical locations. Primary is the location
// whose stock is derived by subtraction from the platform's combined count;
// Secondary is the location the feed is authoritative for.
type StoreLocations struct {
	Primary   Location
	Secondary Location
}

// NameOf returns the display name for a location id, or the raw id if unknown.
func (s StoreLocations) NameOf(id LocationID) string {
	switch id {
	case s.Primary.ID:
		return s.Primary.Name
	case s.Secondary.ID:
		return s.Secondary.Name
	}
	return string(id)
}

// Valid reports whether id names one of the two locations.
func (s StoreLocations) Valid(id LocationID) bool {
	return id == s.Primary.ID || id == s.Secondary.ID
}

// NormalizeSKU is the single normalization point for SKU strings. The
// platform and the feed supply SKUs with inconsistent casing and whitespace,
// so every ingestion path and map key goes through here.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

// CatalogItem is a product as reported by the commerce platform. The platform
// owns these records; this core treats them as read-only.
// CombinedStockQuantity is nil for items the platform does not stock-track,
// and otherwise counts stock across both physical locations summed.
type CatalogItem struct {
	ID                    int64           `json:"id"`
	SKU                   string          `json:"sku"`
	Name                  string          `json:"name"`
	Price                 decimal.Decimal `json:"price"`
	CombinedStockQuantity *int            `json:"combined_stock_quantity,omitempty"`
}

// LocationStockRecord is one entry of the secondary location's stock feed.
// openStock <= totalStock is a feed-side invariant, not enforced here.
type LocationStockRecord struct {
	SKU        string          `json:"sku"`
	OpenStock  int             `json:"open_stock"`
	TotalStock int             `json:"total_stock"`
	Price      decimal.Decimal `json:"price"`
}

// LocationStock is a reconciled per-location stock number for one item.
type LocationStock struct {
	LocationID    LocationID `json:"location_id"`
	LocationName  string     `json:"location_name"`
	StockQuantity int        `json:"stock_quantity"`
}

// LocationInventory annotates a catalog item with exactly two per-location
// stock numbers. It is a pure function of the platform count and the feed,
// recomputed on every read, never persisted.
type LocationInventory struct {
	Primary   LocationStock `json:"primary"`
	Secondary LocationStock `json:"secondary"`
}

// StockAt returns the reconciled quantity at the given location.
func (li LocationInventory) StockAt(id LocationID) int {
	switch id {
	case li.Primary.LocationID:
		return li.Primary.StockQuantity
	case li.Secondary.LocationID:
		return li.Secondary.StockQuantity
	}
	return 0
}

// CustomerIdentity is the checkout's captured customer fields.
type CustomerIdentity struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Complete reports whether every identity field is non-empty.
func (c CustomerIdentity) Complete() bool {
	return strings.TrimSpace(c.Email) != "" &&
		strings.TrimSpace(c.FirstName) != "" &&
		strings.TrimSpace(c.LastName) != "" &&
		strings.TrimSpace(c.Phone) != ""
}

// OrderStatus values the commerce platform understands. The downstream
// fulfillment system reacts to status transitions, not order creation, so
// the sequence processing -> completed is a hard external contract.
type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
)

// OrderLine is one line item of a submitted order.
type OrderLine struct {
	ItemID          int64           `json:"item_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	FulfillmentNote string          `json:"fulfillment_note"`
}

// Order is owned by the commerce platform after creation; this core only
// issues the two mutating calls of the commit sequence.
type Order struct {
	ID            int64             `json:"id"`
	Number        string            `json:"number"`
	Status        OrderStatus       `json:"status"`
	PaymentRef    string            `json:"payment_ref"`
	CustomerEmail string            `json:"customer_email"`
	Lines         []OrderLine       `json:"lines"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	ShippingTotal decimal.Decimal   `json:"shipping_total"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         decimal.Decimal   `json:"total"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
