package inventory

import "github.com/valleygoods/storefront/internal/model"

// Annotate computes the per-location split for one catalog item. The feed is
// authoritative for the secondary location; the primary location is always
// the remainder of the platform's combined count, never a second independent
// read, so the two sources cannot disagree about the combined total. The
// subtraction clamps at zero to tolerate the feed reporting more open stock
// than the platform's combined count.
func Annotate(item model.CatalogItem, c *Cache, locs model.StoreLocations) model.LocationInventory {
	inv := model.LocationInventory{
		Primary:   model.LocationStock{LocationID: locs.Primary.ID, LocationName: locs.Primary.Name},
		Secondary: model.LocationStock{LocationID: locs.Secondary.ID, LocationName: locs.Secondary.Name},
	}
	total := 0
	if item.CombinedStockQuantity != nil {
		total = *item.CombinedStockQuantity
	}
	sku := model.NormalizeSKU(item.SKU)
	switch {
	case sku != "" && c.HasRecord(sku):
		open := c.StockFor(sku)
		inv.Secondary.StockQuantity = open
		if total > open {
			inv.Primary.StockQuantity = total - open
		}
	case sku != "" && total > 0:
		// No feed record: the item is exclusive to the primary location.
		inv.Primary.StockQuantity = total
	}
	return inv
}
