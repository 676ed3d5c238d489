package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")
	t.Setenv("FEED_FRESHNESS_SEC", "")
	t.Setenv("ORDER_SETTLE_DELAY_SEC", "")
	t.Setenv("ORDER_COMPLETE_ATTEMPTS", "")
	t.Setenv("ORDER_COMPLETE_BACKOFF_MS", "")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "")
	t.Setenv("FLAT_SHIPPING_RATE", "")
	t.Setenv("TAX_RATE", "")
	c := Load()
	if c.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr default")
	}
	if c.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout default")
	}
	if c.FeedFreshness != 5*time.Minute {
		t.Fatalf("FeedFreshness default")
	}
	if c.SettleDelay != 5*time.Second {
		t.Fatalf("SettleDelay default")
	}
	if c.CompleteAttempts != 3 || c.CompleteBackoff != 500*time.Millisecond {
		t.Fatalf("completion retry defaults")
	}
	if !c.FreeShippingThreshold.Equal(mustDec(t, "150")) || !c.FlatShippingRate.Equal(mustDec(t, "12.99")) {
		t.Fatalf("shipping policy defaults")
	}
	if !c.TaxRate.Equal(mustDec(t, "0.085")) {
		t.Fatalf("TaxRate default")
	}
	locs := c.Locations()
	if locs.Primary.Name != "Yakima" || locs.Secondary.Name != "Ellensburg" {
		t.Fatalf("location defaults: %+v", locs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "2")
	t.Setenv("FEED_FRESHNESS_SEC", "60")
	t.Setenv("ORDER_SETTLE_DELAY_SEC", "1")
	t.Setenv("ORDER_COMPLETE_ATTEMPTS", "5")
	t.Setenv("FLAT_SHIPPING_RATE", "9.95")
	t.Setenv("TAX_RATE", "not-a-number")
	c := Load()
	if c.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr env")
	}
	if c.ShutdownTimeout != 2*time.Second {
		t.Fatalf("ShutdownTimeout env")
	}
	if c.FeedFreshness != time.Minute {
		t.Fatalf("FeedFreshness env")
	}
	if c.SettleDelay != time.Second || c.CompleteAttempts != 5 {
		t.Fatalf("commit sequence env")
	}
	if !c.FlatShippingRate.Equal(mustDec(t, "9.95")) {
		t.Fatalf("FlatShippingRate env")
	}
	// Unparseable decimals fall back to the default.
	if !c.TaxRate.Equal(mustDec(t, "0.085")) {
		t.Fatalf("TaxRate fallback")
	}
}
