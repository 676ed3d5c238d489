// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valleygoods/storefront/internal/model"
)

// Config holds configuration knobs for the HTTP server, the inventory cache,
// pricing policy, and the order commit sequence.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	FeedFreshness    time.Duration
	FeedRefreshEvery time.Duration

	SettleDelay      time.Duration
	CompleteAttempts int
	CompleteBackoff  time.Duration

	FreeShippingThreshold decimal.Decimal
	FlatShippingRate      decimal.Decimal
	TaxRate               decimal.Decimal
	Currency              string

	PrimaryLocationID     string
	PrimaryLocationName   string
	SecondaryLocationID   string
	SecondaryLocationName string

	RedisAddr string
	CartTTL   time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func decenv(key, def string) decimal.Decimal {
	v := getenv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.RequireFromString(def)
	}
	return d
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),

		FeedFreshness:    durenvs("FEED_FRESHNESS_SEC", 300),
		FeedRefreshEvery: durenvs("FEED_REFRESH_SEC", 0),

		SettleDelay:      durenvs("ORDER_SETTLE_DELAY_SEC", 5),
		CompleteAttempts: atoienv("ORDER_COMPLETE_ATTEMPTS", 3),
		CompleteBackoff:  durenvms("ORDER_COMPLETE_BACKOFF_MS", 500),

		FreeShippingThreshold: decenv("FREE_SHIPPING_THRESHOLD", "150"),
		FlatShippingRate:      decenv("FLAT_SHIPPING_RATE", "12.99"),
		TaxRate:               decenv("TAX_RATE", "0.085"),
		Currency:              getenv("CURRENCY", "usd"),

		PrimaryLocationID:     getenv("PRIMARY_LOCATION_ID", "yakima"),
		PrimaryLocationName:   getenv("PRIMARY_LOCATION_NAME", "Yakima"),
		SecondaryLocationID:   getenv("SECONDARY_LOCATION_ID", "ellensburg"),
		SecondaryLocationName: getenv("SECONDARY_LOCATION_NAME", "Ellensburg"),

		RedisAddr: getenv("REDIS_ADDR", ""),
		CartTTL:   durenvs("CART_TTL_SEC", 30*24*3600),
	}
}

// Locations builds the two-location pair from the configured ids and names.
func (c Config) Locations() model.StoreLocations {
	return model.StoreLocations{
		Primary:   model.Location{ID: model.LocationID(c.PrimaryLocationID), Name: c.PrimaryLocationName},
		Secondary: model.Location{ID: model.LocationID(c.SecondaryLocationID), Name: c.SecondaryLocationName},
	}
}
