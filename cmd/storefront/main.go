// Package main boots the storefront HTTP server with in-process
// implementations of the commerce platform, the secondary stock feed, and
// the payment gateway.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/valleygoods/storefront/internal/cart"
	"github.com/valleygoods/storefront/internal/checkout"
	"github.com/valleygoods/storefront/internal/commit"
	"github.com/valleygoods/storefront/internal/config"
	"github.com/valleygoods/storefront/internal/feed"
	httpapi "github.com/valleygoods/storefront/internal/http"
	"github.com/valleygoods/storefront/internal/inventory"
	"github.com/valleygoods/storefront/internal/model"
	"github.com/valleygoods/storefront/internal/obs"
	"github.com/valleygoods/storefront/internal/payment"
	"github.com/valleygoods/storefront/internal/platform"
	"github.com/valleygoods/storefront/internal/shipping"
)

func intp(n int) *int { return &n }

func seed(pc *platform.Memory, fd *feed.Memory) {
	pc.SeedProducts([]model.CatalogItem{
		{ID: 1, SKU: "VG-APPLEBOX", Name: "Orchard Apple Box", Price: decimal.RequireFromString("24.50"), CombinedStockQuantity: intp(40)},
		{ID: 2, SKU: "VG-HOPWREATH", Name: "Hop Wreath", Price: decimal.RequireFromString("58.00"), CombinedStockQuantity: intp(10)},
		{ID: 3, SKU: "VG-CIDER6", Name: "Small-Batch Cider 6-Pack", Price: decimal.RequireFromString("21.99"), CombinedStockQuantity: intp(0)},
		{ID: 4, SKU: "", Name: "Gift Card", Price: decimal.RequireFromString("50.00")},
	})
	fd.Set(model.LocationStockRecord{SKU: "vg-applebox", OpenStock: 12, TotalStock: 15, Price: decimal.RequireFromString("24.50")})
	fd.Set(model.LocationStockRecord{SKU: "VG-HOPWREATH ", OpenStock: 3, TotalStock: 3, Price: decimal.RequireFromString("58.00")})
}

func main() {
	cfg := config.Load()
	obs.InitLogger()
	obs.Logger.Info("service_starting")

	pc := platform.NewMemory()
	fd := feed.NewMemory()
	gw := payment.NewMemory()
	seed(pc, fd)

	cache := inventory.NewCache(fd, cfg.FeedFreshness)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache.Start(ctx, cfg.FeedRefreshEvery)

	var persist cart.Persister
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		persist = cart.NewRedisPersister(rdb, cfg.CartTTL)
		obs.Logger.Info("cart_persistence", "adapter", "redis", "addr", cfg.RedisAddr)
	} else {
		persist = cart.NewMemoryPersister()
		obs.Logger.Info("cart_persistence", "adapter", "memory")
	}
	carts := cart.NewStore(persist)

	seq := &commit.Sequencer{
		Platform:         pc,
		Locations:        cfg.Locations(),
		SettleDelay:      cfg.SettleDelay,
		CompleteAttempts: cfg.CompleteAttempts,
		CompleteBackoff:  cfg.CompleteBackoff,
	}
	orch := &checkout.Orchestrator{
		Gateway:   gw,
		Sequencer: seq,
		TaxRate:   cfg.TaxRate,
		Currency:  cfg.Currency,
	}
	ship := shipping.Calculator{FlatRate: cfg.FlatShippingRate, FreeThreshold: cfg.FreeShippingThreshold}

	app := httpapi.NewApp(cfg, pc, cache, carts, checkout.NewSessionStore(), orch, ship)
	mux := httpapi.NewRouter(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	// In-flight commits finish inside the write timeout; the server drain
	// below is the only wait needed.
	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}
