package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valleygoods/storefront/internal/cart"
	"github.com/valleygoods/storefront/internal/checkout"
	"github.com/valleygoods/storefront/internal/commit"
	"github.com/valleygoods/storefront/internal/config"
	"github.com/valleygoods/storefront/internal/fulfillment"
	httpopenapi "github.com/valleygoods/storefront/internal/http/openapi"
	"github.com/valleygoods/storefront/internal/inventory"
	"github.com/valleygoods/storefront/internal/model"
	"github.com/valleygoods/storefront/internal/payment"
	"github.com/valleygoods/storefront/internal/platform"
	"github.com/valleygoods/storefront/internal/shipping"
)

// App wires the storefront core behind the HTTP surface.
type App struct {
	Platform  platform.Client
	Cache     *inventory.Cache
	Carts     *cart.Store
	Sessions  *checkout.SessionStore
	Orch      *checkout.Orchestrator
	Ship      shipping.Calculator
	Locations model.StoreLocations

	started time.Time

	mu       sync.Mutex
	selected map[string]model.LocationID
}

// NewApp constructs the HTTP application.
func NewApp(cfg config.Config, pc platform.Client, cache *inventory.Cache, carts *cart.Store, sessions *checkout.SessionStore, orch *checkout.Orchestrator, ship shipping.Calculator) *App {
	return &App{
		Platform:  pc,
		Cache:     cache,
		Carts:     carts,
		Sessions:  sessions,
		Orch:      orch,
		Ship:      ship,
		Locations: cfg.Locations(),
		started:   time.Now(),
		selected:  make(map[string]model.LocationID),
	}
}

// selectedLocation returns the shopper's currently selected storefront
// location, defaulting to the primary store.
func (a *App) selectedLocation(sessionID string) model.LocationID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if loc, ok := a.selected[sessionID]; ok {
		return loc
	}
	return a.Locations.Primary.ID
}

func (a *App) setSelectedLocation(sessionID string, loc model.LocationID) {
	a.mu.Lock()
	a.selected[sessionID] = loc
	a.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return 0, false
	}
	return id, true
}

// findItem looks one product up through the platform's listing contract.
func (a *App) findItem(r *http.Request, id int64) (model.CatalogItem, bool) {
	page, err := a.Platform.ListProducts(r.Context(), platform.Filters{ID: id, PerPage: 1})
	if err != nil || len(page.Items) == 0 {
		return model.CatalogItem{}, false
	}
	return page.Items[0], true
}

type productView struct {
	model.CatalogItem
	Locations model.LocationInventory `json:"locations"`
}

func (a *App) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	res, err := a.Platform.ListProducts(r.Context(), platform.Filters{Page: page, PerPage: perPage, Search: q.Get("search")})
	if err != nil {
		WriteJSONError(w, http.StatusBadGateway, "platform_unavailable", err.Error())
		return
	}
	// Source errors on the feed side are absorbed: the reconciler falls back
	// to treating stock as primary-only rather than failing the page.
	skus := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		if it.SKU != "" {
			skus = append(skus, it.SKU)
		}
	}
	if len(skus) > 0 {
		_ = a.Cache.Refresh(r.Context(), skus...)
	}
	views := make([]productView, 0, len(res.Items))
	for _, it := range res.Items {
		views = append(views, productView{CatalogItem: it, Locations: inventory.Annotate(it, a.Cache, a.Locations)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       views,
		"total":       res.Total,
		"total_pages": res.TotalPages,
	})
}

func (a *App) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	item, ok := a.findItem(r, id)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	// Detail views need guaranteed-fresh numbers for this SKU.
	if item.SKU != "" {
		_ = a.Cache.Refresh(r.Context(), item.SKU)
	}
	writeJSON(w, http.StatusOK, productView{CatalogItem: item, Locations: inventory.Annotate(item, a.Cache, a.Locations)})
}

type lineView struct {
	Item                 model.CatalogItem `json:"item"`
	Quantity             int               `json:"quantity"`
	Fulfillment          json.RawMessage   `json:"fulfillment"`
	FulfillmentConfirmed bool              `json:"fulfillment_confirmed"`
}

type cartView struct {
	Items         []lineView `json:"items"`
	ItemCount     int        `json:"item_count"`
	Subtotal      string     `json:"subtotal"`
	ShippingTotal string     `json:"shipping_total"`
	NeedsShipping []int64    `json:"items_needing_shipping_calculation"`
}

func (a *App) cartViewOf(c *cart.Cart, selected model.LocationID) cartView {
	v := cartView{Items: []lineView{}, NeedsShipping: []int64{}}
	for _, ln := range c.Lines() {
		f := ln.Fulfillment
		confirmed := f != nil
		if f == nil {
			f = fulfillment.Default(selected)
		}
		fb, _ := fulfillment.MarshalAssignment(f)
		v.Items = append(v.Items, lineView{Item: ln.Item, Quantity: ln.Quantity, Fulfillment: fb, FulfillmentConfirmed: confirmed})
	}
	v.ItemCount = c.ItemCount()
	v.Subtotal = c.Subtotal().StringFixed(2)
	v.ShippingTotal = c.ShippingTotal().StringFixed(2)
	for _, ln := range c.ItemsNeedingShippingCalculation() {
		v.NeedsShipping = append(v.NeedsShipping, ln.Item.ID)
	}
	return v
}

func (a *App) getCartHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	var view cartView
	a.Carts.View(r.Context(), sid, func(c *cart.Cart) {
		view = a.cartViewOf(c, a.selectedLocation(sid))
	})
	writeJSON(w, http.StatusOK, view)
}

func (a *App) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	var body struct {
		ProductID   int64           `json:"product_id"`
		Quantity    int             `json:"quantity"`
		Fulfillment json.RawMessage `json:"fulfillment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProductID <= 0 {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "product_id is required")
		return
	}
	item, ok := a.findItem(r, body.ProductID)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "unknown product")
		return
	}
	f, err := fulfillment.UnmarshalAssignment(body.Fulfillment)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if perr := a.checkPickup(r, item, f); perr != "" {
		WriteJSONError(w, http.StatusUnprocessableEntity, "validation_error", perr)
		return
	}
	_ = a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		c.AddItem(item, body.Quantity, f)
		return nil
	})
	a.getCartHandler(w, r)
}

func (a *App) setQuantityHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	_ = a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		c.SetQuantity(id, body.Quantity)
		return nil
	})
	a.getCartHandler(w, r)
}

func (a *App) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	_ = a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		c.RemoveItem(id)
		return nil
	})
	a.getCartHandler(w, r)
}

// checkPickup applies the selector rule: pickup is only selectable at a
// location with stock for the item. Delivery and shipping pass through.
func (a *App) checkPickup(r *http.Request, item model.CatalogItem, f fulfillment.Assignment) string {
	p, ok := f.(fulfillment.Pickup)
	if !ok {
		return ""
	}
	if !a.Locations.Valid(p.Location) {
		return "unknown pickup location"
	}
	if item.SKU != "" {
		_ = a.Cache.Refresh(r.Context(), item.SKU)
	}
	inv := inventory.Annotate(item, a.Cache, a.Locations)
	if !fulfillment.CanPickup(inv, p.Location) {
		return "no stock at " + a.Locations.NameOf(p.Location) + " for pickup"
	}
	return ""
}

func (a *App) setFulfillmentHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	raw, err := readAll(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	f, err := fulfillment.UnmarshalAssignment(raw)
	if err != nil || f == nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "a fulfillment method is required")
		return
	}
	item, found := a.findItem(r, id)
	if !found {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if perr := a.checkPickup(r, item, f); perr != "" {
		WriteJSONError(w, http.StatusUnprocessableEntity, "validation_error", perr)
		return
	}
	uerr := a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		return c.SetFulfillment(id, f)
	})
	if uerr != nil {
		WriteJSONError(w, http.StatusNotFound, "not_found", uerr.Error())
		return
	}
	a.getCartHandler(w, r)
}

func (a *App) copyFulfillmentHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		SourceItemID int64 `json:"source_item_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	err := a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		return c.CopyFulfillment(body.SourceItemID, id)
	})
	if err != nil {
		WriteJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	a.getCartHandler(w, r)
}

func (a *App) shippingQuoteHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	err := a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		return c.AttachShippingCost(id, a.Ship.RateFor(c.Subtotal()))
	})
	switch {
	case errors.Is(err, cart.ErrNoSuchLine):
		WriteJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	case errors.Is(err, cart.ErrNotShipping):
		WriteJSONError(w, http.StatusUnprocessableEntity, "validation_error", "line item is not set to shipping")
		return
	case err != nil:
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	a.getCartHandler(w, r)
}

func (a *App) getLocationHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	loc := a.selectedLocation(sid)
	writeJSON(w, http.StatusOK, map[string]any{
		"selected": model.Location{ID: loc, Name: a.Locations.NameOf(loc)},
		"locations": []model.Location{
			a.Locations.Primary,
			a.Locations.Secondary,
		},
	})
}

func (a *App) setLocationHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	var body struct {
		LocationID model.LocationID `json:"location_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if !a.Locations.Valid(body.LocationID) {
		WriteJSONError(w, http.StatusUnprocessableEntity, "validation_error", "unknown location")
		return
	}
	a.setSelectedLocation(sid, body.LocationID)
	a.getLocationHandler(w, r)
}

func (a *App) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ord, err := a.Platform.GetOrder(r.Context(), id)
	if errors.Is(err, platform.ErrOrderNotFound) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err != nil {
		WriteJSONError(w, http.StatusBadGateway, "platform_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (a *App) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "email is required")
		return
	}
	orders, err := a.Platform.ListOrders(r.Context(), email)
	if err != nil {
		WriteJSONError(w, http.StatusBadGateway, "platform_unavailable", err.Error())
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type checkoutView struct {
	Step         int                    `json:"step"`
	StepName     string                 `json:"step_name"`
	Identity     model.CustomerIdentity `json:"identity"`
	ClientSecret string                 `json:"client_secret,omitempty"`
	LastError    string                 `json:"last_error,omitempty"`
	Totals       map[string]string      `json:"totals"`
}

func (a *App) checkoutViewOf(sess *checkout.Session, c *cart.Cart) checkoutView {
	t := a.Orch.Totals(c)
	snap := sess.Snapshot()
	return checkoutView{
		Step:         int(snap.Step),
		StepName:     snap.Step.String(),
		Identity:     snap.Identity,
		ClientSecret: snap.ClientSecret,
		LastError:    snap.LastError,
		Totals: map[string]string{
			"subtotal": t.Subtotal.StringFixed(2),
			"shipping": t.ShippingTotal.StringFixed(2),
			"tax":      t.Tax.StringFixed(2),
			"total":    t.Total.StringFixed(2),
		},
	}
}

func (a *App) getCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	sess := a.Sessions.Get(sid)
	var view checkoutView
	a.Carts.View(r.Context(), sid, func(c *cart.Cart) {
		view = a.checkoutViewOf(sess, c)
	})
	writeJSON(w, http.StatusOK, view)
}

func (a *App) setIdentityHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	var ident model.CustomerIdentity
	if !decodeBody(w, r, &ident) {
		return
	}
	sess := a.Sessions.Get(sid)
	a.Orch.SetIdentity(sess, ident)
	a.getCheckoutHandler(w, r)
}

func (a *App) advanceHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	sess := a.Sessions.Get(sid)
	err := a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		return a.Orch.Advance(r.Context(), sess, c)
	})
	if err != nil {
		var verr *checkout.ValidationError
		if errors.As(err, &verr) {
			WriteJSONError(w, http.StatusUnprocessableEntity, "validation_blocked", verr.Reason)
			return
		}
		WriteJSONError(w, http.StatusBadGateway, "payment_gateway_error", err.Error())
		return
	}
	a.getCheckoutHandler(w, r)
}

func (a *App) retreatHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	a.Orch.Retreat(a.Sessions.Get(sid))
	a.getCheckoutHandler(w, r)
}

func (a *App) payHandler(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	sess := a.Sessions.Get(sid)
	var res commit.Result
	err := a.Carts.Update(r.Context(), sid, func(c *cart.Cart) error {
		var serr error
		res, serr = a.Orch.SubmitPayment(r.Context(), sess, c)
		return serr
	})
	if err != nil {
		var decline *payment.DeclinedError
		var createFail *commit.CreateFailedError
		switch {
		case errors.As(err, &decline):
			WriteJSONError(w, http.StatusPaymentRequired, "payment_declined", decline.Message)
		case errors.As(err, &createFail):
			WriteJSONError(w, http.StatusBadGateway, "order_create_failed",
				"your payment was received but the order could not be recorded; please contact support")
		case errors.Is(err, checkout.ErrNotAtPayment):
			WriteJSONError(w, http.StatusUnprocessableEntity, "validation_blocked", err.Error())
		default:
			WriteJSONError(w, http.StatusBadGateway, "payment_gateway_error", err.Error())
		}
		return
	}
	a.Carts.Clear(r.Context(), sid)
	a.Sessions.Drop(sid)
	writeJSON(w, http.StatusOK, res)
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	feedErr := ""
	if err := a.Cache.LastErr(); err != nil {
		feedErr = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"feed_records":            a.Cache.Size(),
		"feed_last_error":         feedErr,
		"partial_commit_failures": a.Orch.Sequencer.PartialFailures(),
		"uptime_sec":              time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}
