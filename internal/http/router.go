package httpapi

import (
	"expvar"
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", app.listProductsHandler)
	mux.HandleFunc("GET /products/{id}", app.getProductHandler)

	mux.HandleFunc("GET /cart", app.getCartHandler)
	mux.HandleFunc("POST /cart/items", app.addCartItemHandler)
	mux.HandleFunc("PATCH /cart/items/{id}", app.setQuantityHandler)
	mux.HandleFunc("DELETE /cart/items/{id}", app.removeCartItemHandler)
	mux.HandleFunc("PUT /cart/items/{id}/fulfillment", app.setFulfillmentHandler)
	mux.HandleFunc("POST /cart/items/{id}/fulfillment/copy", app.copyFulfillmentHandler)
	mux.HandleFunc("POST /cart/items/{id}/shipping-quote", app.shippingQuoteHandler)

	mux.HandleFunc("GET /location", app.getLocationHandler)
	mux.HandleFunc("PUT /location", app.setLocationHandler)

	mux.HandleFunc("GET /orders", app.listOrdersHandler)
	mux.HandleFunc("GET /orders/{id}", app.getOrderHandler)

	mux.HandleFunc("GET /checkout", app.getCheckoutHandler)
	mux.HandleFunc("PUT /checkout/identity", app.setIdentityHandler)
	mux.HandleFunc("POST /checkout/advance", app.advanceHandler)
	mux.HandleFunc("POST /checkout/retreat", app.retreatHandler)
	mux.HandleFunc("POST /checkout/pay", app.payHandler)

	mux.HandleFunc("GET /healthz", app.healthHandler)
	mux.HandleFunc("GET /debug/metrics", app.metricsHandler)
	mux.Handle("GET /debug/vars", expvar.Handler())
	mux.HandleFunc("GET /openapi.yaml", app.openapiHandler)
	mux.HandleFunc("GET /docs", app.docsHandler)

	return WithRequestID(WithSession(WithLogging(mux)))
}
