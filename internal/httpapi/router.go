package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter wires the cart, checkout and order routes behind the shared
// middleware stack.
func NewRouter(cfg RouterConfig, carts *CartHandler, checkout *CheckoutHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Get("/low-stock", carts.LowStock)

			r.Post("/items", carts.AddItem)
			r.Post("/items/bulk", carts.AddBulk)
			r.Put("/items/{id}", carts.UpdateQuantity)
			r.Delete("/items/{id}", carts.RemoveItem)
			r.Patch("/items/{id}/note", carts.UpdateNote)
			r.Patch("/items/{id}/gift-wrap", carts.ToggleGiftWrap)
			r.Post("/items/{id}/save", carts.SaveForLater)

			r.Post("/saved/{id}/move", carts.MoveToCart)
			r.Delete("/saved/{id}", carts.RemoveSaved)

			r.Post("/coupon", carts.ApplyCoupon)
			r.Delete("/coupon", carts.RemoveCoupon)

			r.Put("/location", carts.SetLocation)
			r.Put("/slot", carts.SelectSlot)

			r.Get("/preferences", carts.GetPreferences)
			r.Put("/preferences", carts.SetPreferences)
		})

		r.Post("/checkout", checkout.Checkout)
		r.Delete("/checkout/error", checkout.DismissError)

		r.Get("/orders", checkout.ListOrders)
		r.Get("/orders/{id}", checkout.GetOrder)
	})

	return otelhttp.NewHandler(r, "seafood-cart")
}
