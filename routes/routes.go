package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"storefront/filedrop"
	"storefront/middleware"
	"storefront/orders"
	"storefront/pay"
	"storefront/products"
	"storefront/ratelim"
	"storefront/reviews"
	"storefront/users"
	"storefront/utils"
)

// Deps is everything the router hands requests to.
type Deps struct {
	Auth        *middleware.Authenticator
	Errors      utils.ErrorResponder
	Limiter     *ratelim.RateLimiter
	Users       *users.Handler
	Products    *products.Handler
	Reviews     *reviews.Service
	Orders      *orders.Service
	Idempotency *pay.Idempotency
	Uploads     *filedrop.Uploader

	PayPalClientID       string
	StripePublishableKey string

	// Ping reports storage health for /health. Optional.
	Ping func(ctx context.Context) error
}

func New(d Deps) *httprouter.Router {
	router := httprouter.New()
	router.NotFound = d.Errors.NotFoundHandler()

	AddUserRoutes(router, d)
	AddProductRoutes(router, d)
	AddOrderRoutes(router, d)
	AddUploadRoutes(router, d)
	AddConfigRoutes(router, d)
	return router
}

// byID sends requests whose :id is one of the named words to their own handler.
// httprouter does not allow /users/profile beside /users/:id.
func byID(fallback httprouter.Handle, named map[string]httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if h, ok := named[ps.ByName("id")]; ok {
			h(w, r, ps)
			return
		}
		fallback(w, r, ps)
	}
}

func AddUserRoutes(router *httprouter.Router, d Deps) {
	h, e, a := d.Users, d.Errors, d.Auth

	router.POST("/api/users", d.Limiter.Limit(e.Handle(h.Register)))
	router.POST("/api/users/login", d.Limiter.Limit(e.Handle(h.Login)))
	router.GET("/api/users", a.ProtectAdmin(e.Handle(h.List)))

	router.GET("/api/users/:id", byID(a.ProtectAdmin(e.Handle(h.Get)), map[string]httprouter.Handle{
		"profile": a.Protect(e.Handle(h.GetProfile)),
	}))
	router.PUT("/api/users/:id", byID(a.ProtectAdmin(e.Handle(h.Update)), map[string]httprouter.Handle{
		"profile": a.Protect(e.Handle(h.UpdateProfile)),
	}))
	router.DELETE("/api/users/:id", a.ProtectAdmin(e.Handle(h.Delete)))
}

func AddProductRoutes(router *httprouter.Router, d Deps) {
	h, e, a := d.Products, d.Errors, d.Auth

	router.GET("/api/products", e.Handle(h.List))
	router.POST("/api/products", a.ProtectAdmin(e.Handle(h.Create)))
	router.GET("/api/products/:id", byID(e.Handle(h.Get), map[string]httprouter.Handle{
		"top": e.Handle(h.Top),
		"all": a.ProtectAdmin(e.Handle(h.ListAll)),
	}))
	router.PUT("/api/products/:id", a.ProtectAdmin(e.Handle(h.Update)))
	router.DELETE("/api/products/:id", a.ProtectAdmin(e.Handle(h.Delete)))
	router.POST("/api/products/:id/reviews", a.Protect(e.Handle(d.Reviews.Create)))
}

func AddOrderRoutes(router *httprouter.Router, d Deps) {
	s, e, a := d.Orders, d.Errors, d.Auth

	router.POST("/api/orders", a.Protect(d.Idempotency.Wrap(e.Handle(s.Create))))
	router.GET("/api/orders", a.ProtectAdmin(e.Handle(s.List)))
	router.GET("/api/orders/:id", byID(a.Protect(e.Handle(s.Get)), map[string]httprouter.Handle{
		"myorders": a.Protect(e.Handle(s.Mine)),
	}))
	router.GET("/api/orders/:id/invoice", a.Protect(e.Handle(s.Invoice)))
	router.PUT("/api/orders/:id/pay", a.Protect(d.Idempotency.Wrap(e.Handle(s.Pay))))
	router.PUT("/api/orders/:id/deliver", a.ProtectAdmin(e.Handle(s.Deliver)))
	router.POST("/api/orders/:id/checkout-stripe-with-follow", a.Protect(e.Handle(s.CheckoutStripeWithFollow)))
}

func AddUploadRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/upload", d.Limiter.Limit(d.Auth.ProtectAdmin(d.Errors.Handle(d.Uploads.Upload))))
	router.ServeFiles("/uploads/*filepath", http.Dir(d.Uploads.Dir()))
}

func AddConfigRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/config/paypal", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, d.PayPalClientID)
	})
	router.GET("/api/config/stripe", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"publishableKey": d.StripePublishableKey})
	})
	router.GET("/health", d.Errors.Handle(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
		if d.Ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ping(ctx); err != nil {
				return utils.Upstream("Database unavailable", err)
			}
		}
		fmt.Fprint(w, "200")
		return nil
	}))
}
