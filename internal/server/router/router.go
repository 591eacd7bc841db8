package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"github.com/andymarkow/smmstore/internal/adminflow"
	"github.com/andymarkow/smmstore/internal/auth"
	"github.com/andymarkow/smmstore/internal/catalog"
	"github.com/andymarkow/smmstore/internal/errmsg"
	"github.com/andymarkow/smmstore/internal/orderflow"
	"github.com/andymarkow/smmstore/internal/payments"
	"github.com/andymarkow/smmstore/internal/server/handlers"
	"github.com/andymarkow/smmstore/internal/storage"
	"github.com/andymarkow/smmstore/internal/vendor"
)

type Options struct {
	log       *slog.Logger
	secret    []byte
	orders    *orderflow.Service
	admin     *adminflow.Service
	catalog   *catalog.Syncer
	vendor    *vendor.Client
	payments  *payments.Client
	processor *payments.Processor
}

func NewRouter(store storage.Storage, opts ...Option) chi.Router {
	r := chi.NewRouter()

	rOpts := Options{
		log:    slog.New(&slog.JSONHandler{}),
		secret: []byte(""),
	}

	for _, opt := range opts {
		opt(&rOpts)
	}

	tokenAuth := jwtauth.New("HS256", rOpts.secret, nil)

	r.Use(
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Logger,
	)

	h := handlers.NewHandlers(store,
		handlers.WithLogger(rOpts.log),
		handlers.WithAuth(auth.NewJWTAuth(rOpts.secret)),
		handlers.WithOrderFlow(rOpts.orders),
		handlers.WithAdminFlow(rOpts.admin),
		handlers.WithCatalog(rOpts.catalog),
		handlers.WithVendor(rOpts.vendor),
		handlers.WithPaymentsClient(rOpts.payments),
		handlers.WithPaymentsProcessor(rOpts.processor),
	)

	r.Get("/ping", h.Ping)

	r.Group(func(r chi.Router) {
		r.Post("/api/user/register", h.UserRegister)
		r.Post("/api/user/login", h.UserLogin)
		r.Post("/api/webhooks/payments", h.PaymentsWebhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			jwtauth.Verifier(tokenAuth),
			jwtauth.Authenticator(tokenAuth),
		)

		r.Get("/api/services", h.ListServices)
		r.Get("/api/user/orders", h.GetUserOrders)
		r.Post("/api/user/orders", h.CreateOrder)
		r.Get("/api/user/balance", h.GetUserBalance)
		r.Get("/api/user/transactions", h.GetUserTransactions)
		r.Post("/api/user/recharge", h.Recharge)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)

			r.Get("/api/admin/markup", h.GetMarkup)
			r.Post("/api/admin/markup", h.UpdateMarkup)
			r.Post("/api/admin/balance/adjust", h.AdjustBalance)
			r.Get("/api/admin/orders", h.ListAllOrders)
			r.Post("/api/admin/orders/{orderID}/refresh", h.RefreshOrderStatus)
			r.Get("/api/admin/users", h.ListUsers)
			r.Get("/api/admin/users/{userID}/transactions", h.AdminUserTransactions)
			r.Get("/api/admin/report/profit", h.ProfitReport)
			r.Get("/api/admin/vendor/balance", h.VendorBalance)
			r.Post("/api/admin/catalog/sync", h.CatalogSync)
		})
	})

	return r
}

// adminOnly rejects verified tokens that do not carry the admin claim.
func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || !auth.IsAdminClaim(claims) {
			http.Error(w, errmsg.ErrAdminRequired.Error(), errmsg.ErrAdminRequired.Code)

			return
		}

		next.ServeHTTP(w, r)
	})
}

type Option func(r *Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.log = logger
	}
}

func WithSecret(secret []byte) Option {
	return func(o *Options) {
		o.secret = secret
	}
}

func WithOrderFlow(orders *orderflow.Service) Option {
	return func(o *Options) {
		o.orders = orders
	}
}

func WithAdminFlow(admin *adminflow.Service) Option {
	return func(o *Options) {
		o.admin = admin
	}
}

func WithCatalog(syncer *catalog.Syncer) Option {
	return func(o *Options) {
		o.catalog = syncer
	}
}

func WithVendor(client *vendor.Client) Option {
	return func(o *Options) {
		o.vendor = client
	}
}

func WithPaymentsClient(client *payments.Client) Option {
	return func(o *Options) {
		o.payments = client
	}
}

func WithPaymentsProcessor(processor *payments.Processor) Option {
	return func(o *Options) {
		o.processor = processor
	}
}
