package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/checkout-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/checkout-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/checkout-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/checkout-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/checkout-backend/api/controllers/webhooks"
	"github.com/angelmondragon/checkout-backend/api/middleware"
	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/internal/orders"
	"github.com/angelmondragon/checkout-backend/internal/payments"
	stripewebhook "github.com/angelmondragon/checkout-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/checkout-backend/pkg/config"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/redis"
)

type redisStore interface {
	redis.IdempotencyStore
	redis.Pinger
}

type signingClient interface {
	SigningSecret() string
}

// RouterParams collects the services mounted by NewRouter.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    redisStore
	Gatherer prometheus.Gatherer

	Cart     cart.Service
	Orders   orders.Service
	Payments payments.Service

	StripeClient  signingClient
	StripeWebhook *stripewebhook.Service
	WebhookGuard  *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(p)))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeClient, p.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Redis, cfg.Checkout.IdempotencyTTL, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(p.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(p.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(p.Cart, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(p.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(p.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(p.Orders, logg))
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intent", paymentcontrollers.CreateIntent(p.Payments, logg))
			r.Post("/confirm", paymentcontrollers.Confirm(p.Payments, logg))
		})
	})

	return r
}

func readinessDeps(p RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["db"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	return deps
}
