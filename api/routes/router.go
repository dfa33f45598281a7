package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopzen/shopzen-backend/api/controllers"
	cartcontrollers "github.com/shopzen/shopzen-backend/api/controllers/cart"
	chatcontrollers "github.com/shopzen/shopzen-backend/api/controllers/chat"
	ordercontrollers "github.com/shopzen/shopzen-backend/api/controllers/orders"
	paymentcontrollers "github.com/shopzen/shopzen-backend/api/controllers/payments"
	webhookcontrollers "github.com/shopzen/shopzen-backend/api/controllers/webhooks"
	"github.com/shopzen/shopzen-backend/api/middleware"
	"github.com/shopzen/shopzen-backend/internal/auth"
	"github.com/shopzen/shopzen-backend/internal/cart"
	"github.com/shopzen/shopzen-backend/internal/chat"
	"github.com/shopzen/shopzen-backend/internal/orders"
	"github.com/shopzen/shopzen-backend/internal/payments"
	products "github.com/shopzen/shopzen-backend/internal/products"
	"github.com/shopzen/shopzen-backend/internal/wishlist"
	"github.com/shopzen/shopzen-backend/pkg/auth/session"
	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/redis"
)

type redisStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	sessionManager session.AccessSessionChecker,
	chatLimiter *middleware.UserRateLimiter,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.RegisterService,
	productService products.Service,
	cartService cart.Service,
	wishlistService wishlist.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
	chatService chat.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.LoginRateLimitPolicy(cfg.AuthRateLimit)
	registerPolicy := middleware.RegisterRateLimitPolicy(cfg.AuthRateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(paymentsService, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(paymentsService, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, logg))
		r.With(middleware.Auth(cfg.JWT, sessionManager, logg)).Get("/me", controllers.AuthMe(authService, logg))
	})

	if !cfg.App.IsProd() {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).
			Post("/api/v1/admin/register", controllers.AuthRegister(adminRegisterService, authService, logg))
	}

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(productService, logg))
		r.Get("/{productId}", controllers.GetProduct(productService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartClear(cartService, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(cartService, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistList(wishlistService, logg))
			r.Get("/ids", controllers.WishlistIDs(wishlistService, logg))
			r.Post("/{productId}", controllers.WishlistAdd(wishlistService, logg))
			r.Delete("/{productId}", controllers.WishlistRemove(wishlistService, logg))
			r.Post("/items/move-to-cart", controllers.WishlistMoveToCart(wishlistService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
			r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(ordersService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initiate", paymentcontrollers.Initiate(paymentsService, logg))
			r.Post("/confirm", paymentcontrollers.Confirm(paymentsService, logg))
			r.Get("/orders/{orderId}", paymentcontrollers.GetByOrder(paymentsService, logg))
			if !cfg.App.IsProd() {
				r.Post("/mock-success", paymentcontrollers.MockSuccess(paymentsService, logg))
			}
		})

		r.Route("/chat", func(r chi.Router) {
			if chatLimiter != nil {
				r.Use(chatLimiter.Middleware("chat", logg))
			}
			r.Post("/", chatcontrollers.Send(chatService, logg))
			r.Get("/", chatcontrollers.History(chatService, logg))
			r.Get("/history", chatcontrollers.History(chatService, logg))
			r.Delete("/", chatcontrollers.Clear(chatService, logg))
			r.Delete("/history", chatcontrollers.Clear(chatService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Post("/products", controllers.AdminCreateProduct(productService, logg))
			r.Get("/orders", ordercontrollers.AdminList(ordersService, logg))
			r.Patch("/payments/{paymentId}", paymentcontrollers.AdminUpdateStatus(paymentsService, logg))
		})
	})

	return r
}
