package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zinevault/zinevault/api/internal/api/handlers"
	zmiddleware "github.com/zinevault/zinevault/api/internal/api/middleware"
	deliveryhttp "github.com/zinevault/zinevault/api/internal/delivery/http"
)

// RouterConfig defines the dependencies required to build the routing tree.
type RouterConfig struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration

	// TrustForwardedHeaders lets X-Forwarded-For, X-Real-IP and True-Client-IP replace the
	// peer address. Only set it behind a proxy that overwrites those headers; otherwise any
	// client can pick the address its rate-limit bucket is keyed on.
	TrustForwardedHeaders bool

	ZineHandler     *handlers.ZineHandler
	HealthHandler   *deliveryhttp.HealthHandler
	GlobalLimiter   *zmiddleware.RateLimiter
	RecoveryLimiter *zmiddleware.RateLimiter
	Logger          *slog.Logger
}

// NewRouter constructs the chi multiplexer, attaches global middleware, and wires all endpoints.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Middleware Pipeline
	// =========================================================================

	r.Use(middleware.RequestID)
	if cfg.TrustForwardedHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(zmiddleware.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(zmiddleware.Deadline(cfg.RequestTimeout))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(zmiddleware.MaxBytes(cfg.MaxBodyBytes))
	}

	if cfg.GlobalLimiter != nil {
		r.Use(cfg.GlobalLimiter.Handler)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// =========================================================================
	// 2. Zine Routes
	// =========================================================================

	r.Post("/generate_zine", cfg.ZineHandler.GenerateZine)
	r.Post("/open_zine", cfg.ZineHandler.OpenZine)

	// Password guessing against the vault gets its own, much tighter budget.
	r.Group(func(r chi.Router) {
		if cfg.RecoveryLimiter != nil {
			r.Use(cfg.RecoveryLimiter.Handler)
		}
		r.Post("/recover_secret", cfg.ZineHandler.RecoverSecret)
		r.Post("/recover_secret/qrcode", cfg.ZineHandler.RecoverSecretQRCode)
	})

	// =========================================================================
	// 3. Probes
	// =========================================================================

	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.Check)
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	return r
}
