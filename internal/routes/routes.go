package routes

import (
	"github.com/BradenHooton/lockguard/internal/auth"
	"github.com/BradenHooton/lockguard/internal/handlers"
	"github.com/BradenHooton/lockguard/internal/middleware"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Config carries what route registration needs besides the handlers
type Config struct {
	TokenManager       *auth.TokenManager
	IPConfig           *pkghttp.IPConfig
	LoginRatePerMin    int
	AdminRatePerMinute int
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	cfg Config,
	authHandler *handlers.AuthHandler,
	lockoutHandler *handlers.LockoutHandler,
	historyHandler *handlers.LockoutHistoryHandler,
	healthHandler *handlers.HealthHandler,
) {
	loginLimit := middleware.DefaultLoginRateLimit()
	if cfg.LoginRatePerMin > 0 {
		loginLimit.RequestsPerMinute = cfg.LoginRatePerMin
	}
	loginLimit.IPConfig = cfg.IPConfig

	router.Get("/health", healthHandler.Health)

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(loginLimit))
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/password-reset/eligibility", authHandler.PasswordResetEligibility)
	})

	// Admin-only lockout management
	adminLimit := middleware.RateLimitConfig{RequestsPerMinute: 60, IPConfig: cfg.IPConfig}
	if cfg.AdminRatePerMinute > 0 {
		adminLimit.RequestsPerMinute = cfg.AdminRatePerMinute
	}

	router.Route("/admin/accounts/{id}", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(cfg.TokenManager))
		r.Use(auth.RequireRole("admin"))
		r.Use(middleware.RateLimitByUserID(adminLimit))

		r.Get("/lockout", lockoutHandler.GetStatus)
		r.Get("/lockout/events", historyHandler.GetEvents)
		r.Post("/lock", lockoutHandler.Lock)
		r.Post("/unlock", lockoutHandler.Unlock)
		r.Delete("/failed-attempts", lockoutHandler.ResetFailedAttempts)
	})
}
