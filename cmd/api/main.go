package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/lockguard/internal/auth"
	"github.com/BradenHooton/lockguard/internal/background"
	"github.com/BradenHooton/lockguard/internal/config"
	"github.com/BradenHooton/lockguard/internal/database"
	"github.com/BradenHooton/lockguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/lockguard/internal/middleware"
	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/BradenHooton/lockguard/internal/repositories"
	"github.com/BradenHooton/lockguard/internal/routes"
	"github.com/BradenHooton/lockguard/internal/services"
	pkgauth "github.com/BradenHooton/lockguard/pkg/auth"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	pkglogger "github.com/BradenHooton/lockguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// userStore is what main needs from either user repository
type userStore interface {
	services.UserRepository
	services.AccountResolver
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// stateStore is what main needs from either security state repository
type stateStore interface {
	services.SecurityStateStore
	background.IdleStatePurger
}

// eventStore is what main needs from either lockout event repository
type eventStore interface {
	services.LockoutEventStore
	background.EventPruner
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("lockout_store", cfg.Lockout.Store),
		slog.Int("lockout_threshold", cfg.Lockout.Settings.Threshold),
		slog.String("lockout_window", cfg.Lockout.Settings.ThresholdWindow.String()),
		slog.String("lockout_duration", cfg.Lockout.Settings.LockoutDuration.String()))

	ctx := context.Background()

	var (
		db     *database.DB
		users  userStore
		states stateStore
		events eventStore
	)
	switch cfg.Lockout.Store {
	case config.StorePostgres:
		db, err = database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				logger.Error("failed to run migrations", slog.Any("error", err))
				os.Exit(1)
			}
		}

		users = repositories.NewUserRepository(db)
		states = repositories.NewSecurityStateRepository(db, logger)
		events = repositories.NewLockoutEventRepository(db)
	default:
		logger.Warn("using in-memory security state; lockouts are lost on restart")
		users = repositories.NewMemoryUserRepository()
		states = repositories.NewMemorySecurityStateRepository()
		events = repositories.NewMemoryLockoutEventRepository(repositories.DefaultMemoryEventsPerAccount)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	history := services.NewLockoutHistoryService(events, users, logger)

	sinks := []services.LockoutEventSink{services.NewAuditLockoutSink(auditLogger), history}
	if cfg.Email.Enabled {
		emailService, err := services.NewAWSSESEmailService(ctx, cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.SupportURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		sinks = append(sinks, services.NewLockoutNotificationService(users, emailService, logger))
	}

	guard, err := services.NewLockoutGuard(states, cfg.Lockout.Policy,
		services.WithAccountResolver(users),
		services.WithLockoutEventSink(services.MultiLockoutEventSink(sinks...)),
		services.WithGuardLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create lockout guard", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		MinDuration: cfg.Auth.LoginMinDuration,
		Jitter:      cfg.Auth.LoginJitter,
	})

	authService := services.NewAuthService(users, guard, tokenManager, timingDelay, logger, auditLogger)

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, users, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	var healthDB handlers.Pinger
	if db != nil {
		healthDB = db
	}

	// chi's RealIP is deliberately absent: it trusts forwarding headers from
	// any peer, while ExtractClientIP only trusts TRUSTED_PROXIES.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router,
		routes.Config{
			TokenManager:       tokenManager,
			IPConfig:           ipConfig,
			LoginRatePerMin:    cfg.Server.LoginRatePerMin,
			AdminRatePerMinute: cfg.Server.AdminRatePerMin,
		},
		handlers.NewAuthHandler(authService, ipConfig),
		handlers.NewLockoutHandler(guard, logger),
		handlers.NewLockoutHistoryHandler(history, logger),
		handlers.NewHealthHandler(healthDB),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var cleanupManager *background.CleanupManager
	if cfg.Lockout.CleanupInterval > 0 {
		tasks := []background.CleanupTask{background.PurgeIdleStateTask(states)}
		if cfg.Lockout.EventRetention > 0 {
			tasks = append(tasks, background.EventRetentionTask(events, cfg.Lockout.EventRetention))
		}
		cleanupManager = background.NewCleanupManager(logger, cfg.Lockout.CleanupInterval, tasks...)
		go cleanupManager.Start(ctx)
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, users userStore, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := users.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if _, err := users.Create(ctx, &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         "admin",
	}); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
