package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/background"
	"github.com/BradenHooton/loginguard/internal/clock"
	"github.com/BradenHooton/loginguard/internal/config"
	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/handlers"
	"github.com/BradenHooton/loginguard/internal/i18n"
	middlewareCustom "github.com/BradenHooton/loginguard/internal/middleware"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/observability"
	"github.com/BradenHooton/loginguard/internal/repositories"
	"github.com/BradenHooton/loginguard/internal/routes"
	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/BradenHooton/loginguard/migrations"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Backend),
		slog.String("verifier", cfg.Verifier.Kind),
	)

	if err := observability.InitSentry(cfg.Observability.SentryDSN, cfg.Server.Env); err != nil {
		logger.Warn("sentry disabled", slog.Any("error", err))
	}
	defer observability.FlushSentry()

	clk := clock.System{}
	healthChecks := map[string]handlers.HealthCheck{}

	// Initialize database when the store or verifier needs it
	var db *database.DB
	if cfg.NeedsDatabase() {
		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = database.NewConnection(connectCtx, &cfg.Database, logger)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		healthChecks["database"] = db.HealthCheck

		if cfg.Database.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := db.Migrate(ctx, migrations.FS)
			cancel()
			if err != nil {
				logger.Error("failed to run migrations", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	// Attempt store
	store, pruner, err := buildAttemptStore(cfg, db, healthChecks)
	if err != nil {
		logger.Error("failed to initialize attempt store", slog.Any("error", err))
		os.Exit(1)
	}

	// Rate limiting service
	policy, err := services.NewLockoutPolicy(
		cfg.RateLimit.MaxAttemptsBeforeCaptcha,
		cfg.RateLimit.MaxAttemptsBeforeLockout,
		cfg.RateLimit.LockoutDuration,
	)
	if err != nil {
		logger.Error("invalid lockout policy", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)
	rateLimitService := services.NewRateLimitService(
		store,
		policy,
		clk,
		services.RateLimitConfig{StoreTimeout: cfg.Store.Timeout},
		logger,
		auditLogger,
		observability.NewSentryReporter(nil, "login_rate_limiter"),
	)

	// Credential verification and sessions
	var userRepo *repositories.UserRepository
	if db != nil {
		userRepo = repositories.NewUserRepository(db)
	}
	verifier, err := buildVerifier(cfg, userRepo)
	if err != nil {
		logger.Error("failed to initialize credential verifier", slog.Any("error", err))
		os.Exit(1)
	}

	sessions := auth.NewSessionIssuer(cfg.Session.Secret, cfg.Session.TTL, auth.CookieConfig{
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.Session.CookieSecure,
		SameSite: cfg.Session.CookieSameSite,
	}, clk)

	localizer, err := i18n.NewLocalizer(cfg.Server.DefaultLocale)
	if err != nil {
		logger.Error("failed to initialize localizer", slog.Any("error", err))
		os.Exit(1)
	}

	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: cfg.RateLimit.TrustedProxies,
		TrustAll:       cfg.RateLimit.TrustAllProxies,
	}

	// Seed a local account if configured
	if userRepo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := ensureSeedUser(ctx, userRepo, logger); err != nil {
			logger.Error("failed to ensure seed user", slog.Any("error", err))
		}
		cancel()
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(handlers.AuthHandlerDeps{
		Gate:      rateLimitService,
		Verifier:  verifier,
		Sessions:  sessions,
		Captcha:   handlers.PresenceChecker{},
		Localizer: localizer,
		IPConfig:  ipConfig,
		Audit:     auditLogger,
		Logger:    logger,
		Delay:     auth.NewFailureDelay(cfg.Verifier.FailureDelayBase, cfg.Verifier.FailureDelayJitter),
	})
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimitService, localizer, ipConfig)
	healthHandler := handlers.NewHealthHandler(healthChecks, rateLimitService)

	loginGuard := middlewareCustom.NewLoginGuard(rateLimitService, middlewareCustom.LoginGuardConfig{
		Paths:     cfg.RateLimit.LoginPaths,
		IPConfig:  ipConfig,
		Localizer: localizer,
		Logger:    logger,
	})

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(observability.Recoverer(logger, sentry.CurrentHub()))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.LoginRequestsPerMinute,
		IPConfig:          ipConfig,
		Localizer:         localizer,
		Paths:             cfg.RateLimit.LoginPaths,
	}))
	router.Use(loginGuard.Handler)

	// Register routes
	routes.RegisterRoutes(router, routes.Handlers{
		Auth:      authHandler,
		RateLimit: rateLimitHandler,
		Health:    healthHandler,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task; Redis expires records itself
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	var cleanupManager *background.CleanupManager
	if pruner != nil {
		cleanupManager = background.NewCleanupManager(pruner, clk, logger, cfg.Store.CleanupInterval, cfg.Store.Retention)
		go cleanupManager.Start(cleanupCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully", slog.Any("rate_limiter", rateLimitService.Stats()))
}

// buildAttemptStore returns the configured store and, for backends that need
// periodic pruning, the same store as a Pruner
func buildAttemptStore(cfg *config.Config, db *database.DB, checks map[string]handlers.HealthCheck) (services.AttemptStore, background.Pruner, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		s := repositories.NewMemoryAttemptStore()
		return s, s, nil
	case config.StorePostgres:
		s := repositories.NewPostgresAttemptStore(db)
		return s, s, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return repositories.NewRedisAttemptStore(client, cfg.Redis.KeyPrefix, cfg.Store.Retention), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildVerifier(cfg *config.Config, users *repositories.UserRepository) (auth.CredentialVerifier, error) {
	switch cfg.Verifier.Kind {
	case config.VerifierGoTrue:
		return auth.NewGoTrueVerifier(cfg.Verifier.ProviderURL, cfg.Verifier.APIKey, cfg.Verifier.Timeout), nil
	case config.VerifierPostgres:
		if users == nil {
			return nil, errors.New("postgres verifier requires a database connection")
		}
		return auth.NewPostgresVerifier(users), nil
	default:
		return nil, fmt.Errorf("unknown verifier %q", cfg.Verifier.Kind)
	}
}

// ensureSeedUser creates a confirmed local account if SEED_USER_EMAIL and SEED_USER_PASSWORD are set
func ensureSeedUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	email := os.Getenv("SEED_USER_EMAIL")
	password := os.Getenv("SEED_USER_PASSWORD")

	if email == "" || password == "" {
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("seed user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if seed user exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed user password: %w", err)
	}

	now := time.Now()
	_, err = userRepo.Create(ctx, &models.User{
		Email:            email,
		PasswordHash:     hashedPassword,
		EmailConfirmedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to create seed user: %w", err)
	}

	logger.Info("seed user created", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
