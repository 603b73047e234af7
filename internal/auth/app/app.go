package app

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

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/triage/internal/auth/gate"
	httpapi "github.com/aussiebroadwan/triage/internal/auth/http"
	"github.com/aussiebroadwan/triage/internal/auth/service"
	"github.com/aussiebroadwan/triage/internal/auth/store"
	"github.com/aussiebroadwan/triage/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/triage/pkg/cryptox"
	"github.com/aussiebroadwan/triage/pkg/httpx"
	"github.com/aussiebroadwan/triage/pkg/jwtx"
	"github.com/aussiebroadwan/triage/pkg/pwpolicy"
	"github.com/aussiebroadwan/triage/pkg/ratelimit"
	"github.com/aussiebroadwan/triage/pkg/revoke"
	"github.com/aussiebroadwan/triage/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// revocationBackend is what both the sqlite table and the Redis deny-list
// provide.
type revocationBackend interface {
	jwtx.RevocationList
	service.Revoker
	service.ExpiredPurger
}

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	redis       goredis.UniversalClient // nil with the memory backend
	limiter     ratelimit.Limiter
	memLimiter  *ratelimit.Memory // set with the memory backend, swept by housekeeping
	revocations revocationBackend
	tokens      *jwtx.Service
	gate        *gate.Gate
	hasher      *cryptox.Pool
	policy      *pwpolicy.Policy

	// Services
	authService         *service.AuthService
	userService         *service.UserService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "triage-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initRateLimiting(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initSecurity(); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	ctx := slogx.WithContext(context.Background(), app.logger)
	if _, err := app.bootstrapService.Run(ctx); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"ratelimit_backend", app.cfg.RateLimitBackend,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeBackends() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRateLimiting picks the limiter and revocation backends. Redis serves
// both when selected so every replica sees the same state.
func (app *Application) initRateLimiting() error {
	switch app.cfg.RateLimitBackend {
	case BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
		}

		app.redis = rdb
		app.limiter = ratelimit.NewRedis(rdb)
		app.revocations = revoke.NewRedis(rdb)
		app.logger.Info("using redis for rate limiting and revocation", "addr", app.cfg.RedisAddr)

	default:
		mem := ratelimit.NewMemory()
		app.memLimiter = mem
		app.limiter = mem
		app.revocations = store.NewRevocationListAdapter(app.db)
	}
	return nil
}

// initSecurity builds the token service, hasher and password policy.
func (app *Application) initSecurity() error {
	secret, err := LoadSigningSecret(app.cfg, app.logger)
	if err != nil {
		return err
	}

	app.tokens, err = jwtx.NewService(app.cfg.TokenConfig(secret), jwtx.WithRevocationList(app.revocations))
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	h, err := cryptox.NewHasher(cryptox.HasherConfig{
		Algorithm:  app.cfg.HashAlgorithm,
		BcryptCost: app.cfg.BcryptCost,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	app.hasher = cryptox.NewPool(h, app.cfg.HashWorkers)
	app.policy = pwpolicy.New()
	app.gate = gate.New(app.tokens, app.db.Users())
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:    app.db,
		Tokens:   app.tokens,
		Gate:     app.gate,
		Hasher:   app.hasher,
		Policy:   app.policy,
		Revoker:  app.revocations,
		Notifier: service.LogNotifier{},
	}
	app.userService = &service.UserService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{
		Store:    app.db,
		Hasher:   app.hasher,
		Policy:   app.policy,
		Email:    app.cfg.BootstrapAdminEmail,
		Username: app.cfg.BootstrapAdminUsername,
		Password: app.cfg.BootstrapAdminPassword,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Revocations = app.revocations
	if app.memLimiter != nil {
		app.housekeepingService.Limiter = app.memLimiter
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	// Wire services to router
	router.Gate = app.gate
	router.Limiter = app.limiter
	router.Rules = app.cfg.RateLimits
	router.Redis = app.redis
	if app.cfg.TrustProxy {
		router.ClientKey = httpx.ForwardedIPKeyExtractor
	}
	router.AuthService = app.authService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
