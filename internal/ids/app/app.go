package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/nobcorp/nobids/internal/ids/http"
	"github.com/nobcorp/nobids/internal/ids/service"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/internal/ids/store/drivers/sqlite"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/jwtx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity server with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db             store.Store
	sealer         *cryptox.Sealer
	keyManager     *jwtx.KeyManager
	persistentKeys *jwtx.PersistentKeyManager // nil in ephemeral mode

	// Services
	registryService     *service.RegistryService
	userService         *service.UserService
	sessionService      *service.SessionService
	issuer              *service.Issuer
	tokenService        *service.TokenService
	authorizeService    *service.AuthorizeService
	bootstrapService    *service.BootstrapService
	keyRotationService  *service.KeyRotationService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "nobids",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Initialize database first (required for persistent keys)
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	sealer, err := initSealer(app.cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.sealer = sealer

	ctx := context.Background()
	keyManager, persistentKeys, err := initKeys(ctx, app.cfg, app.db, app.sealer, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keyManager = keyManager
	app.persistentKeys = persistentKeys

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("identity server starting", "port", app.cfg.Port, "version", BuildVersion, "issuer", app.cfg.Issuer)

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
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.sessionService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity server stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
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

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.registryService = &service.RegistryService{Store: app.db}

	app.userService = &service.UserService{
		Store:      app.db,
		Sealer:     app.sealer,
		TOTPIssuer: app.cfg.Issuer,
	}

	app.sessionService = service.NewSessionService(
		app.db,
		app.cfg.SessionIdleTTL,
		app.cfg.SessionAbsoluteTTL,
		app.cfg.ConsentTTL,
	)

	policy := service.DefaultTokenPolicy()
	if app.cfg.AccessTokenTTL > 0 {
		policy.AccessTokenTTL = app.cfg.AccessTokenTTL
	}
	if app.cfg.RefreshTokenTTL > 0 {
		policy.RefreshTokenTTL = app.cfg.RefreshTokenTTL
	}
	app.issuer = &service.Issuer{
		Keyring: app.keyManager,
		Issuer:  app.cfg.Issuer,
		Policy:  policy,
	}

	app.tokenService = &service.TokenService{
		Store:    app.db,
		Registry: app.registryService,
		Sessions: app.sessionService,
		Issuer:   app.issuer,
	}

	app.authorizeService = &service.AuthorizeService{
		Store:    app.db,
		Registry: app.registryService,
		Users:    app.userService,
		Sessions: app.sessionService,
		Issuer:   app.issuer,
		CodeTTL:  app.cfg.CodeTTL,
		FlowTTL:  app.cfg.FlowTTL,
	}

	app.bootstrapService = &service.BootstrapService{
		Store: app.db,
		Token: app.cfg.BootstrapToken,
	}

	app.keyRotationService = &service.KeyRotationService{
		Manager:    app.keyManager,
		Persistent: app.persistentKeys, // nil in ephemeral mode
		RSABits:    app.cfg.RSABits,
		Lifetime:   app.cfg.KeyLifetime,
	}

	// Only persisted keys need pruning; ephemeral deployments pass nil.
	var pruner service.KeyPruner
	if app.persistentKeys != nil {
		pruner = app.persistentKeys
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		pruner,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet(),
		app.keyManager.Verifier(),
		app.cfg.Issuer,
		app.keyManager.Algorithm(),
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.RegistryService = app.registryService
	router.SessionService = app.sessionService
	router.AuthorizeService = app.authorizeService
	router.BootstrapService = app.bootstrapService
	router.KeyRotationService = app.keyRotationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
