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

	"github.com/aussiebroadwan/medvault/internal/auth/blob"
	"github.com/aussiebroadwan/medvault/internal/auth/domain"
	"github.com/aussiebroadwan/medvault/internal/auth/envelope"
	httpapi "github.com/aussiebroadwan/medvault/internal/auth/http"
	"github.com/aussiebroadwan/medvault/internal/auth/service"
	"github.com/aussiebroadwan/medvault/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/medvault/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/medvault/internal/auth/store/sqlstore"
	"github.com/aussiebroadwan/medvault/internal/auth/throttle"
	"github.com/aussiebroadwan/medvault/pkg/cryptox"
	"github.com/aussiebroadwan/medvault/pkg/otpx"
	"github.com/aussiebroadwan/medvault/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time with -ldflags "-X".
var BuildVersion = "v0.1.0"

// throttlePrefix namespaces attempt counters in a shared Redis.
const throttlePrefix = "medvault:"

// Application encapsulates the service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       *sqlstore.Store
	blobs    blob.Store
	redis    *redis.Client
	throttle throttle.Throttle
	hasher   *cryptox.Hasher
	signers  Signers
	codec    *envelope.Codec

	// Services
	sessionService      *service.SessionService
	authService         *service.AuthService
	twoFactorService    *service.TwoFactorService
	recordService       *service.RecordService
	envelopeService     *service.EnvelopeService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application with all dependencies initialised. Any
// configuration problem is returned wrapping domain.ErrConfiguration.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "medvault-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := app.initSecurity(); err != nil {
		return nil, err
	}
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initBlobs(ctx); err != nil {
		app.closeDatabase()
		return nil, err
	}
	app.initThrottle()

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("medvault auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"db_driver", app.cfg.DatabaseDriver,
		"blob_backend", app.cfg.BlobBackend,
		"server_encryption", app.codec != nil,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeDatabase()
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

// Shutdown drains in-flight requests, stops background work and closes
// the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down medvault auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("medvault auth service stopped")
	return nil
}

// initSecurity loads the pepper, the hasher, the token signers and the
// server envelope key.
func (app *Application) initSecurity() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	app.hasher, err = cryptox.NewHasher(app.cfg.HashParams, pepper)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	app.signers, err = LoadSigners(app.cfg, app.logger)
	if err != nil {
		return err
	}

	key, err := ServerKey(app.cfg)
	if err != nil {
		return err
	}
	if key != nil {
		if app.codec, err = envelope.NewCodec(key); err != nil {
			return err
		}
		app.logger.Info("server-managed envelopes enabled")
	}
	return nil
}

// initDatabase opens the configured driver and applies migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  *sqlstore.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		db, err = sqlite.NewStore(app.cfg.DatabaseFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(ctx); err != nil {
		app.closeDatabase()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) closeDatabase() {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
	}
}

func (app *Application) initBlobs(ctx context.Context) error {
	var err error
	switch app.cfg.BlobBackend {
	case "s3":
		app.blobs, err = blob.NewS3Store(ctx, blob.S3Config{
			Bucket:    app.cfg.S3Bucket,
			Region:    app.cfg.S3Region,
			Endpoint:  app.cfg.S3Endpoint,
			AccessKey: app.cfg.S3AccessKey,
			SecretKey: app.cfg.S3SecretKey,
		})
	default:
		app.blobs, err = blob.NewFileStore(app.cfg.BlobDir)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}
	return nil
}

// initThrottle connects the login throttle. Without REDIS_ADDR, or when
// Redis is down at start, logins are not throttled.
func (app *Application) initThrottle() {
	if app.cfg.RedisAddr == "" {
		app.logger.Warn("REDIS_ADDR not set, login attempts are not throttled")
		app.throttle = throttle.Nop{}
		return
	}

	app.redis = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	rt := throttle.NewRedis(app.redis, app.cfg.Throttle, throttlePrefix)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rt.Ping(ctx); err != nil {
		app.logger.Warn("redis unreachable, throttle fails open until it recovers", "addr", app.cfg.RedisAddr, "error", err)
	}
	app.throttle = rt
}

// initServices initialises the business services.
func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Store:         app.db,
		Access:        app.signers.Access,
		Refresh:       app.signers.Refresh,
		PreSession:    app.signers.PreSession,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
		PreSessionTTL: app.cfg.PreSessionTTL,
		Issuer:        app.cfg.Issuer,
	}

	totp := otpx.New(app.cfg.Issuer)
	app.authService = &service.AuthService{
		Store:    app.db,
		Hasher:   app.hasher,
		Sessions: app.sessionService,
		TOTP:     totp,
		Throttle: app.throttle,
	}
	app.twoFactorService = &service.TwoFactorService{
		Store:    app.db,
		Sessions: app.sessionService,
		TOTP:     totp,
		Throttle: app.throttle,
	}
	app.recordService = &service.RecordService{Store: app.db}
	app.envelopeService = &service.EnvelopeService{
		Store: app.db,
		Blobs: app.blobs,
		Codec: app.codec,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initialises the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.sessionService,
		BuildVersion,
		app.db,
		app.blobs,
		app.throttle,
		app.logger,
		httpapi.Options{
			RateLimits:     app.cfg.RateLimits,
			MaxUploadBytes: app.cfg.MaxUploadBytes,
		},
	)

	router.AuthService = app.authService
	router.TwoFactorService = app.twoFactorService
	router.RecordService = app.recordService
	router.EnvelopeService = app.envelopeService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
