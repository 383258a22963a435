package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/ratelimit"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/bolt"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-rooms/internal/transport/http"
)

const (
	driverSQLite = "sqlite"
	driverBolt   = "bolt"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	auth            *auth.Service
	store           store.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	secret, err := jwtSecret(cfg.JWT.Secret, logger)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("store initialized")

	limiterCfg := ratelimit.Config{Limit: cfg.RateLimit.RegisterAttempts, Window: cfg.RateLimit.RegisterWindow}
	var (
		limiter     ratelimit.Limiter
		redisClient *redis.Client
	)
	if cfg.RateLimit.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(redisClient, limiterCfg, "wirechat:ratelimit:")
		logger.Info().Str("addr", cfg.RateLimit.RedisAddr).Msg("using redis rate limiter")
	} else {
		limiter = ratelimit.NewMemoryLimiter(limiterCfg)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}
	authService := auth.NewService(st, jwtConfig, limiter)

	hub := core.NewHub(st, HubOptions(cfg), logger)
	server := transporthttp.NewServer(hub, authService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		auth:            authService,
		store:           st,
		redis:           redisClient,
		log:             logger,
	}, nil
}

// HubOptions maps configuration onto hub options.
func HubOptions(cfg *config.Config) core.Options {
	return core.Options{
		HistoryLimit:      cfg.HistoryLimit,
		MaxMessageChars:   cfg.MaxMessageChars,
		StoreTimeout:      cfg.StoreTimeout,
		HeartbeatInterval: cfg.Presence.HeartbeatInterval,
		OfflineAfter:      cfg.Presence.OfflineAfter,
		SweepInterval:     cfg.Presence.SweepInterval,
		MessagesPerMinute: cfg.RateLimit.MessagesPerMinute,
	}
}

// jwtSecret returns the configured signing key, or a random one when the key is
// missing or still the placeholder. Random keys do not survive a restart.
func jwtSecret(configured string, logger *zerolog.Logger) ([]byte, error) {
	if configured != "" && configured != config.PlaceholderJWTSecret {
		return []byte(configured), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate jwt secret: %w", err)
	}
	logger.Warn().Msg("jwt.secret is not set; using a random key, issued tokens expire on restart")
	return secret, nil
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", driverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case driverBolt:
		return bolt.New(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Run starts the hub and the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(gctx)
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
