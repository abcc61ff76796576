// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Corphon/SocialGenius/internal/api"
	"github.com/Corphon/SocialGenius/internal/config"
	"github.com/Corphon/SocialGenius/internal/llm"
	_ "github.com/Corphon/SocialGenius/internal/llm/providers/google"
	"github.com/Corphon/SocialGenius/internal/services"
	"github.com/Corphon/SocialGenius/internal/storage"
	"github.com/Corphon/SocialGenius/internal/utils"
)

const (
	shutdownTimeout   = 30 * time.Second
	rateLimiterPurge  = 10 * time.Minute
	redisKeyPrefix    = "socialgenius:"
	memoryStoreMaxKey = 1000
)

// App owns the HTTP server and everything that must be stopped with it
type App struct {
	config  *config.Config
	server  *http.Server
	router  *api.Router
	sweeper *cron.Cron
	logger  *utils.Logger

	// ctx scopes background work; cancel ends it on shutdown
	ctx     context.Context
	cancel  context.CancelFunc
	closers []func() error
}

// New wires the provider, cache, services and router described by cfg
func New(cfg *config.Config) (*App, error) {
	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider (registered: %s): %w",
			cfg.LLMProvider, strings.Join(llm.ListProviders(), ", "), err)
	}
	return NewWithProvider(cfg, provider)
}

// NewWithProvider is New with an already initialized provider
func NewWithProvider(cfg *config.Config, provider llm.Provider) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config: cfg,
		logger: utils.GetLogger().WithComponent("app"),
		ctx:    ctx,
		cancel: cancel,
	}

	store, err := a.buildStore(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	metrics := utils.GetMetricsCollector()
	gen := services.NewGenerationService(provider, cfg.VideoPollInterval, utils.NewGenerationMetrics(metrics))
	reels := services.NewReelService(gen, storage.NewReelCache(store), services.NewProgressService(), cfg.SessionTTL)

	sweepers := []storage.Sweeper{reels}
	if s, ok := store.(storage.Sweeper); ok {
		sweepers = append(sweepers, s)
	}
	if a.sweeper, err = storage.StartSweeper(cfg.CacheSweep, sweepers...); err != nil {
		a.Close()
		return nil, err
	}

	handler := api.NewHandler(ctx,
		services.NewCarouselService(gen),
		services.NewImagePostService(gen),
		reels,
		metrics,
	)
	a.router = api.SetupRouter(cfg, handler)
	go a.router.Limiter.Run(ctx, rateLimiterPurge)

	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Application initialized", map[string]interface{}{
		"provider":      provider.GetName(),
		"cache_backend": cfg.CacheBackend,
		"session_ttl":   cfg.SessionTTL.String(),
	})
	return a, nil
}

func (a *App) buildStore(ctx context.Context) (storage.KeyValueStore, error) {
	cfg := a.config
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		store := storage.NewRedisStore(storage.NewRedisClient(cfg.RedisURL), redisKeyPrefix, cfg.SessionTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil

	case config.CacheBackendFile:
		return storage.NewFileStore(filepath.Clean(cfg.CacheDir), cfg.SessionTTL)

	default:
		return storage.NewMemoryStore(memoryStoreMaxKey, cfg.CacheMaxBytes, cfg.SessionTTL), nil
	}
}

// Handler exposes the routed engine, mainly for tests
func (a *App) Handler() http.Handler {
	return a.router.Engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening", map[string]interface{}{"addr": a.server.Addr})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.Close()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	return a.Shutdown()
}

// Shutdown stops accepting requests, cancels running video batches and
// releases the cache.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.router.WebSockets.CloseAll()
	err := a.server.Shutdown(shutdownCtx)

	a.cancel()
	waited := make(chan struct{})
	go func() {
		a.router.Handler.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-shutdownCtx.Done():
		a.logger.Warn("Background video batches did not stop in time", nil)
	}

	if closeErr := a.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close releases the sweeper and cache connections
func (a *App) Close() error {
	a.cancel()
	if a.sweeper != nil {
		<-a.sweeper.Stop().Done()
		a.sweeper = nil
	}

	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
