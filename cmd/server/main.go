package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/GoCyto/internal/config"
	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/extractor"
	"github.com/Skufu/GoCyto/internal/logging"
	"github.com/Skufu/GoCyto/internal/metrics"
	"github.com/Skufu/GoCyto/internal/registry"
	"github.com/Skufu/GoCyto/internal/server"
	"github.com/Skufu/GoCyto/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("addr", srv.Addr))
	waitForShutdown(srv, logger)
}

// app holds the router and everything that must be released on exit.
type app struct {
	router  *gin.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp loads the models and connects the optional database, extractor
// and cache. Anything opened before a failure is released.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	reg, err := registry.Load(cfg.Models, registry.Options{ONNXRuntimeLib: cfg.ONNXRuntimeLib})
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := reg.Close(); err != nil {
			logger.Warn("closing models", zap.Error(err))
		}
	})
	for variant, version := range reg.Versions() {
		logger.Info("model loaded", zap.String("model", string(variant)), zap.String("version", version))
	}

	deps := server.Deps{
		Scorer:       diagnosis.NewScorer(reg),
		Metrics:      metrics.New(),
		Logger:       logger,
		StaticRoot:   cfg.StaticRoot,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}
	if deps.StaticRoot == "" {
		deps.StaticRoot = server.DetectStaticRoot()
	}

	if cfg.EnableDB {
		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if cfg.MigrateOnStart {
			version, err := store.MigrateUp(db.DB())
			if err != nil {
				return nil, err
			}
			logger.Info("database migrated", zap.Uint("version", version))
		}
		deps.Store = db
	}

	if cfg.Extractor.Enabled() {
		svc, err := newExtractor(ctx, cfg, logger, a)
		if err != nil {
			return nil, err
		}
		deps.Extractor = svc
	} else {
		logger.Info("feature extraction disabled")
	}

	a.router = server.NewRouter(deps)
	return a, nil
}

func newExtractor(ctx context.Context, cfg *config.Config, logger *zap.Logger, a *app) (extractor.Service, error) {
	provider, err := extractor.NewProvider(ctx, cfg.Extractor)
	if err != nil {
		return nil, err
	}
	var svc extractor.Service = extractor.New(provider,
		extractor.WithTimeout(cfg.Extractor.Timeout),
		extractor.WithLogger(logger.Named("extractor")))
	logger.Info("feature extraction enabled",
		zap.String("provider", cfg.Extractor.Provider),
		zap.String("model", svc.Model()))

	if cfg.RedisURL == "" {
		return svc, nil
	}
	rdb, err := extractor.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	return extractor.NewCachedService(svc, rdb, cfg.ExtractionCacheTTL, logger.Named("cache")), nil
}

// writeTimeout leaves room for a full extraction call.
func writeTimeout(cfg *config.Config) time.Duration {
	d := 15 * time.Second
	if cfg.Extractor.Enabled() && cfg.Extractor.Timeout+5*time.Second > d {
		d = cfg.Extractor.Timeout + 5*time.Second
	}
	return d
}

func waitForShutdown(srv *http.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
