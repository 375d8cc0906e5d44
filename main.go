package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/logging"
	"github.com/Zachkp/portfolio/internal/metrics"
	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/Zachkp/portfolio/internal/site"
	"github.com/Zachkp/portfolio/internal/store"
)

// cleanupInterval is how often old visits and outcomes are purged.
const cleanupInterval = 24 * time.Hour

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	boot := logging.BootstrapLogger()
	defer boot.Sync()

	cfg, err := config.Load(boot, os.Args[1:])
	if err != nil {
		boot.Error("config load failed", zap.Error(err))
		return err
	}

	logger := logging.MustBuildLogger(cfg.LogLevel, cfg.Env)
	defer logger.Sync()
	logger.Info("logger initialized", zap.String("env", cfg.Env))
	logger.Debug("config", zap.String("config", cfg.Dump()))

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := content.Load(cfg.ContentFile)
	if err != nil {
		logger.Error("content load failed", zap.Error(err))
		return err
	}

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("database open failed", zap.String("path", cfg.DBPath), zap.Error(err))
		return err
	}
	defer db.Close()
	logger.Info("Privacy: Visitor tracking enabled with hashed IP addresses")

	rl, err := relay.New(*cfg, logger)
	if err != nil {
		logger.Error("relay setup failed", zap.Error(err))
		return err
	}
	logger.Info("contact relay ready", zap.String("provider", cfg.Relay.Provider))

	s, err := site.New(*cfg, site.Deps{
		Content: c,
		Relay:   rl,
		Store:   db,
		Metrics: metrics.New(),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("site build failed", zap.Error(err))
		return err
	}
	defer s.Close()

	go runCleanup(ctx, db, logger)

	return serve(ctx, cfg, s.Handler(), logger)
}

// serve runs the HTTP server until ctx is canceled, then drains it.
func serve(ctx context.Context, cfg *config.Config, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// the contact POST waits on the relay
		WriteTimeout: relay.MaxWait(*cfg) + 15*time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	if stdlog, err := zap.NewStdLogAt(logger, zapcore.WarnLevel); err == nil {
		srv.ErrorLog = stdlog
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited with error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// runCleanup removes records past retention now and then once a day.
func runCleanup(ctx context.Context, db *store.Store, logger *zap.Logger) {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()
	for {
		n, err := db.Cleanup(ctx, store.DefaultRetention)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Error("Error cleaning up old visitor data", zap.Error(err))
		case n > 0:
			logger.Info("Privacy cleanup: removed records older than 12 months", zap.Int64("rows", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
