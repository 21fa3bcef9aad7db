package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/middleware"
	"github.com/uxsense/backend/retrieval"
	"github.com/uxsense/backend/server"
	"github.com/uxsense/backend/session"
	"github.com/uxsense/backend/stats"
	"github.com/uxsense/backend/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func setupGinMode() {
	mode := cfg.Server.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
}

// newAudit returns nil when no API key is configured so that the session
// reports a provider configuration error on every analysis.
func newAudit(ctx context.Context, recorder analyzer.Recorder) (session.AuditService, error) {
	if !cfg.HasProvider() {
		logger.Warn("no provider API key configured, analyses will fail",
			zap.String("hint", "set GEMINI_API_KEY"))
		return nil, nil
	}

	audit, err := newAnalyzer(ctx, recorder)
	if err != nil {
		return nil, err
	}
	return audit, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	setupGinMode()

	tracker, err := stats.NewTracker(cfg.Data.Dir, logger)
	if err != nil {
		return err
	}
	defer tracker.Shutdown()

	kv, err := store.Open(cfg.Store.Type, cfg.Store.DSN, cfg.Data.Dir)
	if err != nil {
		return err
	}
	defer kv.Close()

	audit, err := newAudit(ctx, tracker)
	if err != nil {
		return err
	}
	retriever := retrieval.NewSimulated(cfg.Retrieval.Delay, nil, logger)

	manager := session.NewManager(kv, audit, retriever, tracker, logger)
	if identity, err := manager.Restore(ctx); err != nil {
		return err
	} else if identity != nil {
		logger.Info("resuming session", zap.String("email", identity.Email))
	}

	srv, err := server.New(server.Options{
		Manager:     manager,
		Stats:       tracker,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimit.Rate, float64(cfg.RateLimit.Burst)),
		Logger:      logger,
		Model:       cfg.Provider.Model,
		DevMode:     cfg.DevMode,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", "http://localhost:"+cfg.Server.Port),
			zap.String("model", cfg.Provider.Model),
			zap.String("store", cfg.Store.Type))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("server exiting")
	return nil
}
