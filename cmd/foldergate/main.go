package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/foldergate/foldergate/internal/access"
	"github.com/foldergate/foldergate/internal/config"
	"github.com/foldergate/foldergate/internal/credentials"
	"github.com/foldergate/foldergate/internal/engine"
	"github.com/foldergate/foldergate/internal/events"
	"github.com/foldergate/foldergate/internal/gateway"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
	"github.com/foldergate/foldergate/internal/provider"
	"github.com/foldergate/foldergate/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("foldergate starting", zap.Stringer("config", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	creds := credentials.Open(cfg.CredentialsFile)
	logging.Info("credential store ready", zap.String("path", creds.Path()))

	dir, err := provider.New(ctx, cfg)
	if err != nil {
		logging.Fatal("directory provider init failed", zap.Error(err), logging.Provider(cfg.Provider))
	}
	defer dir.Close()
	logging.Info("directory provider ready", logging.Provider(dir.Type()))

	broadcaster := events.NewBroadcaster()

	sessions := session.NewStore(cfg.SessionIdleTimeout,
		session.WithOnExpire(func(s *session.Session) {
			broadcaster.Publish(events.Event{Type: events.EventSessionExpired, UserID: s.UserID()})
		}))
	go sessions.Run(ctx, cfg.SessionSweepInterval)

	limiter := access.NewLimiter(cfg.SecretAttemptsPerMinute)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(time.Hour)
			}
		}
	}()

	eng := engine.New(engine.Deps{
		Sessions:    sessions,
		Credentials: creds,
		Provider:    dir,
		Limiter:     limiter,
		Events:      broadcaster,
	})
	srv := gateway.NewServer(eng, gateway.NewAuth(cfg.GatewayJWTSecret), broadcaster, cfg.MaxUploadSize)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx)
		}
	}()

	logging.Info("gateway listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
	logging.Info("server stopped")
}
