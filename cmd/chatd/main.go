package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/stupiduntilnot/docchat/internal/app"
	"github.com/stupiduntilnot/docchat/internal/config"
	"github.com/stupiduntilnot/docchat/internal/logging"
	"github.com/stupiduntilnot/docchat/internal/metrics"
	"github.com/stupiduntilnot/docchat/internal/session"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logrus.Fatalf("[chatd] %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("role", "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, "server", log)
	if err != nil {
		log.WithError(err).Fatal("failed to build app")
	}
	defer a.Close()

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		log.WithError(err).Fatal("invalid rate limit")
	}
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: newRouter(&server{
			handler:  a.Handler,
			sessions: a.Sessions,
			limiter:  limiter.New(memory.NewStore(), rate),
			logger:   log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if mem, ok := a.Sessions.(*session.MemoryStore); ok && cfg.SessionTTL > 0 {
		go sweepSessions(ctx, mem, cfg.SessionTTL, log)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":     srv.Addr,
		"provider": cfg.ModelProvider,
		"store":    cfg.StoreBackend,
	}).Info("chatd listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server stopped")
	}
}

func sweepSessions(ctx context.Context, mem *session.MemoryStore, ttl time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Sweep(); n > 0 {
				log.WithField("expired", n).Debug("sessions swept")
			}
			metrics.ActiveSessions.Set(float64(mem.Len()))
		}
	}
}
