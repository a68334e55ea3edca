package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ragetrade/vaultmetrics/pkg/aggregated"
	"github.com/ragetrade/vaultmetrics/pkg/cache"
	"github.com/ragetrade/vaultmetrics/pkg/network"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	Cache    *cache.Cache
	Networks *network.Registry
	// Pool runs sampler chunk fetches and per-log reads for every computation.
	Pool pond.Pool
	// Metrics are the cached computations served by the controller.
	Metrics *aggregated.Context

	// Cron triggers the cache warm-up according to CronSpec. Nil when warm-up is disabled.
	Cron     *cron.Cron
	CronSpec string

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// SetupScheduler registers the warm-up job on a new cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, cronSpec string) error {
	logger := cronLogger{a.Logger.Sugar()}
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	a.CronSpec = cronSpec

	_, err := a.Cron.AddFunc(cronSpec, func() {
		a.Metrics.Warm(ctx)
	})
	return err
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Start()
		a.Logger.Info("Warm-up cron started", zap.String("cronSpec", a.CronSpec))
	}
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Cron != nil {
		select {
		case <-a.Cron.Stop().Done():
		case <-shutdownCtx.Done():
			a.Logger.Warn("Warm-up still running at shutdown")
		}
	}

	a.Pool.StopAndWait()
	a.Networks.Close()

	if err := a.Cache.Close(); err != nil {
		a.Logger.Error("Failed to close cache store", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// cronLogger routes scheduler messages to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
