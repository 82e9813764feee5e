package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketDeck/internal/chart"
	drepo "MarketDeck/internal/domain/repository"
	"MarketDeck/internal/handler/api"
	"MarketDeck/internal/handler/ws"
	"MarketDeck/internal/service/session"
	"MarketDeck/internal/usecase"
	"MarketDeck/pkg/cache"
	pkgch "MarketDeck/pkg/clickhouse"
	"MarketDeck/pkg/config"
	xhttp "MarketDeck/pkg/http"
	applogger "MarketDeck/pkg/logger"
)

// App encapsulates the entire application lifecycle: HTTP surface, polling
// scheduler, chart engine and the infrastructure sinks.
type App struct {
	cfg  *config.Config
	log  *applogger.Logger
	sess *session.Manager

	sched  *usecase.Scheduler
	engine *chart.Engine
	hub    *ws.Hub

	apiHandler *api.DashboardEchoHandler
	httpServer *xhttp.Server

	notifier drepo.NotificationSink
	archive  drepo.SnapshotArchive
	cacheSvc cache.Service
	chClient *pkgch.Client
}

// New creates an App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	sess *session.Manager,
	sched *usecase.Scheduler,
	engine *chart.Engine,
	hub *ws.Hub,
	apiHandler *api.DashboardEchoHandler,
	notifier drepo.NotificationSink,
	archive drepo.SnapshotArchive,
	cacheSvc cache.Service,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		sess:       sess,
		sched:      sched,
		engine:     engine,
		hub:        hub,
		apiHandler: apiHandler,
		notifier:   notifier,
		archive:    archive,
		cacheSvc:   cacheSvc,
		chClient:   chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(
		[]xhttp.Handler{a.apiHandler, a.hub},
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	// Polling arms itself once a session is established via the API.
	a.sched.Bind(ctx, a.sess)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("dashboard gateway started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("bot_api", a.cfg.BotAPI.BaseURL),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.hub.Close()
	a.engine.Close()

	if err := a.notifier.Close(); err != nil {
		a.log.Warn("notifier close error", applogger.Error(err))
	}
	if err := a.archive.Close(); err != nil {
		a.log.Warn("archive close error", applogger.Error(err))
	}
	if err := a.cacheSvc.Close(); err != nil {
		a.log.Warn("cache close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
