package di

import (
	"context"
	"fmt"
	"time"

	"MarketDeck/internal/chart"
	drepo "MarketDeck/internal/domain/repository"
	"MarketDeck/internal/handler/api"
	"MarketDeck/internal/handler/ws"
	"MarketDeck/internal/reconcile"
	internalrepo "MarketDeck/internal/repository"
	"MarketDeck/internal/service/botapi"
	"MarketDeck/internal/service/session"
	"MarketDeck/internal/usecase"
	"MarketDeck/pkg/cache"
	pkgch "MarketDeck/pkg/clickhouse"
	"MarketDeck/pkg/config"
	xhttp "MarketDeck/pkg/http"
	pkgkafka "MarketDeck/pkg/kafka"
	"MarketDeck/pkg/logger"
	"MarketDeck/pkg/metrics"
	"MarketDeck/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideSessionManager creates the in-memory session holder.
func ProvideSessionManager() *session.Manager {
	return session.NewManager()
}

// ProvideHTTPClient creates the outbound HTTP client. The token source reads
// the session manager, so every authenticated call follows the current
// session without further wiring.
func ProvideHTTPClient(cfg *config.Config, sess *session.Manager) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.BotAPI.Timeout),
		xhttp.WithTokenSource(sess.Token),
	)
}

// ProvideTradingAPI creates the bot REST client.
func ProvideTradingAPI(cfg *config.Config, hc *xhttp.Client) drepo.TradingAPI {
	return botapi.New(cfg.BotAPI.BaseURL, hc)
}

// ProvideStore creates the snapshot store.
func ProvideStore() *reconcile.Store {
	return reconcile.NewStore()
}

// ProvideChartEngine creates the dual-surface chart engine over in-memory
// surfaces; the WebSocket hub serializes their state to browsers.
func ProvideChartEngine(log *logger.Logger) *chart.Engine {
	return chart.NewEngine(chart.NewMemoryFactory(), log)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideCache creates the layered cache when Redis is configured, or a
// process-local cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Redis.Enabled {
		redis, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return cache.NewLayeredCache(redis, cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
}

// ProvideClickHouseClient creates the archive's ClickHouse client, or nil
// when archiving is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	ch := cfg.Archive.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithAsyncInsert(ch.AsyncInsert),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideArchive creates the snapshot archive, falling back to a no-op sink
// when archiving is disabled.
func ProvideArchive(chClient *pkgch.Client) (drepo.SnapshotArchive, error) {
	if chClient == nil {
		return internalrepo.NopArchive{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	archive, err := internalrepo.NewClickHouseArchive(ctx, chClient.DB())
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return archive, nil
}

// ProvideNotifier creates the trade notification sink: Kafka when brokers
// are configured, the application log otherwise.
func ProvideNotifier(cfg *config.Config, log *logger.Logger) (drepo.NotificationSink, error) {
	if cfg.Notifications.Backend != "kafka" {
		return internalrepo.NewLogNotifier(log), nil
	}
	k := cfg.Notifications.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithWriteTimeout(k.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaNotifier(producer, k.Topic), nil
}

// ProvideDashboard wires the orchestrator.
func ProvideDashboard(
	tradingAPI drepo.TradingAPI,
	store *reconcile.Store,
	engine *chart.Engine,
	notifier drepo.NotificationSink,
	archive drepo.SnapshotArchive,
	cacheSvc cache.Service,
	m drepo.Metrics,
	sess *session.Manager,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.Dashboard {
	return usecase.NewDashboard(
		tradingAPI, store, engine, notifier, archive, cacheSvc, m, sess, log,
		cfg.Cache.TickerTTL, cfg.Cache.RSITTL,
	)
}

// ProvideScheduler creates the polling scheduler.
func ProvideScheduler(dash *usecase.Dashboard, cfg *config.Config, log *logger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(dash, usecase.Intervals{
		Status:     cfg.Poll.StatusInterval,
		Oscillator: cfg.Poll.OscillatorInterval,
		Tickers:    cfg.Poll.TickersInterval,
	}, log)
}

// ProvideHub creates the WebSocket hub.
func ProvideHub(dash *usecase.Dashboard, engine *chart.Engine, log *logger.Logger) *ws.Hub {
	return ws.NewHub(dash, engine, log)
}

// ProvideAPIHandler creates the REST handler.
func ProvideAPIHandler(log *logger.Logger, dash *usecase.Dashboard, sess *session.Manager) *api.DashboardEchoHandler {
	return api.NewDashboardEchoHandler(log, dash, sess)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	sess *session.Manager,
	sched *usecase.Scheduler,
	engine *chart.Engine,
	hub *ws.Hub,
	apiHandler *api.DashboardEchoHandler,
	notifier drepo.NotificationSink,
	archive drepo.SnapshotArchive,
	cacheSvc cache.Service,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, log, sess, sched, engine, hub, apiHandler, notifier, archive, cacheSvc, chClient)
}
