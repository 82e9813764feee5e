package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketDeck/internal/chart"
	"MarketDeck/internal/domain/models"
	drepo "MarketDeck/internal/domain/repository"
	"MarketDeck/internal/reconcile"
	"MarketDeck/internal/service/botapi"
	"MarketDeck/internal/service/session"
	"MarketDeck/pkg/cache"
	"MarketDeck/pkg/logger"
)

const (
	cacheKeyTickers = "tickers"
	cacheKeyRSI     = "rsi_snapshot"
)

// Dashboard orchestrates one poll-reconcile-render cycle and fans the result
// out to subscribers, the notification sink and the archive. It also proxies
// control and trade actions to the bot.
type Dashboard struct {
	api      drepo.TradingAPI
	store    *reconcile.Store
	engine   *chart.Engine
	notifier drepo.NotificationSink
	archive  drepo.SnapshotArchive
	cache    cache.Service
	metrics  drepo.Metrics
	session  *session.Manager
	log      *logger.Logger

	tickerTTL time.Duration
	rsiTTL    time.Duration

	mu     sync.Mutex
	nextID int
	subs   map[int]func(models.DashboardState)
}

// NewDashboard wires the orchestrator. All collaborators are required except
// that sink/archive may be the log/nop variants.
func NewDashboard(
	api drepo.TradingAPI,
	store *reconcile.Store,
	engine *chart.Engine,
	notifier drepo.NotificationSink,
	archive drepo.SnapshotArchive,
	cacheSvc cache.Service,
	metrics drepo.Metrics,
	sess *session.Manager,
	log *logger.Logger,
	tickerTTL, rsiTTL time.Duration,
) *Dashboard {
	return &Dashboard{
		api:       api,
		store:     store,
		engine:    engine,
		notifier:  notifier,
		archive:   archive,
		cache:     cacheSvc,
		metrics:   metrics,
		session:   sess,
		log:       log,
		tickerTTL: tickerTTL,
		rsiTTL:    rsiTTL,
		subs:      make(map[int]func(models.DashboardState)),
	}
}

// Subscribe registers a state listener and returns its cancel func. Listeners
// run synchronously on the polling goroutine and must not block.
func (d *Dashboard) Subscribe(fn func(models.DashboardState)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

func (d *Dashboard) broadcast(state models.DashboardState) {
	d.mu.Lock()
	fns := make([]func(models.DashboardState), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// PollStatus runs one status cycle: fetch, reconcile, render, notify,
// archive, broadcast. A session-expired error invalidates the session so the
// scheduler tears the loops down.
func (d *Dashboard) PollStatus(ctx context.Context) (models.DashboardState, error) {
	start := time.Now()
	snap, err := d.api.Status(ctx)
	if err != nil {
		d.metrics.RecordError("status")
		if errors.Is(err, botapi.ErrSessionExpired) {
			d.log.Warn("session expired during status poll")
			d.session.Invalidate()
		}
		return models.DashboardState{}, fmt.Errorf("poll status: %w", err)
	}

	state := d.store.Apply(snap)
	d.engine.ApplyData(snap.History, &snap.Prediction, snap.EntryPrice)

	d.metrics.RecordPoll("status")
	d.metrics.RecordLatency("status", time.Since(start).Seconds())
	if snap.Symbol != "" && snap.Price > 0 {
		d.metrics.RecordLastPrice(snap.Symbol, snap.Price)
	}

	if n := state.Derived.Notification; n != nil {
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.metrics.RecordError("notify")
			d.log.Warn("notification publish failed", logger.Error(err))
		}
	}

	if err := d.archive.Archive(ctx, snap); err != nil {
		d.metrics.RecordError("archive")
		d.log.Warn("snapshot archive failed", logger.Error(err))
	}
	if err := d.archive.ArchiveTrades(ctx, snap.Trades); err != nil {
		d.metrics.RecordError("archive")
		d.log.Warn("trade archive failed", logger.Error(err))
	}

	d.broadcast(state)
	return state, nil
}

// PollTickers refreshes the cached symbol price map.
func (d *Dashboard) PollTickers(ctx context.Context) (models.TickerMap, error) {
	tickers, err := d.api.Tickers(ctx)
	if err != nil {
		d.metrics.RecordError("tickers")
		if errors.Is(err, botapi.ErrSessionExpired) {
			d.session.Invalidate()
		}
		return nil, fmt.Errorf("poll tickers: %w", err)
	}
	d.metrics.RecordPoll("tickers")
	if err := d.cache.Set(ctx, cacheKeyTickers, tickers, d.tickerTTL); err != nil {
		d.log.Warn("ticker cache set failed", logger.Error(err))
	}
	return tickers, nil
}

// PollOscillator refreshes the cached multi-symbol RSI snapshot.
func (d *Dashboard) PollOscillator(ctx context.Context) ([]models.RSIReading, error) {
	readings, err := d.api.RSISnapshot(ctx)
	if err != nil {
		d.metrics.RecordError("oscillator")
		if errors.Is(err, botapi.ErrSessionExpired) {
			d.session.Invalidate()
		}
		return nil, fmt.Errorf("poll oscillator: %w", err)
	}
	d.metrics.RecordPoll("oscillator")
	if err := d.cache.Set(ctx, cacheKeyRSI, readings, d.rsiTTL); err != nil {
		d.log.Warn("rsi cache set failed", logger.Error(err))
	}
	return readings, nil
}

// State returns the last accepted dashboard state.
func (d *Dashboard) State() (models.DashboardState, bool) {
	return d.store.State()
}

// Tickers serves the ticker map from cache, falling back to a live poll.
func (d *Dashboard) Tickers(ctx context.Context) (models.TickerMap, error) {
	var tickers models.TickerMap
	if err := d.cache.Get(ctx, cacheKeyTickers, &tickers); err == nil {
		return tickers, nil
	}
	return d.PollTickers(ctx)
}

// RSISnapshot serves oscillator readings from cache, falling back to a live
// poll.
func (d *Dashboard) RSISnapshot(ctx context.Context) ([]models.RSIReading, error) {
	var readings []models.RSIReading
	if err := d.cache.Get(ctx, cacheKeyRSI, &readings); err == nil {
		return readings, nil
	}
	return d.PollOscillator(ctx)
}

// StartEngine asks the bot to trade and re-polls so clients see the
// transition immediately.
func (d *Dashboard) StartEngine(ctx context.Context) (*models.ActionResult, error) {
	res, err := d.api.Start(ctx)
	if err != nil {
		return nil, d.actionErr("start", err)
	}
	d.repoll(ctx)
	return res, nil
}

// StopEngine halts the bot.
func (d *Dashboard) StopEngine(ctx context.Context) (*models.ActionResult, error) {
	res, err := d.api.Stop(ctx)
	if err != nil {
		return nil, d.actionErr("stop", err)
	}
	d.repoll(ctx)
	return res, nil
}

// ManualBuy places a market buy and publishes a manual notification on
// success. The reconciler will see the trade on the next poll but skips
// manual types, so this is the only emission.
func (d *Dashboard) ManualBuy(ctx context.Context, quantity float64) (*models.ActionResult, error) {
	return d.manualTrade(ctx, true, quantity)
}

// ManualSell places a market sell.
func (d *Dashboard) ManualSell(ctx context.Context, quantity float64) (*models.ActionResult, error) {
	return d.manualTrade(ctx, false, quantity)
}

func (d *Dashboard) manualTrade(ctx context.Context, buy bool, quantity float64) (*models.ActionResult, error) {
	op := "sell"
	call := d.api.Sell
	if buy {
		op = "buy"
		call = d.api.Buy
	}

	res, err := call(ctx, quantity)
	if err != nil {
		return nil, d.actionErr(op, err)
	}

	if res.OK() {
		state, _ := d.store.State()
		n := &models.TradeNotification{
			Buy:    buy,
			Qty:    quantity,
			Symbol: state.Snapshot.Symbol,
			Price:  state.Snapshot.Price,
			Time:   time.Now().UTC().Format(time.RFC3339),
			Manual: true,
		}
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.log.Warn("manual trade notification failed", logger.Error(err))
		}
	}

	d.repoll(ctx)
	return res, nil
}

// ResetPosition clears the bot's open position.
func (d *Dashboard) ResetPosition(ctx context.Context) error {
	if err := d.api.ResetPosition(ctx); err != nil {
		return d.actionErr("reset", err)
	}
	d.repoll(ctx)
	return nil
}

// ResetPnL zeroes the bot's PnL counters.
func (d *Dashboard) ResetPnL(ctx context.Context) error {
	if err := d.api.ResetPnL(ctx); err != nil {
		return d.actionErr("reset_pnl", err)
	}
	d.repoll(ctx)
	return nil
}

// UpdateSettings merge-patches strategy settings.
func (d *Dashboard) UpdateSettings(ctx context.Context, patch map[string]any) error {
	if err := d.api.UpdateSettings(ctx, patch); err != nil {
		return d.actionErr("settings", err)
	}
	d.repoll(ctx)
	return nil
}

// Login authenticates against the bot and establishes the local session.
func (d *Dashboard) Login(ctx context.Context, username, password string) (*models.AuthResult, error) {
	res, err := d.api.Login(ctx, username, password)
	if err != nil {
		d.metrics.RecordError("login")
		return nil, err
	}
	d.session.Establish(res)
	return res, nil
}

// Register creates an account and establishes the session.
func (d *Dashboard) Register(ctx context.Context, username, password string) (*models.AuthResult, error) {
	res, err := d.api.Register(ctx, username, password)
	if err != nil {
		d.metrics.RecordError("register")
		return nil, err
	}
	d.session.Establish(res)
	return res, nil
}

// Logout invalidates the session locally regardless of what the bot says.
func (d *Dashboard) Logout(ctx context.Context) error {
	err := d.api.Logout(ctx)
	d.session.Invalidate()
	d.store.Reset()
	if err != nil && !errors.Is(err, botapi.ErrSessionExpired) {
		return err
	}
	return nil
}

// actionErr records the error and invalidates the session on expiry.
func (d *Dashboard) actionErr(op string, err error) error {
	d.metrics.RecordError(op)
	if errors.Is(err, botapi.ErrSessionExpired) {
		d.session.Invalidate()
	}
	return err
}

// repoll refreshes state after an action so the change is visible without
// waiting for the next tick. Errors are already logged inside PollStatus.
func (d *Dashboard) repoll(ctx context.Context) {
	if _, err := d.PollStatus(ctx); err != nil {
		d.log.Debug("post-action repoll failed", logger.Error(err))
	}
}
