package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketDeck/internal/chart"
	"MarketDeck/internal/domain/models"
	"MarketDeck/internal/reconcile"
	"MarketDeck/internal/repository"
	"MarketDeck/internal/service/session"
	"MarketDeck/pkg/cache"
	"MarketDeck/pkg/logger"
)

type fakeAPI struct {
	mu        sync.Mutex
	snap      *models.MarketSnapshot
	statusErr error
	tickers   models.TickerMap
	readings  []models.RSIReading
	statusN   int
	tickersN  int
	buyN      int
}

func (f *fakeAPI) setSnapshot(s *models.MarketSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = s
}

func (f *fakeAPI) Status(context.Context) (*models.MarketSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusN++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	cp := *f.snap
	return &cp, nil
}

func (f *fakeAPI) Tickers(context.Context) (models.TickerMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickersN++
	return f.tickers, nil
}

func (f *fakeAPI) RSISnapshot(context.Context) ([]models.RSIReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readings, nil
}

func (f *fakeAPI) Start(context.Context) (*models.ActionResult, error) {
	return &models.ActionResult{Status: "success"}, nil
}

func (f *fakeAPI) Stop(context.Context) (*models.ActionResult, error) {
	return &models.ActionResult{Status: "success"}, nil
}

func (f *fakeAPI) Buy(context.Context, float64) (*models.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buyN++
	return &models.ActionResult{Status: "success"}, nil
}

func (f *fakeAPI) Sell(context.Context, float64) (*models.ActionResult, error) {
	return &models.ActionResult{Status: "success"}, nil
}

func (f *fakeAPI) ResetPosition(context.Context) error                  { return nil }
func (f *fakeAPI) ResetPnL(context.Context) error                       { return nil }
func (f *fakeAPI) UpdateSettings(context.Context, map[string]any) error { return nil }

func (f *fakeAPI) Login(context.Context, string, string) (*models.AuthResult, error) {
	return &models.AuthResult{Token: "tok", User: models.User{Username: "ana"}}, nil
}

func (f *fakeAPI) Register(context.Context, string, string) (*models.AuthResult, error) {
	return &models.AuthResult{Token: "tok"}, nil
}

func (f *fakeAPI) Logout(context.Context) error { return nil }

type fakeSink struct {
	mu   sync.Mutex
	seen []*models.TradeNotification
}

func (s *fakeSink) Notify(_ context.Context, n *models.TradeNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
	return nil
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) all() []*models.TradeNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.TradeNotification{}, s.seen...)
}

func newTestDashboard(api *fakeAPI, sink *fakeSink) (*Dashboard, *session.Manager) {
	sess := session.NewManager()
	engine := chart.NewEngine(chart.NewMemoryFactory(), logger.Nop())
	return NewDashboard(
		api,
		reconcile.NewStore(),
		engine,
		sink,
		repository.NopArchive{},
		cache.NewMemoryCache(),
		nopMetrics{},
		sess,
		logger.Nop(),
		30*time.Second,
		5*time.Second,
	), sess
}

type nopMetrics struct{}

func (nopMetrics) RecordPoll(string)               {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

func TestPollStatusNotifiesNewTrade(t *testing.T) {
	api := &fakeAPI{snap: &models.MarketSnapshot{
		Symbol: "BTCUSDT", Price: 50000, Balance: 1000,
		Trades: []models.TradeRecord{{Time: "2024-10-10 10:00:00", Type: "BUY", Qty: 0.1, Price: 50000}},
	}}
	sink := &fakeSink{}
	dash, _ := newTestDashboard(api, sink)

	var broadcasts int
	dash.Subscribe(func(models.DashboardState) { broadcasts++ })

	// first cycle establishes the baseline, no notification
	if _, err := dash.PollStatus(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Fatalf("expected no notification on first cycle")
	}

	api.setSnapshot(&models.MarketSnapshot{
		Symbol: "BTCUSDT", Price: 50100, Balance: 1000,
		Trades: []models.TradeRecord{
			{Time: "2024-10-10 10:01:00", Type: "SELL", Qty: 0.1, Price: 50100},
			{Time: "2024-10-10 10:00:00", Type: "BUY", Qty: 0.1, Price: 50000},
		},
	})
	if _, err := dash.PollStatus(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := sink.all()
	if len(seen) != 1 {
		t.Fatalf("expected one notification, got %d", len(seen))
	}
	if seen[0].Buy || seen[0].Manual {
		t.Fatalf("unexpected notification %+v", seen[0])
	}
	if broadcasts != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", broadcasts)
	}
}

func TestManualBuyMarkedManual(t *testing.T) {
	api := &fakeAPI{snap: &models.MarketSnapshot{Symbol: "BTCUSDT", Price: 50000}}
	sink := &fakeSink{}
	dash, _ := newTestDashboard(api, sink)

	res, err := dash.ManualBuy(context.Background(), 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if api.buyN != 1 {
		t.Fatalf("expected one buy call, got %d", api.buyN)
	}

	seen := sink.all()
	if len(seen) != 1 || !seen[0].Manual || !seen[0].Buy || seen[0].Qty != 0.25 {
		t.Fatalf("unexpected notifications %+v", seen)
	}
	// action triggers an immediate re-poll
	if api.statusN != 1 {
		t.Fatalf("expected re-poll after buy, got %d status calls", api.statusN)
	}
}

func TestTickersServedFromCache(t *testing.T) {
	api := &fakeAPI{
		snap:    &models.MarketSnapshot{},
		tickers: models.TickerMap{"BTCUSDT": 50000},
	}
	dash, _ := newTestDashboard(api, &fakeSink{})

	if _, err := dash.PollTickers(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api.mu.Lock()
	api.tickers = models.TickerMap{"BTCUSDT": 99999}
	api.mu.Unlock()

	tickers, err := dash.Tickers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tickers["BTCUSDT"] != 50000 {
		t.Fatalf("expected cached price, got %v", tickers["BTCUSDT"])
	}
	if api.tickersN != 1 {
		t.Fatalf("expected single upstream call, got %d", api.tickersN)
	}
}

func TestLoginEstablishesSession(t *testing.T) {
	api := &fakeAPI{snap: &models.MarketSnapshot{}}
	dash, sess := newTestDashboard(api, &fakeSink{})

	if _, err := dash.Login(context.Background(), "ana", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sess.Active() {
		t.Fatalf("expected active session after login")
	}

	if _, err := dash.PollStatus(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := dash.State(); !ok {
		t.Fatalf("expected state after poll")
	}

	if err := dash.Logout(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Active() {
		t.Fatalf("expected inactive session after logout")
	}
	if _, ok := dash.State(); ok {
		t.Fatalf("expected store reset on logout")
	}
}
