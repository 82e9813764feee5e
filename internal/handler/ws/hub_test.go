package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketDeck/internal/chart"
	"MarketDeck/internal/domain/models"
	"MarketDeck/internal/reconcile"
	"MarketDeck/internal/repository"
	"MarketDeck/internal/service/session"
	"MarketDeck/internal/usecase"
	"MarketDeck/pkg/cache"
	"MarketDeck/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type stubAPI struct{ snap *models.MarketSnapshot }

func (s *stubAPI) Status(context.Context) (*models.MarketSnapshot, error) {
	cp := *s.snap
	return &cp, nil
}

func (s *stubAPI) Tickers(context.Context) (models.TickerMap, error) {
	return models.TickerMap{}, nil
}

func (s *stubAPI) RSISnapshot(context.Context) ([]models.RSIReading, error) {
	return nil, nil
}

func (s *stubAPI) Start(context.Context) (*models.ActionResult, error) {
	return &models.ActionResult{Status: "success"}, nil
}

func (s *stubAPI) Stop(context.Context) (*models.ActionResult, error) {
	return &models.ActionResult{Status: "success"}, nil
}

func (s *stubAPI) Buy(context.Context, float64) (*models.ActionResult, error) {
	return &models.ActionResult{Status: "success"}, nil
}

func (s *stubAPI) Sell(context.Context, float64) (*models.ActionResult, error) {
	return &models.ActionResult{Status: "success"}, nil
}

func (s *stubAPI) ResetPosition(context.Context) error                  { return nil }
func (s *stubAPI) ResetPnL(context.Context) error                       { return nil }
func (s *stubAPI) UpdateSettings(context.Context, map[string]any) error { return nil }

func (s *stubAPI) Login(context.Context, string, string) (*models.AuthResult, error) {
	return &models.AuthResult{Token: "tok"}, nil
}

func (s *stubAPI) Register(context.Context, string, string) (*models.AuthResult, error) {
	return &models.AuthResult{Token: "tok"}, nil
}

func (s *stubAPI) Logout(context.Context) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordPoll(string)               {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

type nopSink struct{}

func (nopSink) Notify(context.Context, *models.TradeNotification) error { return nil }
func (nopSink) Close() error                                            { return nil }

func newTestHub(t *testing.T) (*Hub, *usecase.Dashboard, *chart.Engine, *httptest.Server) {
	t.Helper()
	engine := chart.NewEngine(chart.NewMemoryFactory(), logger.Nop())
	dash := usecase.NewDashboard(
		&stubAPI{snap: &models.MarketSnapshot{
			Symbol: "BTCUSDT",
			Price:  50000,
			History: []models.CandlePoint{
				{Time: 100, Open: 1, High: 2, Low: 1, Close: 2, RSI: 40},
				{Time: 160, Open: 2, High: 3, Low: 2, Close: 3, RSI: 45},
			},
		}},
		reconcile.NewStore(),
		engine,
		nopSink{},
		repository.NopArchive{},
		cache.NewMemoryCache(),
		nopMetrics{},
		session.NewManager(),
		logger.Nop(),
		30*time.Second,
		5*time.Second,
	)

	hub := NewHub(dash, engine, logger.Nop())
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, dash, engine, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f.Type, f.Data
}

// waitFrame reads until a frame of the wanted type arrives.
func waitFrame(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, data := readFrame(t, conn)
		if typ == want {
			return data
		}
	}
	t.Fatalf("frame %q never arrived", want)
	return nil
}

func TestBroadcastOnPoll(t *testing.T) {
	_, dash, _, srv := newTestHub(t)
	conn := dial(t, srv)

	if _, err := dash.PollStatus(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	data := waitFrame(t, conn, "state")
	var state models.DashboardState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Snapshot.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected state %+v", state)
	}

	data = waitFrame(t, conn, "charts")
	var charts chartsPayload
	if err := json.Unmarshal(data, &charts); err != nil {
		t.Fatalf("decode charts: %v", err)
	}
	if len(charts.Primary.Candles) == 0 || len(charts.Primary.Candles[0].Bars) != 2 {
		t.Fatalf("unexpected chart state %+v", charts.Primary)
	}
}

func TestCrosshairTooltip(t *testing.T) {
	_, dash, _, srv := newTestHub(t)
	if _, err := dash.PollStatus(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	conn := dial(t, srv)
	// drain the late-join frames
	waitFrame(t, conn, "charts")

	if err := conn.WriteJSON(map[string]any{"type": "crosshair", "x": 10, "y": 10, "time": 100}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data := waitFrame(t, conn, "tooltip")
	var tt chart.Tooltip
	if err := json.Unmarshal(data, &tt); err != nil {
		t.Fatalf("decode tooltip: %v", err)
	}
	if tt.Time != 100 || tt.Oscillator == nil || *tt.Oscillator != 40 {
		t.Fatalf("unexpected tooltip %+v", tt)
	}

	// no candle at this time: tooltip suppressed, null payload
	if err := conn.WriteJSON(map[string]any{"type": "crosshair", "x": 10, "y": 10, "time": 130}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data = waitFrame(t, conn, "tooltip")
	if string(data) != "null" {
		t.Fatalf("expected null tooltip, got %s", data)
	}
}

func TestResizeDrivesSurfaces(t *testing.T) {
	_, _, engine, srv := newTestHub(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(map[string]any{"type": "resize", "width": 1024}); err != nil {
		t.Fatalf("write: %v", err)
	}

	data := waitFrame(t, conn, "charts")
	var charts chartsPayload
	if err := json.Unmarshal(data, &charts); err != nil {
		t.Fatalf("decode charts: %v", err)
	}
	if charts.Primary.Width != 1024 || charts.Secondary.Width != 1024 {
		t.Fatalf("expected synced widths, got %d/%d", charts.Primary.Width, charts.Secondary.Width)
	}

	primary, secondary, ok := engine.RenderState()
	if !ok || primary.Width != 1024 || secondary.Width != 1024 {
		t.Fatalf("engine state not resized")
	}
}
