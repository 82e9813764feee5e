package api

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

	"github.com/labstack/echo/v4"
)

type stubAPI struct {
	snap    *models.MarketSnapshot
	tickers models.TickerMap
}

func (s *stubAPI) Status(context.Context) (*models.MarketSnapshot, error) {
	cp := *s.snap
	return &cp, nil
}

func (s *stubAPI) Tickers(context.Context) (models.TickerMap, error) {
	return s.tickers, nil
}

func (s *stubAPI) RSISnapshot(context.Context) ([]models.RSIReading, error) {
	return []models.RSIReading{{Symbol: "BTCUSDT", RSI: 55}}, nil
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

func (s *stubAPI) Login(_ context.Context, username, _ string) (*models.AuthResult, error) {
	return &models.AuthResult{Token: "tok", User: models.User{Username: username}}, nil
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

func newTestHandler() (*echo.Echo, *session.Manager) {
	sess := session.NewManager()
	api := &stubAPI{
		snap:    &models.MarketSnapshot{Symbol: "BTCUSDT", Price: 50000},
		tickers: models.TickerMap{"BTCUSDT": 50000},
	}
	dash := usecase.NewDashboard(
		api,
		reconcile.NewStore(),
		chart.NewEngine(chart.NewMemoryFactory(), logger.Nop()),
		nopSink{},
		repository.NopArchive{},
		cache.NewMemoryCache(),
		nopMetrics{},
		sess,
		logger.Nop(),
		30*time.Second,
		5*time.Second,
	)

	e := echo.New()
	NewDashboardEchoHandler(logger.Nop(), dash, sess).RegisterRoutes(e)
	return e, sess
}

func doJSON(e *echo.Echo, method, path, body string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var envelope map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	return rec.Code, envelope
}

func TestRequiresSession(t *testing.T) {
	e, _ := newTestHandler()

	_, env := doJSON(e, "GET", "/api/state", "")
	if env["status"] != float64(401) {
		t.Fatalf("expected 401 envelope, got %v", env)
	}
}

func TestLoginThenState(t *testing.T) {
	e, sess := newTestHandler()

	_, env := doJSON(e, "POST", "/api/auth/login", `{"username":"ana","password":"secret"}`)
	if env["status"] != float64(200) {
		t.Fatalf("expected login success, got %v", env)
	}
	if !sess.Active() {
		t.Fatalf("expected session established")
	}

	// no poll has happened yet
	_, env = doJSON(e, "GET", "/api/state", "")
	if env["status"] != float64(404) {
		t.Fatalf("expected 404 before first snapshot, got %v", env)
	}

	_, env = doJSON(e, "POST", "/api/start", "")
	if env["status"] != float64(200) {
		t.Fatalf("expected start success, got %v", env)
	}

	// start re-polls, so state exists now
	_, env = doJSON(e, "GET", "/api/state", "")
	if env["status"] != float64(200) {
		t.Fatalf("expected state after start, got %v", env)
	}
}

func TestBuyValidatesQuantity(t *testing.T) {
	e, sess := newTestHandler()
	sess.Establish(&models.AuthResult{Token: "tok"})

	_, env := doJSON(e, "POST", "/api/buy", `{"quantity":-1}`)
	if env["status"] != float64(400) {
		t.Fatalf("expected validation failure, got %v", env)
	}

	_, env = doJSON(e, "POST", "/api/buy", `{"quantity":0.5}`)
	if env["status"] != float64(200) {
		t.Fatalf("expected buy success, got %v", env)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	e, sess := newTestHandler()
	sess.Establish(&models.AuthResult{Token: "tok", User: models.User{Username: "ana"}})

	_, env := doJSON(e, "POST", "/api/auth/logout", "")
	if env["status"] != float64(200) {
		t.Fatalf("expected logout success, got %v", env)
	}
	if sess.Active() {
		t.Fatalf("expected session cleared")
	}
}
