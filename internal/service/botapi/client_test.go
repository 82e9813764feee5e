package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	httpx "MarketDeck/pkg/http"
)

func newTestClient(url string) *Client {
	hc := httpx.NewClient(httpx.WithTokenSource(func() string { return "test-token" }))
	return New(url, hc).(*Client)
}

func TestStatusDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","price":50000,"balance":1200.5,"trades":[{"time":"2024-10-10 10:10:10","type":"BUY"}]}`))
	}))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Symbol != "BTCUSDT" || snap.Price != 50000 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Trades) != 1 || !snap.Trades[0].IsBuy() {
		t.Fatalf("unexpected trades %+v", snap.Trades)
	}
}

func TestSessionExpiredOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Status(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestBuyQuantityBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	res, err := c.Buy(context.Background(), 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected success, got %+v", res)
	}
	if got := body["quantity"]; got != 0.5 {
		t.Fatalf("expected quantity 0.5, got %v", got)
	}

	if _, err := c.Buy(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := body["quantity"]; ok {
		t.Fatalf("expected no quantity for default buy, got %v", body)
	}
}

func TestLoginSkipsAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no auth header, got %q", got)
		}
		w.Write([]byte(`{"token":"fresh","user":{"id":7,"username":"ana","is_testnet":true}}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Login(context.Background(), "ana", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Token != "fresh" || res.User.Username != "ana" || !res.User.IsTestnet {
		t.Fatalf("unexpected auth result %+v", res)
	}
}

func TestTickersMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"BTCUSDT":50000.5,"SOLUSDT":145.2}`))
	}))
	defer srv.Close()

	tickers, err := newTestClient(srv.URL).Tickers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tickers["SOLUSDT"] != 145.2 {
		t.Fatalf("unexpected tickers %+v", tickers)
	}
}
