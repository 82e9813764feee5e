package botapi

import (
	"context"
	"errors"
	"fmt"

	"MarketDeck/internal/domain/models"
	drepo "MarketDeck/internal/domain/repository"
	httpx "MarketDeck/pkg/http"
)

// ErrSessionExpired is returned when the bot rejects the session token.
// Callers stop polling and drop credentials when they see it.
var ErrSessionExpired = errors.New("botapi: session expired")

// Client implements TradingAPI over the bot's REST interface.
type Client struct {
	baseURL string
	http    *httpx.Client
}

// New creates a bot API client. The HTTP client is expected to carry a token
// source so authenticated calls pick up the current session automatically.
func New(baseURL string, hc *httpx.Client) drepo.TradingAPI {
	return &Client{baseURL: baseURL, http: hc}
}

func (c *Client) url(path string) string { return c.baseURL + path }

// get performs an authenticated GET and maps 401 to ErrSessionExpired.
func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	err := c.http.SendAndParse(ctx, &httpx.RequestOptions{
		Method: httpx.MethodGet,
		URL:    c.url(path),
	}, dest)
	return mapAuthErr(err)
}

// post performs an authenticated POST and maps 401 to ErrSessionExpired.
func (c *Client) post(ctx context.Context, path string, body, dest interface{}) error {
	err := c.http.SendAndParse(ctx, &httpx.RequestOptions{
		Method: httpx.MethodPost,
		URL:    c.url(path),
		Body:   body,
	}, dest)
	return mapAuthErr(err)
}

func mapAuthErr(err error) error {
	if errors.Is(err, httpx.ErrUnauthorized) {
		return ErrSessionExpired
	}
	return err
}

// Status fetches the current market snapshot.
func (c *Client) Status(ctx context.Context) (*models.MarketSnapshot, error) {
	var snap models.MarketSnapshot
	if err := c.get(ctx, "/api/status", &snap); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return &snap, nil
}

// Tickers fetches the symbol to last-price map.
func (c *Client) Tickers(ctx context.Context) (models.TickerMap, error) {
	var tickers models.TickerMap
	if err := c.get(ctx, "/api/tickers", &tickers); err != nil {
		return nil, fmt.Errorf("tickers: %w", err)
	}
	return tickers, nil
}

// RSISnapshot fetches oscillator readings for all monitored symbols.
func (c *Client) RSISnapshot(ctx context.Context) ([]models.RSIReading, error) {
	var readings []models.RSIReading
	if err := c.get(ctx, "/api/market/rsi-snapshot", &readings); err != nil {
		return nil, fmt.Errorf("rsi snapshot: %w", err)
	}
	return readings, nil
}

// Start asks the bot to begin trading.
func (c *Client) Start(ctx context.Context) (*models.ActionResult, error) {
	var res models.ActionResult
	if err := c.post(ctx, "/api/start", nil, &res); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return &res, nil
}

// Stop asks the bot to halt trading.
func (c *Client) Stop(ctx context.Context) (*models.ActionResult, error) {
	var res models.ActionResult
	if err := c.post(ctx, "/api/stop", nil, &res); err != nil {
		return nil, fmt.Errorf("stop: %w", err)
	}
	return &res, nil
}

// Buy places a manual market buy. Zero quantity lets the bot pick its
// configured default.
func (c *Client) Buy(ctx context.Context, quantity float64) (*models.ActionResult, error) {
	var res models.ActionResult
	if err := c.post(ctx, "/api/buy", quantityBody(quantity), &res); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	return &res, nil
}

// Sell places a manual market sell.
func (c *Client) Sell(ctx context.Context, quantity float64) (*models.ActionResult, error) {
	var res models.ActionResult
	if err := c.post(ctx, "/api/sell", quantityBody(quantity), &res); err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	return &res, nil
}

func quantityBody(quantity float64) interface{} {
	if quantity <= 0 {
		return map[string]any{}
	}
	return map[string]any{"quantity": quantity}
}

// ResetPosition clears the bot's open position state.
func (c *Client) ResetPosition(ctx context.Context) error {
	if err := c.post(ctx, "/api/reset", nil, nil); err != nil {
		return fmt.Errorf("reset position: %w", err)
	}
	return nil
}

// ResetPnL zeroes accumulated profit and loss counters.
func (c *Client) ResetPnL(ctx context.Context) error {
	if err := c.post(ctx, "/api/reset_pnl", nil, nil); err != nil {
		return fmt.Errorf("reset pnl: %w", err)
	}
	return nil
}

// UpdateSettings merge-patches the bot's strategy settings.
func (c *Client) UpdateSettings(ctx context.Context, patch map[string]any) error {
	if err := c.post(ctx, "/api/settings", patch, nil); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (*models.AuthResult, error) {
	var res models.AuthResult
	err := c.http.SendAndParse(ctx, &httpx.RequestOptions{
		Method: httpx.MethodPost,
		URL:    c.url("/api/auth/login"),
		Body:   map[string]string{"username": username, "password": password},
		NoAuth: true,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &res, nil
}

// Register creates an account and returns a fresh session.
func (c *Client) Register(ctx context.Context, username, password string) (*models.AuthResult, error) {
	var res models.AuthResult
	err := c.http.SendAndParse(ctx, &httpx.RequestOptions{
		Method: httpx.MethodPost,
		URL:    c.url("/api/auth/register"),
		Body:   map[string]string{"username": username, "password": password},
		NoAuth: true,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &res, nil
}

// Logout invalidates the current session server-side.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
