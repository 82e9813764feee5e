package repository

import (
	"context"

	"MarketDeck/internal/domain/models"
)

// TradingAPI is the remote bot's REST surface as consumed by the dashboard.
// Every call except Login/Register carries the session bearer token; a stale
// token surfaces as botapi.ErrSessionExpired.
type TradingAPI interface {
	Status(ctx context.Context) (*models.MarketSnapshot, error)
	Tickers(ctx context.Context) (models.TickerMap, error)
	RSISnapshot(ctx context.Context) ([]models.RSIReading, error)

	Start(ctx context.Context) (*models.ActionResult, error)
	Stop(ctx context.Context) (*models.ActionResult, error)
	Buy(ctx context.Context, quantity float64) (*models.ActionResult, error)
	Sell(ctx context.Context, quantity float64) (*models.ActionResult, error)
	ResetPosition(ctx context.Context) error
	ResetPnL(ctx context.Context) error
	UpdateSettings(ctx context.Context, patch map[string]any) error

	Login(ctx context.Context, username, password string) (*models.AuthResult, error)
	Register(ctx context.Context, username, password string) (*models.AuthResult, error)
	Logout(ctx context.Context) error
}

// NotificationSink fans detected trade events out to external consumers.
type NotificationSink interface {
	Notify(ctx context.Context, n *models.TradeNotification) error
	Close() error
}

// SnapshotArchive is a write-only sink for accepted snapshots. It is never
// read on the hot path; dashboard state is rebuilt from each poll.
type SnapshotArchive interface {
	Archive(ctx context.Context, s *models.MarketSnapshot) error
	ArchiveTrades(ctx context.Context, trades []models.TradeRecord) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the polling loops.
type Metrics interface {
	RecordPoll(kind string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
