package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketDeck/internal/domain/models"
	drepo "MarketDeck/internal/domain/repository"
	"MarketDeck/pkg/util"
)

const (
	snapshotTable = "dashboard_snapshots"
	tradeTable    = "dashboard_trades"
)

var archiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + snapshotTable + ` (
		ts DateTime,
		symbol LowCardinality(String),
		price Float64,
		balance Float64,
		crypto_balance Float64,
		pnl Float64,
		daily_pnl Float64,
		rsi Float64,
		entry_price Float64,
		is_running UInt8
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (symbol, ts)
	TTL ts + INTERVAL 90 DAY`,

	`CREATE TABLE IF NOT EXISTS ` + tradeTable + ` (
		ts DateTime,
		trade_time String,
		symbol LowCardinality(String),
		type LowCardinality(String),
		qty Float64,
		price Float64,
		total Float64,
		commission Float64,
		pnl Float64
	) ENGINE = ReplacingMergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (symbol, trade_time)`,
}

// ClickHouseArchive is a write-only sink for accepted snapshots and trades.
// Nothing on the dashboard hot path reads from it.
type ClickHouseArchive struct {
	db *sql.DB
}

// NewClickHouseArchive creates the archive and ensures its tables exist.
func NewClickHouseArchive(ctx context.Context, db *sql.DB) (drepo.SnapshotArchive, error) {
	a := &ClickHouseArchive{db: db}
	for _, stmt := range archiveSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("archive schema: %w", err)
		}
	}
	return a, nil
}

func (a *ClickHouseArchive) Archive(ctx context.Context, s *models.MarketSnapshot) error {
	if s.Symbol == "" {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(ts, symbol, price, balance, crypto_balance, pnl, daily_pnl, rsi, entry_price, is_running)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, snapshotTable)
	running := uint8(0)
	if s.IsRunning {
		running = 1
	}
	_, err := a.db.ExecContext(ctx, q,
		time.Now().UTC(),
		s.Symbol,
		s.Price,
		s.Balance,
		s.CryptoBalance,
		s.PnL,
		s.DailyPnL,
		s.RSI,
		s.EntryPrice,
		running,
	)
	return err
}

func (a *ClickHouseArchive) ArchiveTrades(ctx context.Context, trades []models.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	// ReplacingMergeTree keyed on (symbol, trade_time) dedupes the overlap
	// between consecutive polls, so the full list can be written each time.
	values := make([]string, 0, len(trades))
	args := make([]interface{}, 0, len(trades)*9)
	now := time.Now().UTC()
	for _, t := range trades {
		if t.Time == "" {
			continue
		}
		ts := util.ParseTimeDefault(t.Time, now)
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			ts,
			t.Time,
			t.Symbol,
			t.Type,
			t.Qty,
			t.Price,
			t.Total,
			t.Commission,
			t.PnL,
		)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(ts, trade_time, symbol, type, qty, price, total, commission, pnl)
		VALUES %s`, tradeTable, strings.Join(values, ","))
	_, err := a.db.ExecContext(ctx, q, args...)
	return err
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // pool owned by pkg/clickhouse client
}

// NopArchive discards everything. Used when archiving is disabled.
type NopArchive struct{}

func (NopArchive) Archive(context.Context, *models.MarketSnapshot) error      { return nil }
func (NopArchive) ArchiveTrades(context.Context, []models.TradeRecord) error { return nil }
func (NopArchive) Health(context.Context) error                              { return nil }
func (NopArchive) Close() error                                              { return nil }
