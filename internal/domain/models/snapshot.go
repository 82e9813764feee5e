package models

import "strings"

// MarketSnapshot is one polled payload from the bot's /api/status endpoint.
// It is immutable after decoding and superseded wholesale by the next poll.
type MarketSnapshot struct {
	Symbol        string            `json:"symbol"`
	Mode          string            `json:"mode"`
	IsRunning     bool              `json:"is_running"`
	Price         float64           `json:"price"`
	Balance       float64           `json:"balance"`
	CryptoBalance float64           `json:"crypto_balance"`
	PnL           float64           `json:"pnl"`
	DailyPnL      float64           `json:"daily_pnl"`
	RSI           float64           `json:"rsi"`
	EntryPrice    float64           `json:"entry_price"`
	History       []CandlePoint     `json:"history"`
	Trades        []TradeRecord     `json:"trades"`
	Settings      map[string]any    `json:"settings"`
	Prediction    PredictionOverlay `json:"prediction"`
}

// Sanitize coerces absent collection fields to empty slices so consumers can
// iterate unconditionally.
func (s *MarketSnapshot) Sanitize() {
	if s.History == nil {
		s.History = []CandlePoint{}
	}
	if s.Trades == nil {
		s.Trades = []TradeRecord{}
	}
}

// CandlePoint is one OHLC bar with optional precomputed indicator values.
// Auxiliary fields are zero when the backend did not compute them; zero is
// treated as absent.
type CandlePoint struct {
	Time     int64   `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume,omitempty"`
	FastEMA  float64 `json:"fast_ema,omitempty"`
	TrendEMA float64 `json:"trend_ema,omitempty"`
	RSI      float64 `json:"rsi,omitempty"`
}

// TradeRecord is one executed trade as reported by the bot. The most recent
// trade is first in the list. Identity for deduplication is the Time string.
type TradeRecord struct {
	Time       string  `json:"time"`
	Type       string  `json:"type"`
	Symbol     string  `json:"symbol"`
	Qty        float64 `json:"qty"`
	Price      float64 `json:"price"`
	Total      float64 `json:"total"`
	Commission float64 `json:"commission,omitempty"`
	RSI        float64 `json:"rsi,omitempty"`
	PnL        float64 `json:"pnl,omitempty"`
}

// IsManual reports whether the trade was initiated by the user rather than
// the strategy engine.
func (t TradeRecord) IsManual() bool { return strings.Contains(t.Type, "MANUAL") }

// IsBuy reports trade direction.
func (t TradeRecord) IsBuy() bool { return strings.Contains(t.Type, "BUY") }

// TickerMap maps symbol to last price, from /api/tickers.
type TickerMap map[string]float64

// RSIReading is one entry of the multi-symbol oscillator snapshot.
type RSIReading struct {
	Symbol string  `json:"symbol"`
	RSI    float64 `json:"rsi"`
}
