package reconcile

import (
	"MarketDeck/internal/domain/models"
)

// Baseline holds the previous-cycle comparison values used to compute
// percentage deltas. It is mutated in place on every accepted snapshot and
// zeroed for price/balance whenever the traded symbol changes, so that
// cross-symbol jumps never register as a percentage move.
type Baseline struct {
	LastPrice     float64
	LastBalance   float64
	LastSymbol    string
	LastTradeTime string
}

// Reconcile folds a newly polled snapshot into the baseline and returns the
// derived state for this cycle. prev carries the deltas published on the
// previous cycle; they are kept unchanged when no new delta can be computed.
// The only reset path for them is a symbol switch.
//
// Repeated calls with an unchanged snapshot are idempotent for trade
// detection but not for the deltas: the baseline is refreshed on every call,
// so the second call yields a 0% change. That asymmetry matches the dashboard
// this feeds and is intentional.
func Reconcile(b *Baseline, prev models.Derived, snap *models.MarketSnapshot) models.Derived {
	snap.Sanitize()

	d := models.Derived{
		PriceChangePct:   prev.PriceChangePct,
		BalanceChangePct: prev.BalanceChangePct,
	}

	if snap.Symbol != "" && b.LastSymbol != "" && snap.Symbol != b.LastSymbol {
		b.LastPrice = 0
		b.LastBalance = 0
		d.PriceChangePct = 0
		d.BalanceChangePct = 0
	}
	if snap.Symbol != "" {
		b.LastSymbol = snap.Symbol
	}

	if snap.Price > 0 && b.LastPrice > 0 && snap.Symbol == b.LastSymbol {
		d.PriceChangePct = (snap.Price - b.LastPrice) / b.LastPrice * 100
	}
	if snap.Price > 0 {
		b.LastPrice = snap.Price
	}

	if snap.Balance > 0 && b.LastBalance > 0 && snap.Symbol == b.LastSymbol {
		d.BalanceChangePct = (snap.Balance - b.LastBalance) / b.LastBalance * 100
	}
	if snap.Balance > 0 {
		b.LastBalance = snap.Balance
	}

	if len(snap.Trades) > 0 {
		latest := snap.Trades[0]
		if b.LastTradeTime != "" && b.LastTradeTime != latest.Time && !latest.IsManual() {
			d.Notification = &models.TradeNotification{
				Buy:    latest.IsBuy(),
				Qty:    latest.Qty,
				Symbol: latest.Symbol,
				Price:  latest.Price,
				Time:   latest.Time,
			}
		}
		// Always advance, even when no notification fired (first cycle,
		// manual trade), so the same trade is never re-detected.
		b.LastTradeTime = latest.Time
	}

	return d
}
