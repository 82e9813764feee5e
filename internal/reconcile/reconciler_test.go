package reconcile

import (
	"math"
	"testing"

	"MarketDeck/internal/domain/models"
)

func snap(symbol string, price, balance float64) *models.MarketSnapshot {
	return &models.MarketSnapshot{Symbol: symbol, Price: price, Balance: balance}
}

func TestPriceDeltaSameSymbol(t *testing.T) {
	b := &Baseline{}
	d := Reconcile(b, models.Derived{}, snap("BTCUSDT", 100, 1000))
	if d.PriceChangePct != 0 {
		t.Fatalf("first cycle should publish 0, got %v", d.PriceChangePct)
	}
	d = Reconcile(b, d, snap("BTCUSDT", 110, 1000))
	if math.Abs(d.PriceChangePct-10) > 1e-9 {
		t.Fatalf("expected +10%%, got %v", d.PriceChangePct)
	}
	if b.LastPrice != 110 {
		t.Fatalf("baseline not refreshed: %v", b.LastPrice)
	}
}

func TestSymbolSwitchResetsDeltas(t *testing.T) {
	b := &Baseline{}
	d := Reconcile(b, models.Derived{}, snap("BTCUSDT", 100, 1000))
	d = Reconcile(b, d, snap("BTCUSDT", 200, 2000))
	if d.PriceChangePct == 0 || d.BalanceChangePct == 0 {
		t.Fatalf("expected nonzero deltas before switch: %+v", d)
	}

	d = Reconcile(b, d, snap("ETHUSDT", 50, 2000))
	if d.PriceChangePct != 0 || d.BalanceChangePct != 0 {
		t.Fatalf("symbol switch must zero deltas, got %+v", d)
	}
	if b.LastSymbol != "ETHUSDT" {
		t.Fatalf("baseline symbol not updated: %q", b.LastSymbol)
	}
	// The switch cycle still records the new reference values.
	if b.LastPrice != 50 {
		t.Fatalf("expected new reference price 50, got %v", b.LastPrice)
	}
}

func TestMissingPriceKeepsPublishedDelta(t *testing.T) {
	b := &Baseline{}
	d := Reconcile(b, models.Derived{}, snap("BTCUSDT", 100, 0))
	d = Reconcile(b, d, snap("BTCUSDT", 150, 0))
	want := d.PriceChangePct
	if want == 0 {
		t.Fatalf("setup: expected nonzero delta")
	}

	// A payload with no price must not zero the published value.
	d = Reconcile(b, d, snap("BTCUSDT", 0, 0))
	if d.PriceChangePct != want {
		t.Fatalf("published delta changed: want %v got %v", want, d.PriceChangePct)
	}
	if b.LastPrice != 150 {
		t.Fatalf("baseline must keep last good price, got %v", b.LastPrice)
	}
}

func TestRepeatedSnapshotZeroesDelta(t *testing.T) {
	b := &Baseline{}
	d := Reconcile(b, models.Derived{}, snap("BTCUSDT", 100, 0))
	d = Reconcile(b, d, snap("BTCUSDT", 120, 0))
	// Same payload again: baseline was refreshed, so change collapses to 0.
	d = Reconcile(b, d, snap("BTCUSDT", 120, 0))
	if d.PriceChangePct != 0 {
		t.Fatalf("expected 0%% on repeated snapshot, got %v", d.PriceChangePct)
	}
}

func tradeSnap(tt ...models.TradeRecord) *models.MarketSnapshot {
	return &models.MarketSnapshot{Symbol: "BTCUSDT", Price: 100, Trades: tt}
}

func TestTradeNotificationOncePerTrade(t *testing.T) {
	b := &Baseline{}
	first := models.TradeRecord{Time: "2026-08-30 10:00:00", Type: "BUY", Symbol: "BTCUSDT", Qty: 0.01}

	d := Reconcile(b, models.Derived{}, tradeSnap(first))
	if d.Notification != nil {
		t.Fatalf("first cycle must not notify")
	}
	if b.LastTradeTime != first.Time {
		t.Fatalf("baseline trade time not set")
	}

	second := models.TradeRecord{Time: "2026-08-30 10:05:00", Type: "SELL", Symbol: "BTCUSDT", Qty: 0.01}
	d = Reconcile(b, d, tradeSnap(second, first))
	if d.Notification == nil {
		t.Fatalf("expected notification for new trade")
	}
	if d.Notification.Buy {
		t.Fatalf("SELL classified as buy")
	}

	// Unchanged head: no further notification.
	d = Reconcile(b, d, tradeSnap(second, first))
	if d.Notification != nil {
		t.Fatalf("unchanged head must not re-notify")
	}
}

func TestManualTradeNeverNotifies(t *testing.T) {
	b := &Baseline{}
	auto := models.TradeRecord{Time: "t1", Type: "BUY", Symbol: "BTCUSDT"}
	manual := models.TradeRecord{Time: "t2", Type: "BUY (MANUAL)", Symbol: "BTCUSDT"}

	d := Reconcile(b, models.Derived{}, tradeSnap(auto))
	d = Reconcile(b, d, tradeSnap(manual, auto))
	if d.Notification != nil {
		t.Fatalf("manual trade must not notify")
	}
	if b.LastTradeTime != "t2" {
		t.Fatalf("manual trade must still advance baseline, got %q", b.LastTradeTime)
	}
}

func TestSanitizeCollections(t *testing.T) {
	b := &Baseline{}
	s := &models.MarketSnapshot{Symbol: "BTCUSDT", Price: 100}
	Reconcile(b, models.Derived{}, s)
	if s.History == nil || s.Trades == nil {
		t.Fatalf("collections must be coerced to empty slices")
	}
}

func TestStoreApplyAndState(t *testing.T) {
	st := NewStore()
	if _, ok := st.State(); ok {
		t.Fatalf("state should be absent before first poll")
	}

	st.Apply(snap("BTCUSDT", 100, 1000))
	out := st.Apply(snap("BTCUSDT", 110, 1100))
	if math.Abs(out.Derived.PriceChangePct-10) > 1e-9 {
		t.Fatalf("expected +10%%, got %v", out.Derived.PriceChangePct)
	}

	got, ok := st.State()
	if !ok || got.Snapshot.Price != 110 {
		t.Fatalf("state not retained: %+v ok=%v", got.Snapshot, ok)
	}

	st.Reset()
	if _, ok := st.State(); ok {
		t.Fatalf("reset should clear state")
	}
	if st.Baseline() != (Baseline{}) {
		t.Fatalf("reset should clear baseline")
	}
}
