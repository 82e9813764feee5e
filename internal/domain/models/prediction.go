package models

// Trap kinds reported by the predictive module.
const (
	BullTrap = "BULL_TRAP"
	BearTrap = "BEAR_TRAP"
)

// PredictionOverlay is the predictive-analysis block of a snapshot. It is
// regenerated each poll; any field may be absent and must degrade gracefully
// (no line or marker drawn).
type PredictionOverlay struct {
	MarketScore  float64           `json:"market_score"`
	ExpectedMove ExpectedMove      `json:"expected_move"`
	Projection   []ProjectionPoint `json:"projection"`
	Traps        []string          `json:"traps"`
	Zones        PriceZones        `json:"zones"`
}

// ExpectedMove bounds the projected price move in percent.
type ExpectedMove struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ProjectionPoint is one time/value pair of the projection line.
type ProjectionPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// PriceZones carries optional horizontal levels. Zero means not provided.
type PriceZones struct {
	Target  float64 `json:"target,omitempty"`
	Support float64 `json:"support,omitempty"`
}
