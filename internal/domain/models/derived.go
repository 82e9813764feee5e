package models

// Derived holds the reconciliation output published alongside the raw
// snapshot: percentage deltas against the previous cycle and any trade
// notification detected on this cycle.
type Derived struct {
	PriceChangePct   float64 `json:"price_change_pct"`
	BalanceChangePct float64 `json:"balance_change_pct"`

	Notification *TradeNotification `json:"notification,omitempty"`
}

// TradeNotification is emitted when the reconciler detects a newly appended
// automatic trade. The reconciler never produces one for manual trades; the
// action that initiated a manual trade publishes its own with Manual set.
type TradeNotification struct {
	Buy    bool    `json:"buy"`
	Qty    float64 `json:"qty"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Time   string  `json:"time"`
	Manual bool    `json:"manual,omitempty"`
}

// DashboardState is the composite frame pushed to WebSocket clients and
// served on the state endpoint after each accepted poll.
type DashboardState struct {
	Snapshot MarketSnapshot `json:"snapshot"`
	Derived  Derived        `json:"derived"`
}

// User identifies an authenticated session owner.
type User struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	IsTestnet bool   `json:"is_testnet,omitempty"`
}

// AuthResult is the bot API response to login/register.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ActionResult is the bot API response to control and trade actions.
type ActionResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the action succeeded.
func (r ActionResult) OK() bool { return r.Status == "success" }
