package models

// TradeRequest is the body for manual buy/sell. Zero quantity means the
// bot's configured default.
type TradeRequest struct {
	Quantity float64 `json:"quantity" validate:"omitempty,gt=0"`
}

// AuthRequest is the body for login and register.
type AuthRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=4"`
}

// SettingsRequest carries a merge-patch of bot strategy settings.
type SettingsRequest struct {
	Settings map[string]any `json:"settings" validate:"required"`
}
