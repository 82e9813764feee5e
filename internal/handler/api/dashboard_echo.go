package api

import (
	"errors"

	"MarketDeck/internal/domain/models"
	"MarketDeck/internal/service/botapi"
	"MarketDeck/internal/service/ratelimit"
	"MarketDeck/internal/service/session"
	"MarketDeck/internal/usecase"
	xhttp "MarketDeck/pkg/http"
	xlogger "MarketDeck/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Action endpoints share one token bucket per route: a short burst, then
// one action per second. The bot serializes orders anyway.
const (
	actionBurst  = 3
	actionRefill = 1
)

// DashboardEchoHandler exposes the dashboard state and proxies bot control
// actions over Echo.
type DashboardEchoHandler struct {
	logger  *xlogger.Logger
	dash    *usecase.Dashboard
	sess    *session.Manager
	limiter *ratelimit.Limiter
}

func NewDashboardEchoHandler(logger *xlogger.Logger, dash *usecase.Dashboard, sess *session.Manager) *DashboardEchoHandler {
	return &DashboardEchoHandler{logger: logger, dash: dash, sess: sess, limiter: ratelimit.New()}
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	auth := e.Group("/api/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.Register)
	auth.POST("/logout", h.Logout, h.requireSession)
	auth.GET("/me", h.Me, h.requireSession)

	g := e.Group("/api", h.requireSession)
	g.GET("/state", h.State)
	g.GET("/tickers", h.Tickers)
	g.GET("/market/rsi-snapshot", h.RSISnapshot)
	g.POST("/start", h.Start, h.throttle)
	g.POST("/stop", h.Stop, h.throttle)
	g.POST("/buy", h.Buy, h.throttle)
	g.POST("/sell", h.Sell, h.throttle)
	g.POST("/reset", h.ResetPosition, h.throttle)
	g.POST("/reset_pnl", h.ResetPnL, h.throttle)
	g.POST("/settings", h.UpdateSettings, h.throttle)
}

// requireSession rejects requests before they reach the bot when no local
// session exists.
func (h *DashboardEchoHandler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.sess.Active() {
			return xhttp.UnauthorizedResponse(c, "no active session")
		}
		return next(c)
	}
}

// throttle bounds the action rate per route.
func (h *DashboardEchoHandler) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.limiter.Allow(c.Path(), actionBurst, actionRefill) {
			return xhttp.DataResponse(c, 429, "too many actions, slow down")
		}
		return next(c)
	}
}

// upstreamErr maps bot API failures: expiry to 401, everything else to 502.
func (h *DashboardEchoHandler) upstreamErr(c echo.Context, op string, err error) error {
	if errors.Is(err, botapi.ErrSessionExpired) {
		return xhttp.UnauthorizedResponse(c, "session expired")
	}
	h.logger.Error("bot api error", xlogger.String("op", op), xlogger.Error(err))
	return xhttp.BadGatewayResponse(c, "bot unavailable")
}

func (h *DashboardEchoHandler) State(c echo.Context) error {
	state, ok := h.dash.State()
	if !ok {
		return xhttp.NotFoundResponse(c, "no snapshot accepted yet")
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *DashboardEchoHandler) Tickers(c echo.Context) error {
	tickers, err := h.dash.Tickers(c.Request().Context())
	if err != nil {
		return h.upstreamErr(c, "tickers", err)
	}
	return xhttp.SuccessResponse(c, tickers)
}

func (h *DashboardEchoHandler) RSISnapshot(c echo.Context) error {
	readings, err := h.dash.RSISnapshot(c.Request().Context())
	if err != nil {
		return h.upstreamErr(c, "rsi-snapshot", err)
	}
	return xhttp.SuccessResponse(c, readings)
}

func (h *DashboardEchoHandler) Start(c echo.Context) error {
	res, err := h.dash.StartEngine(c.Request().Context())
	if err != nil {
		return h.upstreamErr(c, "start", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Stop(c echo.Context) error {
	res, err := h.dash.StopEngine(c.Request().Context())
	if err != nil {
		return h.upstreamErr(c, "stop", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Buy(c echo.Context) error {
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.dash.ManualBuy(c.Request().Context(), req.Quantity)
	if err != nil {
		return h.upstreamErr(c, "buy", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Sell(c echo.Context) error {
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.dash.ManualSell(c.Request().Context(), req.Quantity)
	if err != nil {
		return h.upstreamErr(c, "sell", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) ResetPosition(c echo.Context) error {
	if err := h.dash.ResetPosition(c.Request().Context()); err != nil {
		return h.upstreamErr(c, "reset", err)
	}
	return xhttp.SuccessResponse(c, &models.ActionResult{Status: "success"})
}

func (h *DashboardEchoHandler) ResetPnL(c echo.Context) error {
	if err := h.dash.ResetPnL(c.Request().Context()); err != nil {
		return h.upstreamErr(c, "reset_pnl", err)
	}
	return xhttp.SuccessResponse(c, &models.ActionResult{Status: "success"})
}

func (h *DashboardEchoHandler) UpdateSettings(c echo.Context) error {
	req := &models.SettingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.dash.UpdateSettings(c.Request().Context(), req.Settings); err != nil {
		return h.upstreamErr(c, "settings", err)
	}
	return xhttp.SuccessResponse(c, &models.ActionResult{Status: "success"})
}

func (h *DashboardEchoHandler) Login(c echo.Context) error {
	req := &models.AuthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.dash.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("login failed", xlogger.String("username", req.Username), xlogger.Error(err))
		return xhttp.UnauthorizedResponse(c, "login rejected")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Register(c echo.Context) error {
	req := &models.AuthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.dash.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("register failed", xlogger.String("username", req.Username), xlogger.Error(err))
		return xhttp.BadRequestResponse(c, "registration rejected")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Logout(c echo.Context) error {
	if err := h.dash.Logout(c.Request().Context()); err != nil {
		return h.upstreamErr(c, "logout", err)
	}
	return xhttp.SuccessResponse(c, &models.ActionResult{Status: "success"})
}

func (h *DashboardEchoHandler) Me(c echo.Context) error {
	user, ok := h.sess.User()
	if !ok {
		return xhttp.UnauthorizedResponse(c, "no active session")
	}
	return xhttp.SuccessResponse(c, user)
}
