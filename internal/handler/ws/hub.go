package ws

import (
	"net/http"
	"sync"
	"time"

	"MarketDeck/internal/chart"
	"MarketDeck/internal/domain/models"
	"MarketDeck/internal/usecase"
	"MarketDeck/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	sendBuffer = 16
)

// frame is one message pushed to a browser client.
type frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// clientMessage is one message received from a browser client.
type clientMessage struct {
	Type  string  `json:"type"`
	X     int     `json:"x,omitempty"`
	Y     int     `json:"y,omitempty"`
	Time  int64   `json:"time,omitempty"`
	From  float64 `json:"from,omitempty"`
	To    float64 `json:"to,omitempty"`
	Width int     `json:"width,omitempty"`
}

// chartsPayload bundles both surfaces' render state.
type chartsPayload struct {
	Primary   chart.SurfaceState `json:"primary"`
	Secondary chart.SurfaceState `json:"secondary"`
}

// Hub pushes dashboard state and chart render state to connected browsers
// and relays their pointer, viewport and resize events into the engine. It
// doubles as the engine's resize notifier: the widest reported client width
// drives both surfaces.
type Hub struct {
	log    *logger.Logger
	dash   *usecase.Dashboard
	engine *chart.Engine

	upgrader websocket.Upgrader

	mu          sync.Mutex
	clients     map[*client]struct{}
	resizeSubs  map[int]func(int)
	nextSub     int
	unsubscribe func()
}

type client struct {
	conn *websocket.Conn
	send chan frame
}

// NewHub wires the hub into the dashboard's broadcast stream and registers
// itself as the engine's resize source.
func NewHub(dash *usecase.Dashboard, engine *chart.Engine, log *logger.Logger) *Hub {
	h := &Hub{
		log:    log,
		dash:   dash,
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard API is already CORS-open; the socket follows.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		resizeSubs: make(map[int]func(int)),
	}
	h.unsubscribe = dash.Subscribe(h.onState)
	engine.WatchResize(h)
	return h
}

// RegisterRoutes implements the HTTP handler contract.
func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Subscribe implements chart.ResizeNotifier.
func (h *Hub) Subscribe(fn func(width int)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.resizeSubs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.resizeSubs, id)
	}
}

// Serve upgrades the connection and runs the client until it drops.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan frame, sendBuffer)}
	h.register(cl)
	defer h.drop(cl)

	// Late joiners get the current state immediately.
	if state, ok := h.dash.State(); ok {
		cl.enqueue(frame{Type: "state", Data: state})
	}
	if primary, secondary, ok := h.engine.RenderState(); ok {
		cl.enqueue(frame{Type: "charts", Data: chartsPayload{Primary: primary, Secondary: secondary}})
	}

	go cl.writePump()
	h.readPump(cl)
	return nil
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	_ = cl.conn.Close()
}

// Close detaches from the dashboard and disconnects every client.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()
	for _, cl := range clients {
		h.drop(cl)
	}
}

// onState runs on the polling goroutine after every accepted snapshot.
func (h *Hub) onState(state models.DashboardState) {
	h.broadcast(frame{Type: "state", Data: state})
	h.broadcastCharts()
}

func (h *Hub) broadcastCharts() {
	primary, secondary, ok := h.engine.RenderState()
	if !ok {
		return
	}
	h.broadcast(frame{Type: "charts", Data: chartsPayload{Primary: primary, Secondary: secondary}})
}

// broadcast fans a frame out without blocking the caller: clients that
// cannot keep up miss frames instead of stalling the poll loop.
func (h *Hub) broadcast(f frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		cl.enqueue(f)
	}
}

func (h *Hub) readPump(cl *client) {
	cl.conn.SetReadLimit(1024)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := cl.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read error", logger.Error(err))
			}
			return
		}
		h.handleMessage(cl, msg)
	}
}

func (h *Hub) handleMessage(cl *client, msg clientMessage) {
	switch msg.Type {
	case "crosshair":
		tt, ok := h.engine.MoveCrosshair(chart.Pointer{X: msg.X, Y: msg.Y, Time: msg.Time})
		if !ok {
			cl.enqueue(frame{Type: "tooltip", Data: nil})
			return
		}
		cl.enqueue(frame{Type: "tooltip", Data: tt})
	case "range":
		h.engine.SetVisibleRange(chart.Range{From: msg.From, To: msg.To})
		h.broadcastCharts()
	case "resize":
		if msg.Width <= 0 {
			return
		}
		h.notifyResize(msg.Width)
		h.broadcastCharts()
	default:
		h.log.Debug("ws unknown message", logger.String("type", msg.Type))
	}
}

func (h *Hub) notifyResize(width int) {
	h.mu.Lock()
	fns := make([]func(int), 0, len(h.resizeSubs))
	for _, fn := range h.resizeSubs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(width)
	}
}

// enqueue drops the frame when the client's buffer is full. Caller may hold
// the hub lock.
func (cl *client) enqueue(f frame) {
	select {
	case cl.send <- f:
	default:
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
