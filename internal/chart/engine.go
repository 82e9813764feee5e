package chart

import (
	"sort"
	"sync"

	"MarketDeck/internal/domain/models"
	"MarketDeck/pkg/logger"
)

// Theme colors shared by both surfaces.
const (
	colorUp         = "#0ECB81"
	colorDown       = "#F6465D"
	colorFastTrend  = "#FCD535"
	colorSlowTrend  = "#00B4C9"
	colorVolume     = "#2B3139"
	colorOscillator = "#9370DB"
	colorOverbought = "rgba(246, 70, 93, 0.5)"
	colorOversold   = "rgba(14, 203, 129, 0.5)"
	colorTarget     = "rgba(14, 203, 129, 0.6)"
	colorSupport    = "rgba(246, 70, 93, 0.6)"
	colorEntry      = "#848E9C"
)

const (
	primaryHeight   = 400
	secondaryHeight = 150
	defaultWidth    = 800

	overboughtLevel = 70
	oversoldLevel   = 30
)

// Pointer is a crosshair position over the primary surface.
type Pointer struct {
	X    int   `json:"x"`
	Y    int   `json:"y"`
	Time int64 `json:"time"`
}

// Tooltip is the record published for a resolved crosshair position. Nil
// pointer fields mean the value is absent at that time.
type Tooltip struct {
	Time       int64    `json:"time"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      float64  `json:"close"`
	Fast       *float64 `json:"fast,omitempty"`
	Slow       *float64 `json:"slow,omitempty"`
	Oscillator *float64 `json:"oscillator,omitempty"`
}

type priceLiner interface {
	CreatePriceLine(pl PriceLine) (PriceLineHandle, error)
	RemovePriceLine(h PriceLineHandle) error
}

// Engine owns the two chart surfaces, keeps their viewports in lockstep,
// resolves crosshair positions to tooltips and applies overlay updates
// idempotently on every new snapshot.
type Engine struct {
	log *logger.Logger

	primary   Surface
	secondary Surface

	candles    CandleSeries
	fast       LineSeries
	slow       LineSeries
	volume     LineSeries
	projection LineSeries
	oscillator LineSeries

	// syncMu serializes viewport updates end to end: range messages arrive
	// concurrently from every connected client, so SetVisibleRange holds it
	// across the whole primary-to-secondary cascade. The flags then stop
	// the two range handlers from echoing each other within a cascade. They
	// are only touched inside a cascade, so syncMu covers them too.
	syncMu               sync.Mutex
	syncingFromPrimary   bool
	syncingFromSecondary bool

	mu         sync.Mutex
	history    []models.CandlePoint
	entryLine  PriceLineHandle
	targetLine PriceLineHandle
	supportLn  PriceLineHandle

	detachResize func()
	closed       bool
}

// NewEngine creates both surfaces, their series and the fixed oscillator
// reference levels, and wires the viewport synchronization.
func NewEngine(factory SurfaceFactory, log *logger.Logger) *Engine {
	e := &Engine{
		log:       log,
		primary:   factory.NewSurface(defaultWidth, primaryHeight),
		secondary: factory.NewSurface(defaultWidth, secondaryHeight),
	}

	e.candles = e.primary.AddCandleSeries(SeriesOptions{Color: colorUp, DownColor: colorDown})
	e.fast = e.primary.AddLineSeries(SeriesOptions{Color: colorFastTrend, Width: 2})
	e.slow = e.primary.AddLineSeries(SeriesOptions{Color: colorSlowTrend, Width: 2})
	e.volume = e.primary.AddHistogramSeries(SeriesOptions{Color: colorVolume})
	e.projection = e.primary.AddLineSeries(SeriesOptions{Color: colorUp, Width: 2, Style: Dotted})

	e.oscillator = e.secondary.AddLineSeries(SeriesOptions{Color: colorOscillator, Width: 2})
	// Reference bands never change after creation; their handles are
	// deliberately dropped.
	_, _ = e.oscillator.CreatePriceLine(PriceLine{Price: overboughtLevel, Color: colorOverbought, Width: 1, Style: Dashed})
	_, _ = e.oscillator.CreatePriceLine(PriceLine{Price: oversoldLevel, Color: colorOversold, Width: 1, Style: Dashed})

	e.primary.OnVisibleRangeChange(func(r Range) {
		if e.syncingFromSecondary {
			return
		}
		e.syncingFromPrimary = true
		e.secondary.SetVisibleRange(r)
		e.syncingFromPrimary = false
	})
	e.secondary.OnVisibleRangeChange(func(r Range) {
		if e.syncingFromPrimary {
			return
		}
		e.syncingFromSecondary = true
		e.primary.SetVisibleRange(r)
		e.syncingFromSecondary = false
	})

	return e
}

// ApplyData replaces the series data and overlay annotations from a polled
// snapshot. Input candles may arrive unsorted; entries without a time value
// or with a duplicate time are dropped. Auxiliary series only receive points
// where the source field is present, so they are expected to be sparse.
func (e *Engine) ApplyData(history []models.CandlePoint, prediction *models.PredictionOverlay, entryPrice float64) {
	sorted := sortCandles(history)

	bars := make([]Bar, 0, len(sorted))
	var fast, slow, volume, osc []Point
	for _, c := range sorted {
		bars = append(bars, Bar{Time: c.Time, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close})
		if c.FastEMA != 0 {
			fast = append(fast, Point{Time: c.Time, Value: c.FastEMA})
		}
		if c.TrendEMA != 0 {
			slow = append(slow, Point{Time: c.Time, Value: c.TrendEMA})
		}
		if c.Volume != 0 {
			volume = append(volume, Point{Time: c.Time, Value: c.Volume})
		}
		if c.RSI != 0 {
			osc = append(osc, Point{Time: c.Time, Value: c.RSI})
		}
	}

	e.candles.SetData(bars)
	e.fast.SetData(fast)
	e.slow.SetData(slow)
	e.volume.SetData(volume)
	e.oscillator.SetData(osc)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = sorted

	e.replaceEntryLine(entryPrice)
	if prediction != nil {
		e.applyPrediction(prediction, bars)
	}
}

// replaceEntryLine removes any previous entry annotation and draws exactly
// one dashed line when the entry price is positive. Caller holds e.mu.
func (e *Engine) replaceEntryLine(entryPrice float64) {
	e.removeLine(e.candles, e.entryLine)
	e.entryLine = nil
	if entryPrice > 0 {
		e.entryLine = e.createLine(e.candles, PriceLine{
			Price: entryPrice, Color: colorEntry, Width: 1, Style: Dashed, AxisLabel: true, Title: "ENTRY",
		})
	}
}

// applyPrediction applies projection, zone lines and trap markers. Previous
// zone handles are removed unconditionally, tolerating handles the surface no
// longer knows. Caller holds e.mu.
func (e *Engine) applyPrediction(p *models.PredictionOverlay, bars []Bar) {
	if p.Projection != nil {
		pts := make([]Point, 0, len(p.Projection))
		for _, pp := range p.Projection {
			pts = append(pts, Point{Time: pp.Time, Value: pp.Value})
		}
		e.projection.SetData(pts)
	}

	e.removeLine(e.candles, e.targetLine)
	e.removeLine(e.candles, e.supportLn)
	e.targetLine = nil
	e.supportLn = nil

	if p.Zones.Target != 0 {
		e.targetLine = e.createLine(e.candles, PriceLine{
			Price: p.Zones.Target, Color: colorTarget, Width: 1, Style: Dotted, AxisLabel: true, Title: "TARGET",
		})
	}
	if p.Zones.Support != 0 {
		e.supportLn = e.createLine(e.candles, PriceLine{
			Price: p.Zones.Support, Color: colorSupport, Width: 1, Style: Dotted, AxisLabel: true, Title: "SUPPORT",
		})
	}

	if len(p.Traps) > 0 {
		if len(bars) == 0 {
			return
		}
		lastTime := bars[len(bars)-1].Time
		markers := make([]Marker, 0, len(p.Traps))
		for _, trap := range p.Traps {
			switch trap {
			case models.BullTrap:
				markers = append(markers, Marker{Time: lastTime, Position: AboveBar, Color: colorDown, Shape: ArrowDown, Text: "Bull Trap"})
			case models.BearTrap:
				markers = append(markers, Marker{Time: lastTime, Position: BelowBar, Color: colorUp, Shape: ArrowUp, Text: "Bear Trap"})
			}
		}
		if err := e.candles.SetMarkers(markers); err != nil {
			e.warn("set markers", err)
		}
	} else if err := e.candles.SetMarkers([]Marker{}); err != nil {
		e.warn("clear markers", err)
	}
}

// MoveCrosshair resolves a pointer position over the primary surface to a
// tooltip. Outside the plotting area the tooltip is hidden and the secondary
// surface's own indicator cleared. When no candle exists at the resolved time
// the tooltip is suppressed entirely rather than shown partially filled.
func (e *Engine) MoveCrosshair(p Pointer) (*Tooltip, bool) {
	if p.Time == 0 || p.X < 0 || p.Y < 0 || p.X > e.primary.Width() || p.Y > primaryHeight {
		e.secondary.ClearCrosshair()
		return nil, false
	}

	bar, ok := e.candles.BarAt(p.Time)
	if !ok {
		return nil, false
	}

	tt := &Tooltip{Time: bar.Time, Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close}
	if v, ok := e.fast.ValueAt(p.Time); ok {
		tt.Fast = &v
	}
	if v, ok := e.slow.ValueAt(p.Time); ok {
		tt.Slow = &v
	}

	// The oscillator series is not reverse-indexed; scan the last applied
	// history for an exact time match.
	e.mu.Lock()
	for _, c := range e.history {
		if c.Time == p.Time {
			if c.RSI != 0 {
				v := c.RSI
				tt.Oscillator = &v
			}
			break
		}
	}
	e.mu.Unlock()

	return tt, true
}

// SetVisibleRange drives the primary viewport; the secondary follows through
// the sync handlers. Updates are serialized so concurrent callers cannot
// interleave half-finished cascades.
func (e *Engine) SetVisibleRange(r Range) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	e.primary.SetVisibleRange(r)
}

// WatchResize subscribes both surfaces to container width changes, replacing
// any previous subscription.
func (e *Engine) WatchResize(n ResizeNotifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detachResize != nil {
		e.detachResize()
	}
	e.detachResize = n.Subscribe(func(width int) {
		e.primary.SetWidth(width)
		e.secondary.SetWidth(width)
	})
}

// RenderState snapshots both surfaces for transport; ok is false when the
// surfaces cannot provide a state.
func (e *Engine) RenderState() (primary, secondary SurfaceState, ok bool) {
	sp, okP := e.primary.(StateProvider)
	ss, okS := e.secondary.(StateProvider)
	if !okP || !okS {
		return SurfaceState{}, SurfaceState{}, false
	}
	return sp.RenderState(), ss.RenderState(), true
}

// Close detaches the resize subscription and disposes both surfaces. Safe to
// call once; later calls are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.detachResize != nil {
		e.detachResize()
		e.detachResize = nil
	}
	if err := e.primary.Dispose(); err != nil {
		e.warn("dispose primary", err)
	}
	if err := e.secondary.Dispose(); err != nil {
		e.warn("dispose secondary", err)
	}
}

func (e *Engine) createLine(s priceLiner, pl PriceLine) PriceLineHandle {
	h, err := s.CreatePriceLine(pl)
	if err != nil {
		e.warn("create price line", err)
		return nil
	}
	return h
}

// removeLine tolerates stale handles: a handle can already be gone after a
// previous replacement cycle and that is not an error worth propagating.
func (e *Engine) removeLine(s priceLiner, h PriceLineHandle) {
	if h == nil {
		return
	}
	if err := s.RemovePriceLine(h); err != nil {
		e.warn("remove price line", err)
	}
}

func (e *Engine) warn(op string, err error) {
	if e.log != nil {
		e.log.Warn("chart overlay", logger.String("op", op), logger.Error(err))
	}
}

// sortCandles copies, sorts ascending by time and drops entries without a
// time value or repeating one.
func sortCandles(in []models.CandlePoint) []models.CandlePoint {
	out := make([]models.CandlePoint, 0, len(in))
	for _, c := range in {
		if c.Time != 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	dedup := out[:0]
	var prev int64
	for i, c := range out {
		if i > 0 && c.Time == prev {
			continue
		}
		dedup = append(dedup, c)
		prev = c.Time
	}
	return dedup
}
