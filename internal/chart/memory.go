package chart

import (
	"sync"
)

// MemoryFactory builds in-memory surfaces. They hold the materialized render
// state that the WebSocket hub serializes to browser clients; no drawing
// happens server-side.
type MemoryFactory struct{}

// NewMemoryFactory returns a factory for in-memory surfaces.
func NewMemoryFactory() *MemoryFactory { return &MemoryFactory{} }

// NewSurface creates a surface of the given dimensions.
func (f *MemoryFactory) NewSurface(width, height int) Surface {
	return &memorySurface{width: width, height: height}
}

// SurfaceState is the serializable snapshot of one surface.
type SurfaceState struct {
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Visible Range         `json:"visible"`
	Candles []CandleState `json:"candles,omitempty"`
	Lines   []LineState   `json:"lines,omitempty"`
}

// CandleState snapshots a candle series.
type CandleState struct {
	Options    SeriesOptions `json:"options"`
	Bars       []Bar         `json:"bars"`
	PriceLines []PriceLine   `json:"price_lines,omitempty"`
	Markers    []Marker      `json:"markers,omitempty"`
}

// LineState snapshots a line or histogram series.
type LineState struct {
	Options    SeriesOptions `json:"options"`
	Histogram  bool          `json:"histogram,omitempty"`
	Points     []Point       `json:"points"`
	PriceLines []PriceLine   `json:"price_lines,omitempty"`
}

// StateProvider is implemented by surfaces that can snapshot their render
// state for transport.
type StateProvider interface {
	RenderState() SurfaceState
}

type memorySurface struct {
	mu       sync.Mutex
	width    int
	height   int
	visible  Range
	handlers []func(Range)
	disposed bool

	candles []*memCandleSeries
	lines   []*memLineSeries
}

func (s *memorySurface) AddCandleSeries(opts SeriesOptions) CandleSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs := &memCandleSeries{opts: opts, priceLines: map[*memPriceLine]struct{}{}}
	s.candles = append(s.candles, cs)
	return cs
}

func (s *memorySurface) AddLineSeries(opts SeriesOptions) LineSeries {
	return s.addLine(opts, false)
}

func (s *memorySurface) AddHistogramSeries(opts SeriesOptions) LineSeries {
	return s.addLine(opts, true)
}

func (s *memorySurface) addLine(opts SeriesOptions, histogram bool) LineSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls := &memLineSeries{opts: opts, histogram: histogram, priceLines: map[*memPriceLine]struct{}{}}
	s.lines = append(s.lines, ls)
	return ls
}

func (s *memorySurface) OnVisibleRangeChange(fn func(Range)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// SetVisibleRange updates the window and fires handlers synchronously on the
// calling goroutine. Handlers run outside the surface lock so they may mutate
// other surfaces.
func (s *memorySurface) SetVisibleRange(r Range) {
	s.mu.Lock()
	if s.disposed || r == s.visible {
		s.mu.Unlock()
		return
	}
	s.visible = r
	handlers := make([]func(Range), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(r)
	}
}

func (s *memorySurface) VisibleRange() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

func (s *memorySurface) ClearCrosshair() {}

func (s *memorySurface) SetWidth(px int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if px > 0 {
		s.width = px
	}
}

func (s *memorySurface) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

func (s *memorySurface) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrStaleHandle
	}
	s.disposed = true
	s.handlers = nil
	s.candles = nil
	s.lines = nil
	return nil
}

// RenderState snapshots the surface for transport.
func (s *memorySurface) RenderState() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SurfaceState{Width: s.width, Height: s.height, Visible: s.visible}
	for _, cs := range s.candles {
		st.Candles = append(st.Candles, cs.state())
	}
	for _, ls := range s.lines {
		st.Lines = append(st.Lines, ls.state())
	}
	return st
}

type memPriceLine struct {
	pl PriceLine
}

type memCandleSeries struct {
	mu         sync.Mutex
	opts       SeriesOptions
	bars       []Bar
	byTime     map[int64]Bar
	priceLines map[*memPriceLine]struct{}
	markers    []Marker
	removed    bool
}

func (c *memCandleSeries) SetData(bars []Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars = bars
	c.byTime = make(map[int64]Bar, len(bars))
	for _, b := range bars {
		c.byTime[b.Time] = b
	}
}

func (c *memCandleSeries) BarAt(time int64) (Bar, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byTime[time]
	return b, ok
}

func (c *memCandleSeries) CreatePriceLine(pl PriceLine) (PriceLineHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return nil, ErrStaleHandle
	}
	h := &memPriceLine{pl: pl}
	c.priceLines[h] = struct{}{}
	return h, nil
}

func (c *memCandleSeries) RemovePriceLine(h PriceLineHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	mh, ok := h.(*memPriceLine)
	if !ok {
		return ErrStaleHandle
	}
	if _, ok := c.priceLines[mh]; !ok {
		return ErrStaleHandle
	}
	delete(c.priceLines, mh)
	return nil
}

func (c *memCandleSeries) SetMarkers(ms []Marker) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed {
		return ErrStaleHandle
	}
	c.markers = ms
	return nil
}

func (c *memCandleSeries) state() CandleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := CandleState{Options: c.opts, Bars: c.bars, Markers: c.markers}
	for h := range c.priceLines {
		st.PriceLines = append(st.PriceLines, h.pl)
	}
	return st
}

type memLineSeries struct {
	mu         sync.Mutex
	opts       SeriesOptions
	histogram  bool
	points     []Point
	byTime     map[int64]float64
	priceLines map[*memPriceLine]struct{}
}

func (l *memLineSeries) SetData(points []Point) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points = points
	l.byTime = make(map[int64]float64, len(points))
	for _, p := range points {
		l.byTime[p.Time] = p.Value
	}
}

func (l *memLineSeries) ValueAt(time int64) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.byTime[time]
	return v, ok
}

func (l *memLineSeries) CreatePriceLine(pl PriceLine) (PriceLineHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := &memPriceLine{pl: pl}
	l.priceLines[h] = struct{}{}
	return h, nil
}

func (l *memLineSeries) RemovePriceLine(h PriceLineHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	mh, ok := h.(*memPriceLine)
	if !ok {
		return ErrStaleHandle
	}
	if _, ok := l.priceLines[mh]; !ok {
		return ErrStaleHandle
	}
	delete(l.priceLines, mh)
	return nil
}

func (l *memLineSeries) state() LineState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := LineState{Options: l.opts, Histogram: l.histogram, Points: l.points}
	for h := range l.priceLines {
		st.PriceLines = append(st.PriceLines, h.pl)
	}
	return st
}
