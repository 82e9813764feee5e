package chart

import "errors"

// ErrStaleHandle is returned by surface mutations that reference a handle the
// surface no longer owns, e.g. a price line removed by a previous overlay
// replacement cycle. The engine swallows it; callers outside this package
// should never see it.
var ErrStaleHandle = errors.New("chart: stale handle")

// Range is a visible time window over a surface's time scale, expressed in
// unix seconds.
type Range struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Point is one value of a line or histogram series.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Bar is one candlestick.
type Bar struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// LineStyle mirrors the rendering styles exposed to clients.
type LineStyle int

const (
	Solid LineStyle = iota
	Dotted
	Dashed
)

// PriceLine describes a horizontal annotation on a series.
type PriceLine struct {
	Price     float64   `json:"price"`
	Color     string    `json:"color"`
	Width     int       `json:"width"`
	Style     LineStyle `json:"style"`
	AxisLabel bool      `json:"axis_label"`
	Title     string    `json:"title"`
}

// PriceLineHandle is an opaque reference to a drawn price line. Handles are
// owned by the engine and live exactly one overlay update cycle.
type PriceLineHandle interface{}

// Marker positions and shapes follow the usual charting conventions.
const (
	AboveBar = "aboveBar"
	BelowBar = "belowBar"

	ArrowUp   = "arrowUp"
	ArrowDown = "arrowDown"
)

// Marker is a per-bar annotation.
type Marker struct {
	Time     int64  `json:"time"`
	Position string `json:"position"`
	Shape    string `json:"shape"`
	Color    string `json:"color"`
	Text     string `json:"text"`
}

// SeriesOptions style a series; the zero value is acceptable everywhere.
type SeriesOptions struct {
	Color     string    `json:"color"`
	DownColor string    `json:"down_color,omitempty"`
	Width     int       `json:"width,omitempty"`
	Style     LineStyle `json:"style,omitempty"`
}

// LineSeries is a line or histogram series on a surface.
type LineSeries interface {
	SetData(points []Point)
	// ValueAt resolves the series value at an exact time.
	ValueAt(time int64) (float64, bool)
	CreatePriceLine(pl PriceLine) (PriceLineHandle, error)
	RemovePriceLine(h PriceLineHandle) error
}

// CandleSeries is the OHLC series of the primary surface.
type CandleSeries interface {
	SetData(bars []Bar)
	// BarAt resolves the bar at an exact time from the series' own data.
	BarAt(time int64) (Bar, bool)
	CreatePriceLine(pl PriceLine) (PriceLineHandle, error)
	RemovePriceLine(h PriceLineHandle) error
	SetMarkers(ms []Marker) error
}

// Surface is one chart rendering target. Implementations deliver range-change
// callbacks synchronously on the goroutine that mutated the range, which is
// what makes the engine's boolean reentrancy guards sufficient.
type Surface interface {
	AddCandleSeries(opts SeriesOptions) CandleSeries
	AddLineSeries(opts SeriesOptions) LineSeries
	AddHistogramSeries(opts SeriesOptions) LineSeries

	OnVisibleRangeChange(fn func(Range))
	SetVisibleRange(r Range)
	VisibleRange() Range

	ClearCrosshair()
	SetWidth(px int)
	Width() int

	Dispose() error
}

// SurfaceFactory creates surfaces; the engine owns their lifecycle.
type SurfaceFactory interface {
	NewSurface(width, height int) Surface
}

// ResizeNotifier reports container width changes. Subscribe returns a detach
// function; Close must detach before disposing surfaces.
type ResizeNotifier interface {
	Subscribe(fn func(width int)) (cancel func())
}
