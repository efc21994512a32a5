// Package charts renders the prediction charts shown by the desktop form.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"calhousing/housing"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 320
	HistogramBins = 10
)

var (
	featureColor    = drawing.ColorFromHex("1f77b4")
	predictionColor = drawing.ColorFromHex("d62728")
	scatterColor    = drawing.ColorFromHex("2ca02c")
	histogramColor  = drawing.ColorFromHex("9467bd")
)

// ErrNotFinite is returned when a chart would need an axis range that is
// NaN or infinite.
var ErrNotFinite = errors.New("chart values must be finite")

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// Size of every rendered chart, in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) orDefault() Size {
	if s.Width <= 0 {
		s.Width = DefaultWidth
	}
	if s.Height <= 0 {
		s.Height = DefaultHeight
	}
	return s
}

// Bar draws the input features next to the predicted value.
func Bar(features []float64, prediction float64, size Size) (image.Image, error) {
	if len(features) != housing.NumFeatures {
		return nil, fmt.Errorf("bar chart needs %d features, got %d", housing.NumFeatures, len(features))
	}
	size = size.orDefault()

	bars := make([]chart.Value, 0, len(features)+1)
	values := make([]float64, 0, len(features)+1)
	for i, v := range features {
		bars = append(bars, chart.Value{
			Label: housing.FeatureNames[i],
			Value: v,
			Style: chart.Style{FillColor: featureColor, StrokeColor: featureColor},
		})
		values = append(values, v)
	}
	bars = append(bars, chart.Value{
		Label: housing.PredictionColumn,
		Value: prediction,
		Style: chart.Style{FillColor: predictionColor, StrokeColor: predictionColor},
	})
	values = append(values, prediction)

	lo, hi, err := paddedRange(append(values, 0))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bc := chart.BarChart{
		Title:      "Input Features and Predicted House Value",
		Width:      size.Width,
		Height:     size.Height,
		BarWidth:   barWidth(size.Width, len(bars)),
		BarSpacing: 8,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Name:  "Value",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
	return render(bc)
}

// Scatter plots MedInc against the predicted value for every record.
func Scatter(records []housing.Record, size Size) (image.Image, error) {
	size = size.orDefault()
	if len(records) == 0 {
		return Blank(size), nil
	}

	xs := make([]float64, 0, len(records))
	ys := make([]float64, 0, len(records))
	for _, rec := range records {
		x, ok := rec.Feature("MedInc")
		if !ok || !isFinite(x) || !isFinite(rec.Prediction) {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, rec.Prediction)
	}
	if len(xs) == 0 {
		return Blank(size), nil
	}

	xLo, xHi, err := paddedRange(xs)
	if err != nil {
		return nil, fmt.Errorf("scatter x axis: %w", err)
	}
	yLo, yHi, err := paddedRange(ys)
	if err != nil {
		return nil, fmt.Errorf("scatter y axis: %w", err)
	}
	ch := chart.Chart{
		Title:      "MedInc vs Predicted House Value",
		Width:      size.Width,
		Height:     size.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "MedInc", Range: &chart.ContinuousRange{Min: xLo, Max: xHi}},
		YAxis:      chart.YAxis{Name: "Predicted House Value", Range: &chart.ContinuousRange{Min: yLo, Max: yHi}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "MedInc vs Prediction",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    4,
					DotColor:    scatterColor,
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return render(ch)
}

// Histogram draws the distribution of predictions over HistogramBins bins.
func Histogram(predictions []float64, size Size) (image.Image, error) {
	size = size.orDefault()
	bins := Bins(predictions, HistogramBins)
	if len(bins) == 0 {
		return Blank(size), nil
	}

	bars := make([]chart.Value, 0, len(bins))
	maxCount := 0
	for _, b := range bins {
		bars = append(bars, chart.Value{
			Label: binLabel(b.Lo/2 + b.Hi/2),
			Value: float64(b.Count),
			Style: chart.Style{FillColor: histogramColor, StrokeColor: drawing.ColorBlack, StrokeWidth: 1},
		})
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}

	bc := chart.BarChart{
		Title:      "Distribution of Predicted House Values",
		Width:      size.Width,
		Height:     size.Height,
		BarWidth:   barWidth(size.Width, len(bars)),
		BarSpacing: 2,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Name:  "Frequency",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount) + 1},
		},
		Bars: bars,
	}
	return render(bc)
}

// Bin is one histogram bucket covering [Lo, Hi).
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Bins splits values into n equal-width bins. The maximum value lands in
// the last bin. When all values are equal the bins span value±0.5.
func Bins(values []float64, n int) []Bin {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 || n <= 0 {
		return nil
	}

	lo, hi := finite[0], finite[0]
	for _, v := range finite[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	// hi-lo may overflow for values near the float64 limits; the
	// scaled forms below stay finite.
	width := hi/float64(n) - lo/float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = interpolate(lo, hi, float64(i)/float64(n))
		bins[i].Hi = interpolate(lo, hi, float64(i+1)/float64(n))
	}
	for _, v := range finite {
		pos := v/width - lo/width
		idx := n - 1
		if pos < float64(n) {
			idx = int(math.Max(pos, 0))
		}
		bins[idx].Count++
	}
	return bins
}

func interpolate(lo, hi, f float64) float64 {
	return lo*(1-f) + hi*f
}

func binLabel(v float64) string {
	if math.Abs(v) >= 1e6 {
		return fmt.Sprintf("%.3g", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Blank returns an empty white image used before any prediction exists.
func Blank(size Size) image.Image {
	size = size.orDefault()
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func render(r renderable) (image.Image, error) {
	var buf bytes.Buffer
	if err := r.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	return img, nil
}

// paddedRange returns the axis range for values with 5% padding. go-chart
// does not return when handed a NaN or infinite range, so those are errors.
func paddedRange(values []float64) (float64, float64, error) {
	if len(values) == 0 {
		return 0, 1, nil
	}
	for _, v := range values {
		if !isFinite(v) {
			return 0, 0, ErrNotFinite
		}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.1, 1)
	}
	lo, hi = lo-pad, hi+pad
	if !isFinite(pad) || !isFinite(lo) || !isFinite(hi) || !isFinite(hi-lo) {
		return 0, 0, ErrNotFinite
	}
	return lo, hi, nil
}

func barWidth(width, bars int) int {
	if bars <= 0 {
		return 0
	}
	w := (width - 120) / (bars + 2)
	if w < 4 {
		w = 4
	}
	return w
}
