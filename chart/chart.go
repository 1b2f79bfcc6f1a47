// Package chart draws grouped bar charts of model similarity results.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"simbench/types"
)

const (
	// BarWidth is the width of one bar in x data units
	BarWidth = 0.3
	// plotAreaFraction approximates the share of the canvas width left for
	// data once the y axis and margins are drawn
	plotAreaFraction = 0.85
)

var (
	// ErrInvalidAxis is returned for an empty or inverted y range or a non-positive step
	ErrInvalidAxis = errors.New("invalid y axis")

	// Trial colours
	Orange     = color.RGBA{R: 255, G: 165, A: 255}
	DarkViolet = color.RGBA{R: 148, B: 211, A: 255}
)

// Options controls how a result chart looks
type Options struct {
	Title        string
	Axis         types.Axis
	SeriesLabels [2]string
	Legend       bool
	Width        vg.Length
	Height       vg.Length
}

// Bar is the geometry of one bar
type Bar struct {
	Series int
	X      float64
	Height float64
}

// Layout places the first trial of model i at x=i and the second at x=i+0.3
func Layout(results []types.ModelResult) []Bar {
	bars := make([]Bar, 0, 2*len(results))
	for i, r := range results {
		bars = append(bars,
			Bar{Series: 0, X: float64(i), Height: r.MeanT1},
			Bar{Series: 1, X: float64(i) + BarWidth, Height: r.MeanT2},
		)
	}
	return bars
}

// ValidateAxis checks that an axis can be drawn
func ValidateAxis(axis types.Axis) error {
	if math.IsNaN(axis.Min) || math.IsNaN(axis.Max) || axis.Max <= axis.Min {
		return fmt.Errorf("%w: range [%g, %g]", ErrInvalidAxis, axis.Min, axis.Max)
	}
	if !(axis.Step > 0) {
		return fmt.Errorf("%w: step %g", ErrInvalidAxis, axis.Step)
	}
	return nil
}

// YTicks returns ceil((max-min)/step) ticks starting at min. Rounding in the
// quotient can add a last tick at max, e.g. 0.98..1.0 by 0.001 ends at 1.0.
func YTicks(axis types.Axis) []float64 {
	if ValidateAxis(axis) != nil {
		return nil
	}
	n := int(math.Ceil((axis.Max - axis.Min) / axis.Step))
	scale := math.Pow(10, float64(decimals(axis.Step)+2))

	ticks := make([]float64, n)
	for i := range ticks {
		ticks[i] = math.Round((axis.Min+float64(i)*axis.Step)*scale) / scale
	}
	return ticks
}

// decimals returns how many decimal places step needs
func decimals(step float64) int {
	d := 0
	for d < 10 {
		scaled := step * math.Pow(10, float64(d))
		if math.Abs(scaled-math.Round(scaled)) < 1e-9 {
			break
		}
		d++
	}
	return d
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 10 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 6 * vg.Inch
	}
	if o.SeriesLabels[0] == "" && o.SeriesLabels[1] == "" {
		o.SeriesLabels = [2]string{"Test 1", "Test 2"}
	}
	return o
}

// Build lays out the grouped bar chart for results
func Build(results []types.ModelResult, modelNames []string, opts Options) (*plot.Plot, error) {
	opts = opts.withDefaults()
	if err := ValidateAxis(opts.Axis); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to plot")
	}
	if len(modelNames) != len(results) {
		return nil, fmt.Errorf("%d model names for %d results", len(modelNames), len(results))
	}

	xMin := -0.5
	xMax := float64(len(results)-1) + BarWidth + 0.5
	width := vg.Length(float64(opts.Width) * plotAreaFraction * BarWidth / (xMax - xMin))

	charts, err := barCharts(results, width, opts.SeriesLabels)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Model"
	p.Y.Label.Text = "Similarity Score"

	p.Add(plotter.NewGrid())
	for s, bars := range charts {
		p.Add(bars)
		if opts.Legend {
			p.Legend.Add(opts.SeriesLabels[s], bars)
		}
	}
	p.Legend.Top = true

	p.NominalX(modelNames...)
	p.X.Min, p.X.Max = xMin, xMax

	p.Y.Min, p.Y.Max = opts.Axis.Min, opts.Axis.Max
	format := decimals(opts.Axis.Step)
	var ticks plot.ConstantTicks
	for _, v := range YTicks(opts.Axis) {
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', format, 64)})
	}
	p.Y.Tick.Marker = ticks

	return p, nil
}

// barCharts builds one bar series per trial. Series s starts at x = s*BarWidth
// so the bars of model i land at i and i+BarWidth.
func barCharts(results []types.ModelResult, width vg.Length, labels [2]string) ([2]*plotter.BarChart, error) {
	var series [2]plotter.Values
	for _, bar := range Layout(results) {
		series[bar.Series] = append(series[bar.Series], bar.Height)
	}

	colours := [2]color.Color{Orange, DarkViolet}
	var charts [2]*plotter.BarChart
	for s := range series {
		bars, err := plotter.NewBarChart(series[s], width)
		if err != nil {
			return charts, fmt.Errorf("cannot plot %s: %w", labels[s], err)
		}
		bars.XMin = float64(s) * BarWidth
		bars.Color = colours[s]
		bars.LineStyle.Width = vg.Length(0)
		charts[s] = bars
	}
	return charts, nil
}

// Encode renders p as a PNG
func Encode(p *plot.Plot, width, height vg.Length) ([]byte, error) {
	w, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("cannot render chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("cannot render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Render builds and encodes a chart in one step
func Render(results []types.ModelResult, modelNames []string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	p, err := Build(results, modelNames, opts)
	if err != nil {
		return nil, err
	}
	return Encode(p, opts.Width, opts.Height)
}
