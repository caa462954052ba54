package spectrum

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotOptions controls the spectrum chart.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	// Format is any format gonum/plot can write: "png", "svg", "pdf", ...
	Format string
}

// DefaultPlotOptions returns a 10x5 inch PNG chart.
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Title:  "Spectra",
		Width:  10 * vg.Inch,
		Height: 5 * vg.Inch,
		Format: "png",
	}
}

// Plot draws one line per sample and writes the chart to w. Non-finite
// values are left out of the line.
func Plot(samples []*Sample, opts PlotOptions, w io.Writer) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}
	def := DefaultPlotOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Format == "" {
		opts.Format = def.Format
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = xLabel(samples)
	p.Y.Label.Text = "Value"

	for _, s := range samples {
		xs := s.XValues()
		pts := make(plotter.XYs, 0, len(s.Values))
		for i, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: xs[i], Y: v})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("error building line for %q: %w", s.Name, err)
		}
		line.Color = s.Color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(opts.Width, opts.Height, opts.Format)
	if err != nil {
		return fmt.Errorf("error creating %s writer: %w", opts.Format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func xLabel(samples []*Sample) string {
	for _, s := range samples {
		if len(s.Wavelengths) != len(s.Values) {
			return "Channel"
		}
	}
	if units := samples[0].WavelengthUnits; units != "" {
		return fmt.Sprintf("Wavelength (%s)", units)
	}
	return "Wavelength"
}
