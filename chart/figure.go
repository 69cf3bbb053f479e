// Package chart renders benchmark results with gonum/plot.
//
// A Figure is built from plain FigureData so the same series can be drawn as
// an image or dumped as JSON. Figures with several panels stack them
// vertically and align their data areas, which is how a shared-x dual-axis
// chart is drawn since gonum/plot has no twin y axis.
package chart

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// Default sizes of a single panel figure.
const (
	DefaultWidth       = 8 * vg.Inch
	DefaultHeight      = 6 * vg.Inch
	DefaultPanelHeight = 3.5 * vg.Inch
)

// DataPoint is one point of a series. Label is drawn next to the point when
// set.
type DataPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// SeriesData is a named line with markers.
type SeriesData struct {
	Name   string      `json:"name"`
	Points []DataPoint `json:"data"`
}

// PanelData describes one set of axes.
type PanelData struct {
	Title  string       `json:"title,omitempty"`
	XLabel string       `json:"x_axis_label"`
	YLabel string       `json:"y_axis_label"`
	Series []SeriesData `json:"series"`
}

// FigureData is everything needed to draw a Figure.
type FigureData struct {
	Title  string      `json:"title"`
	Panels []PanelData `json:"panels"`
	// SharedX forces every panel onto the same x range.
	SharedX bool `json:"shared_x"`
}

// Figure is a rendered set of vertically stacked panels.
type Figure struct {
	Data          FigureData
	Width, Height vg.Length

	panels []*plot.Plot
}

// New builds a Figure from data.
func New(data FigureData) (*Figure, error) {
	if len(data.Panels) == 0 {
		return nil, errors.NewValidationError("panels", "a figure needs at least one panel", 0)
	}

	f := &Figure{Data: data, Width: DefaultWidth, Height: DefaultHeight}
	if n := len(data.Panels); n > 1 {
		f.Height = vg.Length(n) * DefaultPanelHeight
	}

	for i, pd := range data.Panels {
		p, err := newPanel(pd)
		if err != nil {
			return nil, errors.Wrapf(err, "chart: panel %d", i)
		}
		f.panels = append(f.panels, p)
	}
	if data.Title != "" {
		top := f.panels[0]
		if top.Title.Text == "" {
			top.Title.Text = data.Title
		} else {
			top.Title.Text = data.Title + "\n" + top.Title.Text
		}
	}

	if data.SharedX && len(f.panels) > 1 {
		xmin, xmax := math.Inf(1), math.Inf(-1)
		for _, p := range f.panels {
			xmin, xmax = math.Min(xmin, p.X.Min), math.Max(xmax, p.X.Max)
		}
		for _, p := range f.panels {
			p.X.Min, p.X.Max = xmin, xmax
		}
	}
	return f, nil
}

// Panels returns the underlying plots, top to bottom.
func (f *Figure) Panels() []*plot.Plot {
	return f.panels
}

func newPanel(pd PanelData) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = pd.Title
	p.X.Label.Text = pd.XLabel
	p.Y.Label.Text = pd.YLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	var all plotter.XYs
	for i, s := range pd.Series {
		if len(s.Points) == 0 {
			return nil, errors.NewValidationError("series", "must contain at least one point", s.Name)
		}
		xys := make(plotter.XYs, len(s.Points))
		labels := make([]string, len(s.Points))
		labelled := false
		for k, pt := range s.Points {
			xys[k] = plotter.XY{X: pt.X, Y: pt.Y}
			labels[k] = pt.Label
			labelled = labelled || pt.Label != ""
		}

		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		points.GlyphStyle.Color = plotutil.Color(i)
		points.GlyphStyle.Shape = plotutil.Shape(i)
		points.GlyphStyle.Radius = vg.Points(3)
		p.Add(line, points)
		if s.Name != "" {
			p.Legend.Add(s.Name, line, points)
		}

		if labelled {
			l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
			if err != nil {
				return nil, errors.WithStack(err)
			}
			l.Offset = vg.Point{X: vg.Points(4), Y: vg.Points(4)}
			p.Add(l)
		}
		all = append(all, xys...)
	}

	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = autoRange(all)
	return p, nil
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return -1, 1, -1, 1
	}
	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, p := range xs {
		xmin, xmax = math.Min(xmin, p.X), math.Max(xmax, p.X)
		ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

// WriterTo draws the figure on a canvas of the given size and format
// (png, svg, pdf, eps, jpg, tif).
func (f *Figure) WriterTo(w, h vg.Length, format string) (io.WriterTo, error) {
	c, err := draw.NewFormattedCanvas(w, h, strings.ToLower(format))
	if err != nil {
		return nil, errors.NewValueError("Figure.WriterTo", err.Error())
	}
	dc := draw.New(c)

	if len(f.panels) == 1 {
		f.panels[0].Draw(dc)
		return c, nil
	}

	rows := make([][]*plot.Plot, len(f.panels))
	for i, p := range f.panels {
		rows[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{
		Rows:      len(f.panels),
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(8),
		PadY:      vg.Points(12),
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}
	return c, nil
}

// Save writes the figure to path. The format is taken from the extension and
// missing parent directories are created.
func (f *Figure) Save(path string) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return errors.NewValueError("Figure.Save", "cannot infer the image format of "+path)
	}
	wt, err := f.WriterTo(f.Width, f.Height, format)
	if err != nil {
		return err
	}

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "chart: creating directory for %s", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "chart: creating %s", path)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "chart: closing %s", path)
		}
	}()
	if _, err := wt.WriteTo(file); err != nil {
		return errors.Wrapf(err, "chart: writing %s", path)
	}

	log.GetLoggerWithName("chart").Info("Figure saved", "path", path, "panels", len(f.panels))
	return nil
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}
