// Package report renders session figures: PNG traces of the external loads
// and of the normalised cycles (gonum/plot), and an HTML overview page
// (go-echarts).
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/grf"
)

// Side colours follow the usual clinical convention.
var sideColors = map[gait.Side]color.Color{
	gait.Left:  color.RGBA{R: 200, G: 30, B: 30, A: 255},
	gait.Right: color.RGBA{R: 30, G: 140, B: 50, A: 255},
}

const gridCols = 3

// PlotForces renders the force channels of an external-loads table as PNG,
// one line per side and axis.
func PlotForces(w io.Writer, title string, t grf.Table) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Force (N)"

	var chans []grf.Channel
	for _, c := range grf.Channels() {
		if c.Quantity == grf.Force {
			chans = append(chans, c)
		}
	}
	colors := generateColors(len(chans))
	for i, c := range chans {
		pts := xys(t.Time, t.Get(c))
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(c.Label(), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render force plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("save force plot: %w", err)
	}
	return nil
}

// PlotCycles renders a PNG grid of panels for one cycle kind, one panel per
// channel. Each kept cycle is drawn thin in its side's colour with the side
// mean drawn thick on top. It returns false when there was nothing to plot.
func PlotCycles(w io.Writer, kind cycles.Kind, col *cycles.Collection, exclude cycles.ExclusionSet) (bool, error) {
	cs := col.Cycles(kind, exclude)
	if len(cs) == 0 {
		return false, nil
	}
	names := cycles.GenericChannels(kind)
	panels := make([]*plot.Plot, len(names))
	for i, name := range names {
		p := plot.New()
		p.Title.Text = name
		p.X.Label.Text = "% cycle"
		p.X.Min, p.X.Max = 0, 100
		panels[i] = p
	}

	for _, c := range cs {
		if err := addCycle(panels, c, vg.Points(0.5), withAlpha(sideColors[c.Side], 90)); err != nil {
			return false, err
		}
	}
	for _, side := range gait.Sides {
		m, ok := col.Mean(kind, side, exclude)
		if !ok {
			continue
		}
		if err := addCycle(panels, m, vg.Points(2), sideColors[side]); err != nil {
			return false, err
		}
	}

	rows := (len(panels) + gridCols - 1) / gridCols
	grid := make([][]*plot.Plot, rows)
	for j := range grid {
		grid[j] = make([]*plot.Plot, gridCols)
		for i := range grid[j] {
			if k := j*gridCols + i; k < len(panels) {
				grid[j][i] = panels[k]
			}
		}
	}

	img := vgimg.New(vg.Length(gridCols)*5*vg.Inch, vg.Length(rows)*4*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: gridCols,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Points(4), PadBottom: vg.Points(4),
		PadLeft: vg.Points(4), PadRight: vg.Points(4),
	}
	canvases := plot.Align(grid, tiles, dc)
	for j := range grid {
		for i, p := range grid[j] {
			if p != nil {
				p.Draw(canvases[j][i])
			}
		}
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return false, fmt.Errorf("save %s plot: %w", kind, err)
	}
	return true, nil
}

func addCycle(panels []*plot.Plot, c cycles.Cycle, width vg.Length, clr color.Color) error {
	last := float64(c.Len() - 1)
	if last <= 0 {
		return nil
	}
	pct := make([]float64, c.Len())
	for k := range pct {
		pct[k] = 100 * float64(k) / last
	}
	for i := range c.Data {
		if i >= len(panels) {
			break
		}
		pts := xys(pct, c.Data[i])
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = clr
		line.Width = width
		panels[i].Add(line)
	}
	return nil
}

// xys pairs x and y, dropping non-finite samples which plotter rejects.
func xys(x, y []float64) plotter.XYs {
	n := min(len(x), len(y))
	pts := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

func withAlpha(c color.Color, a uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: a}
}

// generateColors creates a palette of distinct colours.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
