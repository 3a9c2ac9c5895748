package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/spatiotemporal"
)

// Overview is what the session page shows.
type Overview struct {
	Title   string
	Table   spatiotemporal.Table
	Cycles  *cycles.Collection
	Exclude cycles.ExclusionSet
	// AssetsHost overrides where the page loads echarts from; empty uses
	// the library default.
	AssetsHost string
}

var (
	distanceMetrics = []string{
		spatiotemporal.StrideLength, spatiotemporal.StepLengthLeft,
		spatiotemporal.StepLengthRight, spatiotemporal.StepWidth,
	}
	phaseMetrics = []string{
		spatiotemporal.StancePct, spatiotemporal.SwingPct,
		spatiotemporal.SingleSupportPct, spatiotemporal.DoubleSupportPct,
	}
)

// WriteHTML renders the session page: spatiotemporal bars then, per cycle
// kind, one chart of side means per channel.
func WriteHTML(w io.Writer, o Overview) error {
	page := components.NewPage()
	page.PageTitle = o.Title
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}

	if len(o.Table.Trials) > 0 {
		page.AddCharts(
			metricBar(o, "Distances (m)", distanceMetrics),
			metricBar(o, "Gait phases (%)", phaseMetrics),
		)
	}
	if o.Cycles != nil {
		for _, kind := range cycles.Kinds {
			for i, name := range cycles.GenericChannels(kind) {
				if line := meanLine(o, kind, i, name); line != nil {
					page.AddCharts(line)
				}
			}
		}
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render session page: %w", err)
	}
	return nil
}

func initOpts(o Overview, height string) opts.Initialization {
	return opts.Initialization{PageTitle: o.Title, Width: "900px", Height: height, AssetsHost: o.AssetsHost}
}

func metricBar(o Overview, title string, metrics []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(o, "420px")),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: o.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	bar.SetXAxis(metrics)
	for _, s := range o.Table.Trials {
		bar.AddSeries(s.Trial, barData(metrics, s.Get))
	}
	bar.AddSeries("Average", barData(metrics, o.Table.Average),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func barData(metrics []string, get func(string) (float64, bool)) []opts.BarData {
	out := make([]opts.BarData, len(metrics))
	for i, m := range metrics {
		if v, ok := get(m); ok {
			out[i] = opts.BarData{Value: round3(v)}
		} else {
			out[i] = opts.BarData{Value: "-"}
		}
	}
	return out
}

func meanLine(o Overview, kind cycles.Kind, channel int, name string) *charts.Line {
	var series []struct {
		side gait.Side
		data []float64
	}
	for _, side := range gait.Sides {
		m, ok := o.Cycles.Mean(kind, side, o.Exclude)
		if !ok || channel >= len(m.Data) {
			continue
		}
		series = append(series, struct {
			side gait.Side
			data []float64
		}{side, m.Data[channel]})
	}
	if len(series) == 0 {
		return nil
	}

	n := len(series[0].data)
	x := make([]string, n)
	for k := range x {
		x[k] = fmt.Sprintf("%.0f", 100*float64(k)/math.Max(1, float64(n-1)))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(o, "360px")),
		charts.WithTitleOpts(opts.Title{Title: name, Subtitle: string(kind)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "% cycle", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(x)
	for _, s := range series {
		data := make([]opts.LineData, len(s.data))
		for k, v := range s.data {
			if math.IsNaN(v) {
				data[k] = opts.LineData{Value: "-"}
				continue
			}
			data[k] = opts.LineData{Value: round3(v)}
		}
		line.AddSeries(s.side.String(), data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}
	return line
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
