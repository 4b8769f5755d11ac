// Package chart renders measurement series as standalone HTML line charts.
package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/coolbeans/labtrail/pkg/journal"
)

const dateLayout = "Jan 2, 2006"

// RenderKey builds a trend chart for one measurement key and writes it to w
// as a self-contained HTML page. The key may be a display name; it is
// normalized the same way keys are.
func RenderKey(w io.Writer, j *journal.Journal, key string) error {
	series, err := j.Series(key)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no measurements recorded for %q", key)
	}
	return buildLine(series).Render(w)
}

// RenderAll writes one chart page per measurement key into dir, named
// <key>.html, and returns the paths written.
func RenderAll(j *journal.Journal, dir string) ([]string, error) {
	keys, err := j.Keys()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	written := make([]string, 0, len(keys))
	for _, info := range keys {
		path := filepath.Join(dir, info.Key+".html")
		f, err := os.Create(path)
		if err != nil {
			return written, fmt.Errorf("failed to create chart file: %w", err)
		}
		renderErr := RenderKey(f, j, info.Key)
		if closeErr := f.Close(); renderErr == nil {
			renderErr = closeErr
		}
		if renderErr != nil {
			return written, fmt.Errorf("failed to render chart for %s: %w", info.Key, renderErr)
		}
		written = append(written, path)
	}
	return written, nil
}

func buildLine(series []journal.Entry) *charts.Line {
	title := series[len(series)-1].Name

	var unitLabel string
	for _, e := range series {
		if e.Unit != "" {
			unitLabel = e.Unit
			break
		}
	}

	xAxis := make([]string, 0, len(series))
	yData := make([]opts.LineData, 0, len(series))
	var dataMin, dataMax float64

	for i, e := range series {
		xAxis = append(xAxis, e.CollectedAt.Format(dateLayout))
		yData = append(yData, opts.LineData{Value: e.Value})

		if i == 0 {
			dataMin = e.Value
			dataMax = e.Value
		} else {
			if e.Value < dataMin {
				dataMin = e.Value
			}
			if e.Value > dataMax {
				dataMax = e.Value
			}
		}
	}

	refLow, refHigh := latestRange(series)

	// Scale the y-axis to keep the reference band visible even when every
	// data point sits inside or outside it.
	var yAxisMin, yAxisMax interface{}
	if refLow != nil && refHigh != nil {
		padding := (*refHigh - *refLow) * 0.1
		minVal := *refLow - padding
		maxVal := *refHigh + padding

		if dataMin < minVal {
			minVal = dataMin - (dataMax-dataMin)*0.05
		}
		if dataMax > maxVal {
			maxVal = dataMax + (dataMax-dataMin)*0.05
		}

		yAxisMin = minVal
		yAxisMax = maxVal
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: unitLabel,
			Min:  yAxisMin,
			Max:  yAxisMax,
		}),
	)

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{
			Smooth:     opts.Bool(true),
			ShowSymbol: opts.Bool(true),
		}),
		charts.WithMarkPointNameTypeItemOpts(
			opts.MarkPointNameTypeItem{Name: "Max", Type: "max"},
			opts.MarkPointNameTypeItem{Name: "Min", Type: "min"},
		),
	}

	var markLineItems []interface{}
	if refLow != nil {
		markLineItems = append(markLineItems, opts.MarkLineNameYAxisItem{
			Name:  "Ref Low",
			YAxis: *refLow,
		})
	}
	if refHigh != nil {
		markLineItems = append(markLineItems, opts.MarkLineNameYAxisItem{
			Name:  "Ref High",
			YAxis: *refHigh,
		})
	}
	if len(markLineItems) > 0 {
		seriesOpts = append(seriesOpts, func(s *charts.SingleSeries) {
			s.MarkLines = &opts.MarkLines{
				Data: markLineItems,
				MarkLineStyle: opts.MarkLineStyle{
					Symbol: []string{"none", "none"},
					LineStyle: &opts.LineStyle{
						Color: "rgba(128, 128, 128, 0.6)",
						Type:  "dashed",
						Width: 1.5,
					},
				},
			}
		})
	}

	line.SetXAxis(xAxis).
		AddSeries(title, yData).
		SetSeriesOptions(seriesOpts...)

	return line
}

// latestRange returns the reference bounds of the most recent entry that
// carries a full numeric range. Reports that only quote inequality text
// contribute nothing here.
func latestRange(series []journal.Entry) (*float64, *float64) {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].HasRange() {
			return series[i].RefLow, series[i].RefHigh
		}
	}
	return nil, nil
}
