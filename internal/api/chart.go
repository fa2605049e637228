package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fastplot/internal/httputil"
)

// handleChart renders the current window as an ECharts line chart (HTML).
// This is a debugging-only endpoint: a zero-dependency reference consumer of
// the snapshot accessor, not the real rendering layer. Reload the page to
// refresh.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	snap := s.c.Snapshot()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "fastplot", Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Live serial window",
			Subtitle: fmt.Sprintf("state=%s rows=%d", snap.State, len(snap.Rows)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	xAxis := make([]string, len(snap.Rows))
	for i := range snap.Rows {
		xAxis[i] = strconv.Itoa(i)
	}
	line.SetXAxis(xAxis)

	for col, label := range snap.Labels {
		series := make([]opts.LineData, 0, len(snap.Rows))
		for _, row := range snap.Rows {
			if col < len(row) {
				series = append(series, opts.LineData{Value: row[col]})
			}
		}
		line.AddSeries(label, series)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
