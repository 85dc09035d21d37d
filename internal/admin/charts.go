package admin

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/httputil"
)

const defaultMaxPoints = 8000

// viridis is shared by the HTML chart and the PNG so both read the same way.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// maxPoints parses the max_points query parameter.
func maxPoints(r *http.Request) (int, error) {
	v := r.URL.Query().Get("max_points")
	if v == "" {
		return defaultMaxPoints, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid max_points %q", v)
	}
	return n, nil
}

// sampleCells returns every stride-th cell so at most limit remain, plus the
// highest out-degree seen across all cells.
func sampleCells(snap grid.Snapshot, limit int) (cells []grid.CellSnapshot, stride, maxDegree int) {
	stride = 1
	if len(snap.Cells) > limit {
		stride = (len(snap.Cells) + limit - 1) / limit
	}
	cells = make([]grid.CellSnapshot, 0, len(snap.Cells)/stride+1)
	for i, c := range snap.Cells {
		maxDegree = max(maxDegree, len(c.Edges))
		if i%stride == 0 {
			cells = append(cells, c)
		}
	}
	return cells, stride, maxDegree
}

// handleGridChart renders the cell reference points with go-echarts, coloured
// by out-degree.
// Query params:
//   - max_points (optional; default 8000) to reduce payload size
func (s *Server) handleGridChart(w http.ResponseWriter, r *http.Request) {
	limit, err := maxPoints(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	snap := s.engine.Store().Snapshot()
	cells, stride, maxDegree := sampleCells(snap, limit)

	data := make([]opts.ScatterData, 0, len(cells))
	for _, c := range cells {
		data = append(data, opts.ScatterData{Value: []interface{}{c.PointX, c.PointY, len(c.Edges)}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Walk Grid", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Walk Grid", Subtitle: fmt.Sprintf("cells=%d edges=%d stride=%d", len(snap.Cells), snap.EdgeCount(), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(max(maxDegree, 1)),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("cells", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// degreeColor maps an out-degree onto the viridis palette.
func degreeColor(degree, maxDegree int) color.Color {
	idx := 0
	if maxDegree > 0 {
		idx = degree * (len(viridis) - 1) / maxDegree
	}
	idx = min(max(idx, 0), len(viridis)-1)
	return hexColor(viridis[idx])
}

func hexColor(s string) color.RGBA {
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
