package admin

import (
	"bytes"
	"fmt"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/httputil"
)

// renderGridPNG draws cell reference points coloured by out-degree.
func renderGridPNG(cells []grid.CellSnapshot, maxDegree int, title string) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	if len(cells) > 0 {
		pts := make(plotter.XYs, len(cells))
		for i, c := range cells {
			pts[i] = plotter.XY{X: float64(c.PointX), Y: float64(c.PointY)}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create scatter: %w", err)
		}
		sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{
				Color:  degreeColor(len(cells[i].Edges), maxDegree),
				Radius: vg.Points(2),
				Shape:  draw.CircleGlyph{},
			}
		}
		p.Add(sc)
	}

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render png: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) handleGridPNG(w http.ResponseWriter, r *http.Request) {
	limit, err := maxPoints(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	snap := s.engine.Store().Snapshot()
	cells, _, maxDegree := sampleCells(snap, limit)
	img, err := renderGridPNG(cells, maxDegree,
		fmt.Sprintf("Walk grid: %d cells, %d edges", len(snap.Cells), snap.EdgeCount()))
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(img)
}
