// Package plotting renders training diagnostics with gonum/plot: loss
// curves for the gradient based models and cluster scatter plots for
// k-means. The output format follows the file extension (.png or .svg).
package plotting

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
)

const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

// checkPath はサポートする拡張子かどうかを確認する
func checkPath(op, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg":
		return nil
	default:
		return errors.NewValueError(op, fmt.Sprintf("unsupported plot format %q, use .png or .svg", filepath.Ext(path)))
	}
}

// LossCurve plots cost against iteration and writes it to path.
func LossCurve(costs []float64, title, path string) error {
	const op = "plotting.LossCurve"
	if err := checkPath(op, path); err != nil {
		return err
	}
	if len(costs) == 0 {
		return errors.NewValueError(op, "no costs to plot")
	}
	if err := errors.CheckNumericalStability(op, costs, 0); err != nil {
		return err
	}

	pts := make(plotter.XYs, len(costs))
	for i, c := range costs {
		pts[i].X = float64(i)
		pts[i].Y = c
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "cost"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "loss curve")
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = plotutil.Color(0)
	p.Add(line)

	return save(p, path, len(costs))
}

// Clusters draws the first two features of X coloured by label, with the
// centroids marked by crosses.
func Clusters(X mat.Matrix, labels []int, centroids mat.Matrix, path string) error {
	const op = "plotting.Clusters"
	if err := checkPath(op, path); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 {
		return errors.ErrEmptyData
	}
	if c < 2 {
		return errors.NewDimensionError(op, 2, c, 1)
	}
	if len(labels) != r {
		return errors.NewDimensionError(op, r, len(labels), 0)
	}
	k, kc := centroids.Dims()
	if kc != c {
		return errors.NewDimensionError(op, c, kc, 1)
	}

	groups := make([]plotter.XYs, k)
	for i := 0; i < r; i++ {
		l := labels[i]
		if l < 0 || l >= k {
			return errors.NewValueError(op, fmt.Sprintf("label %d at row %d is outside [0, %d)", l, i, k))
		}
		groups[l] = append(groups[l], plotter.XY{X: X.At(i, 0), Y: X.At(i, 1)})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("k-means (k=%d)", k)
	p.X.Label.Text = "feature 0"
	p.Y.Label.Text = "feature 1"
	p.Add(plotter.NewGrid())

	for j, pts := range groups {
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrap(err, "cluster scatter")
		}
		s.GlyphStyle.Color = plotutil.Color(j)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("cluster %d", j), s)
	}

	cents := make(plotter.XYs, k)
	for j := 0; j < k; j++ {
		cents[j] = plotter.XY{X: centroids.At(j, 0), Y: centroids.At(j, 1)}
	}
	cs, err := plotter.NewScatter(cents)
	if err != nil {
		return errors.Wrap(err, "centroid scatter")
	}
	cs.GlyphStyle.Color = color.Black
	cs.GlyphStyle.Shape = draw.CrossGlyph{}
	cs.GlyphStyle.Radius = vg.Points(6)
	p.Add(cs)
	p.Legend.Add("centroids", cs)

	return save(p, path, r)
}

func save(p *plot.Plot, path string, n int) error {
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	log.GetLoggerWithName("plotting").Debug("plot written", "path", path, log.SamplesKey, n)
	return nil
}
