// Package preview draws a way table over a basemap as a PNG image.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"time"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/proj"
	"github.com/wegman-software/ways2geometry/internal/tiles"
	"github.com/wegman-software/ways2geometry/internal/ways"
)

// ErrEmptyTable is returned when there is nothing to draw
var ErrEmptyTable = errors.New("preview: table has no geometries")

// Drawing colors
var (
	LineColor   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	MarkerColor = color.NRGBA{R: 255, G: 0, B: 0, A: 128}
	Background  = color.RGBA{R: 242, G: 239, B: 233, A: 255}
)

// Renderer draws a table somewhere
type Renderer interface {
	Render(ctx context.Context, table *ways.Table) error
}

// Options controls image size and styling
type Options struct {
	Width        int
	Height       int
	MaxZoom      int
	Padding      int // pixels kept free around the data
	LineWidth    int
	MarkerRadius int
	Concurrency  int // parallel tile fetches
}

// DefaultOptions returns a 1000x600 image with OSM zoom limits
func DefaultOptions() Options {
	return Options{
		Width:        1000,
		Height:       600,
		MaxZoom:      tiles.MaxZoom,
		Padding:      20,
		LineWidth:    2,
		MarkerRadius: 4,
		Concurrency:  4,
	}
}

// PNGRenderer renders to a PNG stream. A nil TileSource draws on a plain
// background.
type PNGRenderer struct {
	w      io.Writer
	source TileSource
	opts   Options
	log    *zap.Logger
}

// NewPNGRenderer creates a renderer writing to w
func NewPNGRenderer(w io.Writer, source TileSource, opts Options) *PNGRenderer {
	return &PNGRenderer{w: w, source: source, opts: opts, log: logger.Get()}
}

// viewport maps Web Mercator coordinates to image pixels
type viewport struct {
	bound orb.Bound
	res   float64
}

func (v viewport) pixel(p orb.Point) (float64, float64) {
	return (p[0] - v.bound.Min[0]) / v.res, (v.bound.Max[1] - p[1]) / v.res
}

// Render draws the table and encodes the image
func (r *PNGRenderer) Render(ctx context.Context, table *ways.Table) error {
	start := time.Now()

	if r.opts.Width <= 0 || r.opts.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", r.opts.Width, r.opts.Height)
	}

	merc, err := toMercator(table)
	if err != nil {
		return err
	}
	if !hasGeometry(merc) {
		return ErrEmptyTable
	}

	bound := merc.Bound()
	zoom := FitZoom(bound, r.opts)
	res := tiles.Resolution(zoom)
	center := bound.Center()
	halfW := float64(r.opts.Width) / 2 * res
	halfH := float64(r.opts.Height) / 2 * res
	view := viewport{
		bound: orb.Bound{
			Min: orb.Point{center[0] - halfW, center[1] - halfH},
			Max: orb.Point{center[0] + halfW, center[1] + halfH},
		},
		res: res,
	}

	canvas := image.NewRGBA(image.Rect(0, 0, r.opts.Width, r.opts.Height))
	dc := gg.NewContextForRGBA(canvas)
	dc.SetColor(Background)
	dc.Clear()

	if r.source != nil {
		if err := r.drawBasemap(ctx, canvas, view, zoom); err != nil {
			return err
		}
	}

	for _, row := range merc.Rows {
		r.drawLine(dc, view, row.Geometry)
	}
	for _, row := range merc.Rows {
		r.drawMarker(dc, view, row.Geometry)
	}

	if err := png.Encode(r.w, canvas); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	r.log.Info("Preview rendered",
		zap.Int("ways", merc.Len()),
		zap.Int("zoom", zoom),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func toMercator(table *ways.Table) (*ways.Table, error) {
	if table == nil {
		return nil, ErrEmptyTable
	}
	if table.SRID == proj.SRID3857 {
		return table, nil
	}
	return table.Reproject(proj.SRID3857)
}

func hasGeometry(t *ways.Table) bool {
	for _, r := range t.Rows {
		if len(r.Geometry) > 0 {
			return true
		}
	}
	return false
}

// FitZoom returns the highest zoom up to opts.MaxZoom at which the Web
// Mercator bound fits inside the padded image.
func FitZoom(b orb.Bound, opts Options) int {
	maxZoom := opts.MaxZoom
	if maxZoom <= 0 || maxZoom > tiles.MaxZoom {
		maxZoom = tiles.MaxZoom
	}
	availW := float64(opts.Width - 2*opts.Padding)
	availH := float64(opts.Height - 2*opts.Padding)
	if availW <= 0 || availH <= 0 {
		return 0
	}

	for z := maxZoom; z > 0; z-- {
		res := tiles.Resolution(z)
		if b.Max[0]-b.Min[0] <= availW*res && b.Max[1]-b.Min[1] <= availH*res {
			return z
		}
	}
	return 0
}

// drawBasemap fetches the tiles under the view concurrently and pastes
// them onto the canvas. Any failed tile fails the render.
func (r *PNGRenderer) drawBasemap(ctx context.Context, canvas *image.RGBA, view viewport, zoom int) error {
	covering := tiles.RangeForBound(view.bound, zoom).Tiles()
	images := make([]image.Image, len(covering))

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.Concurrency > 0 {
		g.SetLimit(r.opts.Concurrency)
	}
	for i, t := range covering {
		i, t := i, t
		g.Go(func() error {
			img, err := r.source.Tile(gctx, t)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to fetch basemap: %w", err)
	}

	for i, t := range covering {
		tb := t.Bound()
		x, y := view.pixel(orb.Point{tb.Min[0], tb.Max[1]})
		x0, y0 := int(math.Round(x)), int(math.Round(y))
		rect := image.Rect(x0, y0, x0+tiles.Size, y0+tiles.Size)
		draw.Draw(canvas, rect, images[i], images[i].Bounds().Min, draw.Src)
	}

	r.log.Debug("Basemap drawn", zap.Int("tiles", len(covering)), zap.Int("zoom", zoom))
	return nil
}

// drawLine strokes a line string with round joins. A single point is drawn
// as a dot of the line width.
func (r *PNGRenderer) drawLine(dc *gg.Context, view viewport, ls orb.LineString) {
	width := float64(r.opts.LineWidth)
	if width < 1 {
		width = 1
	}
	switch len(ls) {
	case 0:
		return
	case 1:
		x, y := view.pixel(ls[0])
		dc.DrawCircle(x, y, width/2)
		dc.SetColor(LineColor)
		dc.Fill()
		return
	}

	for i, p := range ls {
		x, y := view.pixel(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.SetColor(LineColor)
	dc.SetLineWidth(width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.Stroke()
}

// drawMarker blends a filled circle at the centroid of ls
func (r *PNGRenderer) drawMarker(dc *gg.Context, view viewport, ls orb.LineString) {
	if len(ls) == 0 || r.opts.MarkerRadius <= 0 {
		return
	}
	c, _ := planar.CentroidArea(ls)
	x, y := view.pixel(c)
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	dc.DrawCircle(x, y, float64(r.opts.MarkerRadius))
	dc.SetColor(MarkerColor)
	dc.Fill()
}
