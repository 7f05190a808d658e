// Package tiles implements the OSM slippy-map tile scheme on Web Mercator
// coordinates.
package tiles

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/wegman-software/ways2geometry/internal/proj"
)

// Size is the edge length of a standard raster tile in pixels
const Size = 256

// MaxZoom is the highest zoom level tile servers commonly serve
const MaxZoom = 19

// Tile represents a map tile at a specific zoom level
type Tile struct {
	Z int // Zoom level
	X int // X coordinate (column)
	Y int // Y coordinate (row)
}

// String returns the tile in z/x/y format
func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Span returns the edge length in meters of a tile at zoom
func Span(zoom int) float64 {
	return 2 * proj.MaxExtent / float64(int(1)<<zoom)
}

// Resolution returns meters per pixel at zoom
func Resolution(zoom int) float64 {
	return Span(zoom) / Size
}

// MercatorToTile returns the tile containing the Web Mercator point p.
// Points outside the plane are clamped to the edge tiles.
func MercatorToTile(p orb.Point, zoom int) Tile {
	n := int(1) << zoom
	span := Span(zoom)

	x := int(math.Floor((p[0] + proj.MaxExtent) / span))
	y := int(math.Floor((proj.MaxExtent - p[1]) / span))

	return Tile{Z: zoom, X: clamp(x, 0, n-1), Y: clamp(y, 0, n-1)}
}

// Bound returns the Web Mercator extent of the tile
func (t Tile) Bound() orb.Bound {
	span := Span(t.Z)
	minX := float64(t.X)*span - proj.MaxExtent
	maxY := proj.MaxExtent - float64(t.Y)*span
	return orb.Bound{
		Min: orb.Point{minX, maxY - span},
		Max: orb.Point{minX + span, maxY},
	}
}

// Range represents a range of tiles at a specific zoom level
type Range struct {
	Z          int
	MinX, MaxX int
	MinY, MaxY int
}

// RangeForBound returns the tiles covering a Web Mercator bound
func RangeForBound(b orb.Bound, zoom int) Range {
	// Y grows southwards, so the top-left tile holds the max y
	topLeft := MercatorToTile(orb.Point{b.Min[0], b.Max[1]}, zoom)
	bottomRight := MercatorToTile(orb.Point{b.Max[0], b.Min[1]}, zoom)

	return Range{
		Z:    zoom,
		MinX: topLeft.X,
		MaxX: bottomRight.X,
		MinY: topLeft.Y,
		MaxY: bottomRight.Y,
	}
}

// Count returns the number of tiles in the range
func (r Range) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Tiles returns all tiles in the range, row by row
func (r Range) Tiles() []Tile {
	tiles := make([]Tile, 0, r.Count())
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			tiles = append(tiles, Tile{Z: r.Z, X: x, Y: y})
		}
	}
	return tiles
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
