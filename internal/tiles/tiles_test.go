package tiles

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/ways2geometry/internal/proj"
)

func mercator(lon, lat float64) orb.Point {
	x, y := proj.LonLatToWebMercator(lon, lat)
	return orb.Point{x, y}
}

func TestMercatorToTile(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		wantX    int
		wantY    int
	}{
		{name: "London at zoom 10", lat: 51.5074, lon: -0.1278, zoom: 10, wantX: 511, wantY: 340},
		{name: "Monaco at zoom 12", lat: 43.7384, lon: 7.4246, zoom: 12, wantX: 2132, wantY: 1493},
		{name: "Berlin at zoom 10", lat: 52.52, lon: 13.405, zoom: 10, wantX: 550, wantY: 335},
		{name: "Sydney at zoom 11", lat: -33.8688, lon: 151.2093, zoom: 11, wantX: 1884, wantY: 1228},
		{name: "Origin at zoom 0", lat: 0, lon: 0, zoom: 0, wantX: 0, wantY: 0},
		{name: "Origin at zoom 1", lat: 0, lon: 0, zoom: 1, wantX: 1, wantY: 1},
		{name: "Antimeridian clamps", lat: 0, lon: 180, zoom: 2, wantX: 3, wantY: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tile := MercatorToTile(mercator(tt.lon, tt.lat), tt.zoom)
			if tile.X != tt.wantX || tile.Y != tt.wantY {
				t.Errorf("MercatorToTile(%f, %f, %d) = (%d, %d), want (%d, %d)",
					tt.lat, tt.lon, tt.zoom, tile.X, tile.Y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestTileBound(t *testing.T) {
	b := Tile{Z: 1, X: 1, Y: 0}.Bound()
	if math.Abs(b.Min[0]) > 1e-6 || math.Abs(b.Max[0]-proj.MaxExtent) > 1e-6 {
		t.Errorf("unexpected x extent %v", b)
	}
	if math.Abs(b.Min[1]) > 1e-6 || math.Abs(b.Max[1]-proj.MaxExtent) > 1e-6 {
		t.Errorf("unexpected y extent %v", b)
	}

	// the centre of a tile maps back to the tile
	tile := Tile{Z: 14, X: 8802, Y: 5373}
	if got := MercatorToTile(tile.Bound().Center(), 14); got != tile {
		t.Errorf("expected %v, got %v", tile, got)
	}
}

func TestRangeForBound(t *testing.T) {
	// Monaco bounding box
	b := orb.Bound{Min: mercator(7.409, 43.724), Max: mercator(7.440, 43.752)}

	r := RangeForBound(b, 14)
	if r.Count() < 1 {
		t.Errorf("expected at least 1 tile, got %d", r.Count())
	}
	if r.MinX > r.MaxX || r.MinY > r.MaxY {
		t.Errorf("invalid range %+v", r)
	}

	tiles := r.Tiles()
	if len(tiles) != r.Count() {
		t.Errorf("expected %d tiles, got %d", r.Count(), len(tiles))
	}
	if tiles[0].X != r.MinX || tiles[0].Y != r.MinY {
		t.Errorf("expected first tile at top-left, got %v", tiles[0])
	}
}

func TestResolution(t *testing.T) {
	// ~156543 m/px at zoom 0
	if res := Resolution(0); math.Abs(res-156543.03) > 0.01 {
		t.Errorf("unexpected zoom 0 resolution %f", res)
	}
	if Resolution(1)*2 != Resolution(0) {
		t.Error("resolution must halve per zoom level")
	}
}

func TestTileString(t *testing.T) {
	if s := (Tile{Z: 12, X: 2132, Y: 1493}).String(); s != "12/2132/1493" {
		t.Errorf("unexpected string %s", s)
	}
}
