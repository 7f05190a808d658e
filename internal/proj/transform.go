package proj

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// SRID constants for the projections this tool works with
const (
	SRID4326 = 4326 // WGS84 (lon/lat)
	SRID3857 = 3857 // Web Mercator
)

// Web Mercator constants
const (
	// Semi-major axis of WGS84 ellipsoid in meters
	earthRadius = 6378137.0
	// MaxExtent is half the width of the Web Mercator plane in meters
	MaxExtent = 20037508.342789244
	// MaxLat is the latitude at which Web Mercator becomes square
	MaxLat = 85.0511287798
)

// Transformer converts coordinates between projections
type Transformer struct {
	SourceSRID int
	TargetSRID int
}

// NewTransformer creates a transformer from source to target SRID
func NewTransformer(sourceSRID, targetSRID int) (*Transformer, error) {
	if sourceSRID != SRID4326 {
		return nil, fmt.Errorf("unsupported source SRID: %d (only 4326 supported)", sourceSRID)
	}
	if targetSRID != SRID4326 && targetSRID != SRID3857 {
		return nil, fmt.Errorf("unsupported target SRID: %d (only 4326 and 3857 supported)", targetSRID)
	}

	return &Transformer{
		SourceSRID: sourceSRID,
		TargetSRID: targetSRID,
	}, nil
}

// NeedsTransform returns true if transformation is required
func (t *Transformer) NeedsTransform() bool {
	return t.SourceSRID != t.TargetSRID
}

// Transform converts lon, lat into x, y of the target projection
func (t *Transformer) Transform(lon, lat float64) (x, y float64) {
	if !t.NeedsTransform() {
		return lon, lat
	}
	return LonLatToWebMercator(lon, lat)
}

// TransformPoint converts a single (lon, lat) point
func (t *Transformer) TransformPoint(p orb.Point) orb.Point {
	x, y := t.Transform(p[0], p[1])
	return orb.Point{x, y}
}

// TransformLineString returns a projected copy of ls; ls is not modified.
func (t *Transformer) TransformLineString(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = t.TransformPoint(p)
	}
	return out
}

// LonLatToWebMercator converts WGS84 (lon, lat) to Web Mercator (x, y) meters.
// Latitudes beyond ±MaxLat are clamped.
func LonLatToWebMercator(lon, lat float64) (x, y float64) {
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	x = lon * MaxExtent / 180.0

	// y = R * ln(tan(π/4 + φ/2))
	latRad := lat * math.Pi / 180.0
	y = math.Log(math.Tan(math.Pi/4.0+latRad/2.0)) * earthRadius

	return x, y
}
