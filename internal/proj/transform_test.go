package proj

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestLonLatToWebMercator(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		wantX    float64
		wantY    float64
	}{
		{name: "origin", lon: 0, lat: 0, wantX: 0, wantY: 0},
		{name: "antimeridian", lon: 180, lat: 0, wantX: MaxExtent, wantY: 0},
		{name: "north clamp", lon: 0, lat: 89.9, wantX: 0, wantY: MaxExtent},
		{name: "berlin", lon: 13.4, lat: 52.5, wantX: 1491681.18, wantY: 6891041.72},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := LonLatToWebMercator(tt.lon, tt.lat)
			if math.Abs(x-tt.wantX) > 1 || math.Abs(y-tt.wantY) > 1 {
				t.Errorf("LonLatToWebMercator(%f, %f) = (%f, %f), want (%f, %f)",
					tt.lon, tt.lat, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestNewTransformer(t *testing.T) {
	if _, err := NewTransformer(SRID3857, SRID4326); err == nil {
		t.Error("expected error for unsupported source")
	}
	if _, err := NewTransformer(SRID4326, 27700); err == nil {
		t.Error("expected error for unsupported target")
	}

	tr, err := NewTransformer(SRID4326, SRID4326)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.NeedsTransform() {
		t.Error("identity transformer should not need a transform")
	}
	if x, y := tr.Transform(13.4, 52.5); x != 13.4 || y != 52.5 {
		t.Errorf("identity transform changed coordinates: (%f, %f)", x, y)
	}
}

func TestTransformLineString(t *testing.T) {
	tr, err := NewTransformer(SRID4326, SRID3857)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ls := orb.LineString{{0, 0}, {180, 0}}
	out := tr.TransformLineString(ls)

	if len(out) != 2 {
		t.Fatalf("expected 2 points, got %d", len(out))
	}
	if math.Abs(out[1][0]-MaxExtent) > 1e-6 {
		t.Errorf("expected x=%f, got %f", MaxExtent, out[1][0])
	}
	if ls[1][0] != 180 {
		t.Error("input linestring was modified")
	}
}
