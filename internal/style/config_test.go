package style

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/wegman-software/ways2geometry/internal/ways"
)

const roadsStyle = `
ways:
  require_any: [highway, railway]
  include:
    highway: [primary, secondary, tunnel]
    railway: []
  exclude:
    access: [private]
    disused: ["*"]
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(roadsStyle))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if len(cfg.Ways.RequireAny) != 2 {
		t.Errorf("expected 2 require_any keys, got %v", cfg.Ways.RequireAny)
	}
	if got := cfg.Ways.Include["highway"]; len(got) != 3 {
		t.Errorf("unexpected highway include %v", got)
	}
	if !NewFilter(cfg.Ways).HasFilter() {
		t.Error("expected filter to be active")
	}
}

func TestParseConfigErrors(t *testing.T) {
	if _, err := ParseConfig([]byte("points: {}\n")); !errors.Is(err, ErrEmptyStyle) {
		t.Errorf("expected ErrEmptyStyle, got %v", err)
	}
	if _, err := ParseConfig([]byte("ways: [unclosed\n")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	if err := os.WriteFile(path, []byte(roadsStyle), 0o644); err != nil {
		t.Fatalf("failed to write style: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Ways == nil {
		t.Fatal("expected ways section")
	}
}

func TestFilterMatch(t *testing.T) {
	cfg, err := ParseConfig([]byte(roadsStyle))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	f := NewFilter(cfg.Ways)

	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{name: "primary road", tags: map[string]string{"highway": "primary"}, want: true},
		{name: "tunnel", tags: map[string]string{"highway": "tunnel"}, want: true},
		{name: "footway not included", tags: map[string]string{"highway": "footway"}, want: false},
		{name: "any railway", tags: map[string]string{"railway": "rail"}, want: true},
		{name: "private road", tags: map[string]string{"highway": "primary", "access": "private"}, want: false},
		{name: "disused wildcard", tags: map[string]string{"railway": "rail", "disused": "yes"}, want: false},
		{name: "no required key", tags: map[string]string{"building": "yes"}, want: false},
		{name: "no tags", tags: map[string]string{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Match(tt.tags); got != tt.want {
				t.Errorf("Match(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestNilFilterMatchesAll(t *testing.T) {
	f := NewFilter(nil)
	if f.HasFilter() {
		t.Error("nil config must not filter")
	}
	if !f.Match(nil) || !f.Match(map[string]string{"x": "y"}) {
		t.Error("nil config must match everything")
	}
}

func TestFilterKeepWithTable(t *testing.T) {
	cfg, err := ParseConfig([]byte(roadsStyle))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	table := &ways.Table{SRID: 4326, Rows: []ways.Row{
		{ID: 1, NodeIDs: []osm.NodeID{1, 2}, Geometry: orb.LineString{{0, 0}, {1, 1}}},
		{ID: 2, NodeIDs: []osm.NodeID{3, 4}, Geometry: orb.LineString{{1, 1}, {2, 2}}},
	}}
	tags := ways.TagTable{
		1: {"highway": "secondary"},
		2: {"building": "yes"},
	}

	kept, keptTags, err := table.Filter(tags, NewFilter(cfg.Ways).Keep)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if kept.Len() != 1 || kept.Rows[0].ID != 1 {
		t.Errorf("expected only way 1, got %+v", kept.Rows)
	}
	if _, ok := keptTags[2]; ok {
		t.Error("tags of dropped way must be removed")
	}
}
