package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wegman-software/ways2geometry/internal/config"
	"github.com/wegman-software/ways2geometry/internal/ways"
)

const berlinMunich = `{
  "elements": [
    {"type": "node", "id": 5, "lat": 52.0, "lon": 13.0},
    {
      "type": "way", "id": 1, "nodes": [10, 11],
      "geometry": [{"lat": 52.0, "lon": 13.0}, {"lat": 52.1, "lon": 13.1}],
      "tags": {"highway": "tunnel"}
    },
    {
      "type": "way", "id": 2, "nodes": [12, 13, 14],
      "geometry": [{"lat": 48.1, "lon": 11.5}, {"lat": 48.2, "lon": 11.6}, {"lat": 48.3, "lon": 11.7}],
      "tags": {"railway": "rail"}
    },
    {
      "type": "way", "id": 3, "nodes": [15],
      "geometry": [{"lat": 48.1, "lon": 11.5}]
    }
  ]
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// withConfig swaps the global config for one test
func withConfig(t *testing.T, mutate func(c *config.Config)) {
	t.Helper()
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	cfg = config.DefaultConfig()
	cfg.InputFile = writeTemp(t, "ways.json", berlinMunich)
	cfg.Degenerate = "skip"
	mutate(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
}

func wayIDs(table *ways.Table) []int64 {
	ids := make([]int64, 0, table.Len())
	for _, r := range table.Rows {
		ids = append(ids, int64(r.ID))
	}
	return ids
}

func TestBuildTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   []int64
	}{
		{name: "no filters", mutate: func(c *config.Config) {}, want: []int64{1, 2}},
		{name: "bbox", mutate: func(c *config.Config) { c.BBoxSpec = "12.5,51.5,13.5,52.5" }, want: []int64{1}},
		{name: "style", mutate: func(c *config.Config) {
			c.StyleFile = writeTemp(t, "style.yaml", "ways:\n  require_any: [railway]\n")
		}, want: []int64{2}},
		{name: "script", mutate: func(c *config.Config) {
			c.ScriptFile = writeTemp(t, "filter.lua", "function filter_way(w) return #w.nodes == 2 end\n")
		}, want: []int64{1}},
		{name: "keep degenerate", mutate: func(c *config.Config) { c.Degenerate = "keep" }, want: []int64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withConfig(t, tt.mutate)

			table, tags, err := buildTable(context.Background())
			if err != nil {
				t.Fatalf("buildTable failed: %v", err)
			}
			got := wayIDs(table)
			if len(got) != len(tt.want) {
				t.Fatalf("got ways %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got ways %v, want %v", got, tt.want)
				}
			}
			if len(tags) != len(tt.want) {
				t.Errorf("expected %d tag entries, got %d", len(tt.want), len(tags))
			}
		})
	}
}

func TestBuildTableRejectsDegenerate(t *testing.T) {
	withConfig(t, func(c *config.Config) { c.Degenerate = "reject" })

	if _, _, err := buildTable(context.Background()); !errors.Is(err, ways.ErrDegenerateWay) {
		t.Errorf("expected ErrDegenerateWay, got %v", err)
	}
}

func TestBuildTableCancelled(t *testing.T) {
	withConfig(t, func(c *config.Config) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := buildTable(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
