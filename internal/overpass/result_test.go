package overpass

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/osm"
)

const sampleResponse = `{
  "version": 0.6,
  "generator": "Overpass API 0.7.62",
  "osm3s": {"timestamp_osm_base": "2024-03-01T10:00:00Z", "copyright": "ODbL"},
  "elements": [
    {
      "type": "way",
      "id": 1,
      "nodes": [10, 11],
      "geometry": [{"lat": 52.0, "lon": 13.0}, {"lat": 52.1, "lon": 13.1}],
      "tags": {"highway": "tunnel"}
    },
    {
      "type": "way",
      "id": 2,
      "nodes": [12, 13, 14],
      "geometry": [{"lat": 48.1, "lon": 11.5}, {"lat": 48.2, "lon": 11.6}, {"lat": 48.3, "lon": 11.7}]
    }
  ]
}`

func TestParse(t *testing.T) {
	res, err := Parse([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := res.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if len(doc.Elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(doc.Elements))
	}

	first := doc.Elements[0]
	if first.Type != osm.TypeWay {
		t.Errorf("expected type way, got %q", first.Type)
	}
	if first.ID != 1 {
		t.Errorf("expected id 1, got %d", first.ID)
	}
	if len(first.Nodes) != 2 || first.Nodes[0] != 10 || first.Nodes[1] != 11 {
		t.Errorf("unexpected nodes %v", first.Nodes)
	}
	if len(first.Geometry) != 2 {
		t.Errorf("expected 2 raw coordinates, got %d", len(first.Geometry))
	}
	if first.Tags["highway"] != "tunnel" {
		t.Errorf("expected highway=tunnel, got %v", first.Tags)
	}

	if doc.Elements[1].Tags != nil {
		t.Errorf("expected absent tags to decode as nil, got %v", doc.Elements[1].Tags)
	}

	meta := res.Meta()
	if meta.Generator != "Overpass API 0.7.62" {
		t.Errorf("unexpected generator %q", meta.Generator)
	}
	if meta.Timestamp != "2024-03-01T10:00:00Z" {
		t.Errorf("unexpected timestamp %q", meta.Timestamp)
	}
	if meta.Elements != 2 {
		t.Errorf("expected 2 elements in meta, got %d", meta.Elements)
	}
}

func TestDecode(t *testing.T) {
	res, err := Decode(strings.NewReader(sampleResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Meta().Elements != 2 {
		t.Errorf("expected 2 elements, got %d", res.Meta().Elements)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "malformed json", input: `{"elements": [`},
		{name: "missing elements", input: `{"version": 0.6}`, wantErr: ErrNoElements},
		{name: "wrong id type", input: `{"elements": [{"id": "one"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEmptyElementsIsValid(t *testing.T) {
	res, err := Parse([]byte(`{"elements": []}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, _ := res.ToJSON()
	if len(doc.Elements) != 0 {
		t.Errorf("expected no elements, got %d", len(doc.Elements))
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunnels.json")
	if err := os.WriteFile(path, []byte(sampleResponse), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	res, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, _ := res.ToJSON()
	if doc.Elements[1].ID != 2 {
		t.Errorf("expected second element id 2, got %d", doc.Elements[1].ID)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := ReadFile(empty); err == nil {
		t.Error("expected error for empty file")
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNilResult(t *testing.T) {
	var r *Result
	if _, err := r.ToJSON(); !errors.Is(err, ErrNoElements) {
		t.Errorf("expected ErrNoElements, got %v", err)
	}
}
