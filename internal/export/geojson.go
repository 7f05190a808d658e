package export

import (
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb/geojson"

	"github.com/wegman-software/ways2geometry/internal/ways"
)

// FeatureCollection builds a GeoJSON collection with one LineString feature
// per row. Properties carry id and node_IDs; tags stay in the tag table.
// Rows with fewer than two points get a null geometry.
func FeatureCollection(table *ways.Table) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range table.Rows {
		f := geojson.NewFeature(nil)
		if r.IsLine() {
			f.Geometry = r.Geometry
		}
		f.ID = int64(r.ID)
		f.Properties[ways.ColumnID] = int64(r.ID)
		f.Properties[ways.ColumnNodeIDs] = nodeIDs(r)
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the table as a GeoJSON FeatureCollection
func WriteGeoJSON(w io.Writer, table *ways.Table) error {
	b, err := FeatureCollection(table).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// WriteTags writes the tag table as a JSON object keyed by way id
func WriteTags(w io.Writer, tags ways.TagTable) error {
	out := make(map[string]map[string]string, len(tags))
	for id, tg := range tags {
		if tg == nil {
			tg = map[string]string{}
		}
		out[strconv.FormatInt(int64(id), 10)] = tg
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func nodeIDs(r ways.Row) []int64 {
	ids := make([]int64, len(r.NodeIDs))
	for i, id := range r.NodeIDs {
		ids[i] = int64(id)
	}
	return ids
}
