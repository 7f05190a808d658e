// Package ways turns Overpass way elements into a table of WGS84 line
// geometries plus a separate way id -> tags lookup.
package ways

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/wegman-software/ways2geometry/internal/proj"
)

// Column names of a Table, in output order
const (
	ColumnID       = "id"
	ColumnNodeIDs  = "node_IDs"
	ColumnGeometry = "geometry"
)

// Row is one way: its identifier, node sequence and (lon, lat) line
type Row struct {
	ID       osm.WayID
	NodeIDs  []osm.NodeID
	Geometry orb.LineString
}

// IsLine reports whether the geometry has the two points a LineString
// needs. Rows kept under DegenerateKeep may have fewer.
func (r Row) IsLine() bool {
	return len(r.Geometry) >= 2
}

// Table is an ordered set of way rows in a single coordinate reference system
type Table struct {
	SRID int
	Rows []Row
}

// TagTable maps a way identifier to the tags it was returned with.
// Kept apart from Table so rows do not carry sparse tag columns.
type TagTable map[osm.WayID]map[string]string

// Columns returns the column names of the table
func (t *Table) Columns() []string {
	return []string{ColumnID, ColumnNodeIDs, ColumnGeometry}
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Bound returns the bounding box of all non-empty geometries
func (t *Table) Bound() orb.Bound {
	var (
		b   orb.Bound
		set bool
	)
	for _, r := range t.Rows {
		if len(r.Geometry) == 0 {
			continue
		}
		if !set {
			b = r.Geometry.Bound()
			set = true
			continue
		}
		b = b.Union(r.Geometry.Bound())
	}
	return b
}

// Reproject returns a copy of the table in the target SRID
func (t *Table) Reproject(srid int) (*Table, error) {
	tr, err := proj.NewTransformer(t.SRID, srid)
	if err != nil {
		return nil, fmt.Errorf("failed to reproject table: %w", err)
	}

	out := &Table{SRID: srid, Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = Row{
			ID:       r.ID,
			NodeIDs:  r.NodeIDs,
			Geometry: tr.TransformLineString(r.Geometry),
		}
	}
	return out, nil
}

// KeepFunc decides whether a row survives a Filter call
type KeepFunc func(row Row, tags map[string]string) (bool, error)

// Filter returns the rows for which keep returns true, with a tag table
// restricted to the same way ids. Row order is preserved.
func (t *Table) Filter(tags TagTable, keep KeepFunc) (*Table, TagTable, error) {
	out := &Table{SRID: t.SRID, Rows: make([]Row, 0, len(t.Rows))}
	outTags := make(TagTable, len(t.Rows))

	for _, r := range t.Rows {
		ok, err := keep(r, tags[r.ID])
		if err != nil {
			return nil, nil, fmt.Errorf("filter failed on way %d: %w", r.ID, err)
		}
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, r)
		if tg, found := tags[r.ID]; found {
			outTags[r.ID] = tg
		}
	}
	return out, outTags, nil
}
