package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	"github.com/goccy/go-json"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"

	"github.com/wegman-software/ways2geometry/internal/proj"
	"github.com/wegman-software/ways2geometry/internal/ways"
)

// ErrNoGeometries is returned when no row has a geometry FlatGeobuf can hold
var ErrNoGeometries = errors.New("flatgeobuf: no non-empty geometries to write")

// Column indexes in the FlatGeobuf header
const (
	fgbColumnID      = 0
	fgbColumnNodeIDs = 1
)

// WriteFlatGeobuf writes the table as a FlatGeobuf LineString layer in
// EPSG:4326. Rows with fewer than two points are left out.
func WriteFlatGeobuf(w io.Writer, table *ways.Table, opts Options) error {
	rows := make([]ways.Row, 0, len(table.Rows))
	for _, r := range table.Rows {
		if r.IsLine() {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return ErrNoGeometries
	}

	builder := flatbuffers.NewBuilder(4096)

	header := writer.NewHeader(builder)
	header.SetGeometryType(flattypes.GeometryTypeLineString)
	name := opts.LayerName
	if name == "" {
		name = defaultLayerName
	}
	header.SetName(name)

	idCol := writer.NewColumn(builder)
	idCol.SetName(ways.ColumnID)
	idCol.SetTitle(ways.ColumnID)
	idCol.SetType(flattypes.ColumnTypeLong)
	idCol.SetNullable(false)

	nodesCol := writer.NewColumn(builder)
	nodesCol.SetName(ways.ColumnNodeIDs)
	nodesCol.SetTitle(ways.ColumnNodeIDs)
	nodesCol.SetType(flattypes.ColumnTypeJson)
	nodesCol.SetNullable(false)

	header.SetColumns([]*writer.Column{idCol, nodesCol})

	crs := writer.NewCrs(builder)
	crs.SetOrg("EPSG")
	crs.SetCode(int32(proj.SRID4326))
	crs.SetName("WGS 84")
	header.SetCrs(crs)

	gen := &rowFeatureGenerator{rows: rows}
	_, err := writer.NewWriter(header, opts.IncludeIndex, gen, nil).Write(w)
	return err
}

// rowFeatureGenerator feeds table rows to the FlatGeobuf writer
type rowFeatureGenerator struct {
	rows  []ways.Row
	index int
}

func (g *rowFeatureGenerator) Generate() *writer.Feature {
	if g.index >= len(g.rows) {
		return nil
	}
	r := g.rows[g.index]
	g.index++

	builder := flatbuffers.NewBuilder(1024)

	geom := writer.NewGeometry(builder)
	geom.SetType(flattypes.GeometryTypeLineString)
	geom.SetXY(lineStringXY(r.Geometry))

	feature := writer.NewFeature(builder)
	feature.SetGeometry(geom)
	feature.SetProperties(encodeRowProperties(r))
	return feature
}

func lineStringXY(ls orb.LineString) []float64 {
	xy := make([]float64, 0, len(ls)*2)
	for _, p := range ls {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

// encodeRowProperties encodes id (Long) and node_IDs (Json) as
// [uint16 column index][value] pairs; Json values are length prefixed.
func encodeRowProperties(r ways.Row) []byte {
	var buf bytes.Buffer

	buf.Write(binary.LittleEndian.AppendUint16(nil, fgbColumnID))
	buf.Write(binary.LittleEndian.AppendUint64(nil, uint64(r.ID)))

	nodes, err := json.Marshal(nodeIDs(r))
	if err != nil {
		nodes = []byte("[]")
	}
	buf.Write(binary.LittleEndian.AppendUint16(nil, fgbColumnNodeIDs))
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(nodes))))
	buf.Write(nodes)

	return buf.Bytes()
}
