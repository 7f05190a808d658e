package parquet

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/goccy/go-json"
	"github.com/paulmach/orb"

	"github.com/wegman-software/ways2geometry/internal/ways"
	"github.com/wegman-software/ways2geometry/internal/wkb"
)

// DefaultBatchSize is the number of rows per Parquet row group
const DefaultBatchSize = 50000

// GeoMetadataKey is the file metadata key GeoParquet readers look for
const GeoMetadataKey = "geo"

type geoColumn struct {
	Encoding      string    `json:"encoding"`
	GeometryTypes []string  `json:"geometry_types"`
	BBox          []float64 `json:"bbox,omitempty"`
}

type geoMetadata struct {
	Version       string               `json:"version"`
	PrimaryColumn string               `json:"primary_column"`
	Columns       map[string]geoColumn `json:"columns"`
}

// GeoMetadata builds the GeoParquet "geo" document for a LineString column.
// The crs member is omitted, which GeoParquet defines as OGC:CRS84 (lon/lat).
func GeoMetadata(bound *orb.Bound) (string, error) {
	col := geoColumn{
		Encoding:      "WKB",
		GeometryTypes: []string{"LineString"},
	}
	if bound != nil {
		col.BBox = []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
	}
	b, err := json.Marshal(geoMetadata{
		Version:       "1.0.0",
		PrimaryColumn: ways.ColumnGeometry,
		Columns:       map[string]geoColumn{ways.ColumnGeometry: col},
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type fileWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
}

func newFileWriter(path string, schema *arrow.Schema, batchSize int) (*fileWriter, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &fileWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

func (w *fileWriter) rowAdded() error {
	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *fileWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes the last row group and closes the file
func (w *fileWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	// the parquet writer may already have closed its sink
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// WayWriter writes way rows as GeoParquet: id, node_IDs, geometry (WKB)
type WayWriter struct {
	*fileWriter
	enc *wkb.Encoder
}

// NewWayWriter creates a GeoParquet writer. bound, when set, is stored as
// the geometry column bbox.
func NewWayWriter(path string, batchSize int, bound *orb.Bound) (*WayWriter, error) {
	geo, err := GeoMetadata(bound)
	if err != nil {
		return nil, fmt.Errorf("failed to build geo metadata: %w", err)
	}
	md := arrow.NewMetadata([]string{GeoMetadataKey}, []string{geo})

	schema := arrow.NewSchema([]arrow.Field{
		{Name: ways.ColumnID, Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: ways.ColumnNodeIDs, Type: arrow.ListOf(arrow.PrimitiveTypes.Int64), Nullable: false},
		{Name: ways.ColumnGeometry, Type: arrow.BinaryTypes.Binary, Nullable: false},
	}, &md)

	fw, err := newFileWriter(path, schema, batchSize)
	if err != nil {
		return nil, err
	}
	// GeoParquet wants ISO WKB without the EWKB SRID header
	return &WayWriter{fileWriter: fw, enc: wkb.NewEncoderWithSRID(1024, 0)}, nil
}

// Write appends one way row
func (w *WayWriter) Write(row ways.Row) error {
	w.builder.Field(0).(*array.Int64Builder).Append(int64(row.ID))

	lb := w.builder.Field(1).(*array.ListBuilder)
	lb.Append(true)
	vb := lb.ValueBuilder().(*array.Int64Builder)
	for _, id := range row.NodeIDs {
		vb.Append(int64(id))
	}

	// BinaryBuilder copies the value, so the encoder buffer can be reused
	w.builder.Field(2).(*array.BinaryBuilder).Append(w.enc.EncodeLineString(row.Geometry))

	return w.rowAdded()
}

// TagWriter writes the way id -> tags lookup: way_id, tags (JSON object)
type TagWriter struct {
	*fileWriter
}

// NewTagWriter creates a tag table Parquet writer
func NewTagWriter(path string, batchSize int) (*TagWriter, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "way_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "tags", Type: arrow.BinaryTypes.String, Nullable: false},
	}, nil)

	fw, err := newFileWriter(path, schema, batchSize)
	if err != nil {
		return nil, err
	}
	return &TagWriter{fileWriter: fw}, nil
}

// Write appends the tags of one way
func (w *TagWriter) Write(id int64, tags map[string]string) error {
	w.builder.Field(0).(*array.Int64Builder).Append(id)
	w.builder.Field(1).(*array.StringBuilder).Append(TagsToJSON(tags))
	return w.rowAdded()
}

// TagsToJSON converts a tag map to a JSON object string
func TagsToJSON(tags map[string]string) string {
	if len(tags) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}
