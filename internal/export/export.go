// Package export writes a converted way table and its tag lookup to files.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/parquet"
	"github.com/wegman-software/ways2geometry/internal/proj"
	"github.com/wegman-software/ways2geometry/internal/ways"
)

// Format names an output format
type Format string

const (
	FormatGeoJSON    Format = "geojson"
	FormatFlatGeobuf Format = "fgb"
	FormatParquet    Format = "parquet"
	FormatTags       Format = "tags"
)

const (
	defaultLayerName = "ways"
	waysBaseName     = "ways"
	tagsBaseName     = "way_tags"
)

var (
	// ErrUnknownFormat is returned for format names this package cannot write
	ErrUnknownFormat = errors.New("unknown output format")
	// ErrNotWGS84 is returned when a table is not in EPSG:4326
	ErrNotWGS84 = errors.New("table must be in EPSG:4326")
)

// AllFormats lists every supported format in the order they are written
var AllFormats = []Format{FormatGeoJSON, FormatFlatGeobuf, FormatParquet, FormatTags}

// Options tunes the writers
type Options struct {
	BatchSize    int    // Parquet rows per row group
	LayerName    string // FlatGeobuf layer name
	IncludeIndex bool   // FlatGeobuf packed R-tree index
}

// DefaultOptions returns the options used by the CLI
func DefaultOptions() Options {
	return Options{
		BatchSize:    parquet.DefaultBatchSize,
		LayerName:    defaultLayerName,
		IncludeIndex: true,
	}
}

// ParseFormats parses a comma separated list such as "geojson,tags".
// "all" selects every format. Duplicates are dropped.
func ParseFormats(s string) ([]Format, error) {
	if strings.TrimSpace(s) == "all" {
		return AllFormats, nil
	}

	var formats []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		if !isKnown(f) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: no format given", ErrUnknownFormat)
	}
	return formats, nil
}

func isKnown(f Format) bool {
	for _, k := range AllFormats {
		if k == f {
			return true
		}
	}
	return false
}

// Write writes one format into dir and returns the paths it created
func Write(format Format, dir string, table *ways.Table, tags ways.TagTable, opts Options) ([]string, error) {
	if table.SRID != proj.SRID4326 {
		return nil, fmt.Errorf("%w (got %d)", ErrNotWGS84, table.SRID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	log := logger.Get()
	var paths []string

	switch format {
	case FormatGeoJSON:
		path := filepath.Join(dir, waysBaseName+".geojson")
		if err := writeFile(path, func(w io.Writer) error { return WriteGeoJSON(w, table) }); err != nil {
			return nil, err
		}
		paths = append(paths, path)

	case FormatFlatGeobuf:
		path := filepath.Join(dir, waysBaseName+".fgb")
		if err := writeFile(path, func(w io.Writer) error { return WriteFlatGeobuf(w, table, opts) }); err != nil {
			return nil, err
		}
		paths = append(paths, path)

	case FormatParquet:
		p, err := writeParquet(dir, table, tags, opts)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p...)

	case FormatTags:
		path := filepath.Join(dir, tagsBaseName+".json")
		if err := writeFile(path, func(w io.Writer) error { return WriteTags(w, tags) }); err != nil {
			return nil, err
		}
		paths = append(paths, path)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	for _, p := range paths {
		log.Info("Wrote output", zap.String("format", string(format)), zap.String("path", p), zap.Int("ways", table.Len()))
	}
	return paths, nil
}

func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeParquet(dir string, table *ways.Table, tags ways.TagTable, opts Options) ([]string, error) {
	waysPath := filepath.Join(dir, waysBaseName+".parquet")
	tagsPath := filepath.Join(dir, tagsBaseName+".parquet")

	bound := table.Bound()
	ww, err := parquet.NewWayWriter(waysPath, opts.BatchSize, &bound)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", waysPath, err)
	}
	for _, r := range table.Rows {
		if err := ww.Write(r); err != nil {
			ww.Close()
			return nil, fmt.Errorf("failed to write %s: %w", waysPath, err)
		}
	}
	if err := ww.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", waysPath, err)
	}

	tw, err := parquet.NewTagWriter(tagsPath, opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", tagsPath, err)
	}
	// row order keeps the tag file aligned with the ways file
	for _, r := range table.Rows {
		if err := tw.Write(int64(r.ID), tags[r.ID]); err != nil {
			tw.Close()
			return nil, fmt.Errorf("failed to write %s: %w", tagsPath, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", tagsPath, err)
	}

	return []string{waysPath, tagsPath}, nil
}
