package ways

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/overpass"
	"github.com/wegman-software/ways2geometry/internal/proj"
)

var (
	// ErrConversion is matched by every *ConversionError
	ErrConversion = errors.New("geometry coordinates must be numeric (lat, lon) pairs")
	// ErrDegenerateWay is returned for ways with fewer than two coordinates
	// under the reject policy
	ErrDegenerateWay = errors.New("way has fewer than two coordinates")

	errNullCoordinate = errors.New("coordinate is null")
	errMissingAxis    = errors.New("coordinate needs both lat and lon")
)

// ConversionError reports a coordinate that did not decode to a numeric pair
type ConversionError struct {
	WayID osm.WayID
	Index int
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("way %d, coordinate %d: %v: %v", e.WayID, e.Index, ErrConversion, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrConversion) match any ConversionError
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// DegeneratePolicy says what to do with ways of zero or one coordinate
type DegeneratePolicy string

const (
	DegenerateReject DegeneratePolicy = "reject"
	DegenerateSkip   DegeneratePolicy = "skip"
	DegenerateKeep   DegeneratePolicy = "keep"
)

// ParseDegeneratePolicy parses a policy name; empty means reject
func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch DegeneratePolicy(s) {
	case "", DegenerateReject:
		return DegenerateReject, nil
	case DegenerateSkip, DegenerateKeep:
		return DegeneratePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown degenerate way policy %q (supported: reject, skip, keep)", s)
	}
}

// Options tunes Convert. The zero value rejects degenerate ways.
type Options struct {
	Degenerate DegeneratePolicy
}

// Source is anything that can hand over an Overpass {"elements": [...]} document
type Source interface {
	ToJSON() (*overpass.Document, error)
}

// Convert builds the geometry table and the tag table from a query result.
// Rows follow input order. Every coordinate must decode to a numeric
// (lat, lon) pair, otherwise a *ConversionError is returned.
func Convert(src Source, opts Options) (*Table, TagTable, error) {
	doc, err := src.ToJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read query result: %w", err)
	}

	log := logger.Get()
	table := &Table{
		SRID: proj.SRID4326,
		Rows: make([]Row, 0, len(doc.Elements)),
	}
	tags := make(TagTable, len(doc.Elements))

	var skippedTypes, skippedDegenerate int
	for _, el := range doc.Elements {
		if el.Type != "" && el.Type != osm.TypeWay {
			skippedTypes++
			continue
		}

		id := osm.WayID(el.ID)
		line, err := parseGeometry(id, el.Geometry)
		if err != nil {
			return nil, nil, err
		}

		if len(line) < 2 {
			switch opts.Degenerate {
			case DegenerateKeep:
			case DegenerateSkip:
				log.Warn("Skipping degenerate way", zap.Int64("way_id", el.ID), zap.Int("points", len(line)))
				skippedDegenerate++
				continue
			default:
				return nil, nil, fmt.Errorf("way %d has %d coordinates: %w", el.ID, len(line), ErrDegenerateWay)
			}
		}

		table.Rows = append(table.Rows, Row{
			ID:       id,
			NodeIDs:  nodeIDs(el.Nodes),
			Geometry: line,
		})
		tags[id] = copyTags(el.Tags)
	}

	if skippedTypes > 0 {
		log.Debug("Ignored non-way elements", zap.Int("count", skippedTypes))
	}
	log.Debug("Converted ways",
		zap.Int("rows", len(table.Rows)),
		zap.Int("skipped_degenerate", skippedDegenerate),
	)

	return table, tags, nil
}

type coordinate struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

var jsonNull = []byte("null")

// parseGeometry decodes the raw {"lat", "lon"} objects of one way into a
// line. orb points are (x, y), so each pair is stored as (lon, lat).
func parseGeometry(id osm.WayID, raw []json.RawMessage) (orb.LineString, error) {
	line := make(orb.LineString, 0, len(raw))
	for i, r := range raw {
		if len(bytes.TrimSpace(r)) == 0 || bytes.Equal(bytes.TrimSpace(r), jsonNull) {
			return nil, &ConversionError{WayID: id, Index: i, Err: errNullCoordinate}
		}

		var c coordinate
		if err := json.Unmarshal(r, &c); err != nil {
			return nil, &ConversionError{WayID: id, Index: i, Err: err}
		}
		if c.Lat == nil || c.Lon == nil {
			return nil, &ConversionError{WayID: id, Index: i, Err: errMissingAxis}
		}

		line = append(line, orb.Point{*c.Lon, *c.Lat})
	}
	return line, nil
}

func nodeIDs(nodes []int64) []osm.NodeID {
	ids := make([]osm.NodeID, len(nodes))
	for i, n := range nodes {
		ids[i] = osm.NodeID(n)
	}
	return ids
}

func copyTags(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
