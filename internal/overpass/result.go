// Package overpass decodes Overpass API JSON responses ("[out:json]" with
// "out geom") into a Result that exposes the raw element list.
package overpass

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/goccy/go-json"
	"github.com/paulmach/osm"
)

// ErrNoElements is returned when a response has no "elements" member
var ErrNoElements = errors.New("overpass: response has no elements member")

// Element is a single entry of the "elements" array.
// Geometry is left undecoded; each entry is a {"lat": .., "lon": ..} object
// (or null for nodes Overpass could not resolve).
type Element struct {
	Type     osm.Type          `json:"type,omitempty"`
	ID       int64             `json:"id"`
	Nodes    []int64           `json:"nodes,omitempty"`
	Geometry []json.RawMessage `json:"geometry,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// OSM3S carries the data snapshot information Overpass attaches to a response
type OSM3S struct {
	TimestampOSMBase string `json:"timestamp_osm_base,omitempty"`
	Copyright        string `json:"copyright,omitempty"`
}

// Document is the top level JSON object returned by Overpass
type Document struct {
	Version   float64   `json:"version,omitempty"`
	Generator string    `json:"generator,omitempty"`
	OSM3S     OSM3S     `json:"osm3s,omitempty"`
	Elements  []Element `json:"elements"`
}

// Meta summarises a response for logging
type Meta struct {
	Generator string
	Timestamp string
	Elements  int
}

// Result is a decoded Overpass response
type Result struct {
	doc *Document
}

// NewResult wraps an already built document
func NewResult(doc *Document) *Result {
	return &Result{doc: doc}
}

// ToJSON returns the decoded {"elements": [...]} document
func (r *Result) ToJSON() (*Document, error) {
	if r == nil || r.doc == nil {
		return nil, ErrNoElements
	}
	return r.doc, nil
}

// Meta returns generator and snapshot information of the response
func (r *Result) Meta() Meta {
	if r == nil || r.doc == nil {
		return Meta{}
	}
	return Meta{
		Generator: r.doc.Generator,
		Timestamp: r.doc.OSM3S.TimestampOSMBase,
		Elements:  len(r.doc.Elements),
	}
}

// Parse decodes a response held in memory
func Parse(data []byte) (*Result, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}
	return checked(&doc)
}

// Decode reads and decodes a response from r
func Decode(r io.Reader) (*Result, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}
	return checked(&doc)
}

// ReadFile memory-maps path and decodes it
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("input %s is empty", path)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to map input: %w", err)
	}
	defer m.Unmap()

	// Unmarshal copies its input, nothing decoded refers to the mapping.
	return Parse(m)
}

func checked(doc *Document) (*Result, error) {
	if doc.Elements == nil {
		return nil, ErrNoElements
	}
	return &Result{doc: doc}, nil
}
