package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// BBox represents a geographic bounding box
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Bound returns the box as an orb.Bound in (lon, lat) order
func (b *BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// Intersects reports whether the line's bounding box touches the box.
// An unset box accepts every line; an empty line never matches a set box.
func (b *BBox) Intersects(ls orb.LineString) bool {
	if !b.IsSet {
		return true
	}
	if len(ls) == 0 {
		return false
	}
	return b.Bound().Intersects(ls.Bound())
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	// Validate
	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// Config holds the settings of all commands. Fields with a yaml tag can be
// set from a config file; command-line flags override the file.
type Config struct {
	// Input settings
	InputFile string `yaml:"-"`
	BBox      *BBox  `yaml:"-"`
	BBoxSpec  string `yaml:"bbox"` // minlon,minlat,maxlon,maxlat

	// Conversion settings
	Degenerate string `yaml:"degenerate"` // reject, skip or keep
	StyleFile  string `yaml:"style"`      // YAML tag filter
	ScriptFile string `yaml:"script"`     // Lua filter_way script

	// Output settings
	OutputDir string `yaml:"output_dir"`
	Formats   string `yaml:"formats"` // comma separated, or "all"
	BatchSize int    `yaml:"batch_size"`
	LayerName string `yaml:"layer_name"`
	FGBIndex  bool   `yaml:"fgb_index"` // write a packed R-tree into FlatGeobuf

	// Database settings
	DBHost        string `yaml:"db_host"`
	DBPort        int    `yaml:"db_port"`
	DBName        string `yaml:"db_name"`
	DBUser        string `yaml:"db_user"`
	DBPassword    string `yaml:"db_password"`
	DBSchema      string `yaml:"db_schema"`
	TablePrefix   string `yaml:"table_prefix"`
	DropExisting  bool   `yaml:"drop_existing"`
	CreateIndexes bool   `yaml:"create_indexes"`

	// Preview settings
	PreviewFile string  `yaml:"preview_file"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	MaxZoom     int     `yaml:"max_zoom"`
	TileURL     string  `yaml:"tile_url"`
	TileRPS     float64 `yaml:"tile_rps"`
	NoBasemap   bool    `yaml:"no_basemap"`

	// Logging and metrics
	Verbose         bool          `yaml:"verbose"`
	LogFile         string        `yaml:"log_file"` // Path to log file (empty = no file logging)
	Metrics         bool          `yaml:"metrics"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Degenerate:      "reject",
		OutputDir:       "./ways_data",
		Formats:         "geojson,tags",
		BatchSize:       50000,
		LayerName:       "ways",
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "osm",
		DBUser:          "postgres",
		DBSchema:        "public",
		CreateIndexes:   true,
		PreviewFile:     "preview.png",
		Width:           1000,
		Height:          600,
		MaxZoom:         19,
		TileURL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		TileRPS:         2,
		MetricsInterval: 30 * time.Second,
	}
}

// LoadFile overlays settings from a YAML file onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid and parses the bbox
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("preview size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.MaxZoom < 0 || c.MaxZoom > 19 {
		return fmt.Errorf("max zoom must be between 0 and 19, got %d", c.MaxZoom)
	}
	if c.DBPort < 1 || c.DBPort > 65535 {
		return fmt.Errorf("invalid database port %d", c.DBPort)
	}

	bbox, err := ParseBBox(c.BBoxSpec)
	if err != nil {
		return err
	}
	c.BBox = bbox
	return nil
}
