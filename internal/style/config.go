package style

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/ways2geometry/internal/ways"
)

// ErrEmptyStyle is returned when a style file has no ways section
var ErrEmptyStyle = errors.New("style has no ways section")

// Config is a style file. Only the ways section applies to way tables.
//
//	ways:
//	  require_any: [highway, railway]
//	  include:
//	    highway: [primary, secondary]
//	  exclude:
//	    access: [private]
type Config struct {
	Ways *FilterConfig `yaml:"ways,omitempty"`
}

// FilterConfig defines tag rules for ways
type FilterConfig struct {
	// Include keeps ways carrying at least one listed key/value.
	// An empty value list or "*" accepts any value of the key.
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude drops ways matching any listed key/value after include
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny keeps only ways carrying one of these keys
	RequireAny []string `yaml:"require_any,omitempty"`
}

// LoadConfig loads a style configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a style configuration from YAML
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}
	if cfg.Ways == nil {
		return nil, ErrEmptyStyle
	}
	return &cfg, nil
}

// Filter checks way tags against a FilterConfig
type Filter struct {
	cfg *FilterConfig
}

// NewFilter creates a filter from configuration; nil matches everything
func NewFilter(cfg *FilterConfig) *Filter {
	if cfg == nil {
		cfg = &FilterConfig{}
	}
	return &Filter{cfg: cfg}
}

// Match reports whether a way with the given tags is kept
func (f *Filter) Match(tags map[string]string) bool {
	if len(f.cfg.RequireAny) > 0 && !hasAnyKey(tags, f.cfg.RequireAny) {
		return false
	}
	if len(f.cfg.Include) > 0 && !matchesAny(tags, f.cfg.Include) {
		return false
	}
	if len(f.cfg.Exclude) > 0 && matchesAny(tags, f.cfg.Exclude) {
		return false
	}
	return true
}

// Keep adapts Match to ways.Table.Filter
func (f *Filter) Keep(_ ways.Row, tags map[string]string) (bool, error) {
	return f.Match(tags), nil
}

// HasFilter returns true if any rule is configured
func (f *Filter) HasFilter() bool {
	return len(f.cfg.Include) > 0 || len(f.cfg.Exclude) > 0 || len(f.cfg.RequireAny) > 0
}

func hasAnyKey(tags map[string]string, keys []string) bool {
	for _, key := range keys {
		if _, ok := tags[key]; ok {
			return true
		}
	}
	return false
}

// matchesAny reports whether tags hit any key/value rule
func matchesAny(tags map[string]string, rules map[string][]string) bool {
	for key, values := range rules {
		tagValue, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == tagValue || v == "*" {
				return true
			}
		}
	}
	return false
}
