package preview

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // some tile servers answer with JPEG
	_ "image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/wegman-software/ways2geometry/internal/tiles"
)

const (
	// DefaultTileURL is the OSM standard tile layer
	DefaultTileURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

	// DefaultUserAgent identifies requests to tile servers
	DefaultUserAgent = "ways2geometry/0.1 (+https://github.com/wegman-software/ways2geometry)"

	defaultCacheSize = 256
)

// TileSource provides basemap tiles
type TileSource interface {
	Tile(ctx context.Context, t tiles.Tile) (image.Image, error)
}

// HTTPConfig configures an HTTPTileSource
type HTTPConfig struct {
	URLTemplate string // must contain {z}, {x} and {y}
	UserAgent   string
	RPS         float64 // requests per second, 0 disables throttling
	Burst       int
	CacheSize   int
	Timeout     time.Duration
}

// DefaultHTTPConfig returns settings suitable for tile.openstreetmap.org
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		URLTemplate: DefaultTileURL,
		UserAgent:   DefaultUserAgent,
		RPS:         2,
		Burst:       4,
		CacheSize:   defaultCacheSize,
		Timeout:     30 * time.Second,
	}
}

// HTTPTileSource fetches raster tiles from a z/x/y URL template
type HTTPTileSource struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache[tiles.Tile, image.Image]
}

// NewHTTPTileSource creates a tile source for the given configuration
func NewHTTPTileSource(cfg HTTPConfig) (*HTTPTileSource, error) {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(cfg.URLTemplate, p) {
			return nil, fmt.Errorf("tile URL %q is missing %s", cfg.URLTemplate, p)
		}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}

	cache, err := lru.New[tiles.Tile, image.Image](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &HTTPTileSource{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		cache:   cache,
	}, nil
}

// URL returns the request URL of a tile
func (s *HTTPTileSource) URL(t tiles.Tile) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	).Replace(s.cfg.URLTemplate)
}

// Tile returns the decoded tile image, from cache when possible
func (s *HTTPTileSource) Tile(ctx context.Context, t tiles.Tile) (image.Image, error) {
	if img, ok := s.cache.Get(t); ok {
		return img, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("tile %s: %w", t, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(t), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile %s: %w", t, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile server returned %d for %s", resp.StatusCode, t)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile %s: %w", t, err)
	}

	s.cache.Add(t, img)
	return img, nil
}
