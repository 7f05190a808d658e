package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/wegman-software/ways2geometry/internal/tiles"
)

func tileServer(t *testing.T, hits *atomic.Int32, agents chan<- string) *httptest.Server {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, tiles.Size, tiles.Size))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	var tile bytes.Buffer
	if err := png.Encode(&tile, img); err != nil {
		t.Fatalf("failed to encode tile: %v", err)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if agents != nil {
			select {
			case agents <- r.UserAgent():
			default:
			}
		}
		if !strings.HasPrefix(r.URL.Path, "/12/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(tile.Bytes())
	}))
}

func TestHTTPTileSource(t *testing.T) {
	var hits atomic.Int32
	agents := make(chan string, 1)
	srv := tileServer(t, &hits, agents)
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URLTemplate = srv.URL + "/{z}/{x}/{y}.png"
	cfg.RPS = 0

	src, err := NewHTTPTileSource(cfg)
	if err != nil {
		t.Fatalf("NewHTTPTileSource failed: %v", err)
	}

	tile := tiles.Tile{Z: 12, X: 2132, Y: 1493}
	if got := src.URL(tile); got != srv.URL+"/12/2132/1493.png" {
		t.Errorf("unexpected URL %s", got)
	}

	img, err := src.Tile(context.Background(), tile)
	if err != nil {
		t.Fatalf("Tile failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != tiles.Size || b.Dy() != tiles.Size {
		t.Errorf("unexpected tile size %v", b)
	}
	if r, g, b, _ := img.At(0, 0).RGBA(); r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("unexpected pixel %d %d %d", r>>8, g>>8, b>>8)
	}

	if ua := <-agents; ua != DefaultUserAgent {
		t.Errorf("expected User-Agent %q, got %q", DefaultUserAgent, ua)
	}

	// second request is served from cache
	if _, err := src.Tile(context.Background(), tile); err != nil {
		t.Fatalf("cached Tile failed: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestHTTPTileSourceErrors(t *testing.T) {
	var hits atomic.Int32
	srv := tileServer(t, &hits, nil)
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URLTemplate = srv.URL + "/{z}/{x}/{y}.png"
	src, err := NewHTTPTileSource(cfg)
	if err != nil {
		t.Fatalf("NewHTTPTileSource failed: %v", err)
	}

	if _, err := src.Tile(context.Background(), tiles.Tile{Z: 3, X: 1, Y: 1}); err == nil {
		t.Error("expected error for 404 tile")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Tile(ctx, tiles.Tile{Z: 12, X: 1, Y: 1}); err == nil {
		t.Error("expected error for cancelled context")
	}

	bad := DefaultHTTPConfig()
	bad.URLTemplate = "https://tiles.example.com/{z}/{x}.png"
	if _, err := NewHTTPTileSource(bad); err == nil {
		t.Error("expected error for template without {y}")
	}
}

func TestRenderWithHTTPTileSource(t *testing.T) {
	var hits atomic.Int32
	srv := tileServer(t, &hits, nil)
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URLTemplate = srv.URL + "/{z}/{x}/{y}.png"
	cfg.RPS = 0
	src, err := NewHTTPTileSource(cfg)
	if err != nil {
		t.Fatalf("NewHTTPTileSource failed: %v", err)
	}

	opts := DefaultOptions()
	opts.MaxZoom = 12

	var buf bytes.Buffer
	if err := NewPNGRenderer(&buf, src, opts).Render(context.Background(), berlinTable()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if hits.Load() == 0 {
		t.Error("expected tile requests")
	}
	decode(t, buf.Bytes())
}
