package cmd

import (
	"bufio"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview <overpass.json>",
	Short: "Render ways over an OSM basemap as PNG",
	Long: `Render the converted ways over a raster basemap for a quick visual check.

Lines are drawn in blue with a red marker at each line's centroid. The zoom
level is the highest one at which all ways fit into the image. Tiles are
fetched from --tile-url, which must contain {z}, {x} and {y}; please respect
the usage policy of the tile server you use.`,
	Args: cobra.ExactArgs(1),
	Run:  runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVar(&cfg.PreviewFile, "out", cfg.PreviewFile, "Output PNG file")
	previewCmd.Flags().IntVar(&cfg.Width, "width", cfg.Width, "Image width in pixels")
	previewCmd.Flags().IntVar(&cfg.Height, "height", cfg.Height, "Image height in pixels")
	previewCmd.Flags().IntVar(&cfg.MaxZoom, "max-zoom", cfg.MaxZoom, "Highest basemap zoom level")
	previewCmd.Flags().StringVar(&cfg.TileURL, "tile-url", cfg.TileURL, "Basemap tile URL template")
	previewCmd.Flags().Float64Var(&cfg.TileRPS, "tile-rps", cfg.TileRPS, "Tile requests per second (0 = unlimited)")
	previewCmd.Flags().BoolVar(&cfg.NoBasemap, "no-basemap", cfg.NoBasemap, "Draw on a plain background without fetching tiles")
	addFilterFlags(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	log.Info("Starting preview",
		zap.String("input", cfg.InputFile),
		zap.String("out", cfg.PreviewFile),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
	)
	start := time.Now()

	table, _, err := buildTable(cmd.Context())
	if err != nil {
		exitWithError("conversion failed", err)
	}

	var source preview.TileSource
	if !cfg.NoBasemap {
		hc := preview.DefaultHTTPConfig()
		hc.URLTemplate = cfg.TileURL
		hc.RPS = cfg.TileRPS
		src, err := preview.NewHTTPTileSource(hc)
		if err != nil {
			exitWithError("invalid tile source", err)
		}
		source = src
	}

	f, err := os.Create(cfg.PreviewFile)
	if err != nil {
		exitWithError("failed to create output file", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	opts := preview.DefaultOptions()
	opts.Width = cfg.Width
	opts.Height = cfg.Height
	opts.MaxZoom = cfg.MaxZoom

	if err := preview.NewPNGRenderer(w, source, opts).Render(cmd.Context(), table); err != nil {
		exitWithError("preview failed", err)
	}
	if err := w.Flush(); err != nil {
		exitWithError("failed to write preview", err)
	}

	log.Info("Preview complete",
		zap.String("out", cfg.PreviewFile),
		zap.Int("ways", table.Len()),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
}
