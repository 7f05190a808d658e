package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/export"
	"github.com/wegman-software/ways2geometry/internal/logger"
)

var convertCmd = &cobra.Command{
	Use:   "convert <overpass.json>",
	Short: "Convert Overpass ways into geometry files",
	Long: `Convert an Overpass JSON result into a way geometry table and write it.

Formats (--format, comma separated or "all"):
  geojson   ways.geojson       LineString features with id and node_IDs
  fgb       ways.fgb           FlatGeobuf layer in EPSG:4326
  parquet   ways.parquet       GeoParquet with WKB geometry, plus way_tags.parquet
  tags      way_tags.json      way id -> tags lookup

Use "-" to read the Overpass result from stdin.`,
	Args: cobra.ExactArgs(1),
	Run:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&cfg.Formats, "format", "f", cfg.Formats, "Output formats: geojson, fgb, parquet, tags or all")
	convertCmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Directory for output files")
	convertCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")
	convertCmd.Flags().StringVar(&cfg.LayerName, "layer-name", cfg.LayerName, "FlatGeobuf layer name")
	convertCmd.Flags().BoolVar(&cfg.FGBIndex, "fgb-index", cfg.FGBIndex, "Write a spatial index into the FlatGeobuf file")
	addFilterFlags(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}
	formats, err := export.ParseFormats(cfg.Formats)
	if err != nil {
		exitWithError("invalid --format", err)
	}

	log.Info("Starting conversion",
		zap.String("input", cfg.InputFile),
		zap.String("output_dir", cfg.OutputDir),
		zap.String("formats", cfg.Formats),
	)
	start := time.Now()

	table, tags, err := buildTable(cmd.Context())
	if err != nil {
		exitWithError("conversion failed", err)
	}

	opts := export.DefaultOptions()
	opts.BatchSize = cfg.BatchSize
	opts.LayerName = cfg.LayerName
	opts.IncludeIndex = cfg.FGBIndex

	var written []string
	for _, format := range formats {
		paths, err := export.Write(format, cfg.OutputDir, table, tags, opts)
		if err != nil {
			exitWithError("failed to write "+string(format), err)
		}
		written = append(written, paths...)
	}

	log.Info("Conversion complete",
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
		zap.Int("ways", table.Len()),
		zap.Strings("files", written),
	)
}
