package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/config"
	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/metrics"
)

var (
	cfg        = config.DefaultConfig()
	configFile string

	collector     *metrics.Collector
	stopCollector context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "ways2geometry",
	Short: "Convert Overpass way results into line geometries",
	Long: `ways2geometry turns an Overpass API JSON result (queried with "out geom")
into a table of (lon, lat) LineStrings keyed by way id, plus a separate
way id -> tags lookup.

The table can be written as GeoJSON, FlatGeobuf or GeoParquet, loaded into
PostGIS, or previewed as a PNG over an OSM basemap.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configErr := applyConfigFile(cmd)

		logger.InitWithOptions(logger.Options{Debug: cfg.Verbose, LogFile: cfg.LogFile})
		if configErr != nil {
			exitWithError("failed to load config file", configErr)
		}

		if cfg.Metrics {
			ctx, cancel := context.WithCancel(context.Background())
			collector = metrics.NewCollector(cfg.MetricsInterval, logger.Get())
			stopCollector = cancel
			go collector.Start(ctx)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if collector != nil {
			stopCollector()
			collector.LogSummary(cmd.Name())
		}
		logger.Sync()
	},
}

// Execute runs the root command; Ctrl-C cancels the command context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (flags override its values)")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "Log a process resource summary when the command finishes")
	rootCmd.PersistentFlags().DurationVar(&cfg.MetricsInterval, "metrics-interval", cfg.MetricsInterval, "Sampling interval for resource metrics (e.g., 10s, 1m)")
}

// applyConfigFile overlays the --config file onto cfg, then re-applies every
// flag set on the command line so flags win.
func applyConfigFile(cmd *cobra.Command) error {
	if configFile == "" {
		return nil
	}

	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := cfg.LoadFile(configFile); err != nil {
		return err
	}

	for name, value := range changed {
		if err := cmd.Flags().Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// addFilterFlags registers the conversion and filtering flags shared by the
// commands that read an Overpass result.
func addFilterFlags(c *cobra.Command) {
	c.Flags().StringVarP(&cfg.BBoxSpec, "bbox", "b", cfg.BBoxSpec, "Keep ways touching this box: minlon,minlat,maxlon,maxlat")
	c.Flags().StringVarP(&cfg.StyleFile, "style", "S", cfg.StyleFile, "Style YAML file for tag filtering")
	c.Flags().StringVar(&cfg.ScriptFile, "script", cfg.ScriptFile, "Lua script defining filter_way(way)")
	c.Flags().StringVar(&cfg.Degenerate, "degenerate", cfg.Degenerate, "Ways with fewer than 2 coordinates: reject, skip or keep")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
