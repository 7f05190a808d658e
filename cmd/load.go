package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/loader"
	"github.com/wegman-software/ways2geometry/internal/logger"
)

var loadCmd = &cobra.Command{
	Use:   "load <overpass.json>",
	Short: "Load converted ways into PostgreSQL",
	Long: `Convert an Overpass JSON result and bulk load it into PostgreSQL/PostGIS.

This command:
  1. Creates <prefix>ways (id, node_ids, geom LineString 4326) and
     <prefix>way_tags (way_id, tags jsonb)
  2. Uses COPY through temp tables, in a single transaction
  3. Optionally creates GIST, id and tag indexes`,
	Args: cobra.ExactArgs(1),
	Run:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	loadCmd.Flags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	loadCmd.Flags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	loadCmd.Flags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	loadCmd.Flags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	loadCmd.Flags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
	loadCmd.Flags().StringVar(&cfg.TablePrefix, "table-prefix", cfg.TablePrefix, "Prefix for the ways and way_tags tables")
	loadCmd.Flags().BoolVar(&cfg.CreateIndexes, "create-indexes", cfg.CreateIndexes, "Create indexes after loading")
	loadCmd.Flags().BoolVar(&cfg.DropExisting, "drop-existing", cfg.DropExisting, "Drop existing tables before loading")
	addFilterFlags(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	log.Info("Starting PostgreSQL load",
		zap.String("input", cfg.InputFile),
		zap.String("database", cfg.DBName),
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("user", cfg.DBUser),
		zap.String("schema", cfg.DBSchema),
	)
	start := time.Now()

	table, tags, err := buildTable(cmd.Context())
	if err != nil {
		exitWithError("conversion failed", err)
	}

	ldr, err := loader.New(cmd.Context(), cfg.ConnectionString(), loader.Options{
		Schema:        cfg.DBSchema,
		Prefix:        cfg.TablePrefix,
		DropExisting:  cfg.DropExisting,
		CreateIndexes: cfg.CreateIndexes,
	})
	if err != nil {
		exitWithError("failed to create loader", err)
	}
	defer ldr.Close()

	stats, err := ldr.Load(cmd.Context(), table, tags)
	if err != nil {
		exitWithError("load failed", err)
	}

	elapsed := time.Since(start)
	log.Info("Load complete",
		zap.Duration("duration", elapsed.Round(time.Millisecond)),
		zap.Int64("ways", stats.WaysLoaded),
		zap.Int64("tags", stats.TagsLoaded),
		zap.Float64("throughput_rows_s", float64(stats.WaysLoaded)/elapsed.Seconds()),
	)
}
