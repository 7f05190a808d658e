package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/overpass"
	"github.com/wegman-software/ways2geometry/internal/script"
	"github.com/wegman-software/ways2geometry/internal/style"
	"github.com/wegman-software/ways2geometry/internal/ways"
)

// readResult reads the Overpass result named by cfg.InputFile; "-" is stdin
func readResult() (*overpass.Result, error) {
	if cfg.InputFile == "-" {
		return overpass.Decode(os.Stdin)
	}
	return overpass.ReadFile(cfg.InputFile)
}

// buildTable converts the input and applies the bbox, style and script
// filters in that order.
func buildTable(ctx context.Context) (*ways.Table, ways.TagTable, error) {
	log := logger.Get()

	policy, err := ways.ParseDegeneratePolicy(cfg.Degenerate)
	if err != nil {
		return nil, nil, err
	}

	result, err := readResult()
	if err != nil {
		return nil, nil, err
	}
	meta := result.Meta()
	log.Info("Read Overpass result",
		zap.String("input", cfg.InputFile),
		zap.String("generator", meta.Generator),
		zap.String("timestamp", meta.Timestamp),
		zap.Int("elements", meta.Elements))

	table, tags, err := ways.Convert(result, ways.Options{Degenerate: policy})
	if err != nil {
		return nil, nil, err
	}

	if cfg.BBox != nil && cfg.BBox.IsSet {
		bbox := cfg.BBox
		table, tags, err = table.Filter(tags, func(r ways.Row, _ map[string]string) (bool, error) {
			return bbox.Intersects(r.Geometry), nil
		})
		if err != nil {
			return nil, nil, err
		}
		log.Debug("Applied bbox filter", zap.Int("ways", table.Len()))
	}

	if cfg.StyleFile != "" {
		sc, err := style.LoadConfig(cfg.StyleFile)
		if err != nil {
			return nil, nil, err
		}
		table, tags, err = table.Filter(tags, style.NewFilter(sc.Ways).Keep)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("Applied style filter", zap.String("style", cfg.StyleFile), zap.Int("ways", table.Len()))
	}

	if cfg.ScriptFile != "" {
		rt := script.NewRuntime()
		defer rt.Close()
		if err := rt.LoadFile(cfg.ScriptFile); err != nil {
			return nil, nil, err
		}
		table, tags, err = table.Filter(tags, rt.Keep)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("Applied script filter", zap.String("script", cfg.ScriptFile), zap.Int("ways", table.Len()))
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("conversion interrupted: %w", err)
	}
	return table, tags, nil
}
