package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/ways2geometry/internal/logger"
	"github.com/wegman-software/ways2geometry/internal/parquet"
	"github.com/wegman-software/ways2geometry/internal/proj"
	"github.com/wegman-software/ways2geometry/internal/ways"
	"github.com/wegman-software/ways2geometry/internal/wkb"
)

// ErrNotWGS84 is returned for tables that are not in EPSG:4326
var ErrNotWGS84 = errors.New("loader: table must be in EPSG:4326")

// Options controls table naming and load behaviour
type Options struct {
	Schema        string
	Prefix        string // prepended to the ways and way_tags table names
	DropExisting  bool
	CreateIndexes bool
}

// Stats holds loader statistics
type Stats struct {
	WaysLoaded int64
	TagsLoaded int64
}

// Loader loads way tables into PostGIS
type Loader struct {
	pool *pgxpool.Pool
	opts Options
	log  *zap.Logger
}

// New connects to PostgreSQL
func New(ctx context.Context, connString string, opts Options) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if opts.Schema == "" {
		opts.Schema = "public"
	}

	return &Loader{pool: pool, opts: opts, log: logger.Get()}, nil
}

// Close closes connections
func (l *Loader) Close() {
	l.pool.Close()
}

// Load writes the ways and their tags in a single transaction
func (l *Loader) Load(ctx context.Context, table *ways.Table, tags ways.TagTable) (*Stats, error) {
	if table.SRID != proj.SRID4326 {
		return nil, fmt.Errorf("%w (got %d)", ErrNotWGS84, table.SRID)
	}

	start := time.Now()
	names := NewTableNames(l.opts.Schema, l.opts.Prefix)

	if _, err := l.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return nil, fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if l.opts.Schema != "public" {
		if _, err := l.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{l.opts.Schema}.Sanitize()); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range names.SetupSQL(l.opts.DropExisting) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to prepare tables: %w", err)
		}
	}

	stats := &Stats{}

	stats.WaysLoaded, err = tx.CopyFrom(ctx, pgx.Identifier{tmpWays}, tmpWaysColumns, NewWaySource(table))
	if err != nil {
		return nil, fmt.Errorf("COPY ways failed: %w", err)
	}
	stats.TagsLoaded, err = tx.CopyFrom(ctx, pgx.Identifier{tmpTags}, tmpTagsColumns, NewTagSource(table, tags))
	if err != nil {
		return nil, fmt.Errorf("COPY way tags failed: %w", err)
	}

	for _, stmt := range names.InsertSQL() {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to insert from temp table: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	l.log.Info("Tables loaded",
		zap.String("ways_table", names.Ways),
		zap.String("tags_table", names.Tags),
		zap.Int64("ways", stats.WaysLoaded),
		zap.Int64("tags", stats.TagsLoaded),
		zap.Duration("duration", time.Since(start)))

	if l.opts.CreateIndexes {
		if err := l.createIndexes(ctx, names); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// createIndexes builds the GIST and id indexes, then analyzes both tables
func (l *Loader) createIndexes(ctx context.Context, names TableNames) error {
	start := time.Now()

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET maintenance_work_mem = '1GB'"); err != nil {
		l.log.Debug("Could not raise maintenance_work_mem", zap.Error(err))
	}

	for _, stmt := range names.IndexSQL() {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	l.log.Info("Indexes created", zap.Duration("duration", time.Since(start)))
	return nil
}

// waySource streams table rows to COPY as (id, node_ids, geom_wkb).
// Rows with fewer than two points get a NULL geometry.
type waySource struct {
	rows []ways.Row
	enc  *wkb.Encoder
	idx  int
}

// NewWaySource returns a pgx.CopyFromSource over the table rows
func NewWaySource(table *ways.Table) pgx.CopyFromSource {
	return &waySource{rows: table.Rows, enc: wkb.NewEncoder(256), idx: -1}
}

func (s *waySource) Next() bool {
	s.idx++
	return s.idx < len(s.rows)
}

func (s *waySource) Values() ([]any, error) {
	r := s.rows[s.idx]
	nodes := make([]int64, len(r.NodeIDs))
	for i, id := range r.NodeIDs {
		nodes[i] = int64(id)
	}

	var geom []byte
	if r.IsLine() {
		geom = append([]byte(nil), s.enc.EncodeLineString(r.Geometry)...)
	}
	return []any{int64(r.ID), nodes, geom}, nil
}

func (s *waySource) Err() error {
	return nil
}

// NewTagSource returns a pgx.CopyFromSource of (way_id, tags), one row per
// way id in table row order. Ways without a tag entry get an empty object.
func NewTagSource(table *ways.Table, tags ways.TagTable) pgx.CopyFromSource {
	rows := make([][]any, 0, len(table.Rows))
	seen := make(map[osm.WayID]struct{}, len(table.Rows))
	for _, r := range table.Rows {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		rows = append(rows, []any{int64(r.ID), parquet.TagsToJSON(tags[r.ID])})
	}
	return pgx.CopyFromRows(rows)
}
