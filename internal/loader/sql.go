package loader

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Temp tables live for one transaction
const (
	tmpWays = "ways_load_tmp"
	tmpTags = "way_tags_load_tmp"
)

var (
	tmpWaysColumns = []string{"id", "node_ids", "geom_wkb"}
	tmpTagsColumns = []string{"way_id", "tags"}
)

// TableNames holds the quoted, schema-qualified target tables
type TableNames struct {
	Ways     string
	Tags     string
	waysName string
	tagsName string
}

// NewTableNames builds the ways and way_tags identifiers
func NewTableNames(schema, prefix string) TableNames {
	if schema == "" {
		schema = "public"
	}
	waysName := prefix + "ways"
	tagsName := prefix + "way_tags"
	return TableNames{
		Ways:     pgx.Identifier{schema, waysName}.Sanitize(),
		Tags:     pgx.Identifier{schema, tagsName}.Sanitize(),
		waysName: waysName,
		tagsName: tagsName,
	}
}

// SetupSQL returns the statements creating target and temp tables.
// Existing target tables are dropped or truncated.
func (n TableNames) SetupSQL(dropExisting bool) []string {
	var stmts []string
	if dropExisting {
		stmts = append(stmts,
			fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", n.Tags),
			fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", n.Ways),
		)
	}

	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT NOT NULL,
			node_ids BIGINT[] NOT NULL,
			geom GEOMETRY(LineString, 4326)
		)`, n.Ways),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			way_id BIGINT PRIMARY KEY,
			tags JSONB NOT NULL
		)`, n.Tags),
	)

	if !dropExisting {
		stmts = append(stmts, fmt.Sprintf("TRUNCATE %s, %s", n.Tags, n.Ways))
	}

	stmts = append(stmts,
		fmt.Sprintf(`CREATE TEMP TABLE %s (
			id BIGINT,
			node_ids BIGINT[],
			geom_wkb BYTEA
		) ON COMMIT DROP`, tmpWays),
		fmt.Sprintf(`CREATE TEMP TABLE %s (
			way_id BIGINT,
			tags TEXT
		) ON COMMIT DROP`, tmpTags),
	)
	return stmts
}

// InsertSQL moves temp rows into the target tables
func (n TableNames) InsertSQL() []string {
	return []string{
		fmt.Sprintf(`INSERT INTO %s (id, node_ids, geom)
			SELECT id, node_ids, ST_GeomFromEWKB(geom_wkb)
			FROM %s`, n.Ways, tmpWays),
		fmt.Sprintf(`INSERT INTO %s (way_id, tags)
			SELECT way_id, tags::jsonb
			FROM %s
			ON CONFLICT (way_id) DO UPDATE SET tags = EXCLUDED.tags`, n.Tags, tmpTags),
	}
}

// IndexSQL returns the index statements followed by ANALYZE
func (n TableNames) IndexSQL() []string {
	return []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
			pgx.Identifier{n.waysName + "_geom_idx"}.Sanitize(), n.Ways),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (id)",
			pgx.Identifier{n.waysName + "_id_idx"}.Sanitize(), n.Ways),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (tags)",
			pgx.Identifier{n.tagsName + "_tags_idx"}.Sanitize(), n.Tags),
		"ANALYZE " + n.Ways,
		"ANALYZE " + n.Tags,
	}
}

// String lists both tables, for logs
func (n TableNames) String() string {
	return strings.Join([]string{n.Ways, n.Tags}, ", ")
}
