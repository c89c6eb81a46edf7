// Package store copies loaded resources into PostgreSQL tables.
//
// Each export writes every row of one resource into a table named after the
// resource key. Rows carry the load id of the export that wrote them and
// their position in the resource, so repeated exports can be told apart.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/fakedata/internal/textreader"
)

// DBTX is the subset of pgx.Tx (and *pgxpool.Pool) used by Export.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgreSQL truncates identifiers longer than this.
const maxIdentifierLength = 63

var (
	// ErrInvalidTable is returned when a table name cannot be built from a key.
	ErrInvalidTable = errors.New("invalid table name")

	nonIdentRegex = regexp.MustCompile(`[^a-z0-9_]+`)
	tableRegex    = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// Bookkeeping columns written ahead of the resource columns.
const (
	LoadIDColumn   = "load_id"
	RowIndexColumn = "row_index"
)

var sqlTypes = map[textreader.ColumnType]string{
	textreader.TypeString: "text",
	textreader.TypeInt:    "integer",
	textreader.TypeLong:   "bigint",
	textreader.TypeDouble: "double precision",
}

// TableName builds the table for a resource key: prefix "fixture" and key
// "name.female" give "fixture_name_female".
func TableName(prefix, key string) (string, error) {
	name := strings.ToLower(key)
	if prefix != "" {
		name = strings.ToLower(prefix) + "_" + name
	}
	name = strings.Trim(nonIdentRegex.ReplaceAllString(name, "_"), "_")

	if !tableRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTable, key)
	}
	if len(name) > maxIdentifierLength {
		return "", fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidTable, name, maxIdentifierLength)
	}
	return name, nil
}

// CreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for a
// resource with the given columns.
func CreateTableSQL(schema, table string, columns []textreader.Column) (string, error) {
	if len(columns) == 0 {
		return "", errors.New("no columns to create")
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(qualified(schema, table).Sanitize())
	b.WriteString(" (\n\t")
	b.WriteString(LoadIDColumn)
	b.WriteString(" uuid NOT NULL,\n\t")
	b.WriteString(RowIndexColumn)
	b.WriteString(" integer NOT NULL")

	for _, col := range columns {
		typ, ok := sqlTypes[col.Type]
		if !ok {
			return "", fmt.Errorf("column %q: unsupported type %v", col.Name, col.Type)
		}
		b.WriteString(",\n\t")
		b.WriteString(pgx.Identifier{col.Name}.Sanitize())
		b.WriteString(" ")
		b.WriteString(typ)
	}
	b.WriteString("\n)")

	return b.String(), nil
}

// CopyColumns returns the COPY column list for a resource.
func CopyColumns(columns []textreader.Column) []string {
	names := make([]string, 0, len(columns)+2)
	names = append(names, LoadIDColumn, RowIndexColumn)
	for _, col := range columns {
		names = append(names, col.Name)
	}
	return names
}

// CopyRows returns a COPY source that prefixes every row with loadID and its
// index.
func CopyRows(loadID uuid.UUID, rows [][]any) pgx.CopyFromSource {
	id := pgtype.UUID{Bytes: loadID, Valid: true}
	return pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		values := make([]any, 0, len(rows[i])+2)
		values = append(values, id, int32(i))
		values = append(values, rows[i]...)
		return values, nil
	})
}

// ExportRequest describes one resource export.
type ExportRequest struct {
	Schema   string
	Table    string
	Columns  []textreader.Column
	Rows     [][]any
	LoadID   uuid.UUID
	Truncate bool
}

// Export creates the table if needed, optionally truncates it and copies
// every row. Run it inside a transaction: a failed copy leaves a created or
// truncated table behind otherwise.
func Export(ctx context.Context, db DBTX, req ExportRequest) (int64, error) {
	createSQL, err := CreateTableSQL(req.Schema, req.Table, req.Columns)
	if err != nil {
		return 0, err
	}

	if _, err := db.Exec(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("create table %s: %w", req.Table, err)
	}

	if req.Truncate {
		if _, err := db.Exec(ctx, "TRUNCATE "+qualified(req.Schema, req.Table).Sanitize()); err != nil {
			return 0, fmt.Errorf("truncate table %s: %w", req.Table, err)
		}
	}

	n, err := db.CopyFrom(ctx, qualified(req.Schema, req.Table), CopyColumns(req.Columns), CopyRows(req.LoadID, req.Rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", req.Table, err)
	}
	return n, nil
}

func qualified(schema, table string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}
