package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/fakedata/internal/textreader"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		prefix  string
		key     string
		want    string
		wantErr bool
	}{
		{"fixture", "name.female", "fixture_name_female", false},
		{"fixture", "address.ca.sf.zip", "fixture_address_ca_sf_zip", false},
		{"", "job.title", "job_title", false},
		{"Fixture", "Name.Male", "fixture_name_male", false},
		{"fixture", "a--b..c", "fixture_a_b_c", false},
		{"", "9lives", "", true},
		{"", "...", "", true},
		{"fixture", strings.Repeat("x", 60), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := TableName(tt.prefix, tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTable) {
					t.Errorf("TableName(%q, %q) error = %v, want ErrInvalidTable", tt.prefix, tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TableName(%q, %q) error = %v", tt.prefix, tt.key, err)
			}
			if got != tt.want {
				t.Errorf("TableName(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func censusColumns() []textreader.Column {
	return []textreader.Column{
		{Name: "name", Type: textreader.TypeString, Width: 15},
		{Name: "frequency", Type: textreader.TypeDouble, Width: 7},
		{Name: "cumulativeFrequency", Type: textreader.TypeDouble, Width: 7},
		{Name: "rank", Type: textreader.TypeInt},
		{Name: "population", Type: textreader.TypeLong},
	}
}

func TestCreateTableSQL(t *testing.T) {
	got, err := CreateTableSQL("public", "fixture_name_female", censusColumns())
	if err != nil {
		t.Fatalf("CreateTableSQL() error = %v", err)
	}

	want := `CREATE TABLE IF NOT EXISTS "public"."fixture_name_female" (
	load_id uuid NOT NULL,
	row_index integer NOT NULL,
	"name" text,
	"frequency" double precision,
	"cumulativeFrequency" double precision,
	"rank" integer,
	"population" bigint
)`
	if got != want {
		t.Errorf("CreateTableSQL() =\n%s\nwant\n%s", got, want)
	}

	got, _ = CreateTableSQL("", "t", censusColumns()[:1])
	if !strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "t" (`) {
		t.Errorf("CreateTableSQL without schema = %q", got)
	}

	if _, err := CreateTableSQL("public", "t", nil); err == nil {
		t.Error("CreateTableSQL with no columns expected error")
	}
}

func TestCopyColumns(t *testing.T) {
	got := CopyColumns(censusColumns()[:2])
	want := []string{"load_id", "row_index", "name", "frequency"}
	if len(got) != len(want) {
		t.Fatalf("CopyColumns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CopyColumns()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCopyRows(t *testing.T) {
	loadID := uuid.New()
	src := CopyRows(loadID, [][]any{
		{"MARY", 2.629},
		{"PATRICIA", nil},
	})

	var rows [][]any
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			t.Fatalf("Values() error = %v", err)
		}
		rows = append(rows, values)
	}
	if err := src.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("copied %d rows, want 2", len(rows))
	}
	for i, row := range rows {
		id, ok := row[0].(pgtype.UUID)
		if !ok || !id.Valid || uuid.UUID(id.Bytes) != loadID {
			t.Errorf("row %d load id = %v, want %v", i, row[0], loadID)
		}
		if row[1] != int32(i) {
			t.Errorf("row %d index = %v, want %d", i, row[1], i)
		}
	}
	if rows[0][2] != "MARY" || rows[1][3] != nil {
		t.Errorf("row values = %v", rows)
	}
}

type fakeDB struct {
	execs   []string
	table   pgx.Identifier
	columns []string
	copied  int64
	execErr error
	copyErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.table = table
	f.columns = columns
	for src.Next() {
		f.copied++
	}
	return f.copied, src.Err()
}

func TestExport(t *testing.T) {
	req := ExportRequest{
		Schema:   "public",
		Table:    "fixture_name_female",
		Columns:  censusColumns()[:2],
		Rows:     [][]any{{"MARY", 2.629}, {"LINDA", 1.035}, {"SUSAN", 0.794}},
		LoadID:   uuid.New(),
		Truncate: true,
	}

	db := &fakeDB{}
	n, err := Export(context.Background(), db, req)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Export() = %d rows, want 3", n)
	}
	if len(db.execs) != 2 {
		t.Fatalf("Exec called %d times, want 2", len(db.execs))
	}
	if !strings.HasPrefix(db.execs[0], "CREATE TABLE IF NOT EXISTS") {
		t.Errorf("first statement = %q", db.execs[0])
	}
	if db.execs[1] != `TRUNCATE "public"."fixture_name_female"` {
		t.Errorf("second statement = %q", db.execs[1])
	}
	if len(db.table) != 2 || db.table[1] != "fixture_name_female" {
		t.Errorf("CopyFrom table = %v", db.table)
	}
	if len(db.columns) != 4 {
		t.Errorf("CopyFrom columns = %v", db.columns)
	}

	req.Truncate = false
	db = &fakeDB{}
	if _, err := Export(context.Background(), db, req); err != nil {
		t.Fatalf("Export() without truncate error = %v", err)
	}
	if len(db.execs) != 1 {
		t.Errorf("Exec called %d times without truncate, want 1", len(db.execs))
	}
}

func TestExport_Errors(t *testing.T) {
	boom := errors.New("boom")
	req := ExportRequest{
		Table:   "t",
		Columns: censusColumns()[:1],
		Rows:    [][]any{{"x"}},
		LoadID:  uuid.New(),
	}

	if _, err := Export(context.Background(), &fakeDB{execErr: boom}, req); !errors.Is(err, boom) {
		t.Errorf("Export() with failing Exec error = %v, want boom", err)
	}
	if _, err := Export(context.Background(), &fakeDB{copyErr: boom}, req); !errors.Is(err, boom) {
		t.Errorf("Export() with failing CopyFrom error = %v, want boom", err)
	}
}
