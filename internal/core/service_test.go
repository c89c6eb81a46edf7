package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/fakedata/internal/catalog"
	"github.com/JonMunkholm/fakedata/internal/textreader"
)

func censusLine(name, freq, cum, rank string) string {
	return fmt.Sprintf("%-15s%-7s%-7s%s\n", name, freq, cum, rank)
}

func testFS() fstest.MapFS {
	female := "# female first names\n" +
		"#source: census\n" +
		"#columns: name(string,15)frequency(double,7)cumulativeFrequency(double,7)rank(int)\n" +
		censusLine("MARY", "2.629", "2.629", "1") +
		censusLine("PATRICIA", "1.073", "3.702", "2") +
		censusLine("LINDA", "1.035", "4.736", "3")

	return fstest.MapFS{
		"name/female": {Data: []byte(female)},
		"job/title":   {Data: []byte("Accountant\nActuary\n\nArchitect\n")},
		"bad/columns": {Data: []byte("#columns: a(string,3)\n#columns: b(string)\nrow\n")},
		"bad/cell":    {Data: []byte("#columns: n(int,3)\n12\nabc\n")},
		"pair/list":   {Data: []byte("#columns: first second(int)\nkeep the line\n")},
		"score/list":  {Data: []byte("#columns: name(string,5)score(double)\nA    NaN\nB    Inf\nC    -Inf\nD    0.25\n")},
	}
}

func registerTestResources(t *testing.T) {
	t.Helper()
	catalog.Clear()
	t.Cleanup(catalog.Clear)

	catalog.Register(catalog.Definition{Key: "name.female", Label: "Female first names"})
	catalog.Register(catalog.Definition{Key: "job.title"})
	catalog.Register(catalog.Definition{Key: "bad.columns"})
	catalog.Register(catalog.Definition{Key: "bad.cell"})
	catalog.Register(catalog.Definition{Key: "pair.list"})
	catalog.Register(catalog.Definition{Key: "missing.file"})
}

// countingCache wraps the real cache to count loads.
type countingCache struct {
	ReaderCache
	mu    sync.Mutex
	loads map[string]int
}

func newTestService(t *testing.T, db TxBeginner) (*Service, *countingCache) {
	t.Helper()
	registerTestResources(t)

	fsys := testFS()
	cc := &countingCache{loads: make(map[string]int)}
	cache, err := NewReaderCache(fsys, nil)
	if err != nil {
		t.Fatalf("NewReaderCache() error = %v", err)
	}
	cc.ReaderCache = cache

	svc, err := NewService(cc, db, Config{
		TablePrefix:          "fixture",
		Truncate:             true,
		MaxConcurrentExports: 1,
		MaxExportWait:        50 * time.Millisecond,
		PreloadConcurrency:   2,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, cc
}

func (c *countingCache) Get(key string) (*Reader, error) {
	if _, ok := c.ReaderCache.Peek(key); !ok {
		c.mu.Lock()
		c.loads[key]++
		c.mu.Unlock()
	}
	return c.ReaderCache.Get(key)
}

func (c *countingCache) loadCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads[key]
}

func TestNewService_RequiresCache(t *testing.T) {
	if _, err := NewService(nil, nil, Config{}); err == nil {
		t.Fatal("NewService(nil cache) expected error")
	}
}

func TestListResources(t *testing.T) {
	svc, _ := newTestService(t, nil)

	infos := svc.ListResources()
	if len(infos) != 6 {
		t.Fatalf("ListResources() returned %d, want 6", len(infos))
	}
	for _, info := range infos {
		if info.Loaded {
			t.Errorf("%s reported loaded before any access", info.Key)
		}
	}

	if _, err := svc.Describe("job.title"); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	byGroup := svc.ListResourcesByGroup()
	jobs := byGroup["job"]
	if len(jobs) != 1 || !jobs[0].Loaded {
		t.Errorf("ListResourcesByGroup()[job] = %+v, want one loaded entry", jobs)
	}
	if len(byGroup["bad"]) != 2 {
		t.Errorf("ListResourcesByGroup()[bad] has %d entries, want 2", len(byGroup["bad"]))
	}
}

func TestDescribe(t *testing.T) {
	svc, _ := newTestService(t, nil)

	desc, err := svc.Describe("name.female")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	if desc.Format != textreader.FormatFixedWidth {
		t.Errorf("Format = %v, want fixed-width", desc.Format)
	}
	if !desc.HasColumnWidths {
		t.Error("HasColumnWidths = false, want true")
	}
	if len(desc.Columns) != 4 || desc.Columns[3].Name != "rank" {
		t.Errorf("Columns = %v", desc.Columns)
	}
	if desc.RowCount != 3 || desc.LineCount != 6 {
		t.Errorf("RowCount, LineCount = %d, %d, want 3, 6", desc.RowCount, desc.LineCount)
	}
	if desc.Properties["source"] != "census" {
		t.Errorf("Properties = %v", desc.Properties)
	}
	if desc.Label != "Female first names" || desc.Path != "name/female" {
		t.Errorf("Definition = %+v", desc.Definition)
	}

	desc, err = svc.Describe("job.title")
	if err != nil {
		t.Fatalf("Describe(job.title) error = %v", err)
	}
	if desc.Format != textreader.FormatDelimited || desc.Delimiter != "\t" {
		t.Errorf("job.title format, delimiter = %v, %q", desc.Format, desc.Delimiter)
	}
	if desc.RowCount != 3 {
		t.Errorf("job.title RowCount = %d, want 3", desc.RowCount)
	}
}

func TestDescribe_Errors(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tests := []struct {
		key    string
		target error
	}{
		{"no.such.key", ErrUnknownResource},
		{"missing.file", textreader.ErrResourceNotFound},
		{"bad.columns", textreader.ErrConfig},
		{"bad.cell", textreader.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := svc.Describe(tt.key)
			if !errors.Is(err, tt.target) {
				t.Errorf("Describe(%q) error = %v, want %v", tt.key, err, tt.target)
			}
		})
	}

	var readErr *textreader.ReadError
	_, err := svc.Describe("bad.cell")
	if !errors.As(err, &readErr) || readErr.Line != 3 {
		t.Errorf("Describe(bad.cell) error = %v, want ReadError on line 3", err)
	}
}

func TestRows(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tests := []struct {
		name      string
		offset    int
		limit     int
		wantNames []string
	}{
		{"first page", 0, 2, []string{"MARY", "PATRICIA"}},
		{"second page", 2, 2, []string{"LINDA"}},
		{"past the end", 5, 2, nil},
		{"zero limit", 0, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.Rows("name.female", tt.offset, tt.limit)
			if err != nil {
				t.Fatalf("Rows() error = %v", err)
			}
			if page.Total != 3 {
				t.Errorf("Total = %d, want 3", page.Total)
			}
			if len(page.Rows) != len(tt.wantNames) {
				t.Fatalf("got %d rows, want %d", len(page.Rows), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if page.Rows[i]["name"] != name {
					t.Errorf("row %d name = %v, want %s", i, page.Rows[i]["name"], name)
				}
			}
		})
	}

	if _, err := svc.Rows("name.female", -1, 10); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Rows(offset -1) error = %v, want ErrInvalidArgument", err)
	}
}

func TestRowsAndRow_NonFiniteDoubles(t *testing.T) {
	svc, _ := newTestService(t, nil)
	catalog.Register(catalog.Definition{Key: "score.list"})

	page, err := svc.Rows("score.list", 0, 10)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	want := []any{"NaN", "+Inf", "-Inf", 0.25}
	if len(page.Rows) != len(want) {
		t.Fatalf("Rows() returned %d rows, want %d", len(page.Rows), len(want))
	}
	for i, w := range want {
		if got := page.Rows[i]["score"]; got != w {
			t.Errorf("Rows()[%d] score = %v, want %v", i, got, w)
		}
	}

	row, err := svc.Row("score.list", 2)
	if err != nil {
		t.Fatalf("Row() error = %v", err)
	}
	if row["score"] != "-Inf" {
		t.Errorf("Row(2) score = %v, want -Inf", row["score"])
	}
}

func TestRow(t *testing.T) {
	svc, _ := newTestService(t, nil)

	row, err := svc.Row("name.female", 1)
	if err != nil {
		t.Fatalf("Row() error = %v", err)
	}
	if row["name"] != "PATRICIA" || row["frequency"] != 1.073 || row["rank"] != int32(2) {
		t.Errorf("Row(1) = %v", row)
	}

	if _, err := svc.Row("name.female", 3); !errors.Is(err, textreader.ErrAccess) {
		t.Errorf("Row(3) error = %v, want ErrAccess", err)
	}

	row, err = svc.Row("job.title", 2)
	if err != nil {
		t.Fatalf("Row(job.title, 2) error = %v", err)
	}
	if row["value"] != "Architect" {
		t.Errorf("Row(job.title, 2) = %v", row)
	}
}

func TestCachingReloadAndReset(t *testing.T) {
	svc, cache := newTestService(t, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Row("name.female", 0); err != nil {
			t.Fatalf("Row() error = %v", err)
		}
	}
	if got := cache.loadCount("name/female"); got != 1 {
		t.Errorf("loads after repeated access = %d, want 1", got)
	}

	if _, err := svc.Reload("name.female"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := cache.loadCount("name/female"); got != 2 {
		t.Errorf("loads after Reload = %d, want 2", got)
	}

	if _, err := svc.Reload("no.such.key"); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("Reload(unknown) error = %v, want ErrUnknownResource", err)
	}

	_, _ = svc.Describe("job.title")
	if n := svc.ResetCache(); n != 2 {
		t.Errorf("ResetCache() = %d, want 2", n)
	}
	_, _ = svc.Describe("name.female")
	if got := cache.loadCount("name/female"); got != 3 {
		t.Errorf("loads after ResetCache = %d, want 3", got)
	}
}

func TestPreload(t *testing.T) {
	svc, _ := newTestService(t, nil)

	err := svc.Preload(context.Background())
	if err == nil {
		t.Fatal("Preload() expected error from the broken resources")
	}

	catalog.Clear()
	catalog.Register(catalog.Definition{Key: "name.female"})
	catalog.Register(catalog.Definition{Key: "job.title"})

	if err := svc.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}
	for _, info := range svc.ListResources() {
		if !info.Loaded {
			t.Errorf("%s not loaded after Preload", info.Key)
		}
	}
}

// fakeTx records the statements run by an export.
type fakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	execs      []string
	table      pgx.Identifier
	columns    []string
	rows       [][]any
	committed  bool
	rolledBack bool
	copyErr    error
	block      chan struct{}
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.block != nil {
		<-f.block
	}
	if f.copyErr != nil {
		return 0, f.copyErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.table = table
	f.columns = columns
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.rows = append(f.rows, values)
	}
	return int64(len(f.rows)), src.Err()
}

func (f *fakeTx) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestExport(t *testing.T) {
	tx := &fakeTx{}
	svc, _ := newTestService(t, &fakeDB{tx: tx})

	result, err := svc.Export(context.Background(), "name.female")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if result.Table != "fixture_name_female" || result.Rows != 3 || result.Key != "name.female" {
		t.Errorf("Export() = %+v", result)
	}
	if !tx.committed || tx.rolledBack {
		t.Errorf("committed, rolledBack = %v, %v, want true, false", tx.committed, tx.rolledBack)
	}
	if len(tx.execs) != 2 || !strings.Contains(tx.execs[0], `"public"."fixture_name_female"`) {
		t.Errorf("statements = %q", tx.execs)
	}
	if len(tx.columns) != 6 {
		t.Errorf("copy columns = %v", tx.columns)
	}
	if tx.rows[2][2] != "LINDA" || tx.rows[2][1] != int32(2) {
		t.Errorf("copied row 2 = %v", tx.rows[2])
	}
}

func TestExport_PadsDelimitedRows(t *testing.T) {
	tx := &fakeTx{}
	svc, _ := newTestService(t, &fakeDB{tx: tx})

	if _, err := svc.Export(context.Background(), "pair.list"); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(tx.rows) != 1 {
		t.Fatalf("copied %d rows, want 1", len(tx.rows))
	}
	row := tx.rows[0]
	if len(row) != 4 || row[2] != "keep the line" || row[3] != nil {
		t.Errorf("copied row = %v, want load id, index, line, nil", row)
	}
}

func TestExport_Errors(t *testing.T) {
	t.Run("disabled without database", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		if svc.ExportEnabled() {
			t.Error("ExportEnabled() = true without database")
		}
		if _, err := svc.Export(context.Background(), "name.female"); !errors.Is(err, ErrExportDisabled) {
			t.Errorf("Export() error = %v, want ErrExportDisabled", err)
		}
	})

	t.Run("unknown resource", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDB{tx: &fakeTx{}})
		if _, err := svc.Export(context.Background(), "no.such.key"); !errors.Is(err, ErrUnknownResource) {
			t.Errorf("Export() error = %v, want ErrUnknownResource", err)
		}
	})

	t.Run("begin fails", func(t *testing.T) {
		boom := errors.New("connection refused")
		svc, _ := newTestService(t, &fakeDB{beginErr: boom})
		if _, err := svc.Export(context.Background(), "name.female"); !errors.Is(err, boom) {
			t.Errorf("Export() error = %v, want begin error", err)
		}
	})

	t.Run("copy fails rolls back", func(t *testing.T) {
		boom := &pgconn.PgError{Code: "42501"}
		tx := &fakeTx{copyErr: boom}
		svc, _ := newTestService(t, &fakeDB{tx: tx})

		_, err := svc.Export(context.Background(), "name.female")
		if !errors.Is(err, boom) {
			t.Errorf("Export() error = %v, want copy error", err)
		}
		if tx.committed || !tx.rolledBack {
			t.Errorf("committed, rolledBack = %v, %v, want false, true", tx.committed, tx.rolledBack)
		}
		if got := MapError(err).Code; got != "DB002" {
			t.Errorf("MapError(export error) = %s, want DB002", got)
		}
	})
}

func TestExport_Busy(t *testing.T) {
	tx := &fakeTx{block: make(chan struct{})}
	svc, _ := newTestService(t, &fakeDB{tx: tx})

	// Load before exporting so the first export blocks only in CopyFrom.
	if _, err := svc.Describe("name.female"); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Export(context.Background(), "name.female")
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for svc.ExportStatus().Active == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := svc.Export(context.Background(), "name.female"); !errors.Is(err, ErrTooManyExports) {
		t.Errorf("second Export() error = %v, want ErrTooManyExports", err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.WaitForExports(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForExports() with running export = %v, want deadline exceeded", err)
	}

	close(tx.block)
	if err := <-done; err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	if err := svc.WaitForExports(context.Background()); err != nil {
		t.Errorf("WaitForExports() after export = %v", err)
	}
}
