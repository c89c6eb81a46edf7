package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/fakedata/internal/catalog"
	"github.com/JonMunkholm/fakedata/internal/logging"
	"github.com/JonMunkholm/fakedata/internal/resourcecache"
	"github.com/JonMunkholm/fakedata/internal/store"
	"github.com/JonMunkholm/fakedata/internal/textreader"
)

var (
	// ErrUnknownResource is returned for keys that are not in the catalog.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrExportDisabled is returned by Export when no database is configured.
	ErrExportDisabled = errors.New("export disabled: no database configured")

	// ErrInvalidArgument marks malformed request parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Reader is the reader type the service caches: rows stay as raw cell values.
type Reader = textreader.Reader[[]any]

// ReaderCache is the subset of resourcecache.Cache used by the service.
type ReaderCache interface {
	Get(key string) (*Reader, error)
	Peek(key string) (*Reader, bool)
	Invalidate(key string)
	Reset()
	Len() int
}

// TxBeginner starts database transactions. *pgxpool.Pool implements it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewReaderCache returns a cache that reads resources from fsys by path.
func NewReaderCache(fsys fs.FS, logger *slog.Logger) (*resourcecache.Cache[*Reader], error) {
	if logger == nil {
		logger = slog.Default()
	}
	return resourcecache.New(func(path string) (*Reader, error) {
		r, err := textreader.Open[[]any](fsys, path)
		if err != nil {
			return nil, err
		}
		r.WithLogger(logger)

		start := time.Now()
		if err := r.Read(); err != nil {
			return nil, err
		}
		logger.Info("resource loaded",
			"path", path,
			"rows", r.RowCount(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return r, nil
	})
}

// Config holds the service settings taken from config.ExportConfig and
// config.ResourcesConfig.
type Config struct {
	Schema               string
	TablePrefix          string
	Truncate             bool
	MaxConcurrentExports int
	MaxExportWait        time.Duration
	ExportTimeout        time.Duration
	PreloadConcurrency   int
}

// DefaultExportTimeout bounds a single export when Config leaves it unset.
const DefaultExportTimeout = 2 * time.Minute

// Service exposes the registered resources: listing, describing, paging
// through rows, cache control and export to PostgreSQL.
type Service struct {
	cache   ReaderCache
	db      TxBeginner
	cfg     Config
	limiter *ExportLimiter
}

// NewService creates a Service. db may be nil, which disables Export.
func NewService(cache ReaderCache, db TxBeginner, cfg Config) (*Service, error) {
	if cache == nil {
		return nil, errors.New("core: reader cache is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = DefaultExportTimeout
	}
	if cfg.PreloadConcurrency <= 0 {
		cfg.PreloadConcurrency = 1
	}

	return &Service{
		cache:   cache,
		db:      db,
		cfg:     cfg,
		limiter: NewExportLimiter(cfg.MaxConcurrentExports, cfg.MaxExportWait),
	}, nil
}

// ResourceInfo is a catalog entry plus whether it is currently cached.
type ResourceInfo struct {
	catalog.Definition
	Loaded bool `json:"loaded"`
}

// ResourceDescription is the schema and metadata of a loaded resource.
type ResourceDescription struct {
	catalog.Definition
	Format          textreader.Format   `json:"format"`
	Delimiter       string              `json:"delimiter"`
	HasColumnWidths bool                `json:"hasColumnWidths"`
	Columns         []textreader.Column `json:"columns"`
	Properties      map[string]string   `json:"properties"`
	RowCount        int                 `json:"rowCount"`
	LineCount       int                 `json:"lineCount"`
}

// RowPage is one page of rows keyed by column name.
type RowPage struct {
	Key    string           `json:"key"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
	Total  int              `json:"total"`
	Rows   []map[string]any `json:"rows"`
}

// ExportResult reports a completed export.
type ExportResult struct {
	LoadID   uuid.UUID     `json:"loadId"`
	Key      string        `json:"key"`
	Table    string        `json:"table"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// ListResources returns every registered resource.
func (s *Service) ListResources() []ResourceInfo {
	defs := catalog.All()
	infos := make([]ResourceInfo, len(defs))
	for i, def := range defs {
		infos[i] = s.info(def)
	}
	return infos
}

// ListResourcesByGroup returns resources organized by group.
func (s *Service) ListResourcesByGroup() map[string][]ResourceInfo {
	result := make(map[string][]ResourceInfo)
	for _, group := range catalog.Groups() {
		for _, def := range catalog.ByGroup(group) {
			result[group] = append(result[group], s.info(def))
		}
	}
	return result
}

func (s *Service) info(def catalog.Definition) ResourceInfo {
	_, loaded := s.cache.Peek(def.Path)
	return ResourceInfo{Definition: def, Loaded: loaded}
}

// reader resolves key through the catalog and returns its loaded reader.
func (s *Service) reader(key string) (catalog.Definition, *Reader, error) {
	def, ok := catalog.Get(key)
	if !ok {
		return catalog.Definition{}, nil, fmt.Errorf("%w: %q", ErrUnknownResource, key)
	}
	r, err := s.cache.Get(def.Path)
	if err != nil {
		return def, nil, err
	}
	return def, r, nil
}

// Describe loads key if needed and returns its schema and metadata.
func (s *Service) Describe(key string) (*ResourceDescription, error) {
	def, r, err := s.reader(key)
	if err != nil {
		return nil, err
	}

	schema := r.Schema()
	return &ResourceDescription{
		Definition:      def,
		Format:          schema.Format,
		Delimiter:       schema.Delimiter,
		HasColumnWidths: schema.HasColumnWidths,
		Columns:         schema.Columns,
		Properties:      r.Properties(),
		RowCount:        r.RowCount(),
		LineCount:       r.LineCount(),
	}, nil
}

// Rows returns up to limit rows starting at offset. An offset at or past the
// end yields an empty page.
func (s *Service) Rows(key string, offset, limit int) (*RowPage, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d is negative", ErrInvalidArgument, offset)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit %d is negative", ErrInvalidArgument, limit)
	}

	_, r, err := s.reader(key)
	if err != nil {
		return nil, err
	}

	total := r.RowCount()
	end := min(offset+limit, total)
	page := &RowPage{
		Key:    key,
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rows:   make([]map[string]any, 0, max(end-offset, 0)),
	}
	for i := offset; i < end; i++ {
		row, err := r.RowMap(i)
		if err != nil {
			return nil, err
		}
		page.Rows = append(page.Rows, finiteRow(row))
	}
	return page, nil
}

// Row returns a single row keyed by column name. Rows and Row both report
// non-finite doubles as strings.
func (s *Service) Row(key string, index int) (map[string]any, error) {
	_, r, err := s.reader(key)
	if err != nil {
		return nil, err
	}
	row, err := r.RowMap(index)
	if err != nil {
		return nil, err
	}
	return finiteRow(row), nil
}

// finiteRow replaces NaN and infinite doubles, which JSON cannot represent,
// with their text form: "NaN", "+Inf" or "-Inf".
func finiteRow(row map[string]any) map[string]any {
	for name, v := range row {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			row[name] = strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return row
}

// Reload drops key from the cache and reads it again.
func (s *Service) Reload(key string) (*ResourceDescription, error) {
	def, ok := catalog.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, key)
	}
	s.cache.Invalidate(def.Path)
	return s.Describe(key)
}

// ResetCache drops every cached resource and returns how many were dropped.
func (s *Service) ResetCache() int {
	n := s.cache.Len()
	s.cache.Reset()
	return n
}

// Preload reads every registered resource, PreloadConcurrency at a time.
// It stops at the first failure.
func (s *Service) Preload(ctx context.Context) error {
	defs := catalog.All()
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PreloadConcurrency)

	for _, def := range defs {
		def := def
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.cache.Get(def.Path); err != nil {
				return fmt.Errorf("preload %s: %w", def.Key, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logging.FromContext(ctx).Info("resources preloaded",
		"count", len(defs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ExportEnabled reports whether a database is configured.
func (s *Service) ExportEnabled() bool {
	return s.db != nil
}

// ExportStatus returns the export limiter state.
func (s *Service) ExportStatus() ExportLimiterStatus {
	return s.limiter.Status()
}

// Export copies every row of key into its PostgreSQL table in one
// transaction. The rows are tagged with a fresh load id.
func (s *Service) Export(ctx context.Context, key string) (*ExportResult, error) {
	if s.db == nil {
		return nil, ErrExportDisabled
	}

	def, r, err := s.reader(key)
	if err != nil {
		return nil, err
	}

	table, err := store.TableName(s.cfg.TablePrefix, def.Key)
	if err != nil {
		return nil, err
	}

	var result *ExportResult
	err = s.limiter.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ExportTimeout)
		defer cancel()

		loadID := uuid.New()
		logger := logging.WithFields(ctx, "load_id", loadID.String(), "resource", key, "table", table)
		logger.Info("export started", "rows", r.RowCount())
		start := time.Now()

		rows, err := exportRows(r)
		if err != nil {
			return err
		}

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		n, err := store.Export(ctx, tx, store.ExportRequest{
			Schema:   s.cfg.Schema,
			Table:    table,
			Columns:  r.Schema().Columns,
			Rows:     rows,
			LoadID:   loadID,
			Truncate: s.cfg.Truncate,
		})
		if err != nil {
			logger.Error("export failed", "error", err)
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit export: %w", err)
		}

		result = &ExportResult{
			LoadID:   loadID,
			Key:      key,
			Table:    table,
			Rows:     n,
			Duration: time.Since(start),
		}
		logger.Info("export completed", "rows", n, "duration_ms", result.Duration.Milliseconds())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", key, err)
	}
	return result, nil
}

// exportRows returns every row padded to the column count. Delimited rows
// hold a single cell regardless of how many columns are declared.
func exportRows(r *Reader) ([][]any, error) {
	width := r.ColumnCount()
	rows := make([][]any, r.RowCount())
	for i := range rows {
		values, err := r.RowValues(i)
		if err != nil {
			return nil, err
		}
		row := make([]any, width)
		copy(row, values)
		rows[i] = row
	}
	return rows, nil
}

// WaitForExports blocks until running exports finish or ctx is done.
func (s *Service) WaitForExports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
