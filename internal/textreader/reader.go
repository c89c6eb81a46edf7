package textreader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
)

// Schema is the column layout and resolved format of one read.
type Schema struct {
	Columns         []Column `json:"columns"`
	HasColumnWidths bool     `json:"hasColumnWidths"`
	Format          Format   `json:"format"`
	Delimiter       string   `json:"delimiter"`

	index map[string]int
}

// Reader parses a resource into typed rows and records of type T.
//
// Call Read once, then query. Read is not safe to call concurrently; after a
// successful Read every accessor is read-only and may be shared across
// goroutines.
type Reader[T any] struct {
	resource Resource
	logger   *slog.Logger

	schema        Schema
	properties    map[string]string
	propertyNames []string
	lineCount     int
	started       bool
	rows          [][]any
	records       []T
}

// New returns a Reader for res. Nothing is read until Read is called.
func New[T any](res Resource) (*Reader[T], error) {
	if res == nil {
		return nil, errors.New("textreader: resource is required")
	}
	return &Reader[T]{
		resource: res,
		logger:   slog.Default(),
	}, nil
}

// Open looks up name in fsys and returns a Reader for it. A missing resource
// fails here with ErrResourceNotFound rather than later in Read.
func Open[T any](fsys fs.FS, name string) (*Reader[T], error) {
	res, err := lookup(fsys, name)
	if err != nil {
		return nil, err
	}
	return New[T](res)
}

// WithLogger replaces the logger used for debug output. It returns r for chaining.
func (r *Reader[T]) WithLogger(logger *slog.Logger) *Reader[T] {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resource returns the resource this reader consumes.
func (r *Reader[T]) Resource() Resource {
	return r.resource
}

// Read parses the whole resource, replacing any state from a previous Read.
func (r *Reader[T]) Read() (err error) {
	r.reset()

	name := r.resource.Name()
	r.logger.Debug("reading resource", "resource", name)

	rc, err := r.resource.Open()
	if err != nil {
		return &ReadError{Resource: name, Err: err}
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = &ReadError{Resource: name, Err: cerr}
		}
	}()

	counter := &countingReader{reader: rc}
	br := bufio.NewReader(decodeUTF8(counter))

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return &ReadError{Resource: name, Line: r.lineCount + 1, Err: readErr}
		}
		if line == "" && readErr == io.EOF {
			break
		}

		r.lineCount++
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if err := r.parseLine(line); err != nil {
			return &ReadError{Resource: name, Line: r.lineCount, Err: err}
		}
		if readErr == io.EOF {
			break
		}
	}

	r.logger.Debug("loaded resource",
		"resource", name,
		"rows", len(r.rows),
		"lines", r.lineCount,
		"bytes", counter.bytesRead,
	)
	return nil
}

// reset discards everything learned by a previous Read.
func (r *Reader[T]) reset() {
	r.schema = Schema{}
	r.properties = make(map[string]string)
	r.propertyNames = nil
	r.lineCount = 0
	r.started = false
	r.rows = nil
	r.records = nil
}

func (r *Reader[T]) setProperty(name, value string) {
	if _, exists := r.properties[name]; !exists {
		r.propertyNames = append(r.propertyNames, name)
	}
	r.properties[name] = value
}

// parseLine dispatches one physical line.
func (r *Reader[T]) parseLine(line string) error {
	if line == "" {
		return nil
	}
	if line[0] == '#' {
		return r.parseDirective(line)
	}

	if !r.started {
		if err := r.preflight(); err != nil {
			return err
		}
		r.started = true
		r.rows = make([][]any, 0, 64)
		r.records = make([]T, 0, 64)
	}

	var data []any
	switch r.schema.Format {
	case FormatDelimited:
		// A delimited line is kept whole as a single cell.
		data = []any{line}
	case FormatFixedWidth:
		var err error
		data, err = r.parseFixedWidth(line)
		if err != nil {
			return err
		}
	default:
		return configErrorf("unsupported format %s", r.schema.Format)
	}

	record, err := r.convert(data)
	if err != nil {
		return err
	}

	r.rows = append(r.rows, data)
	r.records = append(r.records, record)
	return nil
}

// parseFixedWidth slices line by cumulative column widths, counted in characters.
func (r *Reader[T]) parseFixedWidth(line string) ([]any, error) {
	runes := []rune(line)
	data := make([]any, len(r.schema.Columns))

	offset := 0
	for i, col := range r.schema.Columns {
		start := min(offset, len(runes))
		end := len(runes)
		if col.Width != 0 {
			end = min(offset+col.Width, len(runes))
		}

		text := strings.TrimSpace(string(runes[start:end]))
		v, err := col.Type.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q (%s): %w", ErrParse, col.Name, col.Type, err)
		}
		data[i] = v
		offset += col.Width
	}
	return data, nil
}

// Schema returns a copy of the column layout and resolved format.
func (r *Reader[T]) Schema() Schema {
	s := r.schema
	s.Columns = slices.Clone(r.schema.Columns)
	return s
}

// Format returns the resolved format, or FormatUnset before any data row.
func (r *Reader[T]) Format() Format {
	return r.schema.Format
}

// Delimiter returns the resolved delimiter. It is empty for fixed-width input.
func (r *Reader[T]) Delimiter() string {
	return r.schema.Delimiter
}

// HasColumnWidths reports whether any declared column has a nonzero width.
func (r *Reader[T]) HasColumnWidths() bool {
	return r.schema.HasColumnWidths
}

// Column returns the column at index.
func (r *Reader[T]) Column(index int) (Column, bool) {
	if index < 0 || index >= len(r.schema.Columns) {
		return Column{}, false
	}
	return r.schema.Columns[index], true
}

// ColumnByName returns the column with the given name.
func (r *Reader[T]) ColumnByName(name string) (Column, bool) {
	i, ok := r.schema.index[name]
	if !ok {
		return Column{}, false
	}
	return r.schema.Columns[i], true
}

// ColumnCount returns the number of columns.
func (r *Reader[T]) ColumnCount() int {
	return len(r.schema.Columns)
}

// ColumnNames returns column names in declaration order.
func (r *Reader[T]) ColumnNames() []string {
	names := make([]string, len(r.schema.Columns))
	for i, col := range r.schema.Columns {
		names[i] = col.Name
	}
	return names
}

// LineCount returns the number of physical lines read, including directives
// and blank lines.
func (r *Reader[T]) LineCount() int {
	return r.lineCount
}

// RowCount returns the number of data rows.
func (r *Reader[T]) RowCount() int {
	return len(r.rows)
}

// Property returns a metadata property declared by a directive.
func (r *Reader[T]) Property(name string) (string, bool) {
	v, ok := r.properties[name]
	return v, ok
}

// PropertyNames returns property names in the order they were first declared.
func (r *Reader[T]) PropertyNames() []string {
	return slices.Clone(r.propertyNames)
}

// Properties returns a copy of all properties.
func (r *Reader[T]) Properties() map[string]string {
	out := make(map[string]string, len(r.properties))
	for k, v := range r.properties {
		out[k] = v
	}
	return out
}

func (r *Reader[T]) checkRow(row int) error {
	if row < 0 || row >= len(r.rows) {
		return accessErrorf("row index '%d' is out of bounds; there are %d row(s)", row, len(r.rows))
	}
	return nil
}

// RowValues returns a copy of the raw cells of row.
func (r *Reader[T]) RowValues(row int) ([]any, error) {
	if err := r.checkRow(row); err != nil {
		return nil, err
	}
	return slices.Clone(r.rows[row]), nil
}

// Row returns the record converted from row.
func (r *Reader[T]) Row(row int) (T, error) {
	if err := r.checkRow(row); err != nil {
		var zero T
		return zero, err
	}
	return r.records[row], nil
}

// RowMap returns row as a column name to value map.
func (r *Reader[T]) RowMap(row int) (map[string]any, error) {
	if err := r.checkRow(row); err != nil {
		return nil, err
	}
	return r.toMap(r.rows[row]), nil
}

// Value returns the raw cell at row, col. Absent numeric cells are nil.
func (r *Reader[T]) Value(row, col int) (any, error) {
	if col < 0 || col >= len(r.schema.Columns) {
		return nil, accessErrorf("column index '%d' is out of bounds; there are %d column(s)", col, len(r.schema.Columns))
	}
	if err := r.checkRow(row); err != nil {
		return nil, err
	}
	data := r.rows[row]
	if col >= len(data) {
		return nil, nil
	}
	return data[col], nil
}

// typedValue fetches a cell and asserts its Go type. ok is false for a nil cell.
func typedValue[V any, T any](r *Reader[T], row, col int, typeName string) (v V, ok bool, err error) {
	raw, err := r.Value(row, col)
	if err != nil || raw == nil {
		return v, false, err
	}
	v, ok = raw.(V)
	if !ok {
		return v, false, accessErrorf("column '%s' is not %s (row index: %d)", r.schema.Columns[col].Name, typeName, row)
	}
	return v, true, nil
}
