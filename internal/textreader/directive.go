package textreader

// directive.go handles "#name: value" comment lines and the one-time
// preflight that resolves the format before the first data row.
//
// Recognized directives:
//
//	#columns:   name,age(int),score(double,10)
//	#format:    delimited | fixed_width
//	#delimiter: a single character, or \t
//
// Any other identifier-shaped name is kept as a property, e.g. "#source: US Census".

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Format is how data lines are split into cells.
type Format int

const (
	// FormatUnset means no format directive was seen and preflight has not run.
	FormatUnset Format = iota
	FormatDelimited
	FormatFixedWidth
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "DELIMITED"
	case FormatFixedWidth:
		return "FIXED_WIDTH"
	default:
		return "UNSET"
	}
}

// MarshalText encodes the format by name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ParseFormat resolves a format directive value case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DELIMITED":
		return FormatDelimited, nil
	case "FIXED_WIDTH":
		return FormatFixedWidth, nil
	default:
		return FormatUnset, configErrorf("unsupported format %q", s)
	}
}

const defaultDelimiter = "\t"

// implicitColumns is used when a resource declares no columns directive.
const implicitColumns = "value(string)"

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

	// columnRegex matches one column declaration: name, optional (type) or (type,width).
	columnRegex = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)(?:\(\s*([A-Za-z]+)\s*(?:,\s*([0-9]+)\s*)?\))?`)
)

// parseDirective handles a line starting with '#'.
func (r *Reader[T]) parseDirective(line string) error {
	colon := strings.IndexByte(line, ':')
	if colon == -1 {
		return nil
	}

	name := strings.ToLower(strings.TrimSpace(line[1:colon]))
	value := strings.TrimSpace(line[colon+1:])

	switch name {
	case "columns":
		return r.parseColumns(value)
	case "format":
		if r.started {
			return configErrorf("format cannot be changed after rows have been ingested")
		}
		f, err := ParseFormat(value)
		if err != nil {
			return err
		}
		r.schema.Format = f
	case "delimiter":
		if r.started {
			return configErrorf("delimiter cannot be changed after rows have been ingested")
		}
		r.schema.Delimiter = value
	default:
		if identifierRegex.MatchString(name) {
			r.setProperty(name, value)
		}
	}
	return nil
}

// parseColumns installs the schema from a columns directive value.
func (r *Reader[T]) parseColumns(spec string) error {
	if r.schema.Columns != nil {
		return configErrorf("columns can only be specified once")
	}
	if r.started {
		return configErrorf("columns cannot be specified after rows have been ingested")
	}

	matches := columnRegex.FindAllStringSubmatch(spec, -1)
	if len(matches) == 0 {
		return configErrorf("no columns found in specification %q", spec)
	}

	columns := make([]Column, 0, len(matches))
	index := make(map[string]int, len(matches))
	hasWidths := false

	for _, m := range matches {
		typ := TypeString
		if m[2] != "" {
			t, err := ParseColumnType(m[2])
			if err != nil {
				return configErrorf("unable to parse column specification %q: %v", m[0], err)
			}
			typ = t
		}

		width := 0
		if m[3] != "" {
			w, err := strconv.Atoi(m[3])
			if err != nil {
				return configErrorf("unable to parse column specification %q: %v", m[0], err)
			}
			width = w
		}

		col, err := NewColumn(m[1], typ, width)
		if err != nil {
			return configErrorf("unable to parse column specification %q: %v", m[0], err)
		}
		if _, dup := index[col.Name]; dup {
			return configErrorf("column %q is declared more than once", col.Name)
		}
		if col.Width != 0 {
			hasWidths = true
		}

		index[col.Name] = len(columns)
		columns = append(columns, col)
	}

	r.schema.Columns = columns
	r.schema.index = index
	r.schema.HasColumnWidths = hasWidths
	return nil
}

// preflight resolves format, default columns and delimiter. It runs once per
// read, right before the first data line is parsed.
func (r *Reader[T]) preflight() error {
	s := &r.schema

	if s.Format == FormatUnset {
		if s.HasColumnWidths {
			s.Format = FormatFixedWidth
		} else {
			s.Format = FormatDelimited
		}
	}

	if s.Columns == nil {
		if err := r.parseColumns(implicitColumns); err != nil {
			return err
		}
	}

	switch s.Format {
	case FormatDelimited:
		if s.HasColumnWidths {
			return configErrorf("column widths cannot be specified for delimited input")
		}
		d, err := resolveDelimiter(s.Delimiter)
		if err != nil {
			return err
		}
		s.Delimiter = d

	case FormatFixedWidth:
		for _, col := range s.Columns[:len(s.Columns)-1] {
			if col.Width <= 0 {
				return configErrorf("column width must be specified for %q", col.Name)
			}
		}
	}

	r.logger.Debug("resolved format", "resource", r.resource.Name(), "format", s.Format.String(), "delimiter", strconv.Quote(s.Delimiter))
	for _, col := range s.Columns {
		r.logger.Debug("column", "resource", r.resource.Name(), "column", col.String())
	}
	return nil
}

// resolveDelimiter turns a delimiter directive value into the literal character.
func resolveDelimiter(d string) (string, error) {
	if d == "" {
		return defaultDelimiter, nil
	}

	if utf8.RuneCountInString(d) == 1 {
		return d, nil
	}
	if len(d) == 2 && d[0] == '\\' {
		if d[1] == 't' {
			return "\t", nil
		}
		return "", configErrorf("invalid delimiter escape sequence %q", d)
	}
	return "", configErrorf("delimiter must be a single character or escape sequence (\\t), got %q", d)
}
