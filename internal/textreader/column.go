package textreader

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the declared type of a column. The set is closed; each type
// owns a parse rule in parseFuncs.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt
	TypeLong
	TypeDouble
)

var columnTypeNames = [...]string{
	TypeString: "STRING",
	TypeInt:    "INT",
	TypeLong:   "LONG",
	TypeDouble: "DOUBLE",
}

// parseFuncs converts trimmed cell text into the column's Go value.
// Numeric types map empty text to nil.
var parseFuncs = [...]func(string) (any, error){
	TypeString: func(s string) (any, error) {
		return s, nil
	},
	TypeInt: func(s string) (any, error) {
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	},
	TypeLong: func(s string) (any, error) {
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	},
	TypeDouble: func(s string) (any, error) {
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	},
}

// String returns the upper-case type name.
func (t ColumnType) String() string {
	if t < 0 || int(t) >= len(columnTypeNames) {
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
	return columnTypeNames[t]
}

// MarshalText encodes the type by name so JSON responses read "DOUBLE" rather than 3.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Parse converts cell text according to the type.
func (t ColumnType) Parse(s string) (any, error) {
	if t < 0 || int(t) >= len(parseFuncs) {
		return nil, fmt.Errorf("unsupported column type %d", int(t))
	}
	return parseFuncs[t](s)
}

// ParseColumnType resolves a type name case-insensitively.
func ParseColumnType(name string) (ColumnType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range columnTypeNames {
		if n == upper {
			return ColumnType(i), nil
		}
	}
	return TypeString, fmt.Errorf("unknown column type %q", name)
}

// Column describes one column of a resource.
type Column struct {
	Name  string     `json:"name"`
	Type  ColumnType `json:"type"`
	Width int        `json:"width"` // 0 means unbounded; only valid for the last fixed-width column
}

// NewColumn validates and returns a column.
func NewColumn(name string, typ ColumnType, width int) (Column, error) {
	if name == "" {
		return Column{}, fmt.Errorf("column name is required")
	}
	if width < 0 {
		return Column{}, fmt.Errorf("column %q: width must be >= 0, got %d", name, width)
	}
	if typ < 0 || int(typ) >= len(parseFuncs) {
		return Column{}, fmt.Errorf("column %q: unsupported type %d", name, int(typ))
	}
	return Column{Name: name, Type: typ, Width: width}, nil
}

// String renders the column the way it would be declared in a columns directive.
func (c Column) String() string {
	if c.Width == 0 {
		return fmt.Sprintf("%s(%s)", c.Name, strings.ToLower(c.Type.String()))
	}
	return fmt.Sprintf("%s(%s,%d)", c.Name, strings.ToLower(c.Type.String()), c.Width)
}
