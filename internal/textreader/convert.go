package textreader

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// convert builds the record for one row. A Reader[[]any] keeps the raw cells;
// any other T is decoded from the column name to value map, matching json
// tags first and then field names case-insensitively.
func (r *Reader[T]) convert(data []any) (T, error) {
	var out T
	if raw, ok := any(data).(T); ok {
		return raw, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "json",
	})
	if err != nil {
		return out, fmt.Errorf("%w: record decoder: %w", ErrParse, err)
	}
	if err := dec.Decode(r.toMap(data)); err != nil {
		return out, fmt.Errorf("%w: convert row to %T: %w", ErrParse, out, err)
	}
	return out, nil
}

// toMap zips column names with cells. Columns with no cell map to nil.
func (r *Reader[T]) toMap(data []any) map[string]any {
	m := make(map[string]any, len(r.schema.Columns))
	for i, col := range r.schema.Columns {
		if i < len(data) {
			m[col.Name] = data[i]
		} else {
			m[col.Name] = nil
		}
	}
	return m
}
