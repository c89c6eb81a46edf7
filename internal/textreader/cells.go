package textreader

import "github.com/jackc/pgx/v5/pgtype"

// String returns a STRING cell. Valid is false when the cell is absent.
func (r *Reader[T]) String(row, col int) (pgtype.Text, error) {
	v, ok, err := typedValue[string](r, row, col, "a string")
	if err != nil {
		return pgtype.Text{}, err
	}
	return pgtype.Text{String: v, Valid: ok}, nil
}

// Int returns an INT cell. Valid is false when the cell is absent.
func (r *Reader[T]) Int(row, col int) (pgtype.Int4, error) {
	v, ok, err := typedValue[int32](r, row, col, "an int")
	if err != nil {
		return pgtype.Int4{}, err
	}
	return pgtype.Int4{Int32: v, Valid: ok}, nil
}

// Long returns a LONG cell. Valid is false when the cell is absent.
func (r *Reader[T]) Long(row, col int) (pgtype.Int8, error) {
	v, ok, err := typedValue[int64](r, row, col, "a long")
	if err != nil {
		return pgtype.Int8{}, err
	}
	return pgtype.Int8{Int64: v, Valid: ok}, nil
}

// Double returns a DOUBLE cell. Valid is false when the cell is absent.
func (r *Reader[T]) Double(row, col int) (pgtype.Float8, error) {
	v, ok, err := typedValue[float64](r, row, col, "a double")
	if err != nil {
		return pgtype.Float8{}, err
	}
	return pgtype.Float8{Float64: v, Valid: ok}, nil
}
