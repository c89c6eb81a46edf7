// Package textreader parses line-oriented fixture files that describe their
// own schema through comment directives.
//
// # File Format
//
// A resource is UTF-8 text. Lines starting with '#' are directives of the form
// "#name: value"; blank lines are skipped; every other line is a data row.
//
//	#source: US Census Bureau
//	#columns: name(string,15)frequency(double,6)cumulativeFrequency(double,7)rank(int)
//	MARY           2.629  2.629      1
//	PATRICIA       1.073  3.702      2
//
// The columns directive declares each column as name(TYPE,WIDTH). TYPE is one
// of string, int, long, double and defaults to string; WIDTH defaults to 0,
// which means "the rest of the line" and is only allowed on the last column of
// fixed-width input.
//
// # Format Resolution
//
// Just before the first data row the reader runs a preflight step:
//
//  1. Without a format directive, any declared width selects FIXED_WIDTH,
//     otherwise DELIMITED.
//  2. Without a columns directive, a single string column named "value" is used.
//  3. DELIMITED input may not declare widths; the delimiter defaults to a tab.
//  4. FIXED_WIDTH input must give every column but the last a positive width.
//
// DELIMITED lines are currently kept whole as a one-cell row; the delimiter is
// validated but not used for splitting.
//
// # Records
//
// A Reader[T] converts every row into a T. Reader[[]any] keeps the raw cells;
// structs and maps are decoded from a column name to value map.
//
// # Errors
//
// Failures during Read come back as *ReadError carrying the resource name and
// line number. Use errors.Is with ErrConfig, ErrParse, ErrAccess or
// ErrResourceNotFound to classify them.
package textreader
