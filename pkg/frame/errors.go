package frame

import "errors"

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrInsufficientHistory is returned when a table has fewer rows than the
	// largest lag or rolling window, or a split leaves one side empty.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrDegenerateVariance is returned when a z-score is requested for a
	// column whose standard deviation is zero.
	ErrDegenerateVariance = errors.New("degenerate variance")

	// ErrChronologicalOrder is returned when rows are not time ordered where
	// ordering is required, or when training rows would not strictly precede
	// test rows.
	ErrChronologicalOrder = errors.New("chronological order violation")

	// ErrMissingValue is returned when a value that must be present is NaN.
	ErrMissingValue = errors.New("missing value")
)
