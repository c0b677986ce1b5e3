package repository

import "errors"

var (
	// ErrResultsNotFound indicates the result file does not exist
	ErrResultsNotFound = errors.New("result file not found")

	// ErrInvalidFileName indicates a result file name with path elements
	ErrInvalidFileName = errors.New("invalid result file name")

	// ErrMalformedRow indicates a stored row that cannot be decoded
	ErrMalformedRow = errors.New("malformed result row")
)
