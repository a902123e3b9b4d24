package models

import "errors"

var (
	// ErrConfig marks a bad or missing argument rejected before any I/O
	ErrConfig = errors.New("configuration error")

	// ErrInputRead marks a missing or malformed input dataset
	ErrInputRead = errors.New("input dataset read error")

	// ErrMissingField marks a structure lacking a field required for correction
	ErrMissingField = errors.New("missing field")

	// ErrFieldShape marks a field present with the wrong type or length
	ErrFieldShape = errors.New("invalid field shape")
)
