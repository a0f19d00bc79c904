package domain

import "errors"

// Comparison errors
var (
	// ErrInvalidInput indicates a required snapshot argument is missing
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceUnavailable indicates a directory or persisted snapshot cannot be found
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedData indicates a persisted snapshot failed to parse or validate
	ErrMalformedData = errors.New("malformed snapshot data")
)

// Adapter errors
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrSourceNotFound indicates a referenced source doesn't exist
	ErrSourceNotFound = errors.New("source not found")

	// ErrTransportNotFound indicates referenced transport doesn't exist
	ErrTransportNotFound = errors.New("transport not found")
)
