package storage

import "errors"

var (
	// ErrClosed is returned for jobs submitted after Shutdown.
	ErrClosed = errors.New("storage engine is shut down")

	// ErrNotFound is returned when a location id has no row.
	ErrNotFound = errors.New("location not found")

	// ErrUnknownLocation is returned when a forecast batch references a
	// location that is not stored.
	ErrUnknownLocation = errors.New("forecast batch references unknown location")
)
