package core

import "errors"

var (
	// ErrInvalidPrecision is returned when the sampling precision is not positive.
	ErrInvalidPrecision = errors.New("invalid precision")

	// ErrNoDataForSource is returned when a registered source captured no lines.
	ErrNoDataForSource = errors.New("no data for source")

	// ErrUnknownSource is returned when a line references a source that was never registered.
	ErrUnknownSource = errors.New("unknown source")

	// ErrDuplicateSource is returned when a source is registered twice.
	ErrDuplicateSource = errors.New("source already registered")

	// ErrNoSources is returned when a report is requested for zero sources.
	ErrNoSources = errors.New("no sources registered")
)
