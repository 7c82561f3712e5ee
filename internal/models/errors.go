package models

import "errors"

// Error kinds shared by every pipeline stage. Stages wrap one of these with
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is.
var (
	// ErrConfiguration reports a missing or invalid configuration value
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound reports a missing input file or dataset
	ErrNotFound = errors.New("not found")

	// ErrRange reports a slice or shape outside the valid extent
	ErrRange = errors.New("range error")

	// ErrResource reports an unavailable or exhausted compute device
	ErrResource = errors.New("resource error")
)
