package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUpstream indicates a third-party API returned an error or an unexpected payload
	ErrUpstream = errors.New("upstream source failure")

	// ErrUnavailable indicates a dependency (API, file) could not be reached
	ErrUnavailable = errors.New("unavailable")
)
