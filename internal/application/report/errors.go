package report

import "errors"

var (
	// ErrExportAborted is returned when the export stops before the source is exhausted.
	// The rows written up to that point remain in the output.
	ErrExportAborted = errors.New("order export aborted")

	// ErrInvalidExportRequest is returned for a request that cannot be run
	ErrInvalidExportRequest = errors.New("invalid export request")
)
