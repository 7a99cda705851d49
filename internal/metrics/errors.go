package metrics

import "codeberg.org/mutker/rahoverlay/internal/errors"

const (
	// Computation Errors
	ErrComputeFailed = errors.ErrorCode("metrics_compute_failed")
)
