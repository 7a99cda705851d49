package poller

import "codeberg.org/mutker/rahoverlay/internal/errors"

const (
	ErrAlreadyStarted  = errors.ErrorCode("poller_already_started")
	ErrShutdownTimeout = errors.ErrorCode("poller_shutdown_timeout")
	ErrInvalidInterval = errors.ErrorCode("poller_invalid_interval")
)
