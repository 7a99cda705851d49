package sim

import "codeberg.org/mutker/rahoverlay/internal/errors"

const (
	// Connection Errors
	ErrNotConnected = errors.ErrorCode("sim_not_connected")
	ErrSourceLost   = errors.ErrorCode("sim_source_lost")

	// Replay Errors
	ErrReplayLoad    = errors.ErrorCode("sim_replay_load_failed")
	ErrReplayInvalid = errors.ErrorCode("sim_replay_invalid")
)
