package session

import "codeberg.org/mutker/rahoverlay/internal/errors"

const (
	ErrEmptyMetadata   = errors.ErrorCode("session_empty_metadata")
	ErrParseMetadata   = errors.ErrorCode("session_parse_metadata_failed")
	ErrUnsupportedType = errors.ErrorCode("session_unsupported_metadata_type")
)
