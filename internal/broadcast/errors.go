package broadcast

import "codeberg.org/mutker/rahoverlay/internal/errors"

const (
	ErrUnknownChannel = errors.ErrorCode("broadcast_unknown_channel")
	ErrHubClosed      = errors.ErrorCode("broadcast_hub_closed")
	ErrEncodePayload  = errors.ErrorCode("broadcast_encode_payload_failed")
)
