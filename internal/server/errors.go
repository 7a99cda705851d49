package server

import "codeberg.org/mutker/rahoverlay/internal/errors"

const (
	ErrListen   = errors.ErrorCode("server_listen_failed")
	ErrServe    = errors.ErrorCode("server_serve_failed")
	ErrShutdown = errors.ErrorCode("server_shutdown_failed")
)
