package overlay

import "codeberg.org/mutker/rahoverlay/internal/errors"

const (
	ErrOverlayNotFound     = errors.ErrorCode("overlay_not_found")
	ErrNotRunning          = errors.ErrorCode("overlay_not_running")
	ErrLauncherUnavailable = errors.ErrorCode("overlay_launcher_unavailable")
	ErrLaunchFailed        = errors.ErrorCode("overlay_launch_failed")
	ErrCloseFailed         = errors.ErrorCode("overlay_close_failed")
	ErrCatalogRead         = errors.ErrorCode("overlay_catalog_read_failed")
)
