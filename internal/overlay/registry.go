// Package overlay tracks the overlay catalog and the windows opened from it.
package overlay

import (
	"context"
	"sort"
	"sync"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
)

type LaunchStatus string

const (
	StatusLaunched       LaunchStatus = "launched"
	StatusAlreadyRunning LaunchStatus = "already_running"
)

// Registry owns the map from overlay name to its open window. Dead windows
// are reaped before every launch.
type Registry struct {
	dir      string
	urlFor   func(name string) string
	launcher Launcher
	log      logger.Logger

	mu      sync.Mutex
	handles map[string]Handle
}

func NewRegistry(dir string, urlFor func(name string) string, launcher Launcher, log logger.Logger) *Registry {
	return &Registry{
		dir:      dir,
		urlFor:   urlFor,
		launcher: launcher,
		log:      log,
		handles:  make(map[string]Handle),
	}
}

// Catalog returns every known overlay with its running state
func (r *Registry) Catalog() ([]Overlay, error) {
	overlays, err := LoadCatalog(r.dir, r.urlFor)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range overlays {
		h, ok := r.handles[overlays[i].Name]
		overlays[i].Running = ok && h.Alive()
	}
	return overlays, nil
}

// Lookup finds an overlay by directory name or display name
func (r *Registry) Lookup(name string) (Overlay, error) {
	overlays, err := LoadCatalog(r.dir, r.urlFor)
	if err != nil {
		return Overlay{}, err
	}
	for _, o := range overlays {
		if o.Name == name || o.DisplayName == name {
			return o, nil
		}
	}
	return Overlay{}, errors.New().WithData(ErrOverlayNotFound, name)
}

// Launch opens the named overlay unless its window is still alive
func (r *Registry) Launch(ctx context.Context, name string) (Overlay, LaunchStatus, error) {
	o, err := r.Lookup(name)
	if err != nil {
		return Overlay{}, "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.reap()

	if _, ok := r.handles[o.Name]; ok {
		o.Running = true
		return o, StatusAlreadyRunning, nil
	}

	if r.launcher == nil {
		return o, "", errors.New().New(ErrLauncherUnavailable)
	}

	h, err := r.launcher.Launch(ctx, o)
	if err != nil {
		return o, "", err
	}
	r.handles[o.Name] = h
	o.Running = true

	return o, StatusLaunched, nil
}

// Close closes the named overlay's window
func (r *Registry) Close(name string) error {
	o, err := r.Lookup(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	h, ok := r.handles[o.Name]
	delete(r.handles, o.Name)
	r.mu.Unlock()

	if !ok || !h.Alive() {
		return errors.New().WithData(ErrNotRunning, o.Name)
	}

	return h.Close()
}

// Active returns the names of overlays with a live window
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reap()

	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every open window
func (r *Registry) CloseAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]Handle)
	r.mu.Unlock()

	for name, h := range handles {
		if err := h.Close(); err != nil {
			r.log.Warn().Err(err).Str("overlay", name).Msg("Failed to close overlay window")
		}
	}
}

// reap must be called with r.mu held
func (r *Registry) reap() {
	for name, h := range r.handles {
		if !h.Alive() {
			delete(r.handles, name)
		}
	}
}
