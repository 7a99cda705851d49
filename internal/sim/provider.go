package sim

import (
	"sync"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
)

// Provider owns one Source and its connection flag. The flag only changes
// through Connect and Disconnect. Snapshot holds the lock for the whole
// freeze-and-read batch, so Disconnect waits for an in-flight read and later
// reads observe the disconnected state instead of a torn-down handle.
type Provider struct {
	src       Source
	log       logger.Logger
	mu        sync.RWMutex
	connected bool
}

func NewProvider(src Source, log logger.Logger) *Provider {
	if src == nil {
		src = NullSource{}
	}
	if log == nil {
		log = logger.WithComponent("sim")
	}
	return &Provider{src: src, log: log}
}

// Connect attaches to the simulator if not already connected.
func (p *Provider) Connect() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return true
	}

	if p.src.Startup() && p.src.IsConnected() {
		p.connected = true
		p.log.Info().Msg("Connected to simulator")
	}

	return p.connected
}

// Disconnect is safe to call at any time, including concurrently with
// Snapshot, and more than once.
func (p *Provider) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return
	}

	p.src.Shutdown()
	p.connected = false
	p.log.Info().Msg("Disconnected from simulator")
}

func (p *Provider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// Snapshot freezes the source and reads one tick. It fails with
// ErrNotConnected while disconnected and with ErrSourceLost when the
// simulator stopped publishing since the last tick.
func (p *Provider) Snapshot() (Sample, error) {
	errFactory := errors.New()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return Sample{}, errFactory.New(ErrNotConnected)
	}

	if !p.src.IsConnected() {
		return Sample{}, errFactory.New(ErrSourceLost)
	}

	p.src.Freeze()
	if !p.src.IsConnected() {
		return Sample{}, errFactory.New(ErrSourceLost)
	}

	return readSample(p.src), nil
}
