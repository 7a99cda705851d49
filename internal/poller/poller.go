// Package poller drives the telemetry loop: connect, snapshot, compute,
// broadcast and archive, once per tick.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/laps"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"codeberg.org/mutker/rahoverlay/internal/metrics"
	"codeberg.org/mutker/rahoverlay/internal/sim"
	"codeberg.org/mutker/rahoverlay/internal/telemetry"
)

const (
	ChannelLapPace       = "lap_pace"
	ChannelDriverInFront = "driver_in_front"

	EventTelemetry     = "telemetry_update"
	EventLapTime       = "lap_time_update"
	EventDriverInFront = "driver_in_front_update"

	archiveTimeout = time.Second
)

// Emitter is the fire-and-forget broadcast side of the loop
type Emitter interface {
	Emit(event string, payload any, channel string)
}

// LapTimeUpdate is the lap_pace payload
type LapTimeUpdate struct {
	LapTime float64 `json:"lap_time"`
}

type Config struct {
	Interval          time.Duration
	ReconnectInterval time.Duration
	Channels          []string
}

type Option func(*Poller)

func WithArchive(c telemetry.Collector) Option {
	return func(p *Poller) {
		if c != nil {
			p.archive = c
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Poller) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(p *Poller) {
		p.log = log
	}
}

func WithHistory(h *laps.History) Option {
	return func(p *Poller) {
		if h != nil {
			p.history = h
		}
	}
}

// Poller owns the lap history and the engine; both are only touched from
// the loop goroutine.
type Poller struct {
	cfg      Config
	provider *sim.Provider
	engine   *metrics.Engine
	history  *laps.History
	emitter  Emitter
	archive  telemetry.Collector
	metrics  *Metrics
	log      logger.Logger

	latest   atomic.Pointer[metrics.Record]
	stopping atomic.Bool

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	lastAttempt time.Time
	lastLap     int
}

func New(cfg Config, provider *sim.Provider, engine *metrics.Engine, emitter Emitter, opts ...Option) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New().WithData(ErrInvalidInterval, cfg.Interval)
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = time.Second
	}

	p := &Poller{
		cfg:      cfg,
		provider: provider,
		engine:   engine,
		history:  laps.NewHistory(),
		emitter:  emitter,
		archive:  telemetry.NewNoop(),
		metrics:  NewMetrics(nil),
		log:      logger.WithComponent("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Start runs the loop in its own goroutine until ctx is done or Stop is
// called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return errors.New().New(ErrAlreadyStarted)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go p.run(ctx, p.done)

	p.log.Info().
		Dur("interval", p.cfg.Interval).
		Strs("channels", p.cfg.Channels).
		Msg("Telemetry polling started")

	return nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.stopping.Load() {
				return
			}
			p.Tick(ctx)
		}
	}
}

// Stop asks the loop to exit, waits up to timeout for it and disconnects
// from the simulator either way.
func (p *Poller) Stop(timeout time.Duration) error {
	p.stopping.Store(true)

	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(timeout):
			err = errors.New().WithData(ErrShutdownTimeout, timeout)
		}
	}

	p.provider.Disconnect()
	p.metrics.connected.Set(0)
	p.latest.Store(nil)

	return err
}

// Latest returns the last record produced while connected, or an empty
// Record.
func (p *Poller) Latest() metrics.Record {
	if !p.provider.IsConnected() {
		return metrics.Record{}
	}
	if rec := p.latest.Load(); rec != nil {
		return *rec
	}
	return metrics.Record{}
}

// History returns the lap history fed by the loop
func (p *Poller) History() *laps.History {
	return p.history
}

// Tick runs one iteration of the loop. It is exported for callers that
// drive the loop themselves.
func (p *Poller) Tick(ctx context.Context) {
	start := time.Now()

	if !p.ensureConnected(start) {
		return
	}

	sample, err := p.provider.Snapshot()
	if err != nil {
		p.handleSnapshotError(err)
		return
	}

	frame, derived := p.engine.Compute(sample, p.history)

	// Stop may have begun while computing
	if p.stopping.Load() {
		p.metrics.skipped.WithLabelValues("stopping").Inc()
		return
	}

	rec := metrics.NewRecord(frame, derived)
	p.latest.Store(&rec)
	if derived.IsFallback() {
		p.metrics.fallbacks.Inc()
	}

	p.emit(rec, derived)
	p.archiveLap(ctx, derived)

	p.metrics.ticks.Inc()
	p.metrics.tickDuration.Observe(time.Since(start).Seconds())
}

func (p *Poller) ensureConnected(now time.Time) bool {
	// never reconnect behind Stop's back
	if p.stopping.Load() {
		p.metrics.skipped.WithLabelValues("stopping").Inc()
		return false
	}

	if p.provider.IsConnected() {
		return true
	}

	if !p.lastAttempt.IsZero() && now.Sub(p.lastAttempt) < p.cfg.ReconnectInterval {
		p.metrics.skipped.WithLabelValues("disconnected").Inc()
		return false
	}
	p.lastAttempt = now

	if !p.provider.Connect() {
		p.log.Debug().Msg("Simulator not running, waiting")
		p.metrics.skipped.WithLabelValues("disconnected").Inc()
		return false
	}

	p.metrics.connected.Set(1)
	return true
}

func (p *Poller) handleSnapshotError(err error) {
	switch {
	case errors.HasCode(err, sim.ErrSourceLost):
		p.log.Warn().Msg("Simulator stopped publishing telemetry")
		p.provider.Disconnect()
		p.metrics.connected.Set(0)
		p.latest.Store(nil)
		p.lastAttempt = time.Now()
		p.metrics.skipped.WithLabelValues("source_lost").Inc()
	case errors.HasCode(err, sim.ErrNotConnected):
		p.metrics.connected.Set(0)
		p.metrics.skipped.WithLabelValues("disconnected").Inc()
	default:
		p.log.Error().Err(err).Msg("Failed to read telemetry snapshot")
		p.metrics.skipped.WithLabelValues("error").Inc()
	}
}

func (p *Poller) emit(rec metrics.Record, derived metrics.Derived) {
	for _, ch := range p.cfg.Channels {
		switch ch {
		case ChannelLapPace:
			last, ok := p.history.Last()
			if !ok {
				continue
			}
			p.send(EventLapTime, LapTimeUpdate{LapTime: last}, ch)
		case ChannelDriverInFront:
			p.send(EventDriverInFront, derived, ch)
		default:
			p.send(EventTelemetry, rec, ch)
		}
	}
}

func (p *Poller) send(event string, payload any, ch string) {
	p.emitter.Emit(event, payload, ch)
	p.metrics.emitted.WithLabelValues(event).Inc()
}

// archiveLap stores the lap appended to the history on this tick, if any
func (p *Poller) archiveLap(ctx context.Context, derived metrics.Derived) {
	recorded := p.history.Recorded()
	if recorded == 0 || recorded == p.lastLap {
		// a reset history starts counting again
		if recorded == 0 {
			p.lastLap = 0
		}
		return
	}
	p.lastLap = recorded
	p.metrics.laps.Inc()

	lapTime, _ := p.history.Last()
	sessionNum, sessionType := p.engine.Session()

	snapshot := &telemetry.LapSnapshot{
		Timestamp:    time.Now(),
		SessionNum:   sessionNum,
		SessionType:  sessionType,
		Lap:          recorded,
		LapTime:      lapTime,
		FrontLapTime: derived.FrontLapTime,
		LapDelta:     derived.LapDelta,
		TargetPace:   derived.TargetPace,
	}

	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	if err := p.archive.Record(ctx, snapshot); err != nil {
		p.metrics.archiveErrors.Inc()
		p.log.Error().Err(err).Int("lap", recorded).Msg("Failed to archive lap")
	}
}
