// Package metrics turns one raw simulator sample into the normalized
// driver-input frame and the comparison against the car ahead.
package metrics

import (
	"fmt"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/laps"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"codeberg.org/mutker/rahoverlay/internal/session"
	"codeberg.org/mutker/rahoverlay/internal/sim"
	"codeberg.org/mutker/rahoverlay/internal/standings"
)

// Engine is owned by the polling task of one telemetry source; it is not
// safe for concurrent use.
type Engine struct {
	log        logger.Logger
	classifier *session.Classifier
	onFailure  func(error)

	lastSession int
	lastType    string
	haveSession bool
}

type EngineOption func(*Engine)

// WithLogger sets the logger used for recovered failures.
func WithLogger(log logger.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithFailureHook is called after a computation failure was recovered.
func WithFailureHook(fn func(error)) EngineOption {
	return func(e *Engine) {
		e.onFailure = fn
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		log:        logger.WithComponent("metrics"),
		classifier: session.NewClassifier(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// inputs are the non-input fields of a sample after coercion
type inputs struct {
	player     int
	lap        int
	lapElapsed float64
	sessionNum int
	// sessionOK is false when SessionNum was missing or unreadable
	sessionOK bool
	field     standings.Field
}

func readInputs(s sim.Sample) inputs {
	sessionNum, sessionOK := toInt(s.SessionNum)
	return inputs{
		player:     intOr(s.PlayerCarIdx, 0),
		lap:        intOr(s.Lap, 0),
		lapElapsed: floatOr(s.LapCurrentLapTime, 0),
		sessionNum: sessionNum,
		sessionOK:  sessionOK,
		field: standings.Field{
			BestLap:    toFloats(s.CarIdxBestLapTime),
			LastLap:    toFloats(s.CarIdxLastLapTime),
			EstTime:    toFloats(s.CarIdxEstTime),
			LapsRemain: intOr(s.SessionLapsRemain, 0),
			TimeRemain: floatOr(s.SessionTimeRemain, 0),
		},
	}
}

// Compute normalizes raw, records a completed lap into history and derives
// the comparison against the car ahead. It never fails: any panic during
// the computation yields DefaultFrame and Fallback.
func (e *Engine) Compute(raw sim.Sample, history *laps.History) (frame Frame, derived Derived) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New().WithData(ErrComputeFailed, fmt.Sprint(r))
			e.log.ErrorWithCode(err).Msg("Metrics computation failed, emitting fallback record")
			if e.onFailure != nil {
				e.onFailure(err)
			}
			frame, derived = DefaultFrame(), Fallback()
		}
	}()

	frame = Normalize(raw)
	in := readInputs(raw)

	// an unreadable session number keeps the last known session
	if !in.sessionOK && e.haveSession {
		in.sessionNum = e.lastSession
	}

	if history != nil {
		if e.haveSession && in.sessionOK && in.sessionNum != e.lastSession {
			e.log.Debug().
				Int("from", e.lastSession).
				Int("to", in.sessionNum).
				Msg("Session changed, resetting lap history")
			history.Reset()
		}
		history.Record(in.lap, in.lapElapsed)
	}
	if in.sessionOK {
		e.lastSession, e.haveSession = in.sessionNum, true
	}

	sessionType := e.classifier.Classify(in.sessionNum, raw.SessionInfo)
	e.lastType = sessionType

	return frame, e.derive(sessionType, in)
}

// Session returns the session number and type seen by the last Compute.
func (e *Engine) Session() (int, string) {
	return e.lastSession, e.lastType
}

func (*Engine) derive(sessionType string, in inputs) Derived {
	// no valid lap yet: nothing meaningful to compare against
	if lastLap(in) <= 0 {
		return Fallback()
	}

	res, ok := standings.Locate(sessionType, in.player, in.field)
	if !ok {
		return Fallback()
	}

	return Derived{
		SessionType:  sessionType,
		FrontLapTime: res.FrontLapTime,
		LapDelta:     res.LapDelta,
		TargetPace:   res.TargetPace,
	}
}

func lastLap(in inputs) float64 {
	if in.player < 0 || in.player >= len(in.field.LastLap) {
		return 0
	}
	return in.field.LastLap[in.player]
}
