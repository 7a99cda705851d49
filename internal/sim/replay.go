package sim

import (
	"os"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"gopkg.in/yaml.v3"
)

// replayFile is the on-disk layout of a recorded session:
//
//	session_info: |
//	  SessionInfo:
//	    Sessions:
//	      - SessionNum: 0
//	        SessionType: Race
//	ticks:
//	  - {Speed: 41.7, Gear: 3, CarIdxEstTime: [12.1, 3.4], ...}
type replayFile struct {
	SessionInfo any              `yaml:"session_info"`
	Ticks       []map[string]any `yaml:"ticks"`
}

// ReplaySource plays back recorded ticks, one per Freeze. Without loop it
// reports itself disconnected after the last tick, like a simulator that
// was closed.
type ReplaySource struct {
	sessionInfo any
	ticks       []map[string]any
	loop        bool
	cursor      int
	started     bool
	done        bool
}

// LoadReplay reads a replay file from disk.
func LoadReplay(path string, loop bool) (*ReplaySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrReplayLoad, err)
	}
	return ParseReplay(data, loop)
}

// ParseReplay decodes a replay document.
func ParseReplay(data []byte, loop bool) (*ReplaySource, error) {
	errFactory := errors.New()

	var f replayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errFactory.Wrap(ErrReplayInvalid, err)
	}
	if len(f.Ticks) == 0 {
		return nil, errFactory.WithData(ErrReplayInvalid, "no ticks recorded")
	}

	return &ReplaySource{
		sessionInfo: f.SessionInfo,
		ticks:       f.Ticks,
		loop:        loop,
		cursor:      -1,
	}, nil
}

// Startup fails once a non-looping replay has been played to the end.
func (r *ReplaySource) Startup() bool {
	if r.done {
		return false
	}
	r.started = true
	return true
}

func (r *ReplaySource) Shutdown() {
	r.started = false
}

func (r *ReplaySource) IsConnected() bool {
	return r.started && !r.done
}

func (r *ReplaySource) Freeze() {
	if !r.started || r.done {
		return
	}
	if r.cursor+1 < len(r.ticks) {
		r.cursor++
		return
	}
	if r.loop {
		r.cursor = 0
		return
	}
	r.done = true
}

func (r *ReplaySource) Get(name string) (any, bool) {
	if !r.started || r.cursor < 0 {
		return nil, false
	}

	v, ok := r.ticks[r.cursor][name]
	if !ok && name == VarSessionInfo && r.sessionInfo != nil {
		return r.sessionInfo, true
	}
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Len returns the number of recorded ticks.
func (r *ReplaySource) Len() int {
	return len(r.ticks)
}

var _ Source = (*ReplaySource)(nil)
