// Package laps keeps the rolling window of the player's completed lap times.
package laps

import "sync"

// WindowSize is the maximum number of lap times kept.
const WindowSize = 10

// History is a FIFO of completed lap durations in seconds.
type History struct {
	mu       sync.Mutex
	times    []float64
	recorded int
}

func NewHistory() *History {
	return &History{times: make([]float64, 0, WindowSize+1)}
}

// Record appends currentLapElapsed when the simulator's lap counter has
// moved past the number of laps recorded so far, then returns a copy of
// the window. Repeated calls with the same counter are no-ops.
//
// The guard compares against the counter value of the last append rather
// than the window length, so it keeps working once eviction starts and a
// mid-session join records one lap instead of catching up tick by tick.
func (h *History) Record(currentLap int, currentLapElapsed float64) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if currentLap > h.recorded {
		h.times = append(h.times, currentLapElapsed)
		h.recorded = currentLap
		if len(h.times) > WindowSize {
			h.times = h.times[1:]
		}
	}

	return h.copyLocked()
}

// Laps returns a copy of the window, oldest first.
func (h *History) Laps() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.copyLocked()
}

// Last returns the most recent entry.
func (h *History) Last() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.times) == 0 {
		return 0, false
	}
	return h.times[len(h.times)-1], true
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.times)
}

// Recorded returns the lap counter value of the last append.
func (h *History) Recorded() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recorded
}

// Reset empties the window, e.g. when a new session restarts the lap counter.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.times = h.times[:0]
	h.recorded = 0
}

func (h *History) copyLocked() []float64 {
	out := make([]float64, len(h.times))
	copy(out, h.times)
	return out
}
