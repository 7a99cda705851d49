// Package standings finds the competitor directly ahead of the player and
// derives the lap comparison against it.
package standings

import (
	"math"
	"sort"

	"codeberg.org/mutker/rahoverlay/internal/session"
)

const (
	// PaceMargin is applied to the per-lap gap when projecting target pace.
	PaceMargin = 1.10

	// lap counters at or above this are the SDK's "not lap limited" sentinel
	maxLapsRemain = 32000
)

// Field holds the per-car arrays of one tick, indexed by car index, plus the
// session counters needed for pace projection. Invalid entries are <= 0.
type Field struct {
	BestLap    []float64
	LastLap    []float64
	EstTime    []float64
	LapsRemain int
	TimeRemain float64
}

// Result describes the front car and the derived comparison.
type Result struct {
	Race     bool
	FrontIdx int
	// FrontLapTime is the front car's last lap in race mode and its best
	// lap in practice/qualify mode.
	FrontLapTime float64
	LapDelta     float64
	// TargetPace is the projected pace in race mode. In practice/qualify
	// mode it carries the last-lap gap (front last - my last).
	TargetPace float64
	Gap        float64
	LapsLeft   float64
}

// Locate dispatches on the session type. ok is false when there is no car
// ahead to compare against.
func Locate(sessionType string, player int, f Field) (Result, bool) {
	if session.IsRace(sessionType) {
		return LocateRace(player, f)
	}
	return LocatePractice(player, f)
}

// LocateRace picks the car with the smallest positive estimated time to the
// line, ignoring the player. Ties keep the lowest car index.
func LocateRace(player int, f Field) (Result, bool) {
	myLast := at(f.LastLap, player)
	if myLast <= 0 {
		return Result{}, false
	}

	front := -1
	gap := math.Inf(1)
	for i, est := range f.EstTime {
		if i == player || !valid(est) {
			continue
		}
		if est < gap {
			front = i
			gap = est
		}
	}
	if front < 0 {
		return Result{}, false
	}

	frontLast := at(f.LastLap, front)
	if frontLast <= 0 {
		return Result{}, false
	}

	lapsLeft := LapsLeft(f.LapsRemain, f.TimeRemain, myLast)

	return Result{
		Race:         true,
		FrontIdx:     front,
		FrontLapTime: frontLast,
		LapDelta:     frontLast - myLast,
		TargetPace:   TargetPace(myLast, gap, lapsLeft),
		Gap:          gap,
		LapsLeft:     lapsLeft,
	}, true
}

// LocatePractice ranks cars by best lap and returns the one ranked directly
// above the player.
func LocatePractice(player int, f Field) (Result, bool) {
	type entry struct {
		idx  int
		best float64
	}

	ranked := make([]entry, 0, len(f.BestLap))
	for i, best := range f.BestLap {
		if valid(best) {
			ranked = append(ranked, entry{idx: i, best: best})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].best < ranked[b].best
	})

	pos := -1
	for i, e := range ranked {
		if e.idx == player {
			pos = i
			break
		}
	}
	if pos <= 0 {
		return Result{}, false
	}

	front := ranked[pos-1]
	myBest := ranked[pos].best

	var lastGap float64
	if frontLast, myLast := at(f.LastLap, front.idx), at(f.LastLap, player); frontLast > 0 && myLast > 0 {
		lastGap = frontLast - myLast
	}

	return Result{
		FrontIdx:     front.idx,
		FrontLapTime: front.best,
		LapDelta:     myBest - front.best,
		TargetPace:   lastGap,
		Gap:          myBest - front.best,
	}, true
}

// LapsLeft uses the remaining-lap counter when it holds a real value and
// otherwise estimates laps from remaining time, never below one lap.
func LapsLeft(lapsRemain int, timeRemain, lapTime float64) float64 {
	if lapsRemain > 0 && lapsRemain < maxLapsRemain {
		return float64(lapsRemain)
	}

	if lapTime <= 0 || !valid(timeRemain) {
		return 1
	}

	return math.Max(1, timeRemain/lapTime)
}

// TargetPace is the lap time needed on every remaining lap to close gap,
// with PaceMargin applied. It is never negative.
func TargetPace(myLast, gap, lapsLeft float64) float64 {
	if lapsLeft < 1 {
		lapsLeft = 1
	}
	pace := myLast - (gap/lapsLeft)*PaceMargin
	if math.IsNaN(pace) || pace < 0 {
		return 0
	}
	return pace
}

func at(values []float64, idx int) float64 {
	if idx < 0 || idx >= len(values) {
		return 0
	}
	v := values[idx]
	if !valid(v) {
		return 0
	}
	return v
}

func valid(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
