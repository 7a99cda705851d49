package laps_test

import (
	"testing"

	"codeberg.org/mutker/rahoverlay/internal/laps"
	"github.com/stretchr/testify/assert"
)

func TestRecordKeepsMostRecentWindow(t *testing.T) {
	h := laps.NewHistory()

	for lap := 1; lap <= 15; lap++ {
		h.Record(lap, float64(80+lap))
	}

	got := h.Laps()
	assert.Len(t, got, laps.WindowSize)
	assert.Equal(t, []float64{86, 87, 88, 89, 90, 91, 92, 93, 94, 95}, got)

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, 95.0, last)
}

func TestRecordIsIdempotentPerLap(t *testing.T) {
	h := laps.NewHistory()

	h.Record(1, 90.1)
	h.Record(1, 90.2)
	h.Record(1, 90.3)
	assert.Equal(t, []float64{90.1}, h.Laps())

	// same counter after the window filled
	for lap := 2; lap <= 12; lap++ {
		h.Record(lap, float64(lap))
	}
	before := h.Laps()
	for i := 0; i < 5; i++ {
		h.Record(12, 99)
	}
	assert.Equal(t, before, h.Laps())
	assert.Equal(t, 12, h.Recorded())
}

func TestRecordMidSessionJoin(t *testing.T) {
	h := laps.NewHistory()

	got := h.Record(7, 88.5)
	assert.Equal(t, []float64{88.5}, got)

	got = h.Record(7, 88.6)
	assert.Equal(t, []float64{88.5}, got, "no catch-up appends")
}

func TestRecordIgnoresLapZero(t *testing.T) {
	h := laps.NewHistory()

	h.Record(0, 12.0)
	assert.Zero(t, h.Len())

	_, ok := h.Last()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	h := laps.NewHistory()
	h.Record(3, 90)

	h.Reset()
	assert.Zero(t, h.Len())
	assert.Zero(t, h.Recorded())

	h.Record(1, 91)
	assert.Equal(t, []float64{91}, h.Laps())
}

func TestRecordReturnsCopy(t *testing.T) {
	h := laps.NewHistory()
	got := h.Record(1, 90)
	got[0] = 0

	assert.Equal(t, []float64{90}, h.Laps())
}
