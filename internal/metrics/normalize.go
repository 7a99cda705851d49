package metrics

import (
	"math"

	"codeberg.org/mutker/rahoverlay/internal/sim"
)

const (
	msToKmh = 3.6

	// the SDK reports a released clutch as 1.0
	defaultRawClutch = 1.0
)

// Normalize converts the raw driver inputs of s into a Frame. Missing or
// non-numeric values take their defaults before any arithmetic.
func Normalize(s sim.Sample) Frame {
	return Frame{
		Speed:              floatOr(s.Speed, 0) * msToKmh,
		Gear:               intOr(s.Gear, 0),
		Throttle:           floatOr(s.Throttle, 0),
		Brake:              floatOr(s.Brake, 0),
		Clutch:             1.0 - floatOr(s.Clutch, defaultRawClutch),
		SteeringWheelAngle: floatOr(s.SteeringWheelAngle, 0),
	}
}

func floatOr(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

func intOr(v any, def int) int {
	if i, ok := toInt(v); ok {
		return i
	}
	return def
}

// toFloat accepts any Go numeric type. NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	}

	f, ok := toFloat(v)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

// toFloats converts a per-car array. Entries that are not numeric become 0,
// which every consumer treats as "no value".
func toFloats(v any) []float64 {
	switch arr := v.(type) {
	case nil:
		return nil
	case []float64:
		out := make([]float64, len(arr))
		for i, f := range arr {
			out[i] = floatOr(f, 0)
		}
		return out
	case []float32:
		out := make([]float64, len(arr))
		for i, f := range arr {
			out[i] = floatOr(f, 0)
		}
		return out
	case []int:
		out := make([]float64, len(arr))
		for i, n := range arr {
			out[i] = float64(n)
		}
		return out
	case []int32:
		out := make([]float64, len(arr))
		for i, n := range arr {
			out[i] = float64(n)
		}
		return out
	case []any:
		out := make([]float64, len(arr))
		for i, e := range arr {
			out[i] = floatOr(e, 0)
		}
		return out
	default:
		return nil
	}
}
