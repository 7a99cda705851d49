package metrics

import (
	"encoding/json"

	"codeberg.org/mutker/rahoverlay/internal/session"
)

// Wire keys of the consolidated telemetry record
const (
	KeySpeed              = "speed"
	KeyGear               = "gear"
	KeyThrottle           = "throttle"
	KeyBrake              = "brake"
	KeyClutch             = "clutch"
	KeySteeringWheelAngle = "steering_wheel_angle"
	KeyFrontLastLapTime   = "front_last_lap_time"
	KeyFrontBestLapTime   = "front_best_lap_time"
	KeyLapDelta           = "lap_delta"
	KeyTargetPace         = "target_pace"
	KeySessionType        = "session_type"
)

// Frame is the normalized driver-input row. Every field is always set.
type Frame struct {
	Speed              float64 `json:"speed"` // km/h
	Gear               int     `json:"gear"`
	Throttle           float64 `json:"throttle"`
	Brake              float64 `json:"brake"`
	Clutch             float64 `json:"clutch"` // 1.0 = fully pressed
	SteeringWheelAngle float64 `json:"steering_wheel_angle"`
}

// DefaultFrame is the frame produced from a sample with no usable fields.
func DefaultFrame() Frame {
	return Frame{Clutch: 1.0 - defaultRawClutch}
}

// Derived holds the comparison against the car ahead. The front lap time is
// the front car's last lap in race sessions and its best lap otherwise; the
// wire key follows the session type.
//
// In practice/qualify sessions LapDelta is the best-lap gap and TargetPace
// carries the last-lap gap. Clients depend on these key names.
type Derived struct {
	SessionType  string
	FrontLapTime float64
	LapDelta     float64
	TargetPace   float64
}

// Fallback is the zero comparison emitted when nothing can be compared.
func Fallback() Derived {
	return Derived{}
}

// IsFallback reports whether d carries no comparison.
func (d Derived) IsFallback() bool {
	return d == Fallback()
}

// FrontKey returns the wire key used for FrontLapTime.
func (d Derived) FrontKey() string {
	if d.SessionType == "" || session.IsRace(d.SessionType) {
		return KeyFrontLastLapTime
	}
	return KeyFrontBestLapTime
}

func (d Derived) fields(m map[string]any) {
	m[d.FrontKey()] = d.FrontLapTime
	m[KeyLapDelta] = d.LapDelta
	m[KeyTargetPace] = d.TargetPace
	if d.SessionType != "" {
		m[KeySessionType] = d.SessionType
	}
}

func (d Derived) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4)
	d.fields(m)
	return json.Marshal(m)
}

// Record is the consolidated telemetry_update payload: the frame with the
// derived comparison merged in. The zero Record means "no data" and
// marshals to an empty object.
type Record struct {
	Frame   Frame
	Derived Derived
	valid   bool
}

func NewRecord(frame Frame, derived Derived) Record {
	return Record{Frame: frame, Derived: derived, valid: true}
}

// IsEmpty reports whether r carries no telemetry, as when the simulator is
// disconnected.
func (r Record) IsEmpty() bool {
	return !r.valid
}

// Map returns the flat wire form of r.
func (r Record) Map() map[string]any {
	if !r.valid {
		return map[string]any{}
	}

	m := map[string]any{
		KeySpeed:              r.Frame.Speed,
		KeyGear:               r.Frame.Gear,
		KeyThrottle:           r.Frame.Throttle,
		KeyBrake:              r.Frame.Brake,
		KeyClutch:             r.Frame.Clutch,
		KeySteeringWheelAngle: r.Frame.SteeringWheelAngle,
	}
	r.Derived.fields(m)

	return m
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}
