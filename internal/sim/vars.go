package sim

// Simulator variable names read every tick.
const (
	VarSpeed              = "Speed"
	VarGear               = "Gear"
	VarThrottle           = "Throttle"
	VarBrake              = "Brake"
	VarClutch             = "Clutch"
	VarSteeringWheelAngle = "SteeringWheelAngle"
	VarPlayerCarIdx       = "PlayerCarIdx"
	VarCarIdxBestLapTime  = "CarIdxBestLapTime"
	VarCarIdxLastLapTime  = "CarIdxLastLapTime"
	VarCarIdxEstTime      = "CarIdxEstTime"
	VarSessionLapsRemain  = "SessionLapsRemainEx"
	VarSessionTimeRemain  = "SessionTimeRemain"
	VarLap                = "Lap"
	VarLapCurrentLapTime  = "LapCurrentLapTime"
	VarSessionNum         = "SessionNum"

	// VarSessionInfo is the session metadata document. The SDK exposes it
	// as YAML text; some adapters hand it over already decoded.
	VarSessionInfo = "SessionInfo"
)

// Sample is one tick's raw variable snapshot. Values keep the dynamic type
// the source returned (nil when unavailable); normalization happens in the
// metrics engine.
type Sample struct {
	Speed              any
	Gear               any
	Throttle           any
	Brake              any
	Clutch             any
	SteeringWheelAngle any

	PlayerCarIdx      any
	CarIdxBestLapTime any
	CarIdxLastLapTime any
	CarIdxEstTime     any

	SessionLapsRemain any
	SessionTimeRemain any
	Lap               any
	LapCurrentLapTime any
	SessionNum        any
	SessionInfo       any
}

func readSample(src Source) Sample {
	get := func(name string) any {
		v, ok := src.Get(name)
		if !ok {
			return nil
		}
		return v
	}

	return Sample{
		Speed:              get(VarSpeed),
		Gear:               get(VarGear),
		Throttle:           get(VarThrottle),
		Brake:              get(VarBrake),
		Clutch:             get(VarClutch),
		SteeringWheelAngle: get(VarSteeringWheelAngle),
		PlayerCarIdx:       get(VarPlayerCarIdx),
		CarIdxBestLapTime:  get(VarCarIdxBestLapTime),
		CarIdxLastLapTime:  get(VarCarIdxLastLapTime),
		CarIdxEstTime:      get(VarCarIdxEstTime),
		SessionLapsRemain:  get(VarSessionLapsRemain),
		SessionTimeRemain:  get(VarSessionTimeRemain),
		Lap:                get(VarLap),
		LapCurrentLapTime:  get(VarLapCurrentLapTime),
		SessionNum:         get(VarSessionNum),
		SessionInfo:        get(VarSessionInfo),
	}
}
