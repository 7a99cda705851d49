package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Collector is what the poller records completed laps through
type Collector interface {
	Record(ctx context.Context, snapshot *LapSnapshot) error
	RunID() uuid.UUID
	Close() error
}

// Repository persists lap snapshots
type Repository interface {
	Record(snapshot *LapSnapshot) error
	Flush() error
	Close() error
}

// Reader queries archived laps
type Reader interface {
	ListLaps(ctx context.Context, filter LapFilter) ([]LapSnapshot, error)
}

// Store is a Repository that can also be queried
type Store interface {
	Repository
	Reader
}

// LapSnapshot is one completed lap with the derived metrics at completion
type LapSnapshot struct {
	RunID        uuid.UUID
	Timestamp    time.Time
	SessionNum   int
	SessionType  string
	Lap          int
	LapTime      float64
	FrontLapTime float64
	LapDelta     float64
	TargetPace   float64
}

// LapFilter narrows ListLaps. Zero values match everything.
type LapFilter struct {
	RunID uuid.UUID
	Limit int
}
