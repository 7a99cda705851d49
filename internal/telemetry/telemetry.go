// Package telemetry archives completed laps in a local sqlite database.
package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/rahoverlay/internal/errors"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"github.com/google/uuid"
)

type service struct {
	repo  Repository
	runID uuid.UUID
}

// NewService returns a Collector for cfg. A disabled archive yields a no-op
// collector that never touches disk.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	s := &service{
		repo:  repo,
		runID: uuid.New(),
	}
	log.Debug().Str("run_id", s.runID.String()).Msg("Lap archive run started")

	return s, nil
}

func (s *service) RunID() uuid.UUID {
	return s.runID
}

func (s *service) Record(ctx context.Context, snapshot *LapSnapshot) error {
	errFactory := errors.New()

	if snapshot == nil || snapshot.Lap < 0 || snapshot.LapTime < 0 {
		return errFactory.New(ErrInvalidLap)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	if snapshot.RunID == uuid.Nil {
		snapshot.RunID = s.runID
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}

	if err := s.repo.Record(snapshot); err != nil {
		return errFactory.Wrap(ErrLapCollection, err)
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	return nil
}

type noopCollector struct{}

// NewNoop returns a Collector that discards every lap
func NewNoop() Collector {
	return noopCollector{}
}

func (noopCollector) Record(context.Context, *LapSnapshot) error { return nil }

func (noopCollector) RunID() uuid.UUID { return uuid.Nil }

func (noopCollector) Close() error { return nil }
