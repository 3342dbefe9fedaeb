package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/liftlog/internal/domain"
)

// AddRun attaches a manually entered run to the draft, replacing any earlier
// manual run.
func (c *Controller) AddRun(distanceMeters float64, duration time.Duration) (domain.Run, error) {
	draft, err := c.active()
	if err != nil {
		return domain.Run{}, err
	}
	if err := domain.ValidateRunTotals(distanceMeters, duration); err != nil {
		return domain.Run{}, err
	}
	if draft.Run != nil && draft.Run.Recording {
		return domain.Run{}, fmt.Errorf("%w: a GPS run is recording", domain.ErrValidation)
	}
	draft.Run = &domain.Run{
		ID:             uuid.NewString(),
		Mode:           domain.RunModeManual,
		DistanceMeters: distanceMeters,
		Duration:       duration,
		StartedAt:      c.now().UTC(),
	}
	draft.State = domain.SessionStateActive
	return *draft.Run, nil
}

// StartGPSRun attaches a recording run that accepts route points.
func (c *Controller) StartGPSRun() (domain.Run, error) {
	draft, err := c.active()
	if err != nil {
		return domain.Run{}, err
	}
	if draft.Run != nil {
		return domain.Run{}, fmt.Errorf("%w: session already has a run", domain.ErrValidation)
	}
	draft.Run = &domain.Run{
		ID:        uuid.NewString(),
		Mode:      domain.RunModeGPS,
		StartedAt: c.now().UTC(),
		Recording: true,
		Route:     []domain.RoutePoint{},
	}
	draft.State = domain.SessionStateActive
	return *draft.Run, nil
}

// AppendRoutePoint adds a sample to the recording run identified by runID
// and extends the distance. Samples addressed to a run that is no longer
// recording are dropped and reported as not appended without error; samples
// older than the last accepted point fail validation.
func (c *Controller) AppendRoutePoint(runID string, point domain.RoutePoint) (bool, error) {
	if c.draft == nil || c.draft.Run == nil || !c.draft.Run.Recording || c.draft.Run.ID != runID {
		return false, nil
	}
	if !point.Coordinate.Valid() {
		return false, fmt.Errorf("%w: coordinate out of range", domain.ErrValidation)
	}
	run := c.draft.Run
	if n := len(run.Route); n > 0 {
		last := run.Route[n-1]
		if point.Timestamp.Before(last.Timestamp) {
			return false, fmt.Errorf("%w: route point at %s precedes last point at %s", domain.ErrValidation,
				point.Timestamp.Format(time.RFC3339Nano), last.Timestamp.Format(time.RFC3339Nano))
		}
		run.DistanceMeters += haversine(last.Coordinate, point.Coordinate)
	}
	point.Timestamp = point.Timestamp.UTC()
	run.Route = append(run.Route, point)
	return true, nil
}

// FinishRun stops recording and fixes the duration from the first to the
// last route point.
func (c *Controller) FinishRun() (domain.Run, error) {
	draft, err := c.active()
	if err != nil {
		return domain.Run{}, err
	}
	if draft.Run == nil || !draft.Run.Recording {
		return domain.Run{}, fmt.Errorf("%w: no recording run", domain.ErrNotFound)
	}
	finishRun(draft.Run)
	return *draft.Run, nil
}

func finishRun(run *domain.Run) {
	run.Recording = false
	if n := len(run.Route); n > 1 {
		run.Duration = run.Route[n-1].Timestamp.Sub(run.Route[0].Timestamp)
	}
}
