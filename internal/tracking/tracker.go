// Package tracking processes live mechanic positions for accepted requests:
// deduplicated persistence, arrival detection, ETA annotation, and fan-out
// to websocket subscribers.
package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/example/roadside-rescue/internal/eta"
	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/observability"
	"github.com/example/roadside-rescue/internal/scoring"
	"github.com/example/roadside-rescue/internal/storage"
)

var (
	ErrNotFound  = errors.New("request not found")
	ErrNotActive = errors.New("tracking not active for this request")
)

// Broadcaster pushes updates to the request's websocket subscribers.
type Broadcaster interface {
	Broadcast(requestID int64, v interface{})
	CloseRequest(requestID int64)
}

// Publisher mirrors location updates into the ingest pipeline (Kafka).
type Publisher interface {
	PublishLocation(loc models.MechanicLocation) error
}

type Tracker struct {
	Requests storage.RequestStore
	Store    storage.TrackingStore
	Hub      Broadcaster
	Pub      Publisher  // optional
	ETA      eta.Client // optional routing engine
	ETACache *eta.Cache // optional

	// ArrivalRadiusM ends tracking once the mechanic is this close (meters).
	ArrivalRadiusM float64
	// MinMoveM / MinInterval gate how often a point is persisted: the row is
	// rewritten only when the mechanic moved far enough or enough time passed.
	MinMoveM        float64
	MinInterval     time.Duration
	DefaultSpeedMps float64

	now func() time.Time
}

const (
	defaultArrivalRadiusM = 25.0
	defaultMinMoveM       = 10.0
	defaultMinInterval    = 30 * time.Second
)

// Update processes one position report from the assigned mechanic and
// returns the update that was broadcast.
func (t *Tracker) Update(ctx context.Context, mechanicID string, requestID int64, loc models.Coord) (*models.TrackingUpdate, error) {
	req, err := t.Requests.RequestByID(ctx, requestID)
	if err != nil || req.MechanicID != mechanicID {
		return nil, ErrNotFound
	}
	if req.Status != models.StatusAccepted {
		return nil, ErrNotActive
	}

	now := t.timeNow()
	last, err := t.Store.LatestTrackingPoint(ctx, requestID)
	persist := false
	switch {
	case errors.Is(err, storage.ErrNotFound):
		persist = true
	case err != nil:
		return nil, err
	default:
		moved := scoring.Haversine(last.Loc.Lat, last.Loc.Lng, loc.Lat, loc.Lng, scoring.Meters)
		persist = moved >= t.minMove() || now.Sub(last.Timestamp) >= t.minInterval()
	}
	if persist {
		if err := t.Store.SaveTrackingPoint(ctx, &models.TrackingPoint{RequestID: requestID, Loc: loc, Timestamp: now}); err != nil {
			return nil, err
		}
	}

	// arrival uses the unrounded meter distance to the stranded user
	arrivalM := scoring.Haversine(req.UserLoc.Lat, req.UserLoc.Lng, loc.Lat, loc.Lng, scoring.Meters)
	arrived := arrivalM <= t.arrivalRadius()
	if arrived {
		req.Status = models.StatusArrived
		if err := t.Requests.UpdateRequest(ctx, req); err != nil {
			return nil, err
		}
		observability.ArrivalsTotal.Inc()
	}

	update := &models.TrackingUpdate{
		RequestID:  requestID,
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		Arrived:    arrived,
		ETASeconds: t.estimate(loc, req.UserLoc),
		Timestamp:  now.Format(time.RFC3339),
	}
	if t.Hub != nil {
		t.Hub.Broadcast(requestID, update)
		if arrived {
			t.Hub.CloseRequest(requestID)
		}
	}
	if t.Pub != nil {
		// best-effort mirror into the geo index pipeline
		_ = t.Pub.PublishLocation(models.MechanicLocation{MechanicID: mechanicID, Loc: loc, Available: false})
	}
	observability.TrackingUpdatesTotal.Inc()
	return update, nil
}

func (t *Tracker) estimate(from, to models.Coord) float64 {
	if t.ETACache != nil {
		if v, ok := t.ETACache.Get(from, to); ok {
			return v
		}
	}
	if t.ETA != nil {
		if v, err := t.ETA.EstimateSeconds(from, to); err == nil {
			if t.ETACache != nil {
				t.ETACache.Set(from, to, v)
			}
			return v
		}
	}
	return eta.EstimateSeconds(from, to, t.DefaultSpeedMps)
}

func (t *Tracker) arrivalRadius() float64 {
	if t.ArrivalRadiusM > 0 {
		return t.ArrivalRadiusM
	}
	return defaultArrivalRadiusM
}

func (t *Tracker) minMove() float64 {
	if t.MinMoveM > 0 {
		return t.MinMoveM
	}
	return defaultMinMoveM
}

func (t *Tracker) minInterval() time.Duration {
	if t.MinInterval > 0 {
		return t.MinInterval
	}
	return defaultMinInterval
}

func (t *Tracker) timeNow() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}
