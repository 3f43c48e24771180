package storage

import (
	"context"
	"errors"

	"github.com/example/roadside-rescue/internal/models"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// RequestStore defines persistence operations for service requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *models.ServiceRequest) error
	RequestByID(ctx context.Context, id int64) (*models.ServiceRequest, error)
	ActiveRequestForUser(ctx context.Context, userID string) (*models.ServiceRequest, error)
	AssignedRequestForMechanic(ctx context.Context, mechanicID string) (*models.ServiceRequest, error)
	PendingRequests(ctx context.Context) ([]models.ServiceRequest, error)
	UpdateRequest(ctx context.Context, r *models.ServiceRequest) error
	DeleteRequest(ctx context.Context, id int64) error
}

// RatingStore defines persistence operations for ratings.
type RatingStore interface {
	CreateRating(ctx context.Context, r *models.Rating) error
	RatingByID(ctx context.Context, id int64) (*models.Rating, error)
	RatingForRequest(ctx context.Context, requestID int64) (*models.Rating, error)
	RatingsForMechanic(ctx context.Context, mechanicID string) ([]models.Rating, error)
	UpdateRating(ctx context.Context, r *models.Rating) error
	DeleteRating(ctx context.Context, id int64) error
}

// MechanicStore holds mechanic profiles and their rating aggregates.
type MechanicStore interface {
	MechanicByID(ctx context.Context, id string) (*models.Mechanic, error)
	AvailableMechanics(ctx context.Context, skill string) ([]models.Mechanic, error)
	UpsertMechanic(ctx context.Context, m *models.Mechanic) error
	// SetAggregate overwrites the rating aggregate recomputed from all
	// remaining ratings after a lifecycle event.
	SetAggregate(ctx context.Context, id string, avgRating float64, reviewCount int) error
	IncrementTotalJobs(ctx context.Context, id string) error
	IncrementCanceledCount(ctx context.Context, id string) error
}

// TrackingStore keeps the latest persisted mechanic position per request.
type TrackingStore interface {
	LatestTrackingPoint(ctx context.Context, requestID int64) (*models.TrackingPoint, error)
	SaveTrackingPoint(ctx context.Context, p *models.TrackingPoint) error
}

// Store is the full persistence surface the server wires up.
type Store interface {
	RequestStore
	RatingStore
	MechanicStore
	TrackingStore
}
