// Package requests implements the service-request lifecycle: create, accept,
// cancel from either side, and complete.
package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/observability"
	"github.com/example/roadside-rescue/internal/storage"
)

var (
	ErrNoLocation      = errors.New("location not set")
	ErrActiveRequest   = errors.New("an active request already exists")
	ErrNoRequest       = errors.New("no matching request")
	ErrAlreadyAssigned = errors.New("mechanic already has an assigned request")
	ErrUnavailable     = errors.New("request no longer available")
)

// Payments is the hold/capture/cancel surface used around the lifecycle.
// A nil Payments skips the money flow entirely.
type Payments interface {
	Hold(ctx context.Context, amount int64, currency, customerID string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Cancel(ctx context.Context, paymentIntentID string) error
}

// Notifier pushes lifecycle events to the requesting user.
type Notifier interface {
	RequestAccepted(requestID int64, mechanicID string)
	RequestCompleted(requestID int64)
}

type Service struct {
	Store     storage.RequestStore
	Tracking  storage.TrackingStore
	Mechanics storage.MechanicStore
	Payments  Payments
	Notify    Notifier

	HoldAmount int64 // minor units, charged as a deposit on accept
	Currency   string
}

// Create opens a Pending request for the user at the given location.
// One active request per user.
func (s *Service) Create(ctx context.Context, userID, reqType string, loc models.Coord) (*models.ServiceRequest, error) {
	if loc.Zero() {
		return nil, ErrNoLocation
	}
	if existing, err := s.Store.ActiveRequestForUser(ctx, userID); err == nil {
		return nil, fmt.Errorf("%w: status %s", ErrActiveRequest, existing.Status)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	r := &models.ServiceRequest{
		UserID:  userID,
		Type:    reqType,
		Status:  models.StatusPending,
		UserLoc: loc,
	}
	if err := s.Store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	observability.RequestsCreated.Inc()
	return r, nil
}

// CancelByUser cancels the user's active request. Pending requests are
// deleted outright; accepted ones are kept as Canceled by User and any
// payment hold is released.
func (s *Service) CancelByUser(ctx context.Context, userID string) error {
	r, err := s.Store.ActiveRequestForUser(ctx, userID)
	if err != nil {
		return ErrNoRequest
	}
	if r.Status == models.StatusPending {
		return s.Store.DeleteRequest(ctx, r.ID)
	}
	r.Status = models.StatusCanceledByUser
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return err
	}
	s.releaseHold(ctx, r)
	return nil
}

// Accept assigns a pending request to the mechanic, seeds the tracking row
// with the workshop position, and places a deposit hold when payments are
// configured. A mechanic holds at most one assignment.
func (s *Service) Accept(ctx context.Context, mechanicID string, requestID int64) (*models.ServiceRequest, error) {
	if _, err := s.Store.AssignedRequestForMechanic(ctx, mechanicID); err == nil {
		return nil, ErrAlreadyAssigned
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	r, err := s.Store.RequestByID(ctx, requestID)
	if err != nil || r.Status != models.StatusPending {
		return nil, ErrUnavailable
	}
	mech, err := s.Mechanics.MechanicByID(ctx, mechanicID)
	if err != nil {
		return nil, fmt.Errorf("mechanic lookup: %w", err)
	}

	r.MechanicID = mechanicID
	r.Status = models.StatusAccepted

	if s.Payments != nil && s.HoldAmount > 0 {
		pi, err := s.Payments.Hold(ctx, s.HoldAmount, s.Currency, r.UserID)
		if err != nil {
			return nil, fmt.Errorf("payment hold: %w", err)
		}
		r.PaymentIntentID = pi
	}
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		// don't leave the deposit held on a request that was never assigned
		s.releaseHold(ctx, r)
		return nil, err
	}
	if s.Tracking != nil {
		_ = s.Tracking.SaveTrackingPoint(ctx, &models.TrackingPoint{
			RequestID: r.ID,
			Loc:       mech.Workshop,
			Timestamp: time.Now(),
		})
	}
	if s.Notify != nil {
		s.Notify.RequestAccepted(r.ID, mechanicID)
	}
	return r, nil
}

// CancelByMechanic releases the mechanic's assignment, bumps their cancel
// counter, and releases any payment hold.
func (s *Service) CancelByMechanic(ctx context.Context, mechanicID string) error {
	r, err := s.Store.AssignedRequestForMechanic(ctx, mechanicID)
	if err != nil {
		return ErrNoRequest
	}
	r.Status = models.StatusCanceledByMechanic
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return err
	}
	s.releaseHold(ctx, r)
	return s.Mechanics.IncrementCanceledCount(ctx, mechanicID)
}

// Complete marks the mechanic's assignment done, stamps the completion time,
// captures the deposit, and bumps the job counter.
func (s *Service) Complete(ctx context.Context, mechanicID string) error {
	r, err := s.Store.AssignedRequestForMechanic(ctx, mechanicID)
	if err != nil {
		return ErrNoRequest
	}
	r.Status = models.StatusCompleted
	r.CompletedAt = time.Now()
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return err
	}
	if s.Payments != nil && r.PaymentIntentID != "" {
		if err := s.Payments.Capture(ctx, r.PaymentIntentID); err != nil {
			return fmt.Errorf("payment capture: %w", err)
		}
	}
	if s.Notify != nil {
		s.Notify.RequestCompleted(r.ID)
	}
	return s.Mechanics.IncrementTotalJobs(ctx, mechanicID)
}

func (s *Service) releaseHold(ctx context.Context, r *models.ServiceRequest) {
	if s.Payments != nil && r.PaymentIntentID != "" {
		// best-effort; a stuck hold expires on its own
		_ = s.Payments.Cancel(ctx, r.PaymentIntentID)
	}
}
