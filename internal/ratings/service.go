// Package ratings owns the rating lifecycle: each create, edit, or delete
// pushes a reward delta into the weight adapter and recomputes the
// mechanic's rating aggregate from the remaining ratings.
package ratings

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/observability"
	"github.com/example/roadside-rescue/internal/storage"
	"github.com/example/roadside-rescue/internal/weights"
)

var (
	ErrInvalidStars = errors.New("stars must be between 1 and 5")
	ErrNotRatable   = errors.New("request cannot be rated in its current status")
	ErrAlreadyRated = errors.New("request already rated")
	ErrNotFound     = errors.New("rating not found")
)

type Service struct {
	Ratings   storage.RatingStore
	Requests  storage.RequestStore
	Mechanics storage.MechanicStore
	Weights   weights.Adapter
}

// Create submits a rating for a completed (or mechanic-canceled) request
// owned by userID. The weight adapter is nudged by stars/5 and that reward
// is stored on the rating for later edits and deletes.
func (s *Service) Create(ctx context.Context, userID string, requestID int64, stars int, feedback string) (*models.Rating, error) {
	if stars < 1 || stars > 5 {
		return nil, ErrInvalidStars
	}
	req, err := s.Requests.RequestByID(ctx, requestID)
	if err != nil || req.UserID != userID {
		return nil, ErrNotFound
	}
	if !req.Status.Ratable() {
		return nil, fmt.Errorf("%w: %s", ErrNotRatable, req.Status)
	}
	if _, err := s.Ratings.RatingForRequest(ctx, requestID); err == nil {
		return nil, ErrAlreadyRated
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	ev := weights.Created{Stars: stars}
	if _, err := s.Weights.Apply(ctx, ev.Delta()); err != nil {
		return nil, fmt.Errorf("apply rating reward: %w", err)
	}

	rating := &models.Rating{
		RequestID:     requestID,
		UserID:        userID,
		MechanicID:    req.MechanicID,
		Stars:         stars,
		Feedback:      feedback,
		AppliedReward: ev.Reward(),
	}
	if err := s.Ratings.CreateRating(ctx, rating); err != nil {
		return nil, err
	}
	observability.RatingsTotal.WithLabelValues("created").Inc()
	return rating, s.recomputeAggregate(ctx, req.MechanicID)
}

// Edit changes an existing rating; the adapter receives only the change in
// reward relative to what the rating already contributed.
func (s *Service) Edit(ctx context.Context, userID string, ratingID int64, stars int, feedback string) (*models.Rating, error) {
	if stars < 1 || stars > 5 {
		return nil, ErrInvalidStars
	}
	rating, err := s.Ratings.RatingByID(ctx, ratingID)
	if err != nil || rating.UserID != userID {
		return nil, ErrNotFound
	}

	ev := weights.Edited{OldReward: rating.AppliedReward, Stars: stars}
	if _, err := s.Weights.Apply(ctx, ev.Delta()); err != nil {
		return nil, fmt.Errorf("apply rating reward: %w", err)
	}

	rating.Stars = stars
	rating.Feedback = feedback
	rating.AppliedReward = ev.Reward()
	if err := s.Ratings.UpdateRating(ctx, rating); err != nil {
		return nil, err
	}
	observability.RatingsTotal.WithLabelValues("edited").Inc()
	return rating, s.recomputeAggregate(ctx, rating.MechanicID)
}

// Delete removes a rating and reverses exactly the reward it applied, so a
// create followed by a delete leaves the weight pair untouched.
func (s *Service) Delete(ctx context.Context, userID string, ratingID int64) error {
	rating, err := s.Ratings.RatingByID(ctx, ratingID)
	if err != nil || rating.UserID != userID {
		return ErrNotFound
	}

	ev := weights.Deleted{OldReward: rating.AppliedReward}
	if _, err := s.Weights.Apply(ctx, ev.Delta()); err != nil {
		return fmt.Errorf("apply rating reward: %w", err)
	}
	if err := s.Ratings.DeleteRating(ctx, ratingID); err != nil {
		return err
	}
	observability.RatingsTotal.WithLabelValues("deleted").Inc()
	return s.recomputeAggregate(ctx, rating.MechanicID)
}

// recomputeAggregate rebuilds the mechanic's average rating and review count
// from all remaining ratings. Zero ratings resets both to zero.
func (s *Service) recomputeAggregate(ctx context.Context, mechanicID string) error {
	all, err := s.Ratings.RatingsForMechanic(ctx, mechanicID)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return s.Mechanics.SetAggregate(ctx, mechanicID, 0, 0)
	}
	total := 0
	for _, r := range all {
		total += r.Stars
	}
	avg := float64(total) / float64(len(all))
	avg = math.Round(avg*100) / 100
	return s.Mechanics.SetAggregate(ctx, mechanicID, avg, len(all))
}
