package matcher

import (
	"context"
	"sort"

	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/observability"
	"github.com/example/roadside-rescue/internal/scoring"
	"github.com/example/roadside-rescue/internal/weights"
)

// Service ranks candidates for both sides of the marketplace using the
// current adaptive weight pair. It reads the pair once per query; a slightly
// stale pair while a rating update is in flight is fine.
type Service struct {
	Weights       weights.Adapter
	MaxDistanceKm float64
}

// RankedMechanic is a mechanic annotated with its score breakdown.
type RankedMechanic struct {
	Mechanic models.Mechanic     `json:"mechanic"`
	Score    scoring.ScoreResult `json:"score"`
}

// RankedRequest is a pending request annotated as the mechanic sees it.
type RankedRequest struct {
	Request models.ServiceRequest `json:"request"`
	Score   scoring.ScoreResult   `json:"score"`
}

// RankMechanics scores available mechanics against the user's location and
// returns them ordered by descending total score. Mechanics without workshop
// coordinates are skipped.
func (s *Service) RankMechanics(ctx context.Context, userLoc models.Coord, candidates []models.Mechanic) ([]RankedMechanic, error) {
	w, err := s.Weights.Current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RankedMechanic, 0, len(candidates))
	for _, m := range candidates {
		if m.Workshop.Zero() {
			continue
		}
		res := scoring.Score(userLoc, m.Workshop, m.AvgRating, w, s.maxKm())
		out = append(out, RankedMechanic{Mechanic: m, Score: res})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score.TotalScore > out[j].Score.TotalScore })
	observability.RankingsTotal.Inc()
	return out, nil
}

// RankRequests scores pending requests for a mechanic. The mechanic's own
// reputation enters every candidate's score identically, so the ordering is
// driven by proximity while the totals stay comparable to the user side.
func (s *Service) RankRequests(ctx context.Context, mech models.Mechanic, pending []models.ServiceRequest) ([]RankedRequest, error) {
	w, err := s.Weights.Current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RankedRequest, 0, len(pending))
	for _, r := range pending {
		if r.UserLoc.Zero() {
			continue
		}
		res := scoring.Score(r.UserLoc, mech.Workshop, mech.AvgRating, w, s.maxKm())
		out = append(out, RankedRequest{Request: r, Score: res})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score.TotalScore > out[j].Score.TotalScore })
	observability.RankingsTotal.Inc()
	return out, nil
}

func (s *Service) maxKm() float64 {
	if s.MaxDistanceKm > 0 {
		return s.MaxDistanceKm
	}
	return scoring.DefaultMaxDistanceKm
}
