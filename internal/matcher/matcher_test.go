package matcher

import (
	"context"
	"testing"

	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/weights"
)

func TestRankMechanicsDescending(t *testing.T) {
	s := &Service{Weights: weights.NewMemory()}
	user := models.Coord{Lat: 30.0444, Lng: 31.2357}
	cands := []models.Mechanic{
		{ID: "far-good", Workshop: models.Coord{Lat: 30.30, Lng: 31.50}, AvgRating: 5.0},
		{ID: "near-good", Workshop: models.Coord{Lat: 30.0500, Lng: 31.2400}, AvgRating: 5.0},
		{ID: "near-poor", Workshop: models.Coord{Lat: 30.0500, Lng: 31.2400}, AvgRating: 1.5},
	}
	ranked, err := s.RankMechanics(context.Background(), user, cands)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked, got %d", len(ranked))
	}
	if ranked[0].Mechanic.ID != "near-good" {
		t.Fatalf("expected near-good first, got %s", ranked[0].Mechanic.ID)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score.TotalScore > ranked[i-1].Score.TotalScore {
			t.Fatalf("not descending at %d: %v > %v", i, ranked[i].Score.TotalScore, ranked[i-1].Score.TotalScore)
		}
	}
}

func TestRankMechanicsSkipsMissingCoords(t *testing.T) {
	s := &Service{Weights: weights.NewMemory()}
	user := models.Coord{Lat: 30.0444, Lng: 31.2357}
	cands := []models.Mechanic{
		{ID: "no-workshop", AvgRating: 5.0},
		{ID: "ok", Workshop: models.Coord{Lat: 30.05, Lng: 31.24}, AvgRating: 3.0},
	}
	ranked, err := s.RankMechanics(context.Background(), user, cands)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 1 || ranked[0].Mechanic.ID != "ok" {
		t.Fatalf("expected only ok, got %+v", ranked)
	}
}

func TestRankMechanicsStable(t *testing.T) {
	s := &Service{Weights: weights.NewMemory()}
	user := models.Coord{Lat: 30.0444, Lng: 31.2357}
	// identical candidates keep their input order
	cands := []models.Mechanic{
		{ID: "a", Workshop: models.Coord{Lat: 30.05, Lng: 31.24}, AvgRating: 4.0},
		{ID: "b", Workshop: models.Coord{Lat: 30.05, Lng: 31.24}, AvgRating: 4.0},
	}
	for i := 0; i < 10; i++ {
		ranked, err := s.RankMechanics(context.Background(), user, cands)
		if err != nil {
			t.Fatal(err)
		}
		if ranked[0].Mechanic.ID != "a" || ranked[1].Mechanic.ID != "b" {
			t.Fatalf("iteration %d: order changed: %s, %s", i, ranked[0].Mechanic.ID, ranked[1].Mechanic.ID)
		}
	}
}

func TestRankRequestsOrdersByProximity(t *testing.T) {
	s := &Service{Weights: weights.NewMemory()}
	mech := models.Mechanic{ID: "m1", Workshop: models.Coord{Lat: 30.0444, Lng: 31.2357}, AvgRating: 4.0}
	pending := []models.ServiceRequest{
		{ID: 1, UserLoc: models.Coord{Lat: 30.30, Lng: 31.50}},
		{ID: 2, UserLoc: models.Coord{Lat: 30.0500, Lng: 31.2400}},
	}
	ranked, err := s.RankRequests(context.Background(), mech, pending)
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].Request.ID != 2 {
		t.Fatalf("expected nearest request first, got %d", ranked[0].Request.ID)
	}
}
