package scoring

import (
	"math"
	"testing"

	"github.com/example/roadside-rescue/internal/models"
)

func TestHaversineSymmetry(t *testing.T) {
	a := Haversine(30.0444, 31.2357, 30.0500, 31.2400, Kilometers)
	b := Haversine(30.0500, 31.2400, 30.0444, 31.2357, Kilometers)
	if a != b {
		t.Fatalf("expected symmetric distance, got %v and %v", a, b)
	}
}

func TestHaversineZeroAtIdentity(t *testing.T) {
	if d := Haversine(30.0444, 31.2357, 30.0444, 31.2357, Kilometers); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
	if d := Haversine(30.0444, 31.2357, 30.0444, 31.2357, Meters); d != 0 {
		t.Fatalf("expected 0 meters, got %v", d)
	}
}

func TestHaversineUnits(t *testing.T) {
	km := Haversine(30.0444, 31.2357, 30.0500, 31.2400, Kilometers)
	if km != 0.75 {
		t.Fatalf("expected 0.75 km, got %v", km)
	}
	// meters are unrounded for arrival detection
	m := Haversine(30.0444, 31.2357, 30.0500, 31.2400, Meters)
	if math.Abs(m-747.69) > 0.01 {
		t.Fatalf("expected ~747.69 m, got %v", m)
	}
}

func TestNormalizeDistanceBoundaries(t *testing.T) {
	cases := []struct{ d, max, want float64 }{
		{50, 50, 0.0},
		{0, 50, 1.0},
		{25, 50, 0.5},
		{60, 50, 0.0}, // beyond cutoff
	}
	for _, c := range cases {
		if got := NormalizeDistance(c.d, c.max); got != c.want {
			t.Errorf("NormalizeDistance(%v, %v) = %v, want %v", c.d, c.max, got, c.want)
		}
	}
}

func TestNormalizeReputationLinearity(t *testing.T) {
	cases := []struct{ rating, want float64 }{
		{1, 0.0},
		{5, 1.0},
		{3, 0.5},
		{4.7, 0.925},
	}
	for _, c := range cases {
		if got := NormalizeReputation(c.rating); got != c.want {
			t.Errorf("NormalizeReputation(%v) = %v, want %v", c.rating, got, c.want)
		}
	}
}

func TestWeightsNormalize(t *testing.T) {
	w := Weights{Reputation: 0.62, Distance: 0.38}.Normalize()
	if math.Abs(w.Sum()-1) > 1e-9 {
		t.Fatalf("sum = %v, want 1", w.Sum())
	}
	// a pair drifted to zero must not divide by zero
	z := Weights{}.Normalize()
	if math.IsNaN(z.Reputation) || math.IsNaN(z.Distance) {
		t.Fatalf("zero pair produced NaN: %+v", z)
	}
}

func TestScoreEndToEnd(t *testing.T) {
	user := models.Coord{Lat: 30.0444, Lng: 31.2357}
	mech := models.Coord{Lat: 30.0500, Lng: 31.2400}
	res := Score(user, mech, 4.7, DefaultWeights(), DefaultMaxDistanceKm)

	if res.DistanceKm != 0.75 {
		t.Errorf("DistanceKm = %v, want 0.75", res.DistanceKm)
	}
	if res.DistanceScore != 0.985 {
		t.Errorf("DistanceScore = %v, want 0.985", res.DistanceScore)
	}
	if res.ReputationScore != 0.925 {
		t.Errorf("ReputationScore = %v, want 0.925", res.ReputationScore)
	}
	if res.TotalScore != 0.949 {
		t.Errorf("TotalScore = %v, want 0.949", res.TotalScore)
	}
}

func TestScoreDeterministic(t *testing.T) {
	user := models.Coord{Lat: 30.0444, Lng: 31.2357}
	mech := models.Coord{Lat: 30.0500, Lng: 31.2400}
	first := Score(user, mech, 4.7, DefaultWeights(), DefaultMaxDistanceKm)
	for i := 0; i < 100; i++ {
		if got := Score(user, mech, 4.7, DefaultWeights(), DefaultMaxDistanceKm); got != first {
			t.Fatalf("call %d diverged: %+v vs %+v", i, got, first)
		}
	}
}
