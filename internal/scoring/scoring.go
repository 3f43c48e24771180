// Package scoring ranks mechanics for a stranded user (and pending jobs for
// a mechanic) by combining geographic proximity with reputation. Every
// function here is pure; the adaptive weight pair lives in internal/weights.
package scoring

import (
	"math"

	"github.com/example/roadside-rescue/internal/models"
)

// Unit selects the haversine output unit.
type Unit int

const (
	Kilometers Unit = iota
	Meters
)

const (
	earthRadiusKm = 6371.0
	earthRadiusM  = 6371000.0

	// DefaultMaxDistanceKm is the cutoff beyond which a candidate's
	// distance score is zero.
	DefaultMaxDistanceKm = 50.0
)

// Weights is the convex combination controlling how much reputation and
// proximity each contribute to the total score. The pair always sums to 1
// after any adapter update.
type Weights struct {
	Reputation float64 `json:"reputation_weight"`
	Distance   float64 `json:"distance_weight"`
}

// DefaultWeights is the pair used when no durable state exists yet.
func DefaultWeights() Weights {
	return Weights{Reputation: 0.6, Distance: 0.4}
}

func (w Weights) Sum() float64 { return w.Reputation + w.Distance }

// Normalize rescales the pair so it sums to 1. The sum is clamped to a small
// positive epsilon first so a pair that drifted to zero cannot divide by zero.
func (w Weights) Normalize() Weights {
	sum := w.Sum()
	if math.Abs(sum) < 1e-9 {
		sum = 1e-9
	}
	return Weights{Reputation: w.Reputation / sum, Distance: w.Distance / sum}
}

// ScoreResult is the per-candidate breakdown for one scoring call.
type ScoreResult struct {
	DistanceKm      float64 `json:"distance_km"`
	DistanceScore   float64 `json:"distance_score"`
	ReputationScore float64 `json:"reputation_score"`
	TotalScore      float64 `json:"total_score"`
}

// Haversine computes the great-circle distance between two points.
// Kilometers are rounded to 2 decimals; meters are returned unrounded so
// arrival detection can compare against a fine-grained radius. Coordinates
// are not range-checked; that is the caller's responsibility.
func Haversine(lat1, lng1, lat2, lng2 float64, unit Unit) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLng1 := lng1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	rLng2 := lng2 * math.Pi / 180

	dLat := rLat2 - rLat1
	dLng := rLng2 - rLng1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	if unit == Meters {
		return earthRadiusM * c
	}
	return round2(earthRadiusKm * c)
}

// NormalizeDistance maps a distance in km to [0,1]: 1 at zero distance,
// 0 at or beyond maxKm, linear in between.
func NormalizeDistance(distanceKm, maxKm float64) float64 {
	if distanceKm >= maxKm {
		return 0.0
	}
	return round4(1 - distanceKm/maxKm)
}

// NormalizeReputation rescales a 1-5 star average to [0,1]. A mechanic with
// no reviews (avg 0) comes out at -0.25; callers that want a neutral default
// for unrated mechanics must special-case that before scoring.
func NormalizeReputation(avgRating float64) float64 {
	return round4((avgRating - 1) / 4)
}

// Score composes distance and reputation into a weighted total for one
// candidate. Pure; NaN in, NaN out.
func Score(userLoc, mechanicLoc models.Coord, mechanicRating float64, w Weights, maxKm float64) ScoreResult {
	distanceKm := Haversine(userLoc.Lat, userLoc.Lng, mechanicLoc.Lat, mechanicLoc.Lng, Kilometers)
	distanceScore := NormalizeDistance(distanceKm, maxKm)
	reputationScore := NormalizeReputation(mechanicRating)
	return ScoreResult{
		DistanceKm:      distanceKm,
		DistanceScore:   distanceScore,
		ReputationScore: reputationScore,
		TotalScore:      round4(w.Reputation*reputationScore + w.Distance*distanceScore),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
