// Command simulate runs the epsilon-greedy weight bandit against synthetic
// traffic so candidate weight pairs can be compared offline before any of
// them touches the production adapter.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/scoring"
	"github.com/example/roadside-rescue/internal/weights"
)

type mechanic struct {
	loc    models.Coord
	rating float64
}

func main() {
	var (
		requests  = flag.Int("requests", 1000, "number of simulated service requests")
		mechanics = flag.Int("mechanics", 50, "size of the synthetic mechanic pool")
		epsilon   = flag.Float64("epsilon", 0.1, "exploration rate")
		lr        = flag.Float64("lr", 0.05, "learning rate for per-arm nudges")
		seed      = flag.Int64("seed", 42, "rng seed")
		maxKm     = flag.Float64("max-km", scoring.DefaultMaxDistanceKm, "distance cutoff in km")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	pool := make([]mechanic, *mechanics)
	for i := range pool {
		pool[i] = mechanic{
			// scatter around central Cairo
			loc:    models.Coord{Lat: 30.0444 + rng.NormFloat64()*0.15, Lng: 31.2357 + rng.NormFloat64()*0.15},
			rating: 1 + rng.Float64()*4,
		}
	}

	b := weights.NewBandit(*epsilon, *lr, *seed)

	for i := 0; i < *requests; i++ {
		user := models.Coord{Lat: 30.0444 + rng.NormFloat64()*0.1, Lng: 31.2357 + rng.NormFloat64()*0.1}

		arm, w := b.SelectArm()

		// pick the top mechanic under this arm's weights
		best := -1
		bestScore := -1.0
		for j, m := range pool {
			res := scoring.Score(user, m.loc, m.rating, w, *maxKm)
			if res.TotalScore > bestScore {
				bestScore = res.TotalScore
				best = j
			}
		}
		if best < 0 {
			continue
		}

		// noisy satisfaction signal: mostly reputation, partly proximity
		m := pool[best]
		distKm := scoring.Haversine(user.Lat, user.Lng, m.loc.Lat, m.loc.Lng, scoring.Kilometers)
		reward := 0.6*scoring.NormalizeReputation(m.rating) +
			0.4*scoring.NormalizeDistance(distKm, *maxKm) +
			rng.NormFloat64()*0.05
		if reward < 0 {
			reward = 0
		}
		if reward > 1 {
			reward = 1
		}
		b.Reward(arm, reward)
	}

	stats := b.Stats()
	log.Printf("simulated %d requests over %d mechanics (epsilon=%.2f lr=%.2f seed=%d)",
		*requests, *mechanics, *epsilon, *lr, *seed)
	for i, a := range stats.Arms {
		marker := " "
		if i == stats.BestArm {
			marker = "*"
		}
		fmt.Printf("%s arm %d  rep=%.4f dist=%.4f  trials=%d  avg_reward=%.4f\n",
			marker, i, a.Weights.Reputation, a.Weights.Distance, a.Trials, a.AvgReward())
	}
}
