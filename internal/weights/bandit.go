package weights

import (
	"context"
	"math/rand"
	"sync"

	"github.com/example/roadside-rescue/internal/scoring"
)

// Bandit is the alternative weight strategy: instead of nudging one shared
// pair, it explores a small set of fixed candidate pairs (arms) with
// epsilon-greedy selection and per-arm reward averages. It satisfies the
// same Adapter interface so it can be swapped in for offline experiments,
// but it is not wired into the live request path.
type Bandit struct {
	mu      sync.Mutex
	epsilon float64
	lr      float64
	rng     *rand.Rand

	arms    []Arm
	lastArm int
	bestArm int
}

// Arm is one candidate weight pair with its observed reward history.
type Arm struct {
	Weights     scoring.Weights
	Trials      int
	TotalReward float64
}

func (a Arm) AvgReward() float64 {
	if a.Trials == 0 {
		return 0
	}
	return a.TotalReward / float64(a.Trials)
}

// NewBandit starts with the three base pairs: reputation-leaning,
// distance-leaning, and balanced.
func NewBandit(epsilon, lr float64, seed int64) *Bandit {
	return &Bandit{
		epsilon: epsilon,
		lr:      lr,
		rng:     rand.New(rand.NewSource(seed)),
		arms: []Arm{
			{Weights: scoring.Weights{Reputation: 0.6, Distance: 0.4}},
			{Weights: scoring.Weights{Reputation: 0.4, Distance: 0.6}},
			{Weights: scoring.Weights{Reputation: 0.5, Distance: 0.5}},
		},
	}
}

// SelectArm picks an arm: with probability epsilon a uniformly random one,
// otherwise the arm with the best observed average reward among those tried.
func (b *Bandit) SelectArm() (int, scoring.Weights) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selectLocked()
}

func (b *Bandit) selectLocked() (int, scoring.Weights) {
	idx := -1
	if b.rng.Float64() < b.epsilon {
		idx = b.rng.Intn(len(b.arms))
	} else {
		best := -1.0
		for i, a := range b.arms {
			if a.Trials == 0 {
				continue
			}
			if avg := a.AvgReward(); avg > best {
				best = avg
				idx = i
			}
		}
		if idx < 0 {
			idx = b.rng.Intn(len(b.arms))
		} else {
			b.bestArm = idx
		}
	}
	b.lastArm = idx
	return idx, b.arms[idx].Weights
}

// Reward credits the arm with an observed reward in [0,1]. A strong reward
// also nudges the arm's own pair slightly and renormalizes it, mirroring the
// online rule the production adapter uses.
func (b *Bandit) Reward(arm int, reward float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rewardLocked(arm, reward)
}

func (b *Bandit) rewardLocked(arm int, reward float64) {
	if arm < 0 || arm >= len(b.arms) {
		return
	}
	a := &b.arms[arm]
	a.Trials++
	a.TotalReward += reward

	if reward > 0.7 {
		adj := b.lr * (1 - reward)
		w := a.Weights
		w.Reputation += adj
		w.Distance += adj
		if w.Reputation < 0 {
			w.Reputation = 0
		}
		if w.Distance < 0 {
			w.Distance = 0
		}
		a.Weights = w.Normalize()
	}
}

// Current implements Adapter by selecting an arm for this scoring round.
func (b *Bandit) Current(ctx context.Context) (scoring.Weights, error) {
	_, w := b.SelectArm()
	return w, nil
}

// Apply implements Adapter by treating the delta, clamped to [0,1], as the
// reward for the most recently selected arm. Per-arm counters are the
// bandit's own state and never mix with the production single-pair row.
func (b *Bandit) Apply(ctx context.Context, delta float64) (scoring.Weights, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reward := delta
	if reward < 0 {
		reward = 0
	}
	if reward > 1 {
		reward = 1
	}
	b.rewardLocked(b.lastArm, reward)
	return b.arms[b.lastArm].Weights, nil
}

// Stats is a snapshot of arm performance for the simulation report.
type Stats struct {
	Arms    []Arm
	BestArm int
}

func (b *Bandit) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	arms := make([]Arm, len(b.arms))
	copy(arms, b.arms)
	best := 0
	for i, a := range arms {
		if a.AvgReward() > arms[best].AvgReward() {
			best = i
		}
	}
	return Stats{Arms: arms, BestArm: best}
}
