// Package weights holds the adaptive weight pair shared by all scoring
// calls. Every rating lifecycle event nudges the pair toward whichever
// factor (reputation or distance) better predicted satisfaction, then
// renormalizes so the pair stays a valid convex combination.
package weights

import (
	"context"
	"sync"

	"github.com/example/roadside-rescue/internal/observability"
	"github.com/example/roadside-rescue/internal/scoring"
)

// DefaultLearningRate controls how far a single rating event moves the pair.
const DefaultLearningRate = 0.05

// Adapter is the shared weight state. Current lazily creates the default
// pair on first access; Apply performs the read-modify-write nudge. Both the
// Postgres and in-memory implementations guarantee no Apply is lost under
// concurrent rating events.
type Adapter interface {
	Current(ctx context.Context) (scoring.Weights, error)
	Apply(ctx context.Context, delta float64) (scoring.Weights, error)
}

// apply is the shared update rule: a positive delta shifts emphasis toward
// reputation, a negative one toward distance. Neither weight is clamped on
// its own; the renormalization alone keeps the pair summing to 1.
func apply(w scoring.Weights, delta, lr float64) scoring.Weights {
	w.Reputation += lr * delta
	w.Distance -= lr * delta
	return w.Normalize()
}

func observe(w scoring.Weights) {
	observability.ReputationWeight.Set(w.Reputation)
	observability.DistanceWeight.Set(w.Distance)
	observability.WeightUpdatesTotal.Inc()
}

// Memory is a mutex-serialized in-process adapter, used in tests and as the
// fallback when no Postgres DSN is configured. Single-process only: multiple
// server processes sharing a durable store must use the Postgres adapter.
type Memory struct {
	mu           sync.Mutex
	w            scoring.Weights
	init         bool
	LearningRate float64
}

func NewMemory() *Memory {
	return &Memory{LearningRate: DefaultLearningRate}
}

func (m *Memory) Current(ctx context.Context) (scoring.Weights, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(), nil
}

func (m *Memory) Apply(ctx context.Context, delta float64) (scoring.Weights, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.w = apply(m.current(), delta, m.lr())
	observe(m.w)
	return m.w, nil
}

func (m *Memory) current() scoring.Weights {
	if !m.init {
		m.w = scoring.DefaultWeights()
		m.init = true
	}
	return m.w
}

func (m *Memory) lr() float64 {
	if m.LearningRate > 0 {
		return m.LearningRate
	}
	return DefaultLearningRate
}
