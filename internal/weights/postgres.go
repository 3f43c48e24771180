package weights

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/roadside-rescue/internal/scoring"
)

// Postgres keeps the weight pair in a singleton row. Apply wraps the
// read-modify-write in a transaction that takes a row lock, so concurrent
// rating events across server processes serialize on the row and no update
// is lost. Scoring reads take no lock; a slightly stale pair is acceptable.
type Postgres struct {
	DB           *sql.DB
	LearningRate float64
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db, LearningRate: DefaultLearningRate}
}

const ensureRowSQL = `INSERT INTO recommendation_weights (id, reputation_weight, distance_weight)
VALUES (1, $1, $2) ON CONFLICT (id) DO NOTHING`

func (p *Postgres) Current(ctx context.Context) (scoring.Weights, error) {
	def := scoring.DefaultWeights()
	if _, err := p.DB.ExecContext(ctx, ensureRowSQL, def.Reputation, def.Distance); err != nil {
		return scoring.Weights{}, fmt.Errorf("weights: ensure row: %w", err)
	}
	var w scoring.Weights
	err := p.DB.QueryRowContext(ctx,
		`SELECT reputation_weight, distance_weight FROM recommendation_weights WHERE id = 1`,
	).Scan(&w.Reputation, &w.Distance)
	if err != nil {
		return scoring.Weights{}, fmt.Errorf("weights: read: %w", err)
	}
	return w, nil
}

func (p *Postgres) Apply(ctx context.Context, delta float64) (scoring.Weights, error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return scoring.Weights{}, fmt.Errorf("weights: begin: %w", err)
	}
	defer tx.Rollback()

	def := scoring.DefaultWeights()
	if _, err := tx.ExecContext(ctx, ensureRowSQL, def.Reputation, def.Distance); err != nil {
		return scoring.Weights{}, fmt.Errorf("weights: ensure row: %w", err)
	}

	var w scoring.Weights
	err = tx.QueryRowContext(ctx,
		`SELECT reputation_weight, distance_weight FROM recommendation_weights WHERE id = 1 FOR UPDATE`,
	).Scan(&w.Reputation, &w.Distance)
	if err != nil {
		return scoring.Weights{}, fmt.Errorf("weights: lock row: %w", err)
	}

	w = apply(w, delta, p.lr())

	if _, err := tx.ExecContext(ctx,
		`UPDATE recommendation_weights SET reputation_weight = $1, distance_weight = $2, updated_at = now() WHERE id = 1`,
		w.Reputation, w.Distance,
	); err != nil {
		return scoring.Weights{}, fmt.Errorf("weights: write: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return scoring.Weights{}, fmt.Errorf("weights: commit: %w", err)
	}
	observe(w)
	return w, nil
}

func (p *Postgres) lr() float64 {
	if p.LearningRate > 0 {
		return p.LearningRate
	}
	return DefaultLearningRate
}
