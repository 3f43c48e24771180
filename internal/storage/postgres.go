package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/roadside-rescue/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying handle so the weight adapter can share the pool.
func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) CreateRequest(ctx context.Context, r *models.ServiceRequest) error {
	return p.db.QueryRowContext(ctx,
		`INSERT INTO service_requests(user_id, mechanic_id, request_type, status, user_lat, user_lng, created_at)
		 VALUES($1, NULLIF($2,''), $3, $4, $5, $6, now()) RETURNING request_id, created_at`,
		r.UserID, r.MechanicID, r.Type, string(r.Status), r.UserLoc.Lat, r.UserLoc.Lng,
	).Scan(&r.ID, &r.CreatedAt)
}

const requestCols = `request_id, user_id, COALESCE(mechanic_id, ''), request_type, status, user_lat, user_lng, payment_intent_id, created_at, completed_at`

func (p *PostgresStore) scanRequest(row *sql.Row) (*models.ServiceRequest, error) {
	var r models.ServiceRequest
	var status string
	var completed sql.NullTime
	err := row.Scan(&r.ID, &r.UserID, &r.MechanicID, &r.Type, &status, &r.UserLoc.Lat, &r.UserLoc.Lng, &r.PaymentIntentID, &r.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = models.RequestStatus(status)
	if completed.Valid {
		r.CompletedAt = completed.Time
	}
	return &r, nil
}

func (p *PostgresStore) RequestByID(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	return p.scanRequest(p.db.QueryRowContext(ctx,
		`SELECT `+requestCols+` FROM service_requests WHERE request_id = $1`, id))
}

func (p *PostgresStore) ActiveRequestForUser(ctx context.Context, userID string) (*models.ServiceRequest, error) {
	return p.scanRequest(p.db.QueryRowContext(ctx,
		`SELECT `+requestCols+` FROM service_requests WHERE user_id = $1 AND status IN ($2, $3, $4) LIMIT 1`,
		userID, string(models.StatusPending), string(models.StatusAccepted), string(models.StatusArrived)))
}

func (p *PostgresStore) AssignedRequestForMechanic(ctx context.Context, mechanicID string) (*models.ServiceRequest, error) {
	return p.scanRequest(p.db.QueryRowContext(ctx,
		`SELECT `+requestCols+` FROM service_requests WHERE mechanic_id = $1 AND status IN ($2, $3) LIMIT 1`,
		mechanicID, string(models.StatusAccepted), string(models.StatusArrived)))
}

func (p *PostgresStore) PendingRequests(ctx context.Context) ([]models.ServiceRequest, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+requestCols+` FROM service_requests WHERE status = $1 ORDER BY created_at DESC`,
		string(models.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ServiceRequest
	for rows.Next() {
		var r models.ServiceRequest
		var status string
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.UserID, &r.MechanicID, &r.Type, &status, &r.UserLoc.Lat, &r.UserLoc.Lng, &r.PaymentIntentID, &r.CreatedAt, &completed); err != nil {
			return nil, err
		}
		r.Status = models.RequestStatus(status)
		if completed.Valid {
			r.CompletedAt = completed.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateRequest(ctx context.Context, r *models.ServiceRequest) error {
	var completed sql.NullTime
	if !r.CompletedAt.IsZero() {
		completed = sql.NullTime{Time: r.CompletedAt, Valid: true}
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE service_requests SET mechanic_id = NULLIF($1,''), status = $2, payment_intent_id = $3, completed_at = $4 WHERE request_id = $5`,
		r.MechanicID, string(r.Status), r.PaymentIntentID, completed, r.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) DeleteRequest(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM service_requests WHERE request_id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) CreateRating(ctx context.Context, r *models.Rating) error {
	return p.db.QueryRowContext(ctx,
		`INSERT INTO ratings(request_id, user_id, mechanic_id, rating, feedback_text, applied_reward, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, now()) RETURNING rating_id, created_at`,
		r.RequestID, r.UserID, r.MechanicID, r.Stars, r.Feedback, r.AppliedReward,
	).Scan(&r.ID, &r.CreatedAt)
}

const ratingCols = `rating_id, request_id, user_id, mechanic_id, rating, feedback_text, applied_reward, created_at`

func (p *PostgresStore) scanRating(row *sql.Row) (*models.Rating, error) {
	var r models.Rating
	err := row.Scan(&r.ID, &r.RequestID, &r.UserID, &r.MechanicID, &r.Stars, &r.Feedback, &r.AppliedReward, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStore) RatingByID(ctx context.Context, id int64) (*models.Rating, error) {
	return p.scanRating(p.db.QueryRowContext(ctx,
		`SELECT `+ratingCols+` FROM ratings WHERE rating_id = $1`, id))
}

func (p *PostgresStore) RatingForRequest(ctx context.Context, requestID int64) (*models.Rating, error) {
	return p.scanRating(p.db.QueryRowContext(ctx,
		`SELECT `+ratingCols+` FROM ratings WHERE request_id = $1`, requestID))
}

func (p *PostgresStore) RatingsForMechanic(ctx context.Context, mechanicID string) ([]models.Rating, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+ratingCols+` FROM ratings WHERE mechanic_id = $1 ORDER BY created_at DESC`, mechanicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ID, &r.RequestID, &r.UserID, &r.MechanicID, &r.Stars, &r.Feedback, &r.AppliedReward, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateRating(ctx context.Context, r *models.Rating) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE ratings SET rating = $1, feedback_text = $2, applied_reward = $3, created_at = now() WHERE rating_id = $4`,
		r.Stars, r.Feedback, r.AppliedReward, r.ID)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) DeleteRating(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM ratings WHERE rating_id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

const mechanicCols = `id, name, workshop_name, workshop_lat, workshop_lng, skill, avg_rating, review_count, total_jobs, canceled_count, is_available, updated_at`

func (p *PostgresStore) MechanicByID(ctx context.Context, id string) (*models.Mechanic, error) {
	var m models.Mechanic
	err := p.db.QueryRowContext(ctx,
		`SELECT `+mechanicCols+` FROM mechanics WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.WorkshopName, &m.Workshop.Lat, &m.Workshop.Lng, &m.Skill,
		&m.AvgRating, &m.ReviewCount, &m.TotalJobs, &m.CanceledCount, &m.Available, &m.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresStore) AvailableMechanics(ctx context.Context, skill string) ([]models.Mechanic, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+mechanicCols+` FROM mechanics WHERE is_available AND ($1 = '' OR skill = $1)`, skill)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Mechanic
	for rows.Next() {
		var m models.Mechanic
		if err := rows.Scan(&m.ID, &m.Name, &m.WorkshopName, &m.Workshop.Lat, &m.Workshop.Lng, &m.Skill,
			&m.AvgRating, &m.ReviewCount, &m.TotalJobs, &m.CanceledCount, &m.Available, &m.Updated); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpsertMechanic(ctx context.Context, m *models.Mechanic) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO mechanics(id, name, workshop_name, workshop_lat, workshop_lng, skill, avg_rating, review_count, total_jobs, canceled_count, is_available, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		 ON CONFLICT (id) DO UPDATE SET name=$2, workshop_name=$3, workshop_lat=$4, workshop_lng=$5, skill=$6, is_available=$11, updated_at=now()`,
		m.ID, m.Name, m.WorkshopName, m.Workshop.Lat, m.Workshop.Lng, m.Skill,
		m.AvgRating, m.ReviewCount, m.TotalJobs, m.CanceledCount, m.Available)
	return err
}

func (p *PostgresStore) SetAggregate(ctx context.Context, id string, avgRating float64, reviewCount int) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE mechanics SET avg_rating = $1, review_count = $2, updated_at = now() WHERE id = $3`,
		avgRating, reviewCount, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) IncrementTotalJobs(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE mechanics SET total_jobs = total_jobs + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) IncrementCanceledCount(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE mechanics SET canceled_count = canceled_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (p *PostgresStore) LatestTrackingPoint(ctx context.Context, requestID int64) (*models.TrackingPoint, error) {
	var pt models.TrackingPoint
	err := p.db.QueryRowContext(ctx,
		`SELECT request_id, mechanic_lat, mechanic_lng, timestamp FROM location_tracking WHERE request_id = $1`,
		requestID,
	).Scan(&pt.RequestID, &pt.Loc.Lat, &pt.Loc.Lng, &pt.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

func (p *PostgresStore) SaveTrackingPoint(ctx context.Context, pt *models.TrackingPoint) error {
	ts := pt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO location_tracking(request_id, mechanic_lat, mechanic_lng, timestamp)
		 VALUES($1,$2,$3,$4)
		 ON CONFLICT (request_id) DO UPDATE SET mechanic_lat=$2, mechanic_lng=$3, timestamp=$4`,
		pt.RequestID, pt.Loc.Lat, pt.Loc.Lng, ts)
	return err
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
