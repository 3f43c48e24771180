package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zero reports whether the coordinate is unset. (0,0) is treated as "no
// location" everywhere; the HTTP layer rejects null coordinates before they
// reach a store, so a stored zero pair always means the field was never set.
func (c Coord) Zero() bool { return c.Lat == 0 && c.Lng == 0 }

// RequestStatus enumerates the service-request lifecycle.
type RequestStatus string

const (
	StatusPending            RequestStatus = "Pending"
	StatusAccepted           RequestStatus = "Accepted"
	StatusArrived            RequestStatus = "Arrived"
	StatusCompleted          RequestStatus = "Completed"
	StatusCanceledByUser     RequestStatus = "Canceled by User"
	StatusCanceledByMechanic RequestStatus = "Canceled by Mechanic"
)

// Active reports whether the request still occupies its user and mechanic.
func (s RequestStatus) Active() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusArrived
}

// Ratable reports whether a request in this status may receive a rating.
func (s RequestStatus) Ratable() bool {
	return s == StatusCompleted || s == StatusCanceledByMechanic
}

type Mechanic struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WorkshopName  string    `json:"workshop_name"`
	Workshop      Coord     `json:"workshop"`
	Skill         string    `json:"skill"`
	AvgRating     float64   `json:"avg_rating"` // 1..5, 0 until first review
	ReviewCount   int       `json:"review_count"`
	TotalJobs     int       `json:"total_jobs"`
	CanceledCount int       `json:"canceled_count"`
	Available     bool      `json:"available"`
	Updated       time.Time `json:"updated"`
}

type ServiceRequest struct {
	ID              int64         `json:"request_id"`
	UserID          string        `json:"user_id"`
	MechanicID      string        `json:"mechanic_id,omitempty"`
	Type            string        `json:"type"`
	Status          RequestStatus `json:"status"`
	UserLoc         Coord         `json:"user_loc"`
	PaymentIntentID string        `json:"-"`
	CreatedAt       time.Time     `json:"created_at"`
	CompletedAt     time.Time     `json:"completed_at,omitempty"`
}

type Rating struct {
	ID         int64  `json:"rating_id"`
	RequestID  int64  `json:"request_id"`
	UserID     string `json:"user_id"`
	MechanicID string `json:"mechanic_id"`
	Stars      int    `json:"stars"` // 1..5
	Feedback   string `json:"feedback"`
	// AppliedReward is the reward (stars/5) already pushed into the weight
	// adapter for this rating, kept so edits and deletes apply the change
	// in reward instead of re-deriving it.
	AppliedReward float64   `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrackingPoint is the last persisted mechanic position for a request.
type TrackingPoint struct {
	RequestID int64     `json:"request_id"`
	Loc       Coord     `json:"loc"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackingUpdate is the wire message pushed to websocket subscribers.
type TrackingUpdate struct {
	RequestID  int64   `json:"request_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Arrived    bool    `json:"arrived"`
	ETASeconds float64 `json:"eta_seconds"`
	Timestamp  string  `json:"timestamp"`
}

// MechanicLocation is the message published to Kafka and mirrored into the
// Redis geo index by the consumer.
type MechanicLocation struct {
	MechanicID string  `json:"mechanic_id"`
	Loc        Coord   `json:"loc"`
	Rating     float64 `json:"rating"`
	Available  bool    `json:"available"`
}
