package storage

import (
	"context"
	"sync"
	"time"

	"github.com/example/roadside-rescue/internal/models"
)

// MemoryStore is the in-process Store used in tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	requests  map[int64]*models.ServiceRequest
	ratings   map[int64]*models.Rating
	mechanics map[string]*models.Mechanic
	tracking  map[int64]*models.TrackingPoint
	nextReq   int64
	nextRate  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[int64]*models.ServiceRequest),
		ratings:   make(map[int64]*models.Rating),
		mechanics: make(map[string]*models.Mechanic),
		tracking:  make(map[int64]*models.TrackingPoint),
	}
}

func (m *MemoryStore) CreateRequest(ctx context.Context, r *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReq++
	r.ID = m.nextReq
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) RequestByID(ctx context.Context, id int64) (*models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ActiveRequestForUser(ctx context.Context, userID string) (*models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.UserID == userID && r.Status.Active() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) AssignedRequestForMechanic(ctx context.Context, mechanicID string) (*models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.MechanicID == mechanicID && (r.Status == models.StatusAccepted || r.Status == models.StatusArrived) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) PendingRequests(ctx context.Context) ([]models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ServiceRequest, 0)
	for _, r := range m.requests {
		if r.Status == models.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateRequest(ctx context.Context, r *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteRequest(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return ErrNotFound
	}
	delete(m.requests, id)
	return nil
}

func (m *MemoryStore) CreateRating(ctx context.Context, r *models.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRate++
	r.ID = m.nextRate
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	cp := *r
	m.ratings[r.ID] = &cp
	return nil
}

func (m *MemoryStore) RatingByID(ctx context.Context, id int64) (*models.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) RatingForRequest(ctx context.Context, requestID int64) (*models.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.ratings {
		if r.RequestID == requestID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) RatingsForMechanic(ctx context.Context, mechanicID string) ([]models.Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Rating, 0)
	for _, r := range m.ratings {
		if r.MechanicID == mechanicID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateRating(ctx context.Context, r *models.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ratings[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.ratings[r.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteRating(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ratings[id]; !ok {
		return ErrNotFound
	}
	delete(m.ratings, id)
	return nil
}

func (m *MemoryStore) MechanicByID(ctx context.Context, id string) (*models.Mechanic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mech, ok := m.mechanics[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mech
	return &cp, nil
}

func (m *MemoryStore) AvailableMechanics(ctx context.Context, skill string) ([]models.Mechanic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Mechanic, 0)
	for _, mech := range m.mechanics {
		if !mech.Available {
			continue
		}
		if skill != "" && mech.Skill != skill {
			continue
		}
		out = append(out, *mech)
	}
	return out, nil
}

func (m *MemoryStore) UpsertMechanic(ctx context.Context, mech *models.Mechanic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mech
	cp.Updated = time.Now()
	m.mechanics[mech.ID] = &cp
	return nil
}

func (m *MemoryStore) SetAggregate(ctx context.Context, id string, avgRating float64, reviewCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mech, ok := m.mechanics[id]
	if !ok {
		return ErrNotFound
	}
	mech.AvgRating = avgRating
	mech.ReviewCount = reviewCount
	return nil
}

func (m *MemoryStore) IncrementTotalJobs(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mech, ok := m.mechanics[id]
	if !ok {
		return ErrNotFound
	}
	mech.TotalJobs++
	return nil
}

func (m *MemoryStore) IncrementCanceledCount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mech, ok := m.mechanics[id]
	if !ok {
		return ErrNotFound
	}
	mech.CanceledCount++
	return nil
}

func (m *MemoryStore) LatestTrackingPoint(ctx context.Context, requestID int64) (*models.TrackingPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.tracking[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) SaveTrackingPoint(ctx context.Context, p *models.TrackingPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.tracking[p.RequestID] = &cp
	return nil
}
