package geo

import (
	"sync"

	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/scoring"
)

// Geo is the minimal candidate-prefilter interface: the ranking endpoints
// ask it for mechanics near the stranded user before scoring them.
type Geo interface {
	Nearby(lat, lng float64, limit int) []models.MechanicLocation
	Upsert(loc models.MechanicLocation)
}

// Index is the in-memory fallback when Redis is not configured.
type Index struct {
	mu        sync.RWMutex
	mechanics map[string]models.MechanicLocation
}

func NewIndex() *Index {
	return &Index{mechanics: make(map[string]models.MechanicLocation)}
}

func (g *Index) Upsert(loc models.MechanicLocation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mechanics[loc.MechanicID] = loc
}

// naive scan; in prod the Redis GEO index replaces this
func (g *Index) Nearby(lat, lng float64, limit int) []models.MechanicLocation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		m    models.MechanicLocation
		dist float64
	}
	arr := make([]pair, 0, len(g.mechanics))
	for _, m := range g.mechanics {
		if !m.Available {
			continue
		}
		dist := scoring.Haversine(lat, lng, m.Loc.Lat, m.Loc.Lng, scoring.Meters)
		arr = append(arr, pair{m, dist})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]models.MechanicLocation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].m)
	}
	return out
}
