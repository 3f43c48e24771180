package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/storage"
)

type fakeHub struct {
	broadcasts []models.TrackingUpdate
	closed     []int64
}

func (f *fakeHub) Broadcast(requestID int64, v interface{}) {
	if u, ok := v.(*models.TrackingUpdate); ok {
		f.broadcasts = append(f.broadcasts, *u)
	}
}
func (f *fakeHub) CloseRequest(requestID int64) { f.closed = append(f.closed, requestID) }

type fakePub struct{ published []models.MechanicLocation }

func (f *fakePub) PublishLocation(loc models.MechanicLocation) error {
	f.published = append(f.published, loc)
	return nil
}

// newTracker seeds one accepted request for mechanic m1 with the user at
// (10, 10), roughly 11.1m of latitude per 0.0001 degrees.
func newTracker(t *testing.T) (*Tracker, *storage.MemoryStore, *fakeHub, int64) {
	t.Helper()
	store := storage.NewMemoryStore()
	req := &models.ServiceRequest{
		UserID:     "u1",
		MechanicID: "m1",
		Status:     models.StatusAccepted,
		UserLoc:    models.Coord{Lat: 10.0, Lng: 10.0},
	}
	if err := store.CreateRequest(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	hub := &fakeHub{}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := &Tracker{
		Requests:        store,
		Store:           store,
		Hub:             hub,
		DefaultSpeedMps: 10,
		now:             func() time.Time { return base },
	}
	return tr, store, hub, req.ID
}

func TestUpdateRejectsWrongMechanic(t *testing.T) {
	tr, _, _, id := newTracker(t)
	if _, err := tr.Update(context.Background(), "m2", id, models.Coord{Lat: 10.01, Lng: 10}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRejectsInactiveRequest(t *testing.T) {
	tr, store, _, id := newTracker(t)
	ctx := context.Background()
	r, _ := store.RequestByID(ctx, id)
	r.Status = models.StatusPending
	if err := store.UpdateRequest(ctx, r); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.01, Lng: 10}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("err = %v, want ErrNotActive", err)
	}
}

func TestUpdatePersistsFirstPointAndBroadcasts(t *testing.T) {
	tr, store, hub, id := newTracker(t)
	ctx := context.Background()

	u, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.01, Lng: 10})
	if err != nil {
		t.Fatal(err)
	}
	if u.Arrived {
		t.Fatal("1.1km away should not be an arrival")
	}
	if u.ETASeconds <= 0 {
		t.Fatalf("eta = %v, want > 0", u.ETASeconds)
	}
	p, err := store.LatestTrackingPoint(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Loc.Lat != 10.01 {
		t.Fatalf("persisted %+v", p.Loc)
	}
	if len(hub.broadcasts) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(hub.broadcasts))
	}
}

func TestUpdateSkipsPersistForSmallQuickMove(t *testing.T) {
	tr, store, hub, id := newTracker(t)
	ctx := context.Background()
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.01, Lng: 10}); err != nil {
		t.Fatal(err)
	}

	// ~5.6m in the same instant: below both gates, row untouched
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.01005, Lng: 10}); err != nil {
		t.Fatal(err)
	}
	p, _ := store.LatestTrackingPoint(ctx, id)
	if p.Loc.Lat != 10.01 {
		t.Fatalf("deduped point was persisted: %+v", p.Loc)
	}
	// the subscriber still sees every update
	if len(hub.broadcasts) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(hub.broadcasts))
	}
}

func TestUpdatePersistsAfterEnoughMovement(t *testing.T) {
	tr, store, _, id := newTracker(t)
	ctx := context.Background()
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.01, Lng: 10}); err != nil {
		t.Fatal(err)
	}

	// ~22m from the last persisted point
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.0102, Lng: 10}); err != nil {
		t.Fatal(err)
	}
	p, _ := store.LatestTrackingPoint(ctx, id)
	if p.Loc.Lat != 10.0102 {
		t.Fatalf("moved point not persisted: %+v", p.Loc)
	}
}

func TestUpdatePersistsAfterEnoughTime(t *testing.T) {
	tr, store, _, id := newTracker(t)
	ctx := context.Background()
	base := tr.now()
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.01, Lng: 10}); err != nil {
		t.Fatal(err)
	}

	// barely moved, but 30s elapsed
	tr.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.01001, Lng: 10}); err != nil {
		t.Fatal(err)
	}
	p, _ := store.LatestTrackingPoint(ctx, id)
	if p.Loc.Lat != 10.01001 {
		t.Fatalf("stale point not refreshed: %+v", p.Loc)
	}
}

func TestUpdateDetectsArrival(t *testing.T) {
	tr, store, hub, id := newTracker(t)
	ctx := context.Background()

	// ~22m from the user, inside the 25m radius
	u, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.0002, Lng: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !u.Arrived {
		t.Fatal("expected arrival")
	}
	r, _ := store.RequestByID(ctx, id)
	if r.Status != models.StatusArrived {
		t.Fatalf("status = %s, want Arrived", r.Status)
	}
	if len(hub.closed) != 1 || hub.closed[0] != id {
		t.Fatalf("hub not closed: %+v", hub.closed)
	}

	// tracking is over once arrived
	if _, err := tr.Update(ctx, "m1", id, models.Coord{Lat: 10.0001, Lng: 10}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("err = %v, want ErrNotActive", err)
	}
}

func TestUpdateOutsideArrivalRadius(t *testing.T) {
	tr, _, hub, id := newTracker(t)

	// ~33m away stays in transit
	u, err := tr.Update(context.Background(), "m1", id, models.Coord{Lat: 10.0003, Lng: 10})
	if err != nil {
		t.Fatal(err)
	}
	if u.Arrived {
		t.Fatal("33m away must not count as arrived")
	}
	if len(hub.closed) != 0 {
		t.Fatalf("hub closed early: %+v", hub.closed)
	}
}

func TestUpdateMirrorsToPublisher(t *testing.T) {
	tr, _, _, id := newTracker(t)
	pub := &fakePub{}
	tr.Pub = pub
	if _, err := tr.Update(context.Background(), "m1", id, models.Coord{Lat: 10.01, Lng: 10}); err != nil {
		t.Fatal(err)
	}
	if len(pub.published) != 1 || pub.published[0].MechanicID != "m1" {
		t.Fatalf("publish = %+v", pub.published)
	}
}
