package geo

import (
	"testing"

	"github.com/example/roadside-rescue/internal/models"
)

func TestNearbyOrdersByDistance(t *testing.T) {
	g := NewIndex()
	g.Upsert(models.MechanicLocation{MechanicID: "far", Loc: models.Coord{Lat: 10.1, Lng: 10}, Available: true})
	g.Upsert(models.MechanicLocation{MechanicID: "near", Loc: models.Coord{Lat: 10.001, Lng: 10}, Available: true})
	g.Upsert(models.MechanicLocation{MechanicID: "mid", Loc: models.Coord{Lat: 10.01, Lng: 10}, Available: true})

	got := g.Nearby(10, 10, 3)
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if got[i].MechanicID != id {
			t.Fatalf("pos %d = %s, want %s", i, got[i].MechanicID, id)
		}
	}
}

func TestNearbyRespectsLimit(t *testing.T) {
	g := NewIndex()
	for _, id := range []string{"a", "b", "c"} {
		g.Upsert(models.MechanicLocation{MechanicID: id, Loc: models.Coord{Lat: 10, Lng: 10}, Available: true})
	}
	if got := g.Nearby(10, 10, 2); len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
}

func TestNearbySkipsUnavailable(t *testing.T) {
	g := NewIndex()
	g.Upsert(models.MechanicLocation{MechanicID: "off", Loc: models.Coord{Lat: 10, Lng: 10}, Available: false})
	g.Upsert(models.MechanicLocation{MechanicID: "on", Loc: models.Coord{Lat: 10.001, Lng: 10}, Available: true})

	got := g.Nearby(10, 10, 5)
	if len(got) != 1 || got[0].MechanicID != "on" {
		t.Fatalf("got %+v", got)
	}
}

func TestUpsertReplaces(t *testing.T) {
	g := NewIndex()
	g.Upsert(models.MechanicLocation{MechanicID: "m1", Loc: models.Coord{Lat: 10, Lng: 10}, Available: true})
	g.Upsert(models.MechanicLocation{MechanicID: "m1", Loc: models.Coord{Lat: 11, Lng: 11}, Available: true})

	got := g.Nearby(11, 11, 1)
	if len(got) != 1 || got[0].Loc.Lat != 11 {
		t.Fatalf("got %+v", got)
	}
}
