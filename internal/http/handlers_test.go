package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/roadside-rescue/internal/config"
	"github.com/example/roadside-rescue/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.ServerConfig{
		NearbyLimit:   10,
		MaxDistanceKm: 50,
		LearningRate:  0.05,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func TestUpdateWorkshopCreatesProfileAndFeedsGeo(t *testing.T) {
	s := newTestServer(t)
	mech := map[string]string{"X-Mechanic-ID": "m1"}

	rr := doJSON(t, s, "PATCH", "/api/v1/mechanics/workshop",
		`{"name":"Sami","workshop_name":"Sami Auto","lat":30.05,"lng":31.24}`, mech)
	if rr.Code != 200 {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, s, "PATCH", "/api/v1/mechanics/availability", `{"available":true}`, mech)
	if rr.Code != 200 {
		t.Fatalf("availability status = %d body=%s", rr.Code, rr.Body.String())
	}

	got, err := s.Store.MechanicByID(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Workshop.Zero() || !got.Available || got.Name != "Sami" {
		t.Fatalf("profile = %+v", got)
	}

	// the prefilter index sees the mechanic without a Kafka round trip
	near := s.Geo.Nearby(30.05, 31.24, 5)
	if len(near) != 1 || near[0].MechanicID != "m1" {
		t.Fatalf("geo index = %+v", near)
	}
}

func TestUpdateWorkshopRequiresCoords(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s, "PATCH", "/api/v1/mechanics/workshop", `{"lat":30.05}`,
		map[string]string{"X-Mechanic-ID": "m1"})
	if rr.Code != 400 {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestUpdateAvailabilityUnknownMechanic(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s, "PATCH", "/api/v1/mechanics/availability", `{"available":true}`,
		map[string]string{"X-Mechanic-ID": "ghost"})
	if rr.Code != 404 {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestUpdateSkill(t *testing.T) {
	s := newTestServer(t)
	mech := map[string]string{"X-Mechanic-ID": "m1"}
	if rr := doJSON(t, s, "PATCH", "/api/v1/mechanics/workshop", `{"lat":30.05,"lng":31.24}`, mech); rr.Code != 200 {
		t.Fatalf("workshop status = %d", rr.Code)
	}
	if rr := doJSON(t, s, "PATCH", "/api/v1/mechanics/skill", `{"skill":"towing"}`, mech); rr.Code != 200 {
		t.Fatalf("skill status = %d", rr.Code)
	}
	got, _ := s.Store.MechanicByID(context.Background(), "m1")
	if got.Skill != "towing" {
		t.Fatalf("skill = %q", got.Skill)
	}
}

func TestMechanicLocationFeedsGeo(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if err := s.Store.UpsertMechanic(ctx, &models.Mechanic{
		ID: "m1", Workshop: models.Coord{Lat: 30.05, Lng: 31.24}, Available: true,
	}); err != nil {
		t.Fatal(err)
	}
	req := &models.ServiceRequest{
		UserID: "u1", MechanicID: "m1", Status: models.StatusAccepted,
		UserLoc: models.Coord{Lat: 30.0444, Lng: 31.2357},
	}
	if err := s.Store.CreateRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	body := fmt.Sprintf(`{"request_id":%d,"lat":30.048,"lng":31.238}`, req.ID)
	rr := doJSON(t, s, "POST", "/internal/mechanic/locations", body,
		map[string]string{"X-Mechanic-ID": "m1"})
	if rr.Code != 200 {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var update models.TrackingUpdate
	if err := json.Unmarshal(rr.Body.Bytes(), &update); err != nil {
		t.Fatal(err)
	}
	if update.Lat != 30.048 {
		t.Fatalf("update = %+v", update)
	}

	// the index now carries the live position, not the workshop
	near := s.Geo.Nearby(30.048, 31.238, 5)
	if len(near) != 1 || near[0].Loc.Lat != 30.048 {
		t.Fatalf("geo index = %+v", near)
	}
}
