package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/roadside-rescue/internal/config"
	"github.com/example/roadside-rescue/internal/dispatch"
	"github.com/example/roadside-rescue/internal/eta"
	"github.com/example/roadside-rescue/internal/geo"
	"github.com/example/roadside-rescue/internal/ingest"
	"github.com/example/roadside-rescue/internal/logging"
	"github.com/example/roadside-rescue/internal/matcher"
	"github.com/example/roadside-rescue/internal/models"
	"github.com/example/roadside-rescue/internal/notify"
	"github.com/example/roadside-rescue/internal/payments"
	"github.com/example/roadside-rescue/internal/ratings"
	"github.com/example/roadside-rescue/internal/requests"
	"github.com/example/roadside-rescue/internal/storage"
	"github.com/example/roadside-rescue/internal/tracking"
	"github.com/example/roadside-rescue/internal/weights"
)

type Server struct {
	Store    storage.Store
	Weights  weights.Adapter
	Matcher  *matcher.Service
	Requests *requests.Service
	Ratings  *ratings.Service
	Tracker  *tracking.Tracker
	Hub      *dispatch.Hub
	Geo      geo.Geo
	Kafka    *ingest.KafkaProducer

	NearbyLimit int

	logger *slog.Logger
	mux    *mux.Router
}

// NewServerFromEnv wires the full stack from environment configuration,
// falling back to in-process implementations where no backend is configured.
func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	return NewServer(cfg)
}

func NewServer(cfg config.ServerConfig) (*Server, error) {
	logger := logging.NewLogger(cfg.LogLevel)

	var store storage.Store
	var adapter weights.Adapter
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store = ps
		pg := weights.NewPostgres(ps.DB())
		pg.LearningRate = cfg.LearningRate
		adapter = pg
	} else {
		store = storage.NewMemoryStore()
		mem := weights.NewMemory()
		mem.LearningRate = cfg.LearningRate
		adapter = mem
	}

	var gidx geo.Geo
	if cfg.RedisAddr != "" {
		gidx = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		gidx = geo.NewIndex()
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	hub := dispatch.NewHub(logger)

	var fcm *notify.FCM
	if cfg.FCMEndpoint != "" {
		fcm = notify.NewFCM(cfg.FCMEndpoint, cfg.FCMKey)
	}
	notifier := &notify.Notifier{Hub: hub, FCM: fcm}

	var pay requests.Payments
	if cfg.HoldAmount > 0 {
		pay = payments.NewStripeClient()
	}

	var etaClient eta.Client
	if cfg.OSRMEndpoint != "" {
		etaClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}

	tracker := &tracking.Tracker{
		Requests:        store,
		Store:           store,
		Hub:             hub,
		ETA:             etaClient,
		ETACache:        eta.NewCache(cfg.TrackingMinWait),
		ArrivalRadiusM:  cfg.ArrivalRadiusM,
		MinMoveM:        cfg.TrackingMinMove,
		MinInterval:     cfg.TrackingMinWait,
		DefaultSpeedMps: cfg.DefaultSpeedMps,
	}
	if kp != nil {
		tracker.Pub = kp
	}

	s := &Server{
		Store:   store,
		Weights: adapter,
		Matcher: &matcher.Service{Weights: adapter, MaxDistanceKm: cfg.MaxDistanceKm},
		Requests: &requests.Service{
			Store:      store,
			Tracking:   store,
			Mechanics:  store,
			Payments:   pay,
			Notify:     notifier,
			HoldAmount: cfg.HoldAmount,
			Currency:   cfg.Currency,
		},
		Ratings: &ratings.Service{
			Ratings:   store,
			Requests:  store,
			Mechanics: store,
			Weights:   adapter,
		},
		Tracker:     tracker,
		Hub:         hub,
		Geo:         gidx,
		Kafka:       kp,
		NearbyLimit: cfg.NearbyLimit,
		logger:      logger,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/requests", s.handleCreateRequest).Methods("POST")
	api.HandleFunc("/requests/cancel", s.handleUserCancel).Methods("PATCH")
	api.HandleFunc("/requests/available", s.handleAvailableRequests).Methods("GET")
	api.HandleFunc("/requests/{request_id:[0-9]+}/accept", s.handleAccept).Methods("PATCH")
	api.HandleFunc("/requests/mechanic/cancel", s.handleMechanicCancel).Methods("PATCH")
	api.HandleFunc("/requests/mechanic/complete", s.handleComplete).Methods("PATCH")
	api.HandleFunc("/mechanics/available", s.handleAvailableMechanics).Methods("GET")
	api.HandleFunc("/mechanics/workshop", s.handleUpdateWorkshop).Methods("PATCH")
	api.HandleFunc("/mechanics/availability", s.handleUpdateAvailability).Methods("PATCH")
	api.HandleFunc("/mechanics/skill", s.handleUpdateSkill).Methods("PATCH")

	api.HandleFunc("/ratings", s.handleCreateRating).Methods("POST")
	api.HandleFunc("/ratings/{rating_id:[0-9]+}", s.handleEditRating).Methods("PATCH")
	api.HandleFunc("/ratings/{rating_id:[0-9]+}", s.handleDeleteRating).Methods("DELETE")

	api.HandleFunc("/weights", s.handleWeights).Methods("GET")

	s.mux.HandleFunc("/internal/mechanic/locations", s.handleMechanicLocation).Methods("POST")
	s.mux.HandleFunc("/ws/requests/{request_id:[0-9]+}", s.handleTrackingWS)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Identity comes from the auth layer in front of this service; handlers only
// read the forwarded headers.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

func mechanicID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Mechanic-ID")
	if id == "" {
		http.Error(w, "missing mechanic identity", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, requests.ErrNoLocation),
		errors.Is(err, requests.ErrActiveRequest),
		errors.Is(err, requests.ErrAlreadyAssigned),
		errors.Is(err, ratings.ErrInvalidStars),
		errors.Is(err, ratings.ErrNotRatable),
		errors.Is(err, ratings.ErrAlreadyRated),
		errors.Is(err, tracking.ErrNotActive):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, requests.ErrNoRequest),
		errors.Is(err, requests.ErrUnavailable),
		errors.Is(err, ratings.ErrNotFound),
		errors.Is(err, tracking.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.Error("internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type createRequestPayload struct {
	Type string   `json:"type"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var p createRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Lat == nil || p.Lng == nil {
		http.Error(w, "lat and lng are required", http.StatusBadRequest)
		return
	}
	req, err := s.Requests.Create(r.Context(), uid, p.Type, models.Coord{Lat: *p.Lat, Lng: *p.Lng})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleUserCancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.Requests.CancelByUser(r.Context(), uid); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "request canceled"})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	requestID, _ := strconv.ParseInt(mux.Vars(r)["request_id"], 10, 64)
	req, err := s.Requests.Accept(r.Context(), mid, requestID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleMechanicCancel(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	if err := s.Requests.CancelByMechanic(r.Context(), mid); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "request canceled"})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	if err := s.Requests.Complete(r.Context(), mid); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "request completed"})
}

// handleAvailableMechanics ranks available mechanics for a stranded user.
func (s *Server) handleAvailableMechanics(w http.ResponseWriter, r *http.Request) {
	if _, ok := userID(w, r); !ok {
		return
	}
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		http.Error(w, "lat and lng query parameters are required", http.StatusBadRequest)
		return
	}
	skill := q.Get("type")

	cands, err := s.Store.AvailableMechanics(r.Context(), skill)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	// prefilter by the live geo index when candidates exceed the limit
	if s.Geo != nil && len(cands) > s.NearbyLimit {
		near := s.Geo.Nearby(lat, lng, s.NearbyLimit)
		keep := make(map[string]bool, len(near))
		for _, n := range near {
			keep[n.MechanicID] = true
		}
		filtered := cands[:0]
		for _, c := range cands {
			if keep[c.ID] {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			cands = filtered
		}
	}

	ranked, err := s.Matcher.RankMechanics(r.Context(), models.Coord{Lat: lat, Lng: lng}, cands)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"mechanics": ranked})
}

// handleAvailableRequests ranks pending jobs for a mechanic.
func (s *Server) handleAvailableRequests(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	mech, err := s.Store.MechanicByID(r.Context(), mid)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if mech.Workshop.Zero() {
		http.Error(w, "set your workshop location first", http.StatusBadRequest)
		return
	}
	if !mech.Available {
		http.Error(w, "update your availability first", http.StatusBadRequest)
		return
	}
	pending, err := s.Store.PendingRequests(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	// mechanics only see jobs matching their skill
	matching := pending[:0]
	for _, p := range pending {
		if mech.Skill == "" || p.Type == mech.Skill {
			matching = append(matching, p)
		}
	}
	ranked, err := s.Matcher.RankRequests(r.Context(), *mech, matching)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": ranked})
}

// upsertGeo mirrors the mechanic's current position into the geo prefilter
// index so ranking sees it without waiting for the Kafka round trip.
func (s *Server) upsertGeo(m *models.Mechanic, loc models.Coord) {
	if s.Geo == nil || loc.Zero() {
		return
	}
	s.Geo.Upsert(models.MechanicLocation{
		MechanicID: m.ID,
		Loc:        loc,
		Rating:     m.AvgRating,
		Available:  m.Available,
	})
}

type workshopPayload struct {
	Name         string   `json:"name"`
	WorkshopName string   `json:"workshop_name"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
}

// handleUpdateWorkshop sets the mechanic's workshop location, creating the
// profile on first use. Workshop coordinates are what ranking scores against.
func (s *Server) handleUpdateWorkshop(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	var p workshopPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Lat == nil || p.Lng == nil {
		http.Error(w, "lat and lng are required", http.StatusBadRequest)
		return
	}
	mech, err := s.Store.MechanicByID(r.Context(), mid)
	if errors.Is(err, storage.ErrNotFound) {
		mech = &models.Mechanic{ID: mid}
	} else if err != nil {
		s.serviceError(w, err)
		return
	}
	mech.Workshop = models.Coord{Lat: *p.Lat, Lng: *p.Lng}
	if p.Name != "" {
		mech.Name = p.Name
	}
	if p.WorkshopName != "" {
		mech.WorkshopName = p.WorkshopName
	}
	if err := s.Store.UpsertMechanic(r.Context(), mech); err != nil {
		s.serviceError(w, err)
		return
	}
	s.upsertGeo(mech, mech.Workshop)
	writeJSON(w, http.StatusOK, mech)
}

type availabilityPayload struct {
	Available *bool `json:"available"`
}

func (s *Server) handleUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	var p availabilityPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Available == nil {
		http.Error(w, "available is required", http.StatusBadRequest)
		return
	}
	mech, err := s.Store.MechanicByID(r.Context(), mid)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	mech.Available = *p.Available
	if err := s.Store.UpsertMechanic(r.Context(), mech); err != nil {
		s.serviceError(w, err)
		return
	}
	s.upsertGeo(mech, mech.Workshop)
	writeJSON(w, http.StatusOK, mech)
}

type skillPayload struct {
	Skill string `json:"skill"`
}

func (s *Server) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	var p skillPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mech, err := s.Store.MechanicByID(r.Context(), mid)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	mech.Skill = p.Skill
	if err := s.Store.UpsertMechanic(r.Context(), mech); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mech)
}

type ratingPayload struct {
	RequestID int64  `json:"request_id"`
	Stars     int    `json:"stars"`
	Feedback  string `json:"feedback"`
}

func (s *Server) handleCreateRating(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var p ratingPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rating, err := s.Ratings.Create(r.Context(), uid, p.RequestID, p.Stars, p.Feedback)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (s *Server) handleEditRating(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ratingID, _ := strconv.ParseInt(mux.Vars(r)["rating_id"], 10, 64)
	var p ratingPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rating, err := s.Ratings.Edit(r.Context(), uid, ratingID, p.Stars, p.Feedback)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ratingID, _ := strconv.ParseInt(mux.Vars(r)["rating_id"], 10, 64)
	if err := s.Ratings.Delete(r.Context(), uid, ratingID); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "rating deleted"})
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	cur, err := s.Weights.Current(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

type locationPayload struct {
	RequestID int64    `json:"request_id"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

func (s *Server) handleMechanicLocation(w http.ResponseWriter, r *http.Request) {
	mid, ok := mechanicID(w, r)
	if !ok {
		return
	}
	var p locationPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Lat == nil || p.Lng == nil {
		http.Error(w, "lat and lng are required", http.StatusBadRequest)
		return
	}
	loc := models.Coord{Lat: *p.Lat, Lng: *p.Lng}
	update, err := s.Tracker.Update(r.Context(), mid, p.RequestID, loc)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	// keep the prefilter index fresh with the live position
	if mech, err := s.Store.MechanicByID(r.Context(), mid); err == nil {
		s.upsertGeo(mech, loc)
	}
	writeJSON(w, http.StatusOK, update)
}

var upgrader = websocket.Upgrader{}

// handleTrackingWS subscribes the requesting user to live mechanic updates.
// Only the owner of an Accepted request may connect; the hub closes the
// connection once the mechanic arrives.
func (s *Server) handleTrackingWS(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	requestID, _ := strconv.ParseInt(mux.Vars(r)["request_id"], 10, 64)
	req, err := s.Store.RequestByID(r.Context(), requestID)
	if err != nil || req.UserID != uid {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}
	if req.Status != models.StatusAccepted {
		http.Error(w, "tracking not active", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Hub.Subscribe(requestID, conn)

	// reader loop keeps the connection alive and reaps it on disconnect
	go func() {
		defer s.Hub.Unsubscribe(requestID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
