package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/taxi-dispatch/internal/dispatch"
	"github.com/example/taxi-dispatch/internal/geo"
	"github.com/example/taxi-dispatch/internal/ingest"
	"github.com/example/taxi-dispatch/internal/lifecycle"
	"github.com/example/taxi-dispatch/internal/matching"
	"github.com/example/taxi-dispatch/internal/models"
	"github.com/example/taxi-dispatch/internal/store"
)

type Server struct {
	Lifecycle *lifecycle.Service
	Requests  store.RequestStore
	Drivers   store.DriverStore
	GeoIndex  geo.DriverIndex
	Kafka     *ingest.KafkaProducer
	WSReg     *dispatch.WSRegistry
	SpeedKmh  float64

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(lc *lifecycle.Service, reqs store.RequestStore, drvs store.DriverStore, idx geo.DriverIndex, kp *ingest.KafkaProducer, wsreg *dispatch.WSRegistry, speedKmh float64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Lifecycle: lc,
		Requests:  reqs,
		Drivers:   drvs,
		GeoIndex:  idx,
		Kafka:     kp,
		WSReg:     wsreg,
		SpeedKmh:  speedKmh,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/requests", s.handleCreateRequest).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests", s.handleListRequests).Methods("GET")
	s.mux.HandleFunc("/api/v1/requests", s.handleClearRequests).Methods("DELETE")
	s.mux.HandleFunc("/api/v1/requests/{id}/candidates", s.handleCandidates).Methods("GET")
	s.mux.HandleFunc("/api/v1/requests/{id}/claim", s.transitionHandler(s.Lifecycle.Claim)).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{id}/arrive", s.transitionHandler(s.Lifecycle.MarkArrived)).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{id}/depart", s.transitionHandler(s.Lifecycle.MarkDeparted)).Methods("POST")
	s.mux.HandleFunc("/api/v1/requests/{id}/complete", s.transitionHandler(s.Lifecycle.MarkCompleted)).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers", s.handleListDrivers).Methods("GET")
	s.mux.HandleFunc("/api/v1/drivers/{id}", s.handleUpsertDriver).Methods("PUT")
	s.mux.HandleFunc("/api/v1/drivers/{id}/queue", s.handleDriverQueue).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createRequestBody struct {
	Origin          models.Coord `json:"origin"`
	Destination     string       `json:"destination"`
	PassengerName   string       `json:"passenger_name"`
	SpecialRequests string       `json:"special_requests"`
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := s.Lifecycle.Create(r.Context(), body.Origin, body.Destination, body.PassengerName, body.SpecialRequests)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	all, err := s.Requests.All(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleClearRequests(w http.ResponseWriter, r *http.Request) {
	if err := s.Requests.ClearAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, err := s.Requests.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var drivers []models.Driver
	if s.GeoIndex != nil {
		drivers = s.GeoIndex.Nearby(req.Origin.Lat, req.Origin.Lon, 0)
	} else {
		all, err := s.Drivers.All(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		drivers = driversSlice(all)
	}
	writeJSON(w, http.StatusOK, matching.RankDriversForRequest(req, drivers))
}

func (s *Server) handleDriverQueue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := s.Drivers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	all, err := s.Requests.All(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matching.RankRequestsForDriver(d, requestsSlice(all), s.SpeedKmh))
}

type transitionBody struct {
	DriverID string `json:"driver_id"`
}

func (s *Server) transitionHandler(fn func(ctx context.Context, requestID, driverID string) (models.Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body transitionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.DriverID == "" {
			http.Error(w, "driver_id required", http.StatusBadRequest)
			return
		}
		req, err := fn(r.Context(), mux.Vars(r)["id"], body.DriverID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

type upsertDriverBody struct {
	Name          string              `json:"name"`
	VehicleNumber string              `json:"vehicle_number"`
	Location      models.Coord        `json:"location"`
	Status        models.DriverStatus `json:"status"`
}

func (s *Server) handleUpsertDriver(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body upsertDriverBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Status == "" {
		body.Status = models.DriverAvailable
	}
	if !body.Status.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	d := models.Driver{
		ID:            id,
		Name:          body.Name,
		VehicleNumber: body.VehicleNumber,
		Loc:           body.Location,
		Status:        body.Status,
		UpdatedAt:     time.Now(),
	}
	if err := s.Drivers.Put(r.Context(), d); err != nil {
		s.writeError(w, err)
		return
	}
	if s.GeoIndex != nil {
		s.GeoIndex.Upsert(d)
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishDriver(d); err != nil {
			s.logger.Warn("kafka publish failed", "driver_id", d.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	all, err := s.Drivers.All(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	if s.WSReg != nil {
		s.WSReg.Add(id, conn)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Error("internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func driversSlice(m map[string]models.Driver) []models.Driver {
	out := make([]models.Driver, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	return out
}

func requestsSlice(m map[string]models.Request) []models.Request {
	out := make([]models.Request, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}
