package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/availability"
	"github.com/frenetico9/Navalha.Digital/internal/config"
	"github.com/frenetico9/Navalha.Digital/internal/export"
	"github.com/frenetico9/Navalha.Digital/internal/metrics"
	"github.com/frenetico9/Navalha.Digital/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// ReadinessFunc reports whether the backing stores are reachable.
type ReadinessFunc func(ctx context.Context) error

// Services groups what the HTTP handlers call into.
type Services struct {
	Shops    *service.ShopService
	Clients  *service.ClientService
	Catalog  *service.CatalogService
	Bookings *service.BookingService
	Reviews  *service.ReviewService
	Resolver *availability.Resolver
	Exporter *export.Exporter
}

// HTTPServer exposes the JSON booking API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	ready  ReadinessFunc
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, ready ReadinessFunc, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:   cfg,
		svc:   svc,
		ready: ready,
		auth:  NewHTTPAuth(cfg),
		log:   zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.requestID(srv.logging(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	s.handle(mux, "GET /api/v1/shops/{shopID}/availability", permReadAvailability, s.handleAvailability)

	s.handle(mux, "GET /api/v1/plans", permReadShops, s.handlePlans)
	s.handle(mux, "GET /api/v1/shops", permReadShops, s.handleSearchShops)
	s.handle(mux, "POST /api/v1/shops", permWriteShops, s.handleSignupShop)
	s.handle(mux, "GET /api/v1/shops/{shopID}", permReadShops, s.handleGetShop)
	s.handle(mux, "PATCH /api/v1/shops/{shopID}", permWriteShops, s.handleUpdateShop)
	s.handle(mux, "GET /api/v1/shops/{shopID}/subscription", permReadShops, s.handleGetSubscription)
	s.handle(mux, "PUT /api/v1/shops/{shopID}/subscription", permWriteShops, s.handleChangePlan)

	s.handle(mux, "GET /api/v1/shops/{shopID}/services", permReadShops, s.handleListServices)
	s.handle(mux, "POST /api/v1/shops/{shopID}/services", permWriteShops, s.handleAddService)
	s.handle(mux, "PATCH /api/v1/services/{serviceID}", permWriteShops, s.handleUpdateService)
	s.handle(mux, "PUT /api/v1/services/{serviceID}/active", permWriteShops, s.handleSetServiceActive)

	s.handle(mux, "GET /api/v1/shops/{shopID}/staff", permReadShops, s.handleListStaff)
	s.handle(mux, "POST /api/v1/shops/{shopID}/staff", permWriteShops, s.handleAddStaff)
	s.handle(mux, "GET /api/v1/shops/{shopID}/services/{serviceID}/staff", permReadShops, s.handleStaffForService)
	s.handle(mux, "PATCH /api/v1/staff/{staffID}", permWriteShops, s.handleUpdateStaff)
	s.handle(mux, "DELETE /api/v1/staff/{staffID}", permWriteShops, s.handleDeleteStaff)

	s.handle(mux, "POST /api/v1/clients", permWriteClients, s.handleSignupClient)
	s.handle(mux, "GET /api/v1/clients/{clientID}", permReadClients, s.handleGetClient)
	s.handle(mux, "PATCH /api/v1/clients/{clientID}", permWriteClients, s.handleUpdateClient)
	s.handle(mux, "GET /api/v1/clients/{clientID}/appointments", permReadAppointments, s.handleClientAppointments)
	s.handle(mux, "GET /api/v1/shops/{shopID}/clients", permReadClients, s.handleShopClients)
	s.handle(mux, "GET /api/v1/shops/{shopID}/clients/{clientID}/appointments", permReadAppointments, s.handleClientAppointmentsAtShop)

	s.handle(mux, "POST /api/v1/appointments", permWriteAppointments, s.handleCreateAppointment)
	s.handle(mux, "GET /api/v1/appointments/{id}", permReadAppointments, s.handleGetAppointment)
	s.handle(mux, "PATCH /api/v1/appointments/{id}", permWriteAppointments, s.handleUpdateAppointment)
	s.handle(mux, "POST /api/v1/appointments/{id}/cancel", permWriteAppointments, s.handleCancelAppointment)
	s.handle(mux, "POST /api/v1/appointments/{id}/complete", permWriteAppointments, s.handleCompleteAppointment)
	s.handle(mux, "GET /api/v1/shops/{shopID}/appointments", permReadAppointments, s.handleShopAppointments)
	s.handle(mux, "GET /api/v1/shops/{shopID}/appointments/export", permExportReports, s.handleExportAppointments)

	s.handle(mux, "GET /api/v1/shops/{shopID}/reviews", permReadShops, s.handleShopReviews)
	s.handle(mux, "GET /api/v1/appointments/{id}/review", permReadAppointments, s.handleAppointmentReview)
	s.handle(mux, "POST /api/v1/reviews", permWriteReviews, s.handleAddReview)
	s.handle(mux, "POST /api/v1/reviews/{id}/reply", permWriteShops, s.handleReplyReview)
}

// handle registers an authenticated route and counts hits under its pattern.
func (s *HTTPServer) handle(mux *http.ServeMux, pattern, permission string, h http.HandlerFunc) {
	endpoint := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		endpoint = pattern[i+1:]
	}
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(endpoint)
		h(w, r)
	})
	mux.Handle(pattern, s.auth.Require(permission, counted))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requestID propagates or assigns X-Request-ID and puts a request-scoped logger in the context.
func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		l := s.log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

func (s *HTTPServer) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
