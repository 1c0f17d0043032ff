package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/frenetico9/Navalha.Digital/internal/availability"
	"github.com/frenetico9/Navalha.Digital/internal/export"
	"github.com/frenetico9/Navalha.Digital/internal/models"
	"github.com/frenetico9/Navalha.Digital/internal/service"

	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// actorRequest identifies who performs a state change and the version they saw.
type actorRequest struct {
	ActorID string `json:"actor_id"`
	Version int64  `json:"version"`
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shopID := r.PathValue("shopID")
	date := strings.TrimSpace(q.Get("date"))
	staffID := strings.TrimSpace(q.Get("staffId"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	var (
		slots []string
		err   error
	)
	switch {
	case q.Get("serviceDuration") != "":
		duration, convErr := strconv.Atoi(q.Get("serviceDuration"))
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "serviceDuration must be an integer number of minutes")
			return
		}
		slots, err = s.svc.Resolver.Slots(r.Context(), availability.Query{
			ShopID:          shopID,
			ServiceDuration: duration,
			Date:            date,
			StaffID:         staffID,
		})
	case q.Get("serviceId") != "":
		slots, err = s.svc.Resolver.SlotsForService(r.Context(), shopID, q.Get("serviceId"), date, staffID)
	default:
		writeError(w, http.StatusBadRequest, "serviceDuration or serviceId is required")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// Барбершопы

func (s *HTTPServer) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": s.svc.Shops.Plans()})
}

func (s *HTTPServer) handleSearchShops(w http.ResponseWriter, r *http.Request) {
	shops, err := s.svc.Shops.SearchShops(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shops": orEmpty(shops)})
}

func (s *HTTPServer) handleSignupShop(w http.ResponseWriter, r *http.Request) {
	var req service.ShopSignup
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shop, err := s.svc.Shops.SignupShop(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shop)
}

func (s *HTTPServer) handleGetShop(w http.ResponseWriter, r *http.Request) {
	shop, err := s.svc.Shops.GetShop(r.Context(), r.PathValue("shopID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *HTTPServer) handleUpdateShop(w http.ResponseWriter, r *http.Request) {
	var upd service.ShopUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	shop, err := s.svc.Shops.UpdateShop(r.Context(), r.PathValue("shopID"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *HTTPServer) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.svc.Shops.GetSubscription(r.Context(), r.PathValue("shopID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *HTTPServer) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlanID string `json:"plan_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := s.svc.Shops.ChangePlan(r.Context(), r.PathValue("shopID"), body.PlanID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Услуги и мастера

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.svc.Catalog.ListServices(r.Context(), r.PathValue("shopID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": orEmpty(services)})
}

func (s *HTTPServer) handleAddService(w http.ResponseWriter, r *http.Request) {
	var in service.ServiceInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, err := s.svc.Catalog.AddService(r.Context(), r.PathValue("shopID"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *HTTPServer) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var upd service.ServiceUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, err := s.svc.Catalog.UpdateService(r.Context(), r.PathValue("serviceID"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleSetServiceActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	svc, err := s.svc.Catalog.SetServiceActive(r.Context(), r.PathValue("serviceID"), body.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := s.svc.Catalog.ListStaff(r.Context(), r.PathValue("shopID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": orEmpty(staff)})
}

func (s *HTTPServer) handleStaffForService(w http.ResponseWriter, r *http.Request) {
	staff, err := s.svc.Catalog.StaffForService(r.Context(), r.PathValue("shopID"), r.PathValue("serviceID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": orEmpty(staff)})
}

func (s *HTTPServer) handleAddStaff(w http.ResponseWriter, r *http.Request) {
	var in service.StaffInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	member, err := s.svc.Catalog.AddStaff(r.Context(), r.PathValue("shopID"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *HTTPServer) handleUpdateStaff(w http.ResponseWriter, r *http.Request) {
	var upd service.StaffUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	member, err := s.svc.Catalog.UpdateStaff(r.Context(), r.PathValue("staffID"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *HTTPServer) handleDeleteStaff(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Catalog.DeleteStaff(r.Context(), r.PathValue("staffID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Клиенты

func (s *HTTPServer) handleSignupClient(w http.ResponseWriter, r *http.Request) {
	var req service.ClientSignup
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := s.svc.Clients.SignupClient(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (s *HTTPServer) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.svc.Clients.GetClient(r.Context(), r.PathValue("clientID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *HTTPServer) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var upd service.ClientUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := s.svc.Clients.UpdateClient(r.Context(), r.PathValue("clientID"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *HTTPServer) handleShopClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.svc.Clients.ClientsForShop(r.Context(), r.PathValue("shopID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": orEmpty(clients)})
}

func (s *HTTPServer) handleClientAppointments(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.Bookings.ListForClient(r.Context(), r.PathValue("clientID"))
	writeAppointments(w, r, views, err)
}

func (s *HTTPServer) handleClientAppointmentsAtShop(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.Bookings.ListForClientAtShop(r.Context(), r.PathValue("shopID"), r.PathValue("clientID"))
	writeAppointments(w, r, views, err)
}

// Записи

func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req service.AppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.svc.Bookings.CreateAppointment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Bookings.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID string `json:"actor_id"`
		service.AppointmentUpdate
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.svc.Bookings.UpdateAppointment(r.Context(), r.PathValue("id"), body.ActorID, body.AppointmentUpdate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	var body actorRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.svc.Bookings.Cancel(r.Context(), r.PathValue("id"), body.ActorID, body.Version)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleCompleteAppointment(w http.ResponseWriter, r *http.Request) {
	var body actorRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.svc.Bookings.Complete(r.Context(), r.PathValue("id"), body.ActorID, body.Version)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleShopAppointments(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.Bookings.ListForShop(r.Context(), r.PathValue("shopID"), filterFromQuery(r))
	writeAppointments(w, r, views, err)
}

func (s *HTTPServer) handleExportAppointments(w http.ResponseWriter, r *http.Request) {
	shopID := r.PathValue("shopID")
	filter := filterFromQuery(r)
	views, err := s.svc.Bookings.ExportForShop(r.Context(), shopID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	shop, err := s.svc.Shops.GetShop(r.Context(), shopID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report := &export.Report{ShopName: shop.Name, From: filter.DateFrom, To: filter.DateTo, Appointments: views}
	var buf bytes.Buffer
	if err := s.svc.Exporter.Write(&buf, report); err != nil {
		writeServiceError(w, r, fmt.Errorf("render report: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to send report")
	}
}

// Отзывы

func (s *HTTPServer) handleShopReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.svc.Reviews.ListForShop(r.Context(), r.PathValue("shopID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": orEmpty(reviews)})
}

func (s *HTTPServer) handleAppointmentReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.svc.Reviews.ForAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *HTTPServer) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var req service.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	review, err := s.svc.Reviews.AddReview(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *HTTPServer) handleReplyReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ShopID string `json:"shop_id"`
		Reply  string `json:"reply"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	review, err := s.svc.Reviews.Reply(r.Context(), r.PathValue("id"), body.ShopID, body.Reply)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func filterFromQuery(r *http.Request) models.AppointmentFilter {
	q := r.URL.Query()
	return models.AppointmentFilter{
		DateFrom: strings.TrimSpace(q.Get("from")),
		DateTo:   strings.TrimSpace(q.Get("to")),
		Status:   strings.TrimSpace(q.Get("status")),
	}
}

func writeAppointments(w http.ResponseWriter, r *http.Request, views []*models.AppointmentView, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": orEmpty(views)})
}

// orEmpty keeps empty lists as [] in JSON.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
