package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/availability"
	"github.com/frenetico9/Navalha.Digital/internal/config"
	"github.com/frenetico9/Navalha.Digital/internal/database"
	"github.com/frenetico9/Navalha.Digital/internal/domain"
	"github.com/frenetico9/Navalha.Digital/internal/events"
	"github.com/frenetico9/Navalha.Digital/internal/export"
	"github.com/frenetico9/Navalha.Digital/internal/models"
	"github.com/frenetico9/Navalha.Digital/internal/repository"
	"github.com/frenetico9/Navalha.Digital/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t       *testing.T
	ts      *httptest.Server
	headers map[string]string
}

func newTestAPI(t *testing.T, cfg config.APIConfig, ready ReadinessFunc) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := availability.NewResolver(db, 30*time.Minute, time.UTC, &logger)
	locker := repository.NewMemoryLocker()
	bus := events.NewEventBus()

	svc := Services{
		Shops:    service.NewShopService(db, &logger),
		Clients:  service.NewClientService(db, &logger),
		Catalog:  service.NewCatalogService(db, &logger),
		Bookings: service.NewBookingService(db, resolver, locker, locker, bus, nil, service.BookingOptions{MaxBookingDays: 60}, &logger),
		Reviews:  service.NewReviewService(db, bus, &logger),
		Resolver: resolver,
		Exporter: export.NewExporter("", &logger),
	}
	server := NewHTTPServer(cfg, svc, ready, &logger)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)

	return &testAPI{t: t, ts: ts, headers: map[string]string{}}
}

// do sends body as JSON and decodes the response into out when it is not nil.
func (a *testAPI) do(method, path string, body, out any) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(a.t, err)
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// nextWeekday returns the first date after today falling on wd.
func nextWeekday(wd time.Weekday) string {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format(models.DateLayout)
}

type fixture struct {
	shop    models.Shop
	service models.Service
	client  models.User
	date    string
}

func (a *testAPI) seed() fixture {
	a.t.Helper()
	var f fixture
	f.date = nextWeekday(time.Wednesday)

	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/shops", service.ShopSignup{
		Name: "Navalha Centro", ResponsibleName: "Carlos", Email: "carlos@navalha.test", Phone: "+5511999990000",
	}, &f.shop))
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/shops/"+f.shop.ID+"/services", service.ServiceInput{
		Name: "Corte", Price: 50, Duration: 45,
	}, &f.service))
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/clients", service.ClientSignup{
		Name: "Ana", Email: "ana@cliente.test", Phone: "+5511988887777",
	}, &f.client))
	return f
}

func (a *testAPI) slots(path string) []string {
	a.t.Helper()
	var body struct {
		Slots []string `json:"slots"`
	}
	require.Equal(a.t, http.StatusOK, a.do(http.MethodGet, path, nil, &body))
	return body.Slots
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, func(context.Context) error { return errors.New("db down") })

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", nil, nil))

	var body map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, api.do(http.MethodGet, "/readyz", nil, &body))
	assert.Equal(t, "not ready", body["error"])
}

func TestReadyz(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, func(context.Context) error { return nil })
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/readyz", nil, nil))
}

func TestAvailabilityReflectsAppointments(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil)
	f := api.seed()

	byDuration := fmt.Sprintf("/api/v1/shops/%s/availability?serviceDuration=45&date=%s", f.shop.ID, f.date)
	slots := api.slots(byDuration)
	require.Len(t, slots, 17)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "17:00", slots[len(slots)-1])

	var view models.AppointmentView
	status := api.do(http.MethodPost, "/api/v1/appointments", service.AppointmentRequest{
		ClientID: f.client.ID, ShopID: f.shop.ID, ServiceID: f.service.ID, Date: f.date, Time: "10:00",
	}, &view)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.StatusScheduled, view.Status)
	assert.Equal(t, "Corte", view.ServiceName)

	byService := fmt.Sprintf("/api/v1/shops/%s/availability?serviceId=%s&date=%s", f.shop.ID, f.service.ID, f.date)
	slots = api.slots(byService)
	assert.NotContains(t, slots, "09:30")
	assert.NotContains(t, slots, "10:00")
	assert.NotContains(t, slots, "10:30")
	assert.Contains(t, slots, "09:00")
	assert.Contains(t, slots, "11:00")

	var errBody map[string]string
	status = api.do(http.MethodPost, "/api/v1/appointments", service.AppointmentRequest{
		ClientID: f.client.ID, ShopID: f.shop.ID, ServiceID: f.service.ID, Date: f.date, Time: "10:00",
	}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, errBody["error"], "not available")
}

func TestAvailabilityBadRequests(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"MissingDate", "/api/v1/shops/s1/availability?serviceDuration=30", http.StatusBadRequest},
		{"MissingDuration", "/api/v1/shops/s1/availability?date=2030-01-02", http.StatusBadRequest},
		{"NonNumericDuration", "/api/v1/shops/s1/availability?serviceDuration=abc&date=2030-01-02", http.StatusBadRequest},
		{"ZeroDuration", "/api/v1/shops/s1/availability?serviceDuration=0&date=2030-01-02", http.StatusBadRequest},
		{"BadDate", "/api/v1/shops/s1/availability?serviceDuration=30&date=2030-13-40", http.StatusBadRequest},
		{"UnknownShop", "/api/v1/shops/s1/availability?serviceDuration=30&date=2030-01-02", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, api.do(http.MethodGet, tt.path, nil, nil))
		})
	}

	assert.Empty(t, api.slots("/api/v1/shops/s1/availability?serviceDuration=30&date=2030-01-02"))
}

func TestAppointmentLifecycle(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil)
	f := api.seed()

	var view models.AppointmentView
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/appointments", service.AppointmentRequest{
		ClientID: f.client.ID, ShopID: f.shop.ID, ServiceID: f.service.ID, Date: f.date, Time: "14:00",
	}, &view))

	path := "/api/v1/appointments/" + view.ID
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, path+"/cancel", actorRequest{ActorID: "stranger"}, nil))
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, path+"/cancel", actorRequest{ActorID: f.client.ID, Version: view.Version + 5}, nil))

	var cancelled models.AppointmentView
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, path+"/cancel", actorRequest{ActorID: f.client.ID}, &cancelled))
	assert.Equal(t, models.StatusCancelledByClient, cancelled.Status)

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, path+"/complete", actorRequest{ActorID: f.shop.ID}, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/v1/appointments/missing", nil, nil))

	var listing struct {
		Appointments []models.AppointmentView `json:"appointments"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/shops/"+f.shop.ID+"/appointments?status="+models.StatusCancelledByClient, nil, &listing))
	require.Len(t, listing.Appointments, 1)
	assert.Equal(t, view.ID, listing.Appointments[0].ID)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/clients/"+f.client.ID+"/appointments", nil, &listing))
	assert.Len(t, listing.Appointments, 1)
}

func TestRescheduleAppointment(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil)
	f := api.seed()

	var view models.AppointmentView
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/appointments", service.AppointmentRequest{
		ClientID: f.client.ID, ShopID: f.shop.ID, ServiceID: f.service.ID, Date: f.date, Time: "09:00",
	}, &view))

	var moved models.AppointmentView
	status := api.do(http.MethodPatch, "/api/v1/appointments/"+view.ID, map[string]any{
		"actor_id": f.client.ID, "time": "15:00", "version": view.Version,
	}, &moved)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "15:00", moved.Time)
	assert.Greater(t, moved.Version, view.Version)
}

func TestExportRequiresProPlan(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil)
	f := api.seed()

	exportPath := "/api/v1/shops/" + f.shop.ID + "/appointments/export"
	assert.Equal(t, http.StatusPaymentRequired, api.do(http.MethodGet, exportPath, nil, nil))

	var sub models.Subscription
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, "/api/v1/shops/"+f.shop.ID+"/subscription", map[string]string{"plan_id": models.PlanPro}, &sub))
	assert.Equal(t, models.PlanPro, sub.PlanID)

	resp, err := http.Get(api.ts.URL + exportPath + "?from=" + f.date)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")), "xlsx is a zip archive")
}

func TestRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil)
	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/shops", map[string]any{"bogus": 1}, &body))
	assert.Contains(t, body["error"], "invalid JSON body")
}

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "site-key", Extra: "site-extra", Name: "site", Permissions: []string{permReadAvailability}},
			},
		},
	}
	api := newTestAPI(t, cfg, nil)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/plans", nil, nil))

	api.headers = map[string]string{"X-API-Key": "site-key", "X-API-Extra": "wrong"}
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/plans", nil, nil))

	api.headers["X-API-Extra"] = "site-extra"
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/plans", nil, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/shops/s1/availability?serviceDuration=30&date=2030-01-02", nil, nil))
}

func TestHTTPRateLimit(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1}}, nil)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/plans", nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, api.do(http.MethodGet, "/api/v1/plans", nil, nil))
}

func TestRequestIDHeader(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{}, nil)

	req, err := http.NewRequest(http.MethodGet, api.ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))

	resp, err = http.Get(api.ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("get shop: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrPastDate, http.StatusBadRequest},
		{domain.ErrInvalidQuery, http.StatusBadRequest},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrPlanLimit, http.StatusPaymentRequired},
		{domain.ErrSlotUnavailable, http.StatusConflict},
		{domain.ErrEmailTaken, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
