package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const testSheetID = "sheet_tid"

// fakeSheetsAPI records requests by unescaped path and answers from handlers.
type fakeSheetsAPI struct {
	mu       sync.Mutex
	calls    []string
	bodies   map[string]string
	handlers map[string]func(w http.ResponseWriter)
}

func setupMockServer(t *testing.T) (*fakeSheetsAPI, *SheetsService) {
	t.Helper()
	api := &fakeSheetsAPI{bodies: map[string]string{}, handlers: map[string]func(http.ResponseWriter){}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.calls = append(api.calls, r.URL.Path)
		api.bodies[r.URL.Path] = string(body)
		h, ok := api.handlers[r.URL.Path]
		api.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		h(w)
	}))
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return api, newSheetsService(srv, testSheetID)
}

func (a *fakeSheetsAPI) on(path string, resp interface{}) {
	a.handlers["/v4/spreadsheets/"+testSheetID+path] = func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (a *fakeSheetsAPI) called(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.calls {
		if c == "/v4/spreadsheets/"+testSheetID+path {
			return true
		}
	}
	return false
}

func (a *fakeSheetsAPI) body(path string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bodies["/v4/spreadsheets/"+testSheetID+path]
}

func view(id, status string) *models.AppointmentView {
	return &models.AppointmentView{
		Appointment: models.Appointment{
			ID: id, Date: "2025-07-16", Time: "10:00", Status: status,
			UpdatedAt: time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC),
		},
		ClientName: "Ana", ShopName: "Navalha", ServiceName: "Corte", Duration: 45,
	}
}

func TestTestConnection(t *testing.T) {
	api, s := setupMockServer(t)
	api.on("/values/Agendamentos!A1", sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestWarmUpCacheSkipsHeader(t *testing.T) {
	api, s := setupMockServer(t)
	api.on("/values/Agendamentos!A:A", sheets.ValueRange{
		Values: [][]interface{}{{"ID"}, {"a-1"}, {}, {"a-2"}},
	})

	require.NoError(t, s.WarmUpCache(context.Background()))

	row, ok := s.getCachedRow("a-1")
	assert.True(t, ok)
	assert.Equal(t, 2, row)
	row, _ = s.getCachedRow("a-2")
	assert.Equal(t, 4, row)
	_, ok = s.getCachedRow("ID")
	assert.False(t, ok)
}

func TestUpsertAppendsUnknownAppointment(t *testing.T) {
	api, s := setupMockServer(t)
	api.on("/values/Agendamentos!A:A", sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	api.on("/values/Agendamentos!A:A:append", sheets.AppendValuesResponse{
		Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Agendamentos!A10:L10"},
	})

	require.NoError(t, s.UpsertAppointment(context.Background(), view("a-9", models.StatusScheduled)))

	row, ok := s.getCachedRow("a-9")
	assert.True(t, ok)
	assert.Equal(t, 10, row)
	assert.Contains(t, api.body("/values/Agendamentos!A:A:append"), "2025-07-14 09:30:00")
}

func TestUpsertUpdatesCachedRow(t *testing.T) {
	api, s := setupMockServer(t)
	s.setCachedRow("a-1", 2)
	api.on("/values/Agendamentos!A2:L2", sheets.UpdateValuesResponse{})

	require.NoError(t, s.UpsertAppointment(context.Background(), view("a-1", models.StatusScheduled)))
	assert.True(t, api.called("/values/Agendamentos!A2:L2"))
	assert.False(t, api.called("/values/Agendamentos!A:A"))
}

func TestUpdateAppointmentStatus(t *testing.T) {
	api, s := setupMockServer(t)
	api.on("/values/Agendamentos!A:A", sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"a-1"}, {"a-2"}}})
	api.on("/values:batchUpdate", sheets.BatchUpdateValuesResponse{})

	require.NoError(t, s.UpdateAppointmentStatus(context.Background(), "a-2", models.StatusCompleted))
	body := api.body("/values:batchUpdate")
	assert.Contains(t, body, "Agendamentos!D3")
	assert.Contains(t, body, models.StatusCompleted)

	err := s.UpdateAppointmentStatus(context.Background(), "a-404", models.StatusCompleted)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestDeleteAppointmentRow(t *testing.T) {
	api, s := setupMockServer(t)
	s.setCachedRow("a-1", 3)
	api.on("/values/Agendamentos!A3:L3:clear", sheets.ClearValuesResponse{})

	require.NoError(t, s.DeleteAppointmentRow(context.Background(), "a-1"))
	_, ok := s.getCachedRow("a-1")
	assert.False(t, ok)
}

func TestReplaceAppointmentsSheet(t *testing.T) {
	api, s := setupMockServer(t)
	s.setCachedRow("stale", 40)
	api.on("/values/Agendamentos!A:Z:clear", sheets.ClearValuesResponse{})
	api.on("/values/Agendamentos!A1", sheets.UpdateValuesResponse{})

	appts := []*models.AppointmentView{view("a-1", models.StatusScheduled), view("a-2", models.StatusCancelledByAdmin)}
	require.NoError(t, s.ReplaceAppointmentsSheet(context.Background(), appts))

	assert.Contains(t, api.body("/values/Agendamentos!A1"), "Atualizado em")
	row, _ := s.getCachedRow("a-2")
	assert.Equal(t, 3, row)
	_, ok := s.getCachedRow("stale")
	assert.False(t, ok)
}

func TestFindAppointmentRowRequiresID(t *testing.T) {
	_, s := setupMockServer(t)
	_, err := s.FindAppointmentRow(context.Background(), "")
	assert.Error(t, err)
}

func TestRowFromRange(t *testing.T) {
	cases := map[string]int{
		"Agendamentos!A10:L10": 10,
		"A7":                   7,
		"'Folha 1'!B22:C22":    22,
	}
	for in, want := range cases {
		got, ok := rowFromRange(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := rowFromRange("Agendamentos!A:A")
	assert.False(t, ok)
}

func TestAppointmentRowValues(t *testing.T) {
	values := appointmentRowValues(view("a-1", models.StatusScheduled))
	require.Len(t, values, len(appointmentHeaders))
	assert.Equal(t, "a-1", values[0])
	assert.Equal(t, models.StatusScheduled, values[3])
	assert.Equal(t, 45, values[8])
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"sync@navalha.iam.gserviceaccount.com"}`), 0o600))

	email, err := ServiceAccountEmail(path)
	require.NoError(t, err)
	assert.Equal(t, "sync@navalha.iam.gserviceaccount.com", email)

	_, err = ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
