package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	appointmentsSheet = "Agendamentos"
	lastColumn        = "L"
	statusColumn      = "D"
	updatedColumn     = "L"
	timestampLayout   = "2006-01-02 15:04:05"
	cacheRefresh      = time.Hour
)

var appointmentHeaders = []interface{}{
	"ID", "Data", "Hora", "Status", "Cliente", "Telefone", "Barbearia", "Serviço", "Duração", "Barbeiro", "Observações", "Atualizado em",
}

// ErrRowNotFound is returned when an appointment has no row in the sheet yet.
var ErrRowNotFound = errors.New("appointment row not found")

// SheetsService mirrors appointments into one Google Sheets spreadsheet, one row per appointment.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
}

// NewSheetsService authenticates with a service-account key file.
// The row cache is warmed and refreshed hourly until ctx is done.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	s := newSheetsService(srv, spreadsheetID)
	go s.refreshLoop(ctx)
	return s, nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID string) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[string]int),
	}
}

func (s *SheetsService) refreshLoop(ctx context.Context) {
	warm := func() {
		wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		_ = s.WarmUpCache(wctx)
	}
	warm()

	ticker := time.NewTicker(cacheRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			warm()
		}
	}
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email of a key file, the address the sheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if id := cellString(row[0]); id != "" {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// AppendAppointment adds a new row and caches its position.
func (s *SheetsService) AppendAppointment(ctx context.Context, appt *models.AppointmentView) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt)},
	}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, appointmentsSheet+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(appt.ID, row)
		}
	}
	return nil
}

// UpsertAppointment updates an existing row or appends a new one if not found.
func (s *SheetsService) UpsertAppointment(ctx context.Context, appt *models.AppointmentView) error {
	if appt == nil {
		return fmt.Errorf("appointment is nil")
	}

	rowIdx, err := s.FindAppointmentRow(ctx, appt.ID)
	if errors.Is(err, ErrRowNotFound) {
		return s.AppendAppointment(ctx, appt)
	}
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", appointmentsSheet, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(appt)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateAppointmentStatus rewrites the status and "updated at" cells of the appointment row.
func (s *SheetsService) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	rowIdx, err := s.FindAppointmentRow(ctx, appointmentID)
	if err != nil {
		return err
	}

	data := []*sheets.ValueRange{
		{
			Range:  fmt.Sprintf("%s!%s%d", appointmentsSheet, statusColumn, rowIdx),
			Values: [][]interface{}{{status}},
		},
		{
			Range:  fmt.Sprintf("%s!%s%d", appointmentsSheet, updatedColumn, rowIdx),
			Values: [][]interface{}{{time.Now().Format(timestampLayout)}},
		},
	}
	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	return err
}

// DeleteAppointmentRow clears the row of the appointment.
func (s *SheetsService) DeleteAppointmentRow(ctx context.Context, appointmentID string) error {
	rowIdx, err := s.FindAppointmentRow(ctx, appointmentID)
	if err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:%s%d", appointmentsSheet, rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, rangeData, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCachedRow(appointmentID)
	}
	return err
}

// FindAppointmentRow locates the 1-based row of the appointment in column A, using the cache first.
func (s *SheetsService) FindAppointmentRow(ctx context.Context, appointmentID string) (int, error) {
	if appointmentID == "" {
		return 0, fmt.Errorf("appointment id is required")
	}
	if row, ok := s.getCachedRow(appointmentID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, appointmentsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cellString(row[0]) == appointmentID {
			rowIdx := i + 1 // Values are zero-based; sheet rows are 1-based
			s.setCachedRow(appointmentID, rowIdx)
			return rowIdx, nil
		}
	}
	return 0, ErrRowNotFound
}

// ReplaceAppointmentsSheet полностью перезаписывает лист с записями
func (s *SheetsService) ReplaceAppointmentsSheet(ctx context.Context, appts []*models.AppointmentView) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, appointmentsSheet+"!A:Z", &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear appointments sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(appts)+1)
	values = append(values, appointmentHeaders)
	for _, a := range appts {
		values = append(values, appointmentRowValues(a))
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, appointmentsSheet+"!A1", &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update appointments sheet: %w", err)
	}

	cache := make(map[string]int, len(appts))
	for i, a := range appts {
		cache[a.ID] = i + 2 // +2 because data starts at row 2
	}
	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCachedRow(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func appointmentRowValues(a *models.AppointmentView) []interface{} {
	return []interface{}{
		a.ID,
		a.Date,
		a.Time,
		a.Status,
		a.ClientName,
		a.ClientPhone,
		a.ShopName,
		a.ServiceName,
		a.Duration,
		a.StaffName,
		a.Notes,
		a.UpdatedAt.Format(timestampLayout),
	}
}

// rowFromRange extracts the first row number of an A1 range like "Agendamentos!A10:L10".
func rowFromRange(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
