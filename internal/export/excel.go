package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetAppointments = "Agendamentos"
	sheetSummary      = "Resumo"
)

var appointmentHeaders = []string{"Data", "Hora", "Cliente", "Telefone", "Serviço", "Duração (min)", "Barbeiro", "Status", "Observações"}

// Report is one shop's appointments over a period.
type Report struct {
	ShopName     string
	From         string
	To           string
	Appointments []*models.AppointmentView
}

// Exporter renders appointment reports as xlsx and keeps a copy under dir when set.
type Exporter struct {
	dir    string
	now    func() time.Time
	logger *zerolog.Logger
}

func NewExporter(dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, now: time.Now, logger: logger}
}

// FileName is the download name of a report.
func (r *Report) FileName() string {
	from, to := r.From, r.To
	if from == "" {
		from = "inicio"
	}
	if to == "" {
		to = "fim"
	}
	return fmt.Sprintf("agendamentos_%s_a_%s.xlsx", from, to)
}

// Write renders the report to w.
func (e *Exporter) Write(w io.Writer, report *Report) error {
	var buf bytes.Buffer
	if err := render(&buf, report); err != nil {
		return err
	}

	if e.dir != "" {
		if path, err := e.archive(buf.Bytes(), report); err != nil {
			e.logger.Warn().Err(err).Msg("failed to archive report")
		} else {
			e.logger.Info().Str("file_path", path).Msg("Excel report created")
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func (e *Exporter) archive(data []byte, report *Report) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	name := e.now().Format("20060102_150405_") + report.FileName()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func render(w io.Writer, report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetAppointments)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeAppointments(f, report); err != nil {
		return err
	}
	if err := writeSummary(f, report); err != nil {
		return err
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeAppointments(f *excelize.File, report *Report) error {
	title := report.ShopName
	if report.From != "" || report.To != "" {
		title += fmt.Sprintf(" | Período: %s - %s", report.From, report.To)
	}
	if err := f.SetCellValue(sheetAppointments, "A1", title); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(appointmentHeaders))
	_ = f.MergeCell(sheetAppointments, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetAppointments, "A1", "A1", titleStyle)

	header := make([]interface{}, len(appointmentHeaders))
	for i, h := range appointmentHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetAppointments, "A2", &header); err != nil {
		return err
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetAppointments, "A2", lastCol+"2", headerStyle)

	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006", Strike: true},
	})

	for i, a := range report.Appointments {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			a.Date, a.Time, a.ClientName, a.ClientPhone, a.ServiceName, a.Duration, a.StaffName, a.Status, a.Notes,
		}
		if err := f.SetSheetRow(sheetAppointments, cell, &values); err != nil {
			return err
		}
		if a.IsCancelled() {
			end, _ := excelize.CoordinatesToCellName(len(appointmentHeaders), row)
			_ = f.SetCellStyle(sheetAppointments, cell, end, cancelledStyle)
		}
	}

	_ = f.SetColWidth(sheetAppointments, "A", "B", 12)
	_ = f.SetColWidth(sheetAppointments, "C", lastCol, 20)
	return nil
}

// writeSummary counts appointments per day and status.
func writeSummary(f *excelize.File, report *Report) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	statuses := []string{
		models.StatusScheduled, models.StatusCompleted,
		models.StatusCancelledByClient, models.StatusCancelledByAdmin,
	}
	header := []interface{}{"Data"}
	for _, s := range statuses {
		header = append(header, s)
	}
	header = append(header, "Total")
	if err := f.SetSheetRow(sheetSummary, "A1", &header); err != nil {
		return err
	}

	counts := make(map[string]map[string]int)
	for _, a := range report.Appointments {
		if counts[a.Date] == nil {
			counts[a.Date] = make(map[string]int)
		}
		counts[a.Date][a.Status]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)

	for i, day := range days {
		row := []interface{}{day}
		total := 0
		for _, s := range statuses {
			row = append(row, counts[day][s])
			total += counts[day][s]
		}
		row = append(row, total)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
