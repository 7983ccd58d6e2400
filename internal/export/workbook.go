package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"consultdesk/internal/availability"
	"consultdesk/internal/config"
	"consultdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

var headers = []string{"Date", "Weekday", "Status", "Slots"}

// Exporter writes the bookable calendar as an xlsx workbook, one sheet per
// month starting with the current one.
type Exporter struct {
	engine *availability.Engine
	cfg    config.ExportConfig
	logger *zerolog.Logger
}

func NewExporter(engine *availability.Engine, cfg config.ExportConfig, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.Months <= 0 {
		cfg.Months = 3
	}
	return &Exporter{engine: engine, cfg: cfg, logger: logger}
}

// Months clamps a requested month count to 1..12, falling back to the
// configured default.
func (e *Exporter) Months(requested int) int {
	switch {
	case requested <= 0:
		return e.cfg.Months
	case requested > 12:
		return 12
	default:
		return requested
	}
}

// Build renders the workbook. The caller closes the file.
func (e *Exporter) Build(months int) (*excelize.File, error) {
	months = e.Months(months)
	f := excelize.NewFile()

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	cursor := e.engine.CurrentCursor()
	for i := 0; i < months; i++ {
		grid := e.engine.RenderMonth(cursor.Shift(i))
		if err := writeMonth(f, grid.Title, e.Days(grid), styles); err != nil {
			f.Close()
			return nil, err
		}
	}

	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(0)
	return f, nil
}

// Write streams the workbook to w.
func (e *Exporter) Write(w io.Writer, months int) error {
	f, err := e.Build(months)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// Save stores the workbook under the export path and returns the file path.
func (e *Exporter) Save(months int) (string, error) {
	if err := os.MkdirAll(e.cfg.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Build(months)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(e.cfg.Path, e.FileName())
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", path).Msg("availability export created")
	return path, nil
}

// FileName names the workbook after today's date.
func (e *Exporter) FileName() string {
	return fmt.Sprintf("availability_%s.xlsx", e.engine.Today().Format(models.DateLayout))
}

type cellStyles struct {
	header      int
	available   int
	unavailable int
	today       int
}

func newStyles(f *excelize.File) (cellStyles, error) {
	var s cellStyles
	var err error

	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, fmt.Errorf("error creating style: %w", err)
	}
	if s.available, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
	}); err != nil {
		return s, fmt.Errorf("error creating style: %w", err)
	}
	if s.unavailable, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#808080"},
	}); err != nil {
		return s, fmt.Errorf("error creating style: %w", err)
	}
	if s.today, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFEB9C"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return s, fmt.Errorf("error creating style: %w", err)
	}
	return s, nil
}

// Days lists the grid with a status per day. Slots are attached only to
// bookable days.
func (e *Exporter) Days(grid models.MonthGrid) []models.Availability {
	slots := e.engine.Slots()
	out := make([]models.Availability, 0, len(grid.Days))
	for _, d := range grid.Days {
		a := models.Availability{Date: d.Date, Status: dayStatus(d)}
		if !d.Disabled {
			a.Slots = slots
		}
		out = append(out, a)
	}
	return out
}

func writeMonth(f *excelize.File, sheet string, days []models.Availability, styles cellStyles) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	_ = f.SetCellStyle(sheet, "A1", "D1", styles.header)

	for i, day := range days {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), day.Date.Format(models.DateLayout))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), day.Date.Weekday().String())
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), day.Status)
		if len(day.Slots) > 0 {
			_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), slotLabels(day.Slots))
		}
		_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), styles.forStatus(day.Status))
	}

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "C", 14)
	_ = f.SetColWidth(sheet, "D", "D", 60)
	return nil
}

// dayStatus marks today as "today" even when the notice window has already
// closed it for booking.
func dayStatus(day models.DayCell) string {
	switch {
	case day.Today:
		return models.DayStatusToday
	case day.Disabled:
		return models.DayStatusUnavailable
	default:
		return models.DayStatusAvailable
	}
}

func (s cellStyles) forStatus(status string) int {
	switch status {
	case models.DayStatusToday:
		return s.today
	case models.DayStatusUnavailable:
		return s.unavailable
	default:
		return s.available
	}
}

func slotLabels(slots []models.TimeSlot) string {
	labels := make([]string, 0, len(slots))
	for _, s := range slots {
		labels = append(labels, s.Label)
	}
	return strings.Join(labels, ", ")
}
