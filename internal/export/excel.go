package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agendum/internal/domain"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// AgendaExporter writes a professional's appointments for a period into an
// Excel workbook, one row per appointment.
type AgendaExporter struct {
	store  domain.Store
	path   string
	logger *zerolog.Logger
}

func NewAgendaExporter(store domain.Store, path string, logger *zerolog.Logger) *AgendaExporter {
	return &AgendaExporter{
		store:  store,
		path:   path,
		logger: logger,
	}
}

var headerCells = []string{"ID", "Client", "Phone", "Service", "Start", "End", "Status"}

// Export builds the workbook and returns the saved file path.
func (e *AgendaExporter) Export(ctx context.Context, professionalID string, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	appts, err := e.store.ListAppointments(ctx, professionalID, from, to)
	if err != nil {
		return "", fmt.Errorf("error listing appointments: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Agenda"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Agenda %s: %s - %s",
		professionalID, from.Format("02.01.2006"), to.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "G1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headerCells {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 3
	for _, appt := range appts {
		values := []interface{}{
			appt.ID,
			appt.ClientName,
			appt.ClientPhone,
			appt.Service,
			appt.Start.Format("2006-01-02 15:04"),
			appt.End.Format("2006-01-02 15:04"),
			string(appt.Status),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "G", 20)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("agenda_%s_%s_to_%s.xlsx",
		professionalID,
		from.Format("2006-01-02"),
		to.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", len(appts)).Msg("agenda exported")
	return filePath, nil
}
