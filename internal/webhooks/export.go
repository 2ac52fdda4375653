package webhooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"teesheet/internal/models"

	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Webhook log"

// ExportLog writes up to limit webhook events to an xlsx file and returns
// its path.
func (s *Service) ExportLog(ctx context.Context, limit int) (string, error) {
	if err := os.MkdirAll(s.exportPath, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	page, err := s.List(ctx, limit, 0)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	writeHeaders(f)
	writeEvents(f, page.Events)

	_ = f.SetColWidth(exportSheetName, "A", "A", 22)
	_ = f.SetColWidth(exportSheetName, "B", "B", 26)
	_ = f.SetColWidth(exportSheetName, "C", "D", 16)
	_ = f.SetColWidth(exportSheetName, "E", "E", 48)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("webhooks_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(s.exportPath, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	s.logger.Info().Str("file_path", filePath).Int("events", len(page.Events)).Msg("webhook log exported")
	return filePath, nil
}

func writeHeaders(f *excelize.File) {
	headers := []string{"Received", "Type", "Booking", "Processing error", "Payload"}
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheetName, cell, h)
		_ = f.SetCellStyle(exportSheetName, cell, cell, style)
	}
}

func writeEvents(f *excelize.File, events []models.WebhookEvent) {
	for i, ev := range events {
		row := i + 2
		booking := ""
		if ev.BookingID != nil {
			booking = fmt.Sprintf("%d", *ev.BookingID)
		}
		values := []interface{}{
			ev.ReceivedAt.Format("2006-01-02 15:04:05"),
			ev.Type,
			booking,
			ev.Error,
			string(ev.Payload),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(exportSheetName, cell, v)
		}
	}
}
