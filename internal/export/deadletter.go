package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"uptend/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Dead letters"

// DeadLetterReport writes the given evicted actions to an xlsx file under
// dir and returns the file path. Support uses these reports to see what a
// device silently dropped.
func DeadLetterReport(dir string, actions []models.QueuedAction) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Method", "Path", "Created", "Retries", "Body"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetName, "A1", "F1", style)

	for row, action := range actions {
		created := time.UnixMilli(action.CreatedAt).UTC().Format(time.RFC3339)
		values := []interface{}{
			action.ID,
			action.Method,
			action.Path,
			created,
			action.Retries,
			string(action.Body),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	_ = f.SetColWidth(sheetName, "B", "E", 14)
	_ = f.SetColWidth(sheetName, "F", "F", 40)
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("deadletter_%s.xlsx", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	return path, nil
}
