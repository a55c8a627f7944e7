package export

import (
	"encoding/json"
	"testing"

	"uptend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDeadLetterReport(t *testing.T) {
	dir := t.TempDir()

	actions := []models.QueuedAction{
		models.NewQueuedAction("POST", "/api/bookings", json.RawMessage(`{"svc":"cleaning"}`)),
		models.NewQueuedAction("PATCH", "/api/bookings/7", nil),
	}

	path, err := DeadLetterReport(dir, actions)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", header)

	id, err := f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, actions[0].ID, id)

	pathCell, err := f.GetCellValue(sheetName, "C3")
	require.NoError(t, err)
	assert.Equal(t, "/api/bookings/7", pathCell)

	body, err := f.GetCellValue(sheetName, "F2")
	require.NoError(t, err)
	assert.JSONEq(t, `{"svc":"cleaning"}`, body)
}

func TestDeadLetterReportEmpty(t *testing.T) {
	dir := t.TempDir()

	path, err := DeadLetterReport(dir, nil)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
