package dataset

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeSheet(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "manifest.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadManifest(t *testing.T) {
	project := uuid.New()
	path := writeSheet(t, [][]any{
		{"Interview Title", "Recording URL", "Project ID", "Notes"},
		{"Finance lead", "https://media.example.com/a.mp3", project.String(), "focus on invoicing"},
		{"", "HTTPS://media.example.com/b.mp3", "", ""},
		{"Broken", "ftp://media.example.com/c.mp3", "", ""},
		{"Bad project", "https://media.example.com/d.mp3", "not-a-uuid", ""},
		{"", "", "", ""},
	})

	rows, skipped, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "Finance lead", rows[0].Title)
	assert.Equal(t, project, rows[0].ProjectID)
	assert.Equal(t, uuid.Nil, rows[0].AccountID)
	assert.Equal(t, "focus on invoicing", rows[0].Instructions)

	assert.Equal(t, "Interview row 3", rows[1].Title)
	assert.Equal(t, uuid.Nil, rows[1].ProjectID)

	require.Len(t, skipped, 2)
	assert.Equal(t, 4, skipped[0].Row)
	assert.Equal(t, 5, skipped[1].Row)
	assert.Contains(t, skipped[1].Reason, "project id")
}

func TestLoadManifestRequiresMediaColumn(t *testing.T) {
	path := writeSheet(t, [][]any{
		{"Title", "Owner"},
		{"Finance lead", "dana"},
	})
	_, _, err := LoadManifest(path)
	require.Error(t, err)
}

func TestDetectColumns(t *testing.T) {
	c := detectColumns([]string{"Account", "Project", "Audio Link", "Name", "Focus"})
	assert.Equal(t, columns{account: 0, project: 1, media: 2, title: 3, instructions: 4}, c)
}
