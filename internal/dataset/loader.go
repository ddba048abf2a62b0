// Package dataset reads recording manifests for bulk interview intake.
package dataset

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ManifestRow is one recording to import. Empty ids fall back to the
// defaults passed by the caller.
type ManifestRow struct {
	Row          int
	Title        string
	MediaURL     string
	AccountID    uuid.UUID
	ProjectID    uuid.UUID
	Instructions string
}

// Skipped explains why a sheet row was not imported.
type Skipped struct {
	Row    int
	Reason string
}

type columns struct {
	media, title, account, project, instructions int
}

// detectColumns finds columns by header heuristics.
func detectColumns(header []string) columns {
	c := columns{media: -1, title: -1, account: -1, project: -1, instructions: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "account"):
			if c.account == -1 {
				c.account = i
			}
		case strings.Contains(l, "project"):
			if c.project == -1 {
				c.project = i
			}
		case strings.Contains(l, "audio") || strings.Contains(l, "media") || strings.Contains(l, "record") || strings.Contains(l, "url"):
			if c.media == -1 {
				c.media = i
			}
		case strings.Contains(l, "title") || strings.Contains(l, "name") || strings.Contains(l, "interview"):
			if c.title == -1 {
				c.title = i
			}
		case strings.Contains(l, "instruction") || strings.Contains(l, "note") || strings.Contains(l, "focus"):
			if c.instructions == -1 {
				c.instructions = i
			}
		}
	}
	return c
}

// LoadManifest reads the first sheet of an xlsx manifest. Rows without an
// http(s) media URL or with malformed ids are skipped and reported.
func LoadManifest(path string) ([]ManifestRow, []Skipped, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.media == -1 {
		return nil, nil, fmt.Errorf("no media url column in header %q", rows[0])
	}

	var out []ManifestRow
	var skipped []Skipped
	for i, r := range rows[1:] {
		rowNum := i + 2
		cell := func(idx int) string {
			if idx < 0 || idx >= len(r) {
				return ""
			}
			return strings.TrimSpace(r[idx])
		}

		rec := ManifestRow{
			Row:          rowNum,
			Title:        cell(cols.title),
			MediaURL:     cell(cols.media),
			Instructions: cell(cols.instructions),
		}
		lower := strings.ToLower(rec.MediaURL)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			if rec.MediaURL != "" || rec.Title != "" {
				skipped = append(skipped, Skipped{Row: rowNum, Reason: "media url is not http(s)"})
			}
			continue
		}
		if rec.AccountID, err = parseID(cell(cols.account)); err != nil {
			skipped = append(skipped, Skipped{Row: rowNum, Reason: "account id: " + err.Error()})
			continue
		}
		if rec.ProjectID, err = parseID(cell(cols.project)); err != nil {
			skipped = append(skipped, Skipped{Row: rowNum, Reason: "project id: " + err.Error()})
			continue
		}
		if rec.Title == "" {
			rec.Title = fmt.Sprintf("Interview row %d", rowNum)
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
