package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/logger"
)

var ErrNoEntries = errors.New("manifest has no usable rows")

// Entry is one recording listed in a batch manifest. Row is the 1-based sheet row.
type Entry struct {
	Row   int    `json:"row"`
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
}

// Load reads the first sheet of an .xlsx manifest. The audio path and title columns are
// found by header heuristics; relative paths are resolved against the manifest's folder.
// Rows whose path does not look like a supported audio file are skipped.
func Load(path string, log *logger.Logger) ([]Entry, error) {
	log = log.WithComponent("dataset")
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("%w: no data rows", ErrNoEntries)
	}

	header := rows[0]
	pathIdx := -1
	titleIdx := -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "path") || strings.Contains(l, "file") || strings.Contains(l, "record"):
			if pathIdx == -1 {
				pathIdx = i
			}
		case strings.Contains(l, "title") || strings.Contains(l, "name") || strings.Contains(l, "meeting"):
			if titleIdx == -1 {
				titleIdx = i
			}
		}
	}
	// fallback: first column holds the path
	if pathIdx == -1 {
		pathIdx = 0
		if titleIdx == 0 {
			titleIdx = -1
		}
	}
	log.WithField("path_col", pathIdx).WithField("title_col", titleIdx).Debug("detected manifest columns")

	base := filepath.Dir(path)
	var out []Entry
	for i, r := range rows {
		if i == 0 {
			continue
		}
		e := Entry{Row: i + 1}
		if pathIdx < len(r) {
			e.Path = strings.TrimSpace(r[pathIdx])
		}
		if titleIdx >= 0 && titleIdx < len(r) {
			e.Title = strings.TrimSpace(r[titleIdx])
		}
		if !audio.IsSupported(e.Path) {
			if e.Path != "" {
				log.WithField("row", e.Row).WithField("value", e.Path).Warn("skipping row without a supported audio path")
			}
			continue
		}
		if !filepath.IsAbs(e.Path) {
			e.Path = filepath.Join(base, e.Path)
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrNoEntries
	}
	log.WithField("entries", len(out)).Info("manifest loaded")
	return out, nil
}
