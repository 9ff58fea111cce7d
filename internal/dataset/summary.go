package dataset

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Outcome is the result of one manifest row after a batch run.
type Outcome struct {
	Entry
	RunID       string `json:"run_id,omitempty"`
	Status      string `json:"status"`
	Partial     bool   `json:"partial"`
	SummaryFile string `json:"summary_file,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// BatchSummary counts outcomes of a batch run.
type BatchSummary struct {
	Total   int `json:"total"`
	OK      int `json:"ok"`
	Partial int `json:"partial"`
	Failed  int `json:"failed"`
}

func Summarize(outcomes []Outcome) BatchSummary {
	s := BatchSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Status != StatusOK:
			s.Failed++
		case o.Partial:
			s.Partial++
			s.OK++
		default:
			s.OK++
		}
	}
	return s
}

// WriteReport stores the outcomes as a one-sheet workbook next to the manifest.
func WriteReport(path string, outcomes []Outcome) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Batch"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	header := []any{"Row", "Path", "Title", "Status", "Partial", "Run ID", "Summary file", "Duration (ms)", "Error"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("report header: %w", err)
	}
	for i, o := range outcomes {
		row := []any{o.Row, o.Path, o.Title, o.Status, o.Partial, o.RunID, o.SummaryFile, o.DurationMs, o.Error}
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("report row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}
