package output

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
	"meeting-insights-go/internal/types"
)

// writeXLSX stores the record as a workbook with one sheet per section.
func (w *Writer) writeXLSX(path string, rec types.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	const first = "Summary"
	if err := f.SetSheetName("Sheet1", first); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	overview := [][]any{
		{"Meeting", rec.MeetingTitle},
		{"Date/Time", rec.Timestamp},
		{"Duration (min)", rec.DurationMinutes},
		{"Language", rec.Metadata.Language},
		{"Partial", rec.Metadata.Partial},
		{"Run ID", rec.Metadata.RunID},
		{"Executive summary", rec.Summary},
	}
	if err := setRows(f, first, overview); err != nil {
		return err
	}

	topics := [][]any{{"#", "Topic"}}
	for i, t := range rec.KeyTopics {
		topics = append(topics, []any{i + 1, t})
	}
	decisions := [][]any{{"#", "Decision"}}
	for i, d := range rec.Decisions {
		decisions = append(decisions, []any{i + 1, d})
	}
	actions := [][]any{{"#", "Task", "Owner", "Deadline"}}
	for i, a := range rec.ActionItems {
		actions = append(actions, []any{i + 1, a.Task, a.Owner, a.Deadline})
	}
	for _, s := range []struct {
		name string
		rows [][]any
	}{
		{"Topics", topics},
		{"Decisions", decisions},
		{"Action Items", actions},
	} {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
		if err := setRows(f, s.name, s.rows); err != nil {
			return err
		}
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx save: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell := "A" + strconv.Itoa(i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
