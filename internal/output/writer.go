package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/normalizer"
	"meeting-insights-go/internal/types"
)

const stampLayout = "20060102_150405"

// Stamp is the timestamp used in output file names.
func Stamp(t time.Time) string {
	return t.Format(stampLayout)
}

// RunStem names one run's files. The run id suffix keeps runs started within
// the same second from overwriting each other.
func RunStem(t time.Time, runID string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	if runID == "" {
		return Stamp(t)
	}
	return Stamp(t) + "_" + runID
}

// Files lists what WriteSummary produced. Empty fields were not written.
type Files struct {
	JSON string `json:"summary_json,omitempty"`
	Text string `json:"summary_txt,omitempty"`
	XLSX string `json:"summary_xlsx,omitempty"`
}

type Writer struct {
	Dir            string
	SaveTranscript bool
	XLSX           bool
	log            *logger.Logger
}

func New(cfg config.Output, log *logger.Logger) *Writer {
	return &Writer{
		Dir:            cfg.Dir,
		SaveTranscript: cfg.SaveTranscript,
		XLSX:           cfg.XLSX,
		log:            log.WithComponent("output"),
	}
}

// WriteTranscript saves the timestamped transcript as transcript_<stamp>.txt. It returns
// an empty path when transcript saving is switched off.
func (w *Writer) WriteTranscript(stamp string, tr types.Transcript) (string, error) {
	if !w.SaveTranscript {
		return "", nil
	}
	path := filepath.Join(w.Dir, "transcript_"+stamp+".txt")
	if err := w.write(path, []byte(normalizer.RenderTimestamped(tr))); err != nil {
		return "", err
	}
	w.log.WithField("path", path).WithField("segments", len(tr.Segments)).Info("transcript saved")
	return path, nil
}

// WriteSummary saves the record as JSON and as a readable text report, plus the
// spreadsheet report when enabled.
func (w *Writer) WriteSummary(stamp string, rec types.Record) (Files, error) {
	var files Files

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return files, fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(w.Dir, "summary_"+stamp+".json")
	if err := w.write(path, append(b, '\n')); err != nil {
		return files, err
	}
	files.JSON = path

	path = filepath.Join(w.Dir, "summary_"+stamp+".txt")
	if err := w.write(path, []byte(FormatText(rec))); err != nil {
		return files, err
	}
	files.Text = path

	if w.XLSX {
		path = filepath.Join(w.Dir, "summary_"+stamp+".xlsx")
		if err := w.writeXLSX(path, rec); err != nil {
			return files, err
		}
		files.XLSX = path
	}

	w.log.WithField("json", files.JSON).WithField("txt", files.Text).WithField("xlsx", files.XLSX).Info("summary saved")
	return files, nil
}

func (w *Writer) write(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

// FormatText renders the human readable report.
func FormatText(rec types.Record) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	section := func(title string) {
		line("")
		line(lightRule)
		line(title)
		line(lightRule)
	}

	line(heavyRule)
	line("MEETING SUMMARY: %s", rec.MeetingTitle)
	line(heavyRule)
	line("")
	line("Date/Time: %s", rec.Timestamp)
	line("Duration: %.1f minutes", rec.DurationMinutes)
	if rec.Metadata.Partial {
		line("Note: partial result, some chunks could not be processed")
	}

	section("EXECUTIVE SUMMARY")
	if rec.Summary == "" {
		line("No summary available")
	} else {
		line("%s", rec.Summary)
	}

	section("KEY TOPICS")
	numbered(line, rec.KeyTopics, "No key topics identified.")

	section("DECISIONS")
	numbered(line, rec.Decisions, "No decisions identified.")

	section("ACTION ITEMS")
	if len(rec.ActionItems) == 0 {
		line("No action items identified.")
	}
	for i, it := range rec.ActionItems {
		line("%d. %s", i+1, it.Task)
		line("   Owner: %s", it.Owner)
		line("   Deadline: %s", it.Deadline)
		line("")
	}

	line(heavyRule)
	return b.String()
}

func numbered(line func(string, ...any), items []string, empty string) {
	if len(items) == 0 {
		line("%s", empty)
		return
	}
	for i, it := range items {
		line("%d. %s", i+1, it)
	}
}
