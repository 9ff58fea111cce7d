package normalizer

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"meeting-insights-go/internal/types"
)

var reStamp = regexp.MustCompile(`^\[(\d+):([0-5]\d):([0-5]\d)\]\s?(.*)$`)

// RenderPlain joins segment texts with single spaces.
func RenderPlain(tr types.Transcript) string {
	parts := make([]string, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// RenderTimestamped writes one "[HH:MM:SS] text" line per segment.
func RenderTimestamped(tr types.Transcript) string {
	var b strings.Builder
	for _, s := range tr.Segments {
		fmt.Fprintf(&b, "[%s] %s\n", FormatTimestamp(s.Start), strings.TrimSpace(s.Text))
	}
	return b.String()
}

// FormatTimestamp renders whole seconds as HH:MM:SS; fractions are truncated.
func FormatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int64(sec)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// ParseTimestamped reads RenderTimestamped output back. Only start times survive the
// format, so End is set to the next segment's start (the last keeps its start).
func ParseTimestamped(s string) ([]types.Segment, error) {
	var segs []types.Segment
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		m := reStamp.FindStringSubmatch(raw)
		if m == nil {
			return nil, fmt.Errorf("line %d: missing [HH:MM:SS] prefix", line)
		}
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		se, _ := strconv.Atoi(m[3])
		start := float64(h*3600 + mi*60 + se)
		segs = append(segs, types.Segment{Text: m[4], Start: start, End: start})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(segs); i++ {
		segs[i].End = segs[i+1].Start
	}
	return segs, nil
}
