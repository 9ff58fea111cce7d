package extractor

import (
	"errors"
	"regexp"
	"strings"

	"meeting-insights-go/internal/actionable"
	"meeting-insights-go/internal/types"
)

var ErrUnparseable = errors.New("unparseable response")

var (
	reListItem = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)]|\(\d+\))\s+(.+)$`)
	reNone     = regexp.MustCompile(`(?i)^(?:none|n/a|nothing|no (?:key )?(?:topics|decisions|action items)\b.*|there (?:were|are) no\b.*)$`)
)

// stripFences removes markdown code fences models like to wrap answers in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```markdown", "```text", "```", "`"} {
		s = strings.ReplaceAll(s, r, "")
	}
	return strings.TrimSpace(s)
}

// isNone reports an explicit "nothing found" answer.
func isNone(s string) bool {
	s = strings.TrimSpace(s)
	first, _, _ := strings.Cut(s, "\n")
	first = strings.Trim(strings.TrimSpace(first), ".!*_")
	return reNone.MatchString(first)
}

// parseList reads a bulleted or numbered list. Header and commentary lines are ignored,
// but at least one list line (or an explicit None) is required.
func parseList(raw string, limit int) ([]string, error) {
	s := stripFences(raw)
	if isNone(s) {
		return []string{}, nil
	}
	var items []string
	for _, line := range strings.Split(s, "\n") {
		m := reListItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		it := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[1]), "*_"))
		if it == "" {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, ErrUnparseable
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func parseActions(raw string) ([]types.ActionItem, error) {
	s := stripFences(raw)
	if isNone(s) {
		return []types.ActionItem{}, nil
	}
	items, err := actionable.Parse(s)
	if err != nil {
		return nil, ErrUnparseable
	}
	if len(items) > maxActions {
		items = items[:maxActions]
	}
	return items, nil
}

func parseSummary(raw string) (string, error) {
	s := stripFences(raw)
	s = strings.TrimSpace(strings.TrimPrefix(s, "Executive summary:"))
	if s == "" {
		return "", ErrUnparseable
	}
	return s, nil
}

// apply parses raw for task into res.
func apply(task Task, raw string, res *types.ExtractionResult) error {
	var err error
	switch task {
	case TaskSummary:
		res.Summary, err = parseSummary(raw)
	case TaskTopics:
		res.KeyTopics, err = parseList(raw, maxTopics)
	case TaskDecisions:
		res.Decisions, err = parseList(raw, maxDecisions)
	case TaskActions:
		res.ActionItems, err = parseActions(raw)
	}
	return err
}

// fallback stores the whole raw response as a single best-effort item.
func fallback(task Task, raw string, res *types.ExtractionResult) {
	text := strings.Join(strings.Fields(stripFences(raw)), " ")
	switch task {
	case TaskSummary:
		res.Summary = text
	case TaskTopics:
		res.KeyTopics = nonEmpty(text)
	case TaskDecisions:
		res.Decisions = nonEmpty(text)
	case TaskActions:
		if text != "" {
			res.ActionItems = []types.ActionItem{actionable.FromRaw(text)}
		} else {
			res.ActionItems = []types.ActionItem{}
		}
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return []string{}
	}
	return []string{s}
}
