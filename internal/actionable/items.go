package actionable

import (
	"errors"
	"regexp"
	"strings"

	"meeting-insights-go/internal/types"
)

var ErrNoActionItems = errors.New("no action items found")

var (
	reField     = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*|\d+[.)]\s*)?\**\s*(task|action|owner|assignee|responsible|deadline|due|due date)\s*\**\s*[:：]\s*(.*)$`)
	reSeparator = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	reInline    = regexp.MustCompile(`(?i)\s*\|\s*(owner|deadline)\s*:`)
)

var unassigned = map[string]bool{
	"": true, "tbd": true, "none": true, "n/a": true, "na": true, "unknown": true,
	"unassigned": true, "not specified": true, "not mentioned": true, "-": true,
}

var noDeadline = map[string]bool{
	"": true, "tbd": true, "none": true, "n/a": true, "na": true, "unknown": true,
	"not specified": true, "not mentioned": true, "-": true,
}

// Parse reads "Task: / Owner: / Deadline:" blocks. Blocks are separated by "---" lines
// or simply start at the next Task line; a one-line "Task: x | Owner: y | Deadline: z"
// form is accepted too. Items come back normalized.
func Parse(raw string) ([]types.ActionItem, error) {
	var (
		items []types.ActionItem
		cur   *types.ActionItem
	)
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Task) != "" {
			items = append(items, Normalize(*cur))
		}
		cur = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		if reSeparator.MatchString(line) {
			flush()
			continue
		}
		line = reInline.ReplaceAllString(line, "\n$1:")
		for _, part := range strings.Split(line, "\n") {
			m := reField.FindStringSubmatch(part)
			if m == nil {
				continue
			}
			key, val := strings.ToLower(m[1]), cleanValue(m[2])
			switch key {
			case "task", "action":
				flush()
				cur = &types.ActionItem{Task: val}
			case "owner", "assignee", "responsible":
				if cur != nil {
					cur.Owner = val
				}
			default:
				if cur != nil {
					cur.Deadline = val
				}
			}
		}
	}
	flush()

	if len(items) == 0 {
		return nil, ErrNoActionItems
	}
	return items, nil
}

// Normalize fills the owner and deadline defaults.
func Normalize(it types.ActionItem) types.ActionItem {
	it.Task = cleanValue(it.Task)
	it.Owner = cleanValue(it.Owner)
	it.Deadline = cleanValue(it.Deadline)
	if unassigned[strings.ToLower(strings.Trim(it.Owner, "."))] {
		it.Owner = types.DefaultOwner
	}
	if noDeadline[strings.ToLower(strings.Trim(it.Deadline, "."))] {
		it.Deadline = types.DefaultDeadline
	}
	return it
}

// FromRaw wraps an unparseable response as one best-effort item.
func FromRaw(raw string) types.ActionItem {
	return Normalize(types.ActionItem{Task: strings.Join(strings.Fields(raw), " ")})
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`\"")
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.TrimSpace(s)
}
