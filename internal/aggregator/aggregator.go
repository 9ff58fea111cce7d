package aggregator

import (
	"meeting-insights-go/internal/textkey"
	"meeting-insights-go/internal/types"
)

// Reduced is the cross-chunk merge before the final summary is written.
type Reduced struct {
	Summaries   []string           `json:"summaries"`
	KeyTopics   []string           `json:"key_topics"`
	Decisions   []string           `json:"decisions"`
	ActionItems []types.ActionItem `json:"action_items"`
	Chunks      int                `json:"chunks"`
}

// Aggregate merges successful chunk extractions in chunk order. Topics and decisions are
// de-duplicated case-insensitively keeping the first occurrence; action items are kept as is.
// Failed chunks are skipped.
func Aggregate(chunks []types.ChunkExtraction) Reduced {
	var out Reduced
	topics := newDedup()
	decisions := newDedup()
	for _, c := range chunks {
		if c.Failed() {
			continue
		}
		out.Chunks++
		if c.Result.Summary != "" {
			out.Summaries = append(out.Summaries, c.Result.Summary)
		}
		out.KeyTopics = topics.add(out.KeyTopics, c.Result.KeyTopics)
		out.Decisions = decisions.add(out.Decisions, c.Result.Decisions)
		out.ActionItems = append(out.ActionItems, c.Result.ActionItems...)
	}
	return out
}

type dedup map[string]bool

func newDedup() dedup { return dedup{} }

func (d dedup) add(dst, items []string) []string {
	for _, it := range items {
		k := textkey.Of(it)
		if k == "" || d[k] {
			continue
		}
		d[k] = true
		dst = append(dst, it)
	}
	return dst
}
