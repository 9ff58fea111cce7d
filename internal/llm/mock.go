package llm

import (
	"context"
	"strings"
)

// Mock returns canned answers keyed on the first line of the prompt, which names the
// section being asked for. Offline demos only.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Ping(ctx context.Context) error { return nil }

func (m *Mock) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, _, _ := strings.Cut(strings.ToUpper(prompt), "\n")
	switch {
	case strings.Contains(p, "ACTION ITEMS"):
		return "Task: Finalize the pricing page\nOwner: Priya\nDeadline: Friday\n---\nTask: Share release notes with marketing\nOwner: TBD\nDeadline: TBD", nil
	case strings.Contains(p, "KEY TOPICS"):
		return "- Beta launch timeline\n- Pricing page\n- Legacy export feature", nil
	case strings.Contains(p, "DECISIONS"):
		return "- Launch the beta in March\n- Drop the legacy export feature", nil
	}
	return "The team reviewed the beta launch plan, agreed on a March release and dropped the legacy export feature. Pricing and release notes are the open follow-ups.", nil
}
