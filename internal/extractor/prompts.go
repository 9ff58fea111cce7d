package extractor

import (
	"fmt"
	"strings"
)

// Task is one of the four extraction questions asked per chunk.
type Task int

const (
	TaskSummary Task = iota
	TaskTopics
	TaskDecisions
	TaskActions
)

var allTasks = []Task{TaskSummary, TaskTopics, TaskDecisions, TaskActions}

func (t Task) String() string {
	switch t {
	case TaskSummary:
		return "summary"
	case TaskTopics:
		return "key_topics"
	case TaskDecisions:
		return "decisions"
	case TaskActions:
		return "action_items"
	}
	return fmt.Sprintf("task(%d)", int(t))
}

// output token caps per task
var maxTokens = map[Task]int{
	TaskSummary:   512,
	TaskTopics:    256,
	TaskDecisions: 256,
	TaskActions:   512,
}

// per-chunk item caps, mirrored in the prompts
const (
	maxTopics    = 10
	maxDecisions = 5
	maxActions   = 10
)

const combineMaxTokens = 512

const summaryPrompt = `Write an executive summary of the following meeting transcript.

Keep it to about 200 words. Cover the purpose of the meeting, the main points that were discussed and the outcomes. Write in plain prose, no lists.
%s
Transcript:
%s

Executive summary:`

const topicsPrompt = `List the KEY TOPICS discussed in the following meeting transcript.

Return at most %d topics, one per line, each line starting with "- ". Keep each topic under ten words. If no topics can be identified, reply with the single word: None
%s
Transcript:
%s

Key topics:`

const decisionsPrompt = `List the DECISIONS made in the following meeting transcript.

Only include things the participants actually agreed on or decided. Return at most %d decisions, one per line, each line starting with "- ". If no decisions were made, reply with the single word: None
%s
Transcript:
%s

Decisions:`

const actionsPrompt = `Extract the ACTION ITEMS from the following meeting transcript.

For each action item write exactly three lines:
Task: <what needs to be done>
Owner: <person responsible, or TBD>
Deadline: <due date, or TBD>
Put a line containing only --- between action items. Return at most %d items. If there are no action items, reply with the single word: None
%s
Transcript:
%s

Action items:`

const combinePrompt = `Combine the following partial meeting summaries into one executive summary.

The parts are consecutive sections of the same meeting, in order. Keep it to about 200 words, remove repetition and write in plain prose.

%s

Executive summary:`

const strictNote = `
IMPORTANT: your previous answer could not be read. Reply ONLY in the exact format described above. Do not add an introduction, explanations, headings or markdown.
`

// BuildPrompt fills the template for task. strict adds the format reminder used on re-prompts.
func BuildPrompt(task Task, text string, strict bool) string {
	note := ""
	if strict {
		note = strictNote
	}
	switch task {
	case TaskTopics:
		return fmt.Sprintf(topicsPrompt, maxTopics, note, text)
	case TaskDecisions:
		return fmt.Sprintf(decisionsPrompt, maxDecisions, note, text)
	case TaskActions:
		return fmt.Sprintf(actionsPrompt, maxActions, note, text)
	}
	return fmt.Sprintf(summaryPrompt, note, text)
}

func BuildCombinePrompt(summaries []string) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = fmt.Sprintf("Part %d:\n%s", i+1, strings.TrimSpace(s))
	}
	return fmt.Sprintf(combinePrompt, strings.Join(parts, "\n\n"))
}
