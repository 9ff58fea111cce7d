package normalizer

import (
	"regexp"
	"sort"
	"strings"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/types"
)

var (
	reSpace = regexp.MustCompile(`\s+`)

	// non-speech markers emitted by whisper-family engines
	reAnnotation        = regexp.MustCompile(`(?i)[\[(]\s*(?:music|noise|background noise|laughter|laughs|applause|silence|inaudible|crosstalk|blank_audio|cough|coughs|sigh|sighs|static|beep)\s*[\])]`)
	reSpaceBeforePunct  = regexp.MustCompile(`\s+([.,!?;:])`)
	reNoSpaceAfterStop  = regexp.MustCompile(`([.!?])(\p{Lu})`)
	reNoSpaceAfterComma = regexp.MustCompile(`([,;:])(\pL)`)
	reWeakBeforeStop    = regexp.MustCompile(`[,;:]+([.!?])`)
	reStopRun           = regexp.MustCompile(`([.!?])(?:\s*[.,;:])+`)
	reLeadingPunct      = regexp.MustCompile(`^[\s.,;:!?]+`)
)

// maxPasses bounds the fixed-point loop; real input settles in two.
const maxPasses = 6

// Normalizer cleans transcript text. It holds only compiled patterns and is safe for concurrent use.
type Normalizer struct {
	fillers *regexp.Regexp
}

func New(cfg config.Normalizer) *Normalizer {
	return &Normalizer{fillers: fillerPattern(cfg.Fillers)}
}

// fillerPattern matches any filler as a whole word or phrase plus a trailing comma.
// Longer phrases come first so "you know" wins over "you". Word edges are
// checked against Unicode letters and digits since \b only knows ASCII; the
// edge characters are captured and put back by stripFillers.
func fillerPattern(words []string) *regexp.Regexp {
	var alts []string
	for _, w := range words {
		parts := strings.Fields(strings.ToLower(w))
		if len(parts) == 0 {
			continue
		}
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		alts = append(alts, strings.Join(parts, `\s+`))
	}
	if len(alts) == 0 {
		return nil
	}
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	return regexp.MustCompile(`(?i)(^|[^\pL\pN_])(?:` + strings.Join(alts, "|") + `),?([^\pL\pN_]|$)`)
}

// NormalizeTranscript renders tr as plain text and normalizes it. tr is not modified.
func (n *Normalizer) NormalizeTranscript(tr types.Transcript) string {
	return n.Normalize(RenderPlain(tr))
}

// Normalize applies the cleanup steps until the text stops changing, so
// Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := n.pass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func (n *Normalizer) pass(s string) string {
	s = collapseSpace(s)
	s = collapseSpace(reAnnotation.ReplaceAllString(s, " "))
	s = collapseRepeats(s)
	if n.fillers != nil {
		s = collapseSpace(stripFillers(n.fillers, s))
	}
	return punctuation(s)
}

// stripFillers repeats the replacement because adjacent fillers share the
// separator between them and a single pass only removes every other one.
func stripFillers(re *regexp.Regexp, s string) string {
	for i := 0; i < maxPasses; i++ {
		next := re.ReplaceAllString(s, "${1} ${2}")
		if next == s {
			break
		}
		s = next
	}
	return s
}

func collapseSpace(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// collapseRepeats turns "the the plan" into "the plan". The first occurrence is
// kept with the trailing punctuation of the last. A token ending in punctuation
// closes a clause, so "Yes. Yes." is left alone.
func collapseRepeats(s string) string {
	toks := strings.Fields(s)
	if len(toks) < 2 {
		return s
	}
	out := toks[:1]
	for _, t := range toks[1:] {
		prev := out[len(out)-1]
		if !endsInPunct(prev) && strings.EqualFold(prev, trimPunct(t)) {
			out[len(out)-1] = prev + t[len(trimPunct(t)):]
			continue
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

func endsInPunct(t string) bool {
	return t != trimPunct(t)
}

func trimPunct(t string) string {
	return strings.TrimRight(t, ".,!?;:")
}

func punctuation(s string) string {
	s = reSpaceBeforePunct.ReplaceAllString(s, "$1")
	s = reWeakBeforeStop.ReplaceAllString(s, "$1")
	s = reStopRun.ReplaceAllString(s, "$1")
	s = reNoSpaceAfterStop.ReplaceAllString(s, "$1 $2")
	s = reNoSpaceAfterComma.ReplaceAllString(s, "$1 $2")
	s = reLeadingPunct.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
