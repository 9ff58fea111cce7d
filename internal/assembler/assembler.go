package assembler

import (
	"fmt"
	"strings"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/textkey"
	"meeting-insights-go/internal/types"
)

// OrderingError means the assembled segments are not sorted by start time.
// It points at an upstream timing bug and is never repaired.
type OrderingError struct {
	Position int
	Prev     types.Segment
	Next     types.Segment
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("transcript ordering violated at segment %d: start %.3fs follows %.3fs", e.Position, e.Next.Start, e.Prev.Start)
}

type Stats struct {
	Input        int
	Deduplicated int
	Trimmed      int
	Merged       int
	Output       int
}

type Assembler struct {
	cfg config.Assembler
	log *logger.Logger
}

func New(cfg config.Assembler, log *logger.Logger) *Assembler {
	return &Assembler{cfg: cfg, log: log.WithComponent("assembler")}
}

// Assemble turns per-chunk engine output (chunk-relative times, in chunk order) into one
// globally timed transcript with boundary duplicates removed and short segments merged.
func (a *Assembler) Assemble(chunks []types.ChunkTranscript) (types.Transcript, Stats, error) {
	var st Stats
	per := make([][]types.Segment, len(chunks))
	for i, ct := range chunks {
		per[i] = offset(ct)
		st.Input += len(per[i])
	}

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Chunk, chunks[i].Chunk
		// a dropped chunk leaves a gap; nothing overlaps across it
		if cur.Index != prev.Index+1 {
			continue
		}
		var dedup, trimmed int
		per[i-1], dedup, trimmed = a.dedupBoundary(prev, per[i-1], cur, per[i])
		st.Deduplicated += dedup
		st.Trimmed += trimmed
	}

	var all []types.Segment
	for _, segs := range per {
		all = append(all, segs...)
	}
	if err := checkOrder(all); err != nil {
		return types.Transcript{Segments: all}, st, err
	}

	merged := mergeShort(all, a.cfg.MinSegment)
	st.Merged = len(all) - len(merged)
	st.Output = len(merged)
	if err := checkOrder(merged); err != nil {
		return types.Transcript{Segments: merged}, st, err
	}

	a.log.WithField("input", st.Input).
		WithField("deduplicated", st.Deduplicated).
		WithField("trimmed", st.Trimmed).
		WithField("merged", st.Merged).
		WithField("output", st.Output).
		Info("transcript assembled")

	return types.Transcript{Segments: merged, Language: dominantLanguage(chunks)}, st, nil
}

func offset(ct types.ChunkTranscript) []types.Segment {
	out := make([]types.Segment, 0, len(ct.Segments))
	for _, s := range ct.Segments {
		s.Start += ct.Chunk.StartOffset
		s.End += ct.Chunk.StartOffset
		if s.Language == "" {
			s.Language = ct.Language
		}
		out = append(out, s)
	}
	return out
}

// dedupBoundary drops segments of the earlier chunk that repeat, within the overlap window,
// text the later chunk also produced. With TrimOverlap it also drops earlier-chunk window
// segments starting at or after the later chunk's first segment.
func (a *Assembler) dedupBoundary(prev types.AudioChunk, prevSegs []types.Segment, cur types.AudioChunk, curSegs []types.Segment) ([]types.Segment, int, int) {
	if len(curSegs) == 0 || len(prevSegs) == 0 {
		return prevSegs, 0, 0
	}
	prevEnd := prev.End()
	earlyFrom := prevEnd - a.cfg.Overlap
	lateTo := cur.StartOffset + a.cfg.Overlap

	later := map[string]bool{}
	for _, s := range curSegs {
		if s.End >= cur.StartOffset && s.Start <= lateTo {
			later[textkey.Of(s.Text)] = true
		}
	}
	firstLater := curSegs[0].Start

	out := make([]types.Segment, 0, len(prevSegs))
	var dedup, trimmed int
	for _, s := range prevSegs {
		inWindow := s.End >= earlyFrom && s.Start <= prevEnd
		switch {
		case inWindow && later[textkey.Of(s.Text)]:
			dedup++
			continue
		case inWindow && a.cfg.TrimOverlap && s.Start >= firstLater:
			trimmed++
			continue
		}
		out = append(out, s)
	}
	return out, dedup, trimmed
}

func mergeShort(segs []types.Segment, minDur float64) []types.Segment {
	out := make([]types.Segment, 0, len(segs))
	for _, s := range segs {
		if n := len(out); n > 0 && s.End-out[n-1].Start < minDur {
			last := &out[n-1]
			last.Text = joinText(last.Text, s.Text)
			last.End = max(last.End, s.End)
			continue
		}
		out = append(out, s)
	}
	return out
}

func joinText(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func checkOrder(segs []types.Segment) error {
	for i := 1; i < len(segs); i++ {
		if segs[i].Start < segs[i-1].Start {
			return &OrderingError{Position: i, Prev: segs[i-1], Next: segs[i]}
		}
	}
	return nil
}

func dominantLanguage(chunks []types.ChunkTranscript) string {
	counts := map[string]int{}
	best := ""
	for _, ct := range chunks {
		if ct.Language == "" {
			continue
		}
		counts[ct.Language]++
		if best == "" || counts[ct.Language] > counts[best] {
			best = ct.Language
		}
	}
	return best
}
