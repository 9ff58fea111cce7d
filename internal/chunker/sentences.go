package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// abbreviations that end in a period without ending the sentence, keyed by ISO 639-1 code.
var abbreviations = map[string][]string{
	"en": {"mr.", "mrs.", "ms.", "dr.", "prof.", "sr.", "jr.", "st.", "vs.", "e.g.", "i.e.", "approx.", "inc.", "ltd.", "co.", "jan.", "feb.", "aug.", "sept.", "oct.", "nov.", "dec."},
	"de": {"dr.", "hr.", "fr.", "prof.", "z.b.", "bzw.", "usw.", "ca.", "d.h.", "nr.", "evtl.", "ggf.", "inkl."},
	"fr": {"m.", "mme.", "mlle.", "dr.", "p.ex.", "env.", "cf.", "n°."},
	"es": {"sr.", "sra.", "srta.", "dr.", "dra.", "ud.", "uds.", "pág.", "aprox."},
	"it": {"sig.", "dott.", "prof.", "ecc.", "es."},
	"nl": {"dhr.", "mevr.", "dr.", "bijv.", "enz.", "ca."},
	"pt": {"sr.", "sra.", "dr.", "dra.", "pág.", "aprox."},
}

// sentenceStarters are words that, after a lone capital and a period, show the
// period ended a sentence ("option A. Then we left") rather than an initial.
var sentenceStarters = map[string]bool{
	"after": true, "also": true, "and": true, "are": true, "but": true, "can": true,
	"do": true, "does": true, "he": true, "how": true, "i": true, "if": true, "is": true,
	"it": true, "let's": true, "next": true, "now": true, "ok": true, "okay": true, "she": true,
	"so": true, "that": true, "the": true, "then": true, "there": true, "they": true, "this": true,
	"we": true, "what": true, "when": true, "why": true, "will": true, "yes": true, "no": true,
	"you": true,
}

func abbreviationsFor(language string) map[string]bool {
	lang := strings.ToLower(language)
	if len(lang) > 2 {
		lang = lang[:2]
	}
	list, ok := abbreviations[lang]
	if !ok {
		list = abbreviations["en"]
	}
	set := make(map[string]bool, len(list))
	for _, a := range list {
		set[a] = true
	}
	return set
}

// SplitSentences splits text on Unicode (UAX #29) sentence boundaries, then re-joins
// pieces that only ended on a known abbreviation or on an initial followed by a name.
func SplitSentences(text, language string) []string {
	abbr := abbreviationsFor(language)

	var raw []string
	state := -1
	rest := text
	for len(rest) > 0 {
		var s string
		s, rest, state = uniseg.FirstSentenceInString(rest, state)
		if s = strings.TrimSpace(s); s != "" {
			raw = append(raw, s)
		}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if n := len(out); n > 0 && joinsNext(out[n-1], s, abbr) {
			out[n-1] += " " + s
			continue
		}
		out = append(out, s)
	}
	return out
}

func joinsNext(sentence, next string, abbr map[string]bool) bool {
	fields := strings.Fields(sentence)
	if len(fields) == 0 {
		return false
	}
	last := fields[len(fields)-1]
	if abbr[strings.ToLower(last)] {
		return true
	}
	return isInitial(last) && startsWithName(next)
}

// isInitial reports whether tok is a single capital letter and a period, like "J.".
func isInitial(tok string) bool {
	r, size := utf8.DecodeRuneInString(tok)
	return size > 0 && unicode.IsUpper(r) && tok[size:] == "."
}

func startsWithName(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	word := fields[0]
	r, _ := utf8.DecodeRuneInString(word)
	if !unicode.IsUpper(r) {
		return false
	}
	word = strings.TrimRightFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && r != '\'' })
	return !sentenceStarters[strings.ToLower(word)]
}
