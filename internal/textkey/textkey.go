// Package textkey builds comparison keys for case-insensitive text matching.
package textkey

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Of returns s NFC-normalized, case-folded and with whitespace runs collapsed,
// so "We  Agreed" and "we agreed" share a key.
func Of(s string) string {
	folded := cases.Fold().String(norm.NFC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// Equal reports whether a and b have the same key.
func Equal(a, b string) bool {
	return Of(a) == Of(b)
}
