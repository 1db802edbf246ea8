package directory

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Names arrive with diacritics (Benoît, Gaëlle, Nuñez). Search matches on
// a folded form stored next to the original.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldName(parts ...string) string {
	joined := strings.Join(parts, " ")
	out, _, err := transform.String(diacriticStripper, joined)
	if err != nil {
		out = joined
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}
