// Package normalize canonicalizes free text so that configured phrases can be
// matched by plain substring containment.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/techtag/internal/model"
)

// punctuation is the set of characters replaced by a space. Hyphens, slashes
// and typographic quotes are kept.
const punctuation = ".,!?;:'\"()[]{}"

// Full enables every normalization step.
var Full = model.NormalizationOptions{
	Lowercase:          true,
	StripDiacritics:    true,
	CollapseWhitespace: true,
	StripPunctuation:   true,
}

// Text applies the enabled steps in a fixed order: lowercase, diacritic
// stripping, punctuation replacement, whitespace collapsing. The output is a
// fixed point: Text(Text(s)) == Text(s) for the same options.
func Text(s string, opts model.NormalizationOptions) string {
	if opts.Lowercase {
		s = strings.ToLower(s)
	}
	if opts.StripDiacritics {
		s = stripDiacritics(s)
	}
	if opts.StripPunctuation {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(punctuation, r) {
				return ' '
			}
			return r
		}, s)
	}
	if opts.CollapseWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	return s
}

// stripDiacritics decomposes to NFD, drops combining marks and recomposes.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Contains reports whether the normalized phrase occurs in the normalized text.
// Empty phrases never match.
func Contains(text, phrase string) bool {
	return phrase != "" && strings.Contains(text, phrase)
}
