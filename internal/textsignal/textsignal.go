// Package textsignal classifies free text against ordered token lists.
//
// Text is normalized (diacritics stripped, lowercased, whitespace collapsed)
// and every token is matched as a substring, so "priorizar" and "priorização"
// both hit the token "prioriz".
package textsignal

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize strips diacritics, lowercases and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Hits counts non-overlapping occurrences of every token in already
// normalized text.
func Hits(normalized string, tokens []string) int {
	if normalized == "" {
		return 0
	}
	n := 0
	for _, tok := range tokens {
		tok = Normalize(tok)
		if tok == "" {
			continue
		}
		n += strings.Count(normalized, tok)
	}
	return n
}

// Counts is the result of classifying a text against two token lists.
type Counts struct {
	Text  string `json:"-"`
	Left  int    `json:"left"`
	Right int    `json:"right"`
}

// Empty reports whether there was no text to classify.
func (c Counts) Empty() bool { return c.Text == "" }

// Classify normalizes the joined parts and counts hits on both lists.
func Classify(left, right []string, parts ...string) Counts {
	text := Normalize(strings.Join(parts, " "))
	return Counts{
		Text:  text,
		Left:  Hits(text, left),
		Right: Hits(text, right),
	}
}
