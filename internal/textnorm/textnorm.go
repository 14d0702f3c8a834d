// Package textnorm turns job text (often HTML from ATS boards) into plain,
// lower-cased tokens for keyword matching.
package textnorm

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// PlainText strips markup and decodes entities. Text inside script and style
// elements is dropped. Input without markup is returned with whitespace collapsed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or an unparseable tail; keep what we have.
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if isSkipped(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isSkipped(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isSkipped(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}

// Tokens composes s to NFC, lower-cases it and splits it on anything that is
// not a letter or digit. A decomposed "c" + U+0327 thus stays one token with
// its composed form. Order is preserved so callers can match multi-word phrases.
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(norm.NFC.String(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Normalize is PlainText followed by Tokens.
func Normalize(s string) []string {
	return Tokens(PlainText(s))
}

// ContainsPhrase reports whether phrase (already tokenised) appears as a
// contiguous run in tokens.
func ContainsPhrase(tokens, phrase []string) bool {
	return len(PhraseIndexes(tokens, phrase)) > 0
}

// PhraseIndexes returns the start index of every occurrence of phrase in tokens.
func PhraseIndexes(tokens, phrase []string) []int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return nil
	}
	var idx []int
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+len(phrase)], phrase) {
			idx = append(idx, i)
		}
	}
	return idx
}
