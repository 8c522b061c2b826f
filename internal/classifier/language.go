package classifier

import (
	"regexp"
	"strings"
	"unicode"
)

// urlPattern matches URL-like substrings, which are removed before
// tokenizing so that link spam cannot contribute tokens.
var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

// Tokenize lower-cases the text and splits it on non-letter boundaries
// after stripping URL-like substrings.
func Tokenize(text string) []string {
	stripped := urlPattern.ReplaceAllString(text, "")
	return strings.FieldsFunc(strings.ToLower(stripped), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// Plausible reports whether the text looks like natural language for lang.
// It counts tokens found in the language's stopword list and short-circuits
// as soon as minHits is reached. An empty token list never passes; a
// minHits of zero passes any non-empty token list.
func Plausible(text, lang string, minHits int) bool {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return false
	}
	if minHits <= 0 {
		return true
	}

	set := Stopwords(lang)
	hits := 0
	for _, tok := range tokens {
		if set[tok] {
			hits++
			if hits >= minHits {
				return true
			}
		}
	}
	return false
}
