// Package preprocess turns the raw text of sampled documents into the terms that are counted in content summaries.
package preprocess

import (
	"sort"
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"
	"github.com/dan-locke/clean-html"
	"github.com/hscells/go-unidecode"
)

// Tokeniser splits the text of a document into terms.
type Tokeniser func(text string) ([]string, error)

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r)
}

// Tokenise lower-cases and transliterates text to ASCII, ignores any HTML markup, and splits the remaining text into
// runs of letters. Numbers and punctuation only separate terms.
func Tokenise(text string) ([]string, error) {
	txt := unidecode.Unidecode(strings.ToLower(text))

	portions, err := clean_html.TextPos([]byte(txt))
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, pos := range portions.Positions {
		tokens = append(tokens, strings.FieldsFunc(txt[pos[0]:pos[1]], isSeparator)...)
	}
	return tokens, nil
}

// Count returns the number of times each term appears in a list of tokens.
func Count(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return counts
}

// Distinct returns the unique terms of a list of tokens, sorted.
func Distinct(tokens []string) []string {
	counts := Count(tokens)
	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// IsStopword reports whether an English stop list contains the term.
func IsStopword(term string) bool {
	return len(strings.TrimSpace(stopwords.CleanString(term, "en", false))) == 0
}
