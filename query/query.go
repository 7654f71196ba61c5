// Package query represents the probe queries issued against remote collections, and compiles them into the syntax of
// each kind of source.
//
// A probe query is a line of words separated by whitespace. A word prefixed with "-" must not appear in a matching
// document, and every other word (optionally prefixed with "+") must appear.
package query

import (
	"strings"

	"github.com/hscells/cqr"
	"github.com/hscells/transmute"
	"github.com/hscells/transmute/fields"
	"github.com/pkg/errors"
)

// Query is a parsed probe query.
type Query struct {
	// Text is the query as it was written.
	Text     string
	Positive []string
	Negative []string
}

// Parse splits a probe query into its positive and negative words. Words are lower-cased; a bare "+" or "-" is
// ignored.
func Parse(text string) Query {
	q := Query{Text: strings.TrimSpace(text)}
	for _, word := range strings.Fields(q.Text) {
		word = strings.ToLower(word)
		switch {
		case strings.HasPrefix(word, "-"):
			if w := strings.TrimLeft(word, "-"); len(w) > 0 {
				q.Negative = append(q.Negative, w)
			}
		default:
			if w := strings.TrimLeft(word, "+"); len(w) > 0 {
				q.Positive = append(q.Positive, w)
			}
		}
	}
	return q
}

// IsEmpty reports whether the query has no positive words. Such a query cannot match anything.
func (q Query) IsEmpty() bool {
	return len(q.Positive) == 0
}

// CQR represents the query in the common query representation, on the title and abstract fields.
func (q Query) CQR() cqr.CommonQueryRepresentation {
	positive := make([]cqr.CommonQueryRepresentation, len(q.Positive))
	for i, w := range q.Positive {
		positive[i] = cqr.NewKeyword(w, fields.TitleAbstract)
	}
	and := cqr.NewBooleanQuery(cqr.AND, positive)
	if len(q.Negative) == 0 {
		return and
	}

	negative := make([]cqr.CommonQueryRepresentation, len(q.Negative))
	for i, w := range q.Negative {
		negative[i] = cqr.NewKeyword(w, fields.TitleAbstract)
	}
	return cqr.NewBooleanQuery(cqr.NOT, []cqr.CommonQueryRepresentation{
		and,
		cqr.NewBooleanQuery(cqr.OR, negative),
	})
}

// PubMed compiles the query into PubMed search syntax.
func (q Query) PubMed() (string, error) {
	if q.IsEmpty() {
		return "", errors.Errorf("query %q has no positive words", q.Text)
	}
	s, err := transmute.CompileCqr2PubMed(q.CQR())
	if err != nil {
		return "", errors.Wrapf(err, "could not compile %q to pubmed", q.Text)
	}
	return s, nil
}

// Lucene writes the query in Lucene query string syntax, e.g. "+a +b -c".
func (q Query) Lucene() string {
	words := make([]string, 0, len(q.Positive)+len(q.Negative))
	for _, w := range q.Positive {
		words = append(words, "+"+w)
	}
	for _, w := range q.Negative {
		words = append(words, "-"+w)
	}
	return strings.Join(words, " ")
}

// Matches evaluates the query against the set of terms in a document.
func (q Query) Matches(terms map[string]bool) bool {
	if q.IsEmpty() {
		return false
	}
	for _, w := range q.Positive {
		if !terms[w] {
			return false
		}
	}
	for _, w := range q.Negative {
		if terms[w] {
			return false
		}
	}
	return true
}

// String is the query text.
func (q Query) String() string {
	return q.Text
}
