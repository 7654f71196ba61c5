// Package summary builds content summaries of remote collections from samples of their documents.
//
// Sampling happens in two passes. The first pass discovers the vocabulary of the collection and is used to detect
// common words: terms that appear in every sampled document, which are almost always markup or boilerplate. The second
// pass samples the collection again while ignoring the common words, and periodically fits a rank-frequency law to the
// sample. The history of these fits is extrapolated to the estimated size of the collection to project the document
// frequency of every sampled term.
package summary

import (
	"sort"
)

// CheckpointInterval is the minimum number of new samples between two checkpoints.
const CheckpointInterval = 20

// TermInfo holds the statistics about a term in the sample.
type TermInfo struct {
	// SampleFrequency is the number of sampled documents containing the term.
	SampleFrequency int
	// TermFrequency is the number of times the term occurs across the sample.
	TermFrequency int
}

// ContentSummary accumulates statistics about the documents sampled from a collection.
type ContentSummary struct {
	terms      map[string]*TermInfo
	sampleSize int
	common     map[string]bool

	// Regression coefficients keyed by the sample size they were computed at.
	histogram     map[int]Coefficients
	rankFrequency map[int]Coefficients
	lastCheckpoint int

	law           *Coefficients
	estimatedSize float64
	ranks         *rankTable
}

// New creates an empty content summary.
func New() *ContentSummary {
	return &ContentSummary{
		terms:         make(map[string]*TermInfo),
		common:        make(map[string]bool),
		histogram:     make(map[int]Coefficients),
		rankFrequency: make(map[int]Coefficients),
	}
}

// AddTerm records that a sampled document contains term. If filterCommon is set and the term is a common word,
// nothing is recorded and false is returned.
func (c *ContentSummary) AddTerm(term string, filterCommon bool) bool {
	if filterCommon && c.common[term] {
		return false
	}
	if t, ok := c.terms[term]; ok {
		t.SampleFrequency++
	} else {
		c.terms[term] = &TermInfo{SampleFrequency: 1}
	}
	return true
}

// AddOccurrences adds n occurrences of term to its term frequency.
func (c *ContentSummary) AddOccurrences(term string, n int, filterCommon bool) bool {
	if filterCommon && c.common[term] {
		return false
	}
	t, ok := c.terms[term]
	if !ok {
		t = &TermInfo{}
		c.terms[term] = t
	}
	t.TermFrequency += n
	return true
}

// AddDocument adds the tokens of one sampled document to the summary and increases the sample size.
func (c *ContentSummary) AddDocument(tokens []string, filterCommon bool) {
	counts := make(map[string]int)
	for _, token := range tokens {
		counts[token]++
	}
	for term, n := range counts {
		if c.AddTerm(term, filterCommon) {
			c.AddOccurrences(term, n, filterCommon)
		}
	}
	c.IncreaseSampleSize()
}

// IncreaseSampleSize must be called once for every sampled document.
func (c *ContentSummary) IncreaseSampleSize() {
	c.sampleSize++
}

// SampleSize is the number of documents in the sample.
func (c *ContentSummary) SampleSize() int {
	return c.sampleSize
}

// Len is the number of distinct terms in the sample.
func (c *ContentSummary) Len() int {
	return len(c.terms)
}

// Term returns the statistics of a sampled term.
func (c *ContentSummary) Term(term string) (TermInfo, bool) {
	if t, ok := c.terms[term]; ok {
		return *t, true
	}
	return TermInfo{}, false
}

// Terms lists the sampled terms, sorted.
func (c *ContentSummary) Terms() []string {
	terms := make([]string, 0, len(c.terms))
	for term := range c.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// DetectCommonWords flags every term that appears in all sampled documents as a common word, and returns the terms
// that were flagged.
func (c *ContentSummary) DetectCommonWords() []string {
	var found []string
	if c.sampleSize == 0 {
		return found
	}
	for term, t := range c.terms {
		if t.SampleFrequency == c.sampleSize {
			c.common[term] = true
			found = append(found, term)
		}
	}
	sort.Strings(found)
	return found
}

// IsCommon reports whether a term has been flagged as a common word.
func (c *ContentSummary) IsCommon(term string) bool {
	return c.common[term]
}

// CommonWords lists the common words, sorted.
func (c *ContentSummary) CommonWords() []string {
	words := make([]string, 0, len(c.common))
	for term := range c.common {
		words = append(words, term)
	}
	sort.Strings(words)
	return words
}

// ClearResults discards the sample, keeping only the common words.
func (c *ContentSummary) ClearResults() {
	c.terms = make(map[string]*TermInfo)
	c.sampleSize = 0
	c.histogram = make(map[int]Coefficients)
	c.rankFrequency = make(map[int]Coefficients)
	c.lastCheckpoint = 0
	c.law = nil
	c.ranks = nil
	c.estimatedSize = 0
}
