// Package profile provides term-frequency profiles of document collections. A profile records, for every term in a
// vocabulary, how often the term was observed in a sample and (optionally) how often it occurs in the full collection.
package profile

import (
	"math"
	"strings"
)

// Entry is a single vocabulary term in a profile.
type Entry struct {
	Term     string
	Observed float64
	// Real is only meaningful when HasReal is set.
	Real    float64
	HasReal bool
}

// RealOr returns the real frequency of the entry, or def if it has none.
func (e Entry) RealOr(def float64) float64 {
	if e.HasReal {
		return e.Real
	}
	return def
}

// Profile is a term-frequency table. Entries keep the order in which terms were first added.
type Profile struct {
	entries []*Entry
	index   map[string]int
}

// New creates an empty profile.
func New() *Profile {
	return &Profile{index: make(map[string]int)}
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func normalise(term string) string {
	return strings.ToLower(term)
}

// entry returns the entry for term, creating it if it does not exist.
func (p *Profile) entry(term string) *Entry {
	term = normalise(term)
	if i, ok := p.index[term]; ok {
		return p.entries[i]
	}
	e := &Entry{Term: term}
	p.index[term] = len(p.entries)
	p.entries = append(p.entries, e)
	return e
}

// AddTerm adds a term with no observations to the profile. Adding an existing term has no effect.
func (p *Profile) AddTerm(term string) {
	p.entry(term)
}

// SetObserved sets the observed frequency of a term.
func (p *Profile) SetObserved(term string, frequency float64) {
	p.entry(term).Observed = clamp(frequency)
}

// SetReal sets the real (full collection) frequency of a term.
func (p *Profile) SetReal(term string, frequency float64) {
	e := p.entry(term)
	e.Real = clamp(frequency)
	e.HasReal = true
}

// IncrementObserved adds to the observed frequency of a term.
func (p *Profile) IncrementObserved(term string, by float64) {
	e := p.entry(term)
	e.Observed = clamp(e.Observed + by)
}

// Get returns a copy of the entry for a term.
func (p *Profile) Get(term string) (Entry, bool) {
	if i, ok := p.index[normalise(term)]; ok {
		return *p.entries[i], true
	}
	return Entry{}, false
}

// Len is the size of the vocabulary.
func (p *Profile) Len() int {
	return len(p.entries)
}

// Terms lists the vocabulary in insertion order.
func (p *Profile) Terms() []string {
	terms := make([]string, len(p.entries))
	for i, e := range p.entries {
		terms[i] = e.Term
	}
	return terms
}

// Entries returns copies of all entries in insertion order.
func (p *Profile) Entries() []Entry {
	entries := make([]Entry, len(p.entries))
	for i, e := range p.entries {
		entries[i] = *e
	}
	return entries
}

// Merge adds the vocabulary of other into p. Observed frequencies of shared terms are summed, and a real frequency
// is only taken from other when p does not have one.
func (p *Profile) Merge(other *Profile) {
	for _, o := range other.entries {
		e := p.entry(o.Term)
		e.Observed = clamp(e.Observed + o.Observed)
		if !e.HasReal && o.HasReal {
			e.Real = o.Real
			e.HasReal = true
		}
	}
}

// EstimatedSize is a coarse estimate of the collection size: the largest frequency of any term.
func (p *Profile) EstimatedSize() float64 {
	var size float64
	for _, e := range p.entries {
		v := e.Observed
		if e.HasReal && e.Real > v {
			v = e.Real
		}
		if v > size {
			size = v
		}
	}
	return size
}

// restrict creates a new profile containing only the given terms (which must exist in p).
func (p *Profile) restrict(terms []string) *Profile {
	r := New()
	for _, term := range terms {
		e := p.entries[p.index[term]]
		c := *e
		r.index[c.Term] = len(r.entries)
		r.entries = append(r.entries, &c)
	}
	return r
}
