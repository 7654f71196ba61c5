package profile

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Channel selects which frequency of an entry a measure compares.
type Channel int

const (
	// Observed compares observed (sample) frequencies.
	Observed Channel = iota
	// Real compares real (collection) frequencies. Entries without one count as zero.
	Real
)

func (c Channel) String() string {
	if c == Real {
		return "real"
	}
	return "observed"
}

func (c Channel) value(e *Entry) float64 {
	if c == Real {
		return e.RealOr(0)
	}
	return e.Observed
}

// present returns the terms of p with a non-zero frequency in the channel.
func (p *Profile) present(c Channel) map[string]float64 {
	m := make(map[string]float64)
	for _, e := range p.entries {
		if v := c.value(e); v > 0 {
			m[e.Term] = v
		}
	}
	return m
}

func overlap(a, b map[string]float64) int {
	n := 0
	for term := range a {
		if _, ok := b[term]; ok {
			n++
		}
	}
	return n
}

// Precision is the fraction of the terms in p that also appear in the correct profile.
func (p *Profile) Precision(correct *Profile, c Channel) float64 {
	estimated, actual := p.present(c), correct.present(c)
	if len(estimated) == 0 || len(actual) == 0 {
		return 1
	}
	return float64(overlap(estimated, actual)) / float64(len(estimated))
}

// Recall is the fraction of the terms in the correct profile that also appear in p.
func (p *Profile) Recall(correct *Profile, c Channel) float64 {
	estimated, actual := p.present(c), correct.present(c)
	if len(estimated) == 0 || len(actual) == 0 {
		return 1
	}
	return float64(overlap(estimated, actual)) / float64(len(actual))
}

// Coverage is the ctf ratio: the share of the total frequency mass of the correct profile that belongs to terms
// found in p.
func (p *Profile) Coverage(correct *Profile, c Channel) float64 {
	estimated, actual := p.present(c), correct.present(c)
	var covered, total []float64
	for term, v := range actual {
		total = append(total, v)
		if _, ok := estimated[term]; ok {
			covered = append(covered, v)
		}
	}
	if len(total) == 0 {
		return 0
	}
	sum := floats.Sum(total)
	if sum == 0 {
		return 0
	}
	return floats.Sum(covered) / sum
}

// KLDivergence is the Kullback-Leibler divergence of p from the correct profile, KL(correct || p), computed over the
// vocabulary the two profiles share. Both distributions are normalised over that vocabulary.
func (p *Profile) KLDivergence(correct *Profile, c Channel) float64 {
	estimated, actual := p.present(c), correct.present(c)
	var q, e []float64
	for term, v := range actual {
		if u, ok := estimated[term]; ok {
			q = append(q, v)
			e = append(e, u)
		}
	}
	if len(q) == 0 {
		return 0
	}
	sq, se := floats.Sum(q), floats.Sum(e)
	div := 0.0
	for i := range q {
		pq := q[i] / sq
		pe := e[i] / se
		div += pq * math.Log(pq/pe)
	}
	return div
}
