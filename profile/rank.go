package profile

import (
	"math"
	"sort"

	"github.com/xtgo/set"
)

// Ties holds the statistics about tied ranks needed to correct Spearman's rank correlation.
type Ties struct {
	// Correction is the sum of t^3 - t over every block of t tied terms.
	Correction float64
	// Blocks is the size of every block of tied terms, in rank order.
	Blocks []int
}

// Rank creates a new profile where the observed value of each term is its rank by descending observed frequency.
// Tied terms all receive the mid-rank of the block they occupy; e.g. frequencies [5, 5, 3, 1] are ranked
// [1.5, 1.5, 3, 4]. The receiver is not modified.
func (p *Profile) Rank() (*Profile, Ties) {
	sorted := make([]*Entry, len(p.entries))
	copy(sorted, p.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Observed == sorted[j].Observed {
			return sorted[i].Term < sorted[j].Term
		}
		return sorted[i].Observed > sorted[j].Observed
	})

	var ties Ties
	ranked := New()
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].Observed == sorted[i].Observed {
			j++
		}
		t := j - i
		rank := float64(i+1) + float64(t-1)/2
		for k := i; k < j; k++ {
			ranked.SetObserved(sorted[k].Term, rank)
		}
		ties.Blocks = append(ties.Blocks, t)
		ties.Correction += math.Pow(float64(t), 3) - float64(t)
		i = j
	}
	return ranked, ties
}

// Common returns the vocabulary shared by p and other, sorted.
func (p *Profile) Common(other *Profile) []string {
	a := p.Terms()
	b := other.Terms()
	sort.Strings(a)
	sort.Strings(b)
	data := make(sort.StringSlice, 0, len(a)+len(b))
	data = append(data, a...)
	data = append(data, b...)
	size := set.Inter(data, len(a))
	return data[:size]
}

// Spearman computes Spearman's rank correlation coefficient between the observed frequencies of p and other,
// restricted to the terms they have in common and corrected for ties.
func (p *Profile) Spearman(other *Profile) float64 {
	common := p.Common(other)
	n := float64(len(common))
	if n < 2 {
		return 0
	}

	x, tx := p.restrict(common).Rank()
	y, ty := other.restrict(common).Rank()

	var d2 float64
	for _, term := range common {
		a, _ := x.Get(term)
		b, _ := y.Get(term)
		d := a.Observed - b.Observed
		d2 += d * d
	}

	base := (math.Pow(n, 3) - n) / 12
	sx := base - tx.Correction/12
	sy := base - ty.Correction/12
	if sx <= 0 || sy <= 0 {
		return 0
	}
	return (sx + sy - d2) / (2 * math.Sqrt(sx*sy))
}
