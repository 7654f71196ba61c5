package summary

import (
	"math"
	"sort"

	"github.com/hscells/qprober/profile"
	"gonum.org/v1/gonum/stat"
)

// Coefficients of a log-log linear fit, log2(y) = B + A*log2(x). For the rank-frequency law this is
// frequency = 2^B * rank^A.
type Coefficients struct {
	A float64
	B float64
}

// Checkpoint is the pair of fits computed at one sample size.
type Checkpoint struct {
	SampleSize    int
	Histogram     Coefficients
	RankFrequency Coefficients
	// HasHistogram is false when there were too few frequency buckets to fit the histogram.
	HasHistogram bool
}

// regress fits y = B + A*x, requiring at least two distinct values of x.
func regress(x, y []float64) (Coefficients, bool) {
	if len(x) < 2 {
		return Coefficients{}, false
	}
	distinct := false
	for _, v := range x[1:] {
		if v != x[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return Coefficients{}, false
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Coefficients{A: beta, B: alpha}, true
}

// sampleProfile is the sample as a profile of sample frequencies.
func (c *ContentSummary) sampleProfile() *profile.Profile {
	p := profile.New()
	for _, term := range c.Terms() {
		if sf := c.terms[term].SampleFrequency; sf > 0 {
			p.SetObserved(term, float64(sf))
		}
	}
	return p
}

// fitHistogram buckets the terms by ceil(log2(sample frequency)) and fits the number of terms in a bucket against the
// bucket.
func (c *ContentSummary) fitHistogram() (Coefficients, bool) {
	buckets := make(map[int]float64)
	for _, t := range c.terms {
		if t.SampleFrequency <= 0 {
			continue
		}
		buckets[int(math.Ceil(math.Log2(float64(t.SampleFrequency))))]++
	}
	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	x := make([]float64, len(keys))
	y := make([]float64, len(keys))
	for i, k := range keys {
		x[i] = float64(k)
		y[i] = math.Log2(buckets[k])
	}
	return regress(x, y)
}

// fitRankFrequency fits log2(frequency) against log2(rank) over every sampled term.
func (c *ContentSummary) fitRankFrequency() (Coefficients, bool) {
	p := c.sampleProfile()
	ranked, _ := p.Rank()
	var x, y []float64
	for _, e := range p.Entries() {
		r, _ := ranked.Get(e.Term)
		x = append(x, math.Log2(r.Observed))
		y = append(y, math.Log2(e.Observed))
	}
	return regress(x, y)
}

// Checkpoint fits both laws to the current sample and records them against the sample size. Checkpoints are
// throttled: nothing happens unless CheckpointInterval samples were added since the previous one. It reports whether
// a rank-frequency fit was recorded.
func (c *ContentSummary) Checkpoint() bool {
	if c.sampleSize-c.lastCheckpoint < CheckpointInterval {
		return false
	}
	return c.checkpoint()
}

func (c *ContentSummary) checkpoint() bool {
	c.lastCheckpoint = c.sampleSize
	if h, ok := c.fitHistogram(); ok {
		c.histogram[c.sampleSize] = h
	}
	rf, ok := c.fitRankFrequency()
	if !ok {
		return false
	}
	c.rankFrequency[c.sampleSize] = rf
	return true
}

// Checkpoints lists the recorded fits by increasing sample size.
func (c *ContentSummary) Checkpoints() []Checkpoint {
	sizes := make([]int, 0, len(c.rankFrequency))
	for size := range c.rankFrequency {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	checkpoints := make([]Checkpoint, len(sizes))
	for i, size := range sizes {
		h, ok := c.histogram[size]
		checkpoints[i] = Checkpoint{
			SampleSize:    size,
			Histogram:     h,
			HasHistogram:  ok,
			RankFrequency: c.rankFrequency[size],
		}
	}
	return checkpoints
}

// Extrapolate predicts the rank-frequency law of the full collection. Each coefficient of the law is regressed
// against log2 of the sample size it was computed at, and the regression is evaluated at log2 of the estimated
// collection size. The law and the ranks of the current sample are kept for RealFrequency.
func (c *ContentSummary) Extrapolate(estimatedSize float64) (Coefficients, bool) {
	if estimatedSize < float64(c.sampleSize) {
		estimatedSize = float64(c.sampleSize)
	}
	c.estimatedSize = estimatedSize
	c.ranks = newRankTable(c.sampleProfile())
	c.law = nil

	if len(c.rankFrequency) == 0 {
		c.checkpoint()
	}
	checkpoints := c.Checkpoints()

	var law Coefficients
	switch len(checkpoints) {
	case 0:
		return Coefficients{}, false
	case 1:
		law = checkpoints[0].RankFrequency
	default:
		x := make([]float64, len(checkpoints))
		a := make([]float64, len(checkpoints))
		b := make([]float64, len(checkpoints))
		for i, cp := range checkpoints {
			x[i] = math.Log2(float64(cp.SampleSize))
			a[i] = cp.RankFrequency.A
			b[i] = cp.RankFrequency.B
		}
		at := math.Log2(estimatedSize)
		fa, _ := regress(x, a)
		fb, _ := regress(x, b)
		law = Coefficients{A: fa.B + fa.A*at, B: fb.B + fb.A*at}
	}

	// Frequency can only fall as rank grows.
	if law.A > 0 {
		law.A = 0
	}
	c.law = &law
	return law, true
}

// Law is the extrapolated rank-frequency law, if Extrapolate was able to fit one.
func (c *ContentSummary) Law() (Coefficients, bool) {
	if c.law == nil {
		return Coefficients{}, false
	}
	return *c.law, true
}

// RealFrequency projects the number of documents in the collection that contain a term with the given sample
// frequency: 2^B * rank^A + 1, where rank is the rank of the sample frequency in the sample, capped at the estimated
// collection size. Without a law the sample frequency is scaled by the ratio of collection size to sample size.
func (c *ContentSummary) RealFrequency(sampleFrequency int) float64 {
	size := c.estimatedSize
	if size <= 0 {
		size = float64(c.sampleSize)
	}
	if c.ranks == nil {
		c.ranks = newRankTable(c.sampleProfile())
	}

	var v float64
	if c.law == nil {
		if c.sampleSize == 0 {
			return 0
		}
		v = float64(sampleFrequency) * size / float64(c.sampleSize)
	} else {
		rank := c.ranks.lookup(float64(sampleFrequency))
		v = math.Pow(2, c.law.B)*math.Pow(rank, c.law.A) + 1
	}
	if v > size {
		v = size
	}
	return v
}

// EstimatedSize is the collection size the summary was last extrapolated to.
func (c *ContentSummary) EstimatedSize() float64 {
	return c.estimatedSize
}

// Profile returns the sample as a profile, with observed frequencies set to sample frequencies and real frequencies
// set to the projected document frequencies.
func (c *ContentSummary) Profile() *profile.Profile {
	p := profile.New()
	for _, term := range c.Terms() {
		sf := c.terms[term].SampleFrequency
		p.SetObserved(term, float64(sf))
		p.SetReal(term, c.RealFrequency(sf))
	}
	return p
}

// rankTable maps sample frequencies to their mid-rank in the sample.
type rankTable struct {
	// frequencies are the distinct sample frequencies in descending order.
	frequencies []float64
	ranks       []float64
	// above[i] is the number of terms with a frequency larger than frequencies[i].
	above []int
	total int
}

func newRankTable(p *profile.Profile) *rankTable {
	ranked, _ := p.Rank()
	entries := p.Entries()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Observed > entries[j].Observed
	})
	t := &rankTable{total: len(entries)}
	for i, e := range entries {
		if i > 0 && entries[i-1].Observed == e.Observed {
			continue
		}
		r, _ := ranked.Get(e.Term)
		t.frequencies = append(t.frequencies, e.Observed)
		t.ranks = append(t.ranks, r.Observed)
		t.above = append(t.above, i)
	}
	return t
}

// lookup returns the rank of a sample frequency. A frequency that does not occur in the sample gets the rank it
// would have if it were inserted.
func (t *rankTable) lookup(frequency float64) float64 {
	i := sort.Search(len(t.frequencies), func(i int) bool {
		return t.frequencies[i] <= frequency
	})
	if i < len(t.frequencies) && t.frequencies[i] == frequency {
		return t.ranks[i]
	}
	if i < len(t.above) {
		return float64(t.above[i] + 1)
	}
	return float64(t.total + 1)
}
