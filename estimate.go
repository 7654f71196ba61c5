package qprober

import (
	"context"
	"log"
	"math/rand"
	"sort"

	"github.com/hscells/qprober/preprocess"
	"github.com/hscells/qprober/summary"
	"gonum.org/v1/gonum/stat"
)

// SizeOptions control how the size of a collection is estimated.
type SizeOptions struct {
	// Probes is the number of successful probes to average.
	Probes int
	// Retries is the number of probes that may fail or return no hits.
	Retries int
	// Lower and Upper bound the percentiles of sample frequency that probe terms are drawn from.
	Lower float64
	Upper float64
}

// DefaultSizeOptions draws ten probes from the middle half of the sample.
var DefaultSizeOptions = SizeOptions{
	Probes:  10,
	Retries: 10,
	Lower:   0.25,
	Upper:   0.75,
}

// probeTerms lists the sampled terms whose sample frequency falls inside the percentile band, excluding stopwords and
// common words.
func probeTerms(cs *summary.ContentSummary, lower, upper float64) []string {
	var candidates []string
	var frequencies []float64
	for _, term := range cs.Terms() {
		if cs.IsCommon(term) || preprocess.IsStopword(term) {
			continue
		}
		info, _ := cs.Term(term)
		if info.SampleFrequency <= 0 {
			continue
		}
		candidates = append(candidates, term)
		frequencies = append(frequencies, float64(info.SampleFrequency))
	}
	if len(frequencies) == 0 {
		return nil
	}

	sorted := make([]float64, len(frequencies))
	copy(sorted, frequencies)
	sort.Float64s(sorted)
	lo := stat.Quantile(lower, stat.Empirical, sorted, nil)
	hi := stat.Quantile(upper, stat.Empirical, sorted, nil)

	terms := candidates[:0]
	for i, term := range candidates {
		if frequencies[i] >= lo && frequencies[i] <= hi {
			terms = append(terms, term)
		}
	}
	return terms
}

// estimateSize issues random probe queries and scales the number of hits of each by the share of the sample that
// contains the probe term. The estimate is the mean over the successful probes; without any, it is the larger of the
// sample size and the largest hit count seen while classifying.
func (r *run) estimateSize(ctx context.Context) (float64, error) {
	fallback := float64(r.summary.SampleSize())
	if float64(r.maxHits) > fallback {
		fallback = float64(r.maxHits)
	}
	if r.size.Probes <= 0 || r.summary.SampleSize() == 0 {
		return fallback, nil
	}

	candidates := probeTerms(r.summary, r.size.Lower, r.size.Upper)
	rnd := rand.New(rand.NewSource(r.seed))
	sampleSize := float64(r.summary.SampleSize())

	var estimates []float64
	discarded, done := 0, 0
	for len(estimates) < r.size.Probes && discarded <= r.size.Retries && len(candidates) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		i := rnd.Intn(len(candidates))
		term := candidates[i]
		candidates = append(candidates[:i], candidates[i+1:]...)

		done++
		res, err := r.live(ctx, term)
		if r.progress != nil {
			r.progress(done, r.size.Probes)
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			r.fail(StageSize, 2, term, err)
			discarded++
			continue
		}
		if res.Hits <= 0 {
			discarded++
			continue
		}
		info, _ := r.summary.Term(term)
		estimates = append(estimates, float64(res.Hits)*sampleSize/float64(info.SampleFrequency))
	}

	if len(estimates) == 0 {
		log.Printf("%s: no size probe succeeded, falling back to %.0f\n", r.report.Collection, fallback)
		return fallback, nil
	}
	return stat.Mean(estimates, nil), nil
}
