// Package eval compares the profiles estimated for collections against their correct profiles, and the categories a
// collection was classified into against the categories it is known to belong to.
package eval

import (
	"sort"
	"strings"

	"github.com/hscells/qprober/profile"
	"github.com/pkg/errors"
)

// Evaluator is an interface for evaluating an estimated profile against the correct profile of a collection.
type Evaluator interface {
	Score(estimated, correct *profile.Profile) float64
	Name() string
}

// Precision is the fraction of estimated terms that are in the collection.
type Precision struct{ Channel profile.Channel }

// Recall is the fraction of the terms of the collection that were estimated.
type Recall struct{ Channel profile.Channel }

// Coverage is the fraction of the term occurrences of the collection covered by the estimated vocabulary.
type Coverage struct{ Channel profile.Channel }

// KLDivergence of the estimated term distribution from the distribution of the collection.
type KLDivergence struct{ Channel profile.Channel }

// Spearman is the rank correlation of the observed frequencies of the common vocabulary.
type Spearman struct{}

func (e Precision) Score(estimated, correct *profile.Profile) float64 {
	return estimated.Precision(correct, e.Channel)
}

func (e Precision) Name() string {
	return "precision." + e.Channel.String()
}

func (e Recall) Score(estimated, correct *profile.Profile) float64 {
	return estimated.Recall(correct, e.Channel)
}

func (e Recall) Name() string {
	return "recall." + e.Channel.String()
}

func (e Coverage) Score(estimated, correct *profile.Profile) float64 {
	return estimated.Coverage(correct, e.Channel)
}

func (e Coverage) Name() string {
	return "coverage." + e.Channel.String()
}

func (e KLDivergence) Score(estimated, correct *profile.Profile) float64 {
	return estimated.KLDivergence(correct, e.Channel)
}

func (e KLDivergence) Name() string {
	return "kl." + e.Channel.String()
}

func (Spearman) Score(estimated, correct *profile.Profile) float64 {
	return estimated.Spearman(correct)
}

func (Spearman) Name() string {
	return "spearman"
}

// Evaluators are all of the profile measures.
var Evaluators = []Evaluator{
	Precision{profile.Observed},
	Precision{profile.Real},
	Recall{profile.Observed},
	Recall{profile.Real},
	Coverage{profile.Observed},
	Coverage{profile.Real},
	KLDivergence{profile.Observed},
	KLDivergence{profile.Real},
	Spearman{},
}

// Lookup finds evaluators by name. No names selects every evaluator.
func Lookup(names ...string) ([]Evaluator, error) {
	if len(names) == 0 {
		return Evaluators, nil
	}
	byName := make(map[string]Evaluator, len(Evaluators))
	for _, e := range Evaluators {
		byName[e.Name()] = e
	}
	evaluators := make([]Evaluator, len(names))
	for i, name := range names {
		e, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, errors.Errorf("unknown evaluation measure %s", name)
		}
		evaluators[i] = e
	}
	return evaluators, nil
}

// Evaluate scores the estimated profile of every collection that has a correct profile, producing a map of
// collection->measure->score.
func Evaluate(evaluators []Evaluator, estimated, correct map[string]*profile.Profile) map[string]map[string]float64 {
	scores := make(map[string]map[string]float64)
	for collection, p := range estimated {
		c, ok := correct[collection]
		if !ok {
			continue
		}
		scores[collection] = make(map[string]float64)
		for _, evaluator := range evaluators {
			scores[collection][evaluator.Name()] = evaluator.Score(p, c)
		}
	}
	return scores
}

// Categories scores a classification against the categories a collection is known to belong to. Both sides empty
// scores 1.
func Categories(predicted, correct []string) map[string]float64 {
	truth := make(map[string]bool, len(correct))
	for _, c := range correct {
		truth[c] = true
	}
	seen := make(map[string]bool, len(predicted))
	var tp float64
	for _, c := range predicted {
		if !seen[c] && truth[c] {
			tp++
		}
		seen[c] = true
	}

	precision, recall := 1.0, 1.0
	if len(seen) > 0 {
		precision = tp / float64(len(seen))
	}
	if len(truth) > 0 {
		recall = tp / float64(len(truth))
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return map[string]float64{
		"category.precision": precision,
		"category.recall":    recall,
		"category.f1":        f1,
	}
}

// Names lists the measures of a score map, sorted.
func Names(scores map[string]map[string]float64) []string {
	set := make(map[string]bool)
	for _, s := range scores {
		for name := range s {
			set[name] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
