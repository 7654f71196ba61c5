package taxonomy

import (
	"log"

	"github.com/hscells/qprober/query"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Rule probes a collection for one category.
type Rule struct {
	Category string
	Query    query.Query
}

// Classifier decides which children of a node a collection belongs to.
type Classifier struct {
	Rules []Rule

	categories []string
	index      map[string]int

	// confusion[i][j] is the rate at which documents of category i are assigned to category j.
	confusion *mat.Dense
	inverse   *mat.Dense
}

// NewClassifier creates a classifier from its rules and an optional confusion matrix with one row and one column per
// category, in the order the categories first appear in the rules. A singular confusion matrix is kept but disables
// correction.
func NewClassifier(rules []Rule, confusion [][]float64) (*Classifier, error) {
	c := &Classifier{
		Rules: rules,
		index: make(map[string]int),
	}
	for _, r := range rules {
		if _, ok := c.index[r.Category]; !ok {
			c.index[r.Category] = len(c.categories)
			c.categories = append(c.categories, r.Category)
		}
	}

	if len(confusion) == 0 {
		return c, nil
	}
	n := len(c.categories)
	if len(confusion) != n {
		return nil, errors.Errorf("confusion matrix has %d rows for %d categories", len(confusion), n)
	}
	data := make([]float64, 0, n*n)
	for i, row := range confusion {
		if len(row) != n {
			return nil, errors.Errorf("confusion matrix row %d has %d columns for %d categories", i, len(row), n)
		}
		data = append(data, row...)
	}
	c.confusion = mat.NewDense(n, n, data)

	var inv mat.Dense
	if err := inv.Inverse(c.confusion); err != nil {
		log.Printf("confusion matrix for %v cannot be inverted, correction disabled: %v\n", c.categories, err)
	} else {
		c.inverse = &inv
	}
	return c, nil
}

// Categories of the classifier, in the order they first appear in the rules.
func (c *Classifier) Categories() []string {
	return c.categories
}

// Index of a category in coverage vectors; -1 if the classifier does not know it.
func (c *Classifier) Index(category string) int {
	if i, ok := c.index[category]; ok {
		return i
	}
	return -1
}

// CanAdjust reports whether the classifier has an invertible confusion matrix.
func (c *Classifier) CanAdjust() bool {
	return c.inverse != nil
}

// Coverage sums the hits of each rule into its category. hits must be in the same order as the rules.
func (c *Classifier) Coverage(hits []float64) []float64 {
	coverage := make([]float64, len(c.categories))
	for i, r := range c.Rules {
		if i >= len(hits) {
			break
		}
		coverage[c.index[r.Category]] += hits[i]
	}
	return coverage
}

// Adjust corrects a coverage vector for the mistakes of the classifier by multiplying it with the inverse of the
// confusion matrix. Negative corrected coverage is clamped to zero. The vector is returned unchanged, along with
// false, when there is no invertible confusion matrix.
func (c *Classifier) Adjust(coverage []float64) ([]float64, bool) {
	out := make([]float64, len(coverage))
	copy(out, coverage)
	if c.inverse == nil || len(coverage) != len(c.categories) {
		return out, false
	}

	var v mat.VecDense
	v.MulVec(c.inverse, mat.NewVecDense(len(out), out))
	for i := range out {
		out[i] = v.AtVec(i)
		if out[i] < 0 {
			out[i] = 0
		}
	}
	return out, true
}

// Specificity normalises a coverage vector by its total. A vector with a total of zero is returned as is.
func Specificity(coverage []float64) []float64 {
	specificity := make([]float64, len(coverage))
	total := floats.Sum(coverage)
	for i, v := range coverage {
		if total == 0 {
			specificity[i] = v
		} else {
			specificity[i] = v / total
		}
	}
	return specificity
}
