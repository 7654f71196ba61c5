package taxonomy

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Prober issues the query of a rule against a collection and returns the number of hits.
type Prober interface {
	Probe(ctx context.Context, rule Rule) (float64, error)
}

// ProberFunc adapts a function to a Prober.
type ProberFunc func(ctx context.Context, rule Rule) (float64, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, rule Rule) (float64, error) {
	return f(ctx, rule)
}

// Method is how coverage is computed from the hits of the rules.
type Method int

const (
	// ProbOnly uses the raw hit counts.
	ProbOnly Method = iota
	// Adjusted corrects the hit counts with the inverse of the confusion matrix.
	Adjusted
)

// ParseMethod reads a method from its configuration name, "probonly" or "adjusted".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "", "probonly":
		return ProbOnly, nil
	case "adjusted":
		return Adjusted, nil
	}
	return ProbOnly, errors.Errorf("unknown classification method %q", s)
}

func (m Method) String() string {
	if m == Adjusted {
		return "adjusted"
	}
	return "probonly"
}

// Fallback decides what a collection is classified as when no child of a node qualifies.
type Fallback int

const (
	// FallbackLevel classifies the collection into every category of the hierarchy down to the level below the node.
	FallbackLevel Fallback = iota
	// FallbackNode classifies the collection into the node only.
	FallbackNode
)

// ParseFallback reads a fallback policy from its configuration name, "level" or "node".
func ParseFallback(s string) (Fallback, error) {
	switch strings.ToLower(s) {
	case "", "level":
		return FallbackLevel, nil
	case "node":
		return FallbackNode, nil
	}
	return FallbackLevel, errors.Errorf("unknown classification fallback %q", s)
}

func (f Fallback) String() string {
	if f == FallbackNode {
		return "node"
	}
	return "level"
}

// Options of a classification.
type Options struct {
	// Specificity is the threshold ts a child must reach to be descended into.
	Specificity float64
	// Coverage is the threshold tc a child must reach to be descended into.
	Coverage float64
	Method   Method
	Fallback Fallback
}

// Decision records the evidence at one internal node of the classification.
type Decision struct {
	Node        string
	Categories  []string
	Coverage    []float64
	Specificity []float64
	// Adjusted is true when the coverage was corrected by the confusion matrix.
	Adjusted bool
	// Selected are the children that were descended into.
	Selected []string
}

// Failure is a rule that could not be probed.
type Failure struct {
	Node     string
	Category string
	Query    string
	Err      error
}

// Classification is the result of classifying a collection.
type Classification struct {
	Categories []string
	Decisions  []Decision
	Failures   []Failure
	seen       map[string]bool
}

func (c *Classification) add(names ...string) {
	for _, name := range names {
		if !c.seen[name] {
			c.seen[name] = true
			c.Categories = append(c.Categories, name)
		}
	}
}

// Classify classifies a collection starting at the root of the hierarchy.
func (h *Hierarchy) Classify(ctx context.Context, prober Prober, options Options) (*Classification, error) {
	return h.ClassifyFrom(ctx, h.Root(), prober, options)
}

// ClassifyFrom classifies a collection starting at node n. At each internal node every rule is probed, the hits are
// summed per category, and the classification recurses into every child whose specificity and coverage reach the
// thresholds. A rule that fails to be probed is recorded and contributes no hits. Only cancellation of the context
// stops the classification early.
func (h *Hierarchy) ClassifyFrom(ctx context.Context, n *Node, prober Prober, options Options) (*Classification, error) {
	c := &Classification{seen: make(map[string]bool)}
	if err := h.classify(ctx, n, prober, options, c); err != nil {
		return c, err
	}
	return c, nil
}

func (h *Hierarchy) classify(ctx context.Context, n *Node, prober Prober, options Options, c *Classification) error {
	if n.IsLeaf() {
		c.add(h.subtree(n)...)
		return nil
	}

	classifier := n.Classifier
	hits := make([]float64, len(classifier.Rules))
	for i, rule := range classifier.Rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := prober.Probe(ctx, rule)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Failures = append(c.Failures, Failure{
				Node:     n.Name,
				Category: rule.Category,
				Query:    rule.Query.Text,
				Err:      err,
			})
			continue
		}
		hits[i] = v
	}

	coverage := classifier.Coverage(hits)
	adjusted := false
	if options.Method == Adjusted {
		coverage, adjusted = classifier.Adjust(coverage)
	}
	specificity := Specificity(coverage)

	decision := Decision{
		Node:        n.Name,
		Categories:  classifier.Categories(),
		Coverage:    coverage,
		Specificity: specificity,
		Adjusted:    adjusted,
	}
	var next []*Node
	for i, category := range classifier.Categories() {
		if specificity[i] >= options.Specificity && coverage[i] >= options.Coverage {
			if child, ok := h.child(n, category); ok {
				next = append(next, child)
				decision.Selected = append(decision.Selected, category)
			}
		}
	}
	c.Decisions = append(c.Decisions, decision)

	if len(next) == 0 {
		switch options.Fallback {
		case FallbackNode:
			c.add(n.Name)
		default:
			c.add(h.Categories(n.Level + 1)...)
		}
		return nil
	}
	for _, child := range next {
		if err := h.classify(ctx, child, prober, options, c); err != nil {
			return err
		}
	}
	return nil
}
