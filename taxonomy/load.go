package taxonomy

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hscells/qprober/query"
	"github.com/pkg/errors"
)

type xmlNode struct {
	Name      string     `xml:"name,attr"`
	Queries   []xmlQuery `xml:"query"`
	Confusion []string   `xml:"confusion"`
	Nodes     []xmlNode  `xml:"node"`
}

type xmlQuery struct {
	Category string `xml:"category,attr"`
	Text     string `xml:"text,attr"`
}

// Load reads a hierarchy from an XML file.
func Load(path string) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open taxonomy %s", path)
	}
	defer f.Close()
	h, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load taxonomy %s", path)
	}
	return h, nil
}

// Parse reads a hierarchy from XML. The document is a tree of node elements, each with a name. An internal node holds
// one query element per probe rule, with the category (the name of a direct child) and the query text, and
// optionally one confusion element per category holding a row of the confusion matrix.
func Parse(r io.Reader) (*Hierarchy, error) {
	var root xmlNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, errors.Wrap(err, "malformed taxonomy")
	}
	h := newHierarchy()
	if err := h.load(root, NoNode); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hierarchy) load(x xmlNode, parent NodeID) error {
	name := strings.TrimSpace(x.Name)
	if len(name) == 0 {
		return errors.New("taxonomy node without a name")
	}
	if _, ok := h.names[name]; ok {
		return errors.Errorf("duplicate taxonomy node %q", name)
	}
	if len(x.Queries) > 0 && len(x.Nodes) == 0 {
		return errors.Errorf("taxonomy node %q has rules but no children", name)
	}
	if len(x.Queries) == 0 && len(x.Nodes) > 0 {
		return errors.Errorf("taxonomy node %q has children but no rules", name)
	}

	id := h.add(name, parent)
	children := make(map[string]bool)
	for _, child := range x.Nodes {
		if err := h.load(child, id); err != nil {
			return err
		}
		children[strings.TrimSpace(child.Name)] = true
	}
	if len(x.Queries) == 0 {
		return nil
	}

	rules := make([]Rule, len(x.Queries))
	for i, q := range x.Queries {
		category := strings.TrimSpace(q.Category)
		if !children[category] {
			return errors.Errorf("rule %q of taxonomy node %q names %q, which is not a child", q.Text, name, category)
		}
		rules[i] = Rule{Category: category, Query: query.Parse(q.Text)}
	}

	confusion := make([][]float64, len(x.Confusion))
	for i, row := range x.Confusion {
		for _, field := range strings.Fields(row) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return errors.Wrapf(err, "confusion matrix of taxonomy node %q", name)
			}
			confusion[i] = append(confusion[i], v)
		}
	}

	classifier, err := NewClassifier(rules, confusion)
	if err != nil {
		return errors.Wrapf(err, "taxonomy node %q", name)
	}
	h.nodes[id].Classifier = classifier
	return nil
}
