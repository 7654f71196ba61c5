// Package taxonomy holds the topic hierarchy that collections are classified into. Internal nodes of the hierarchy
// own a classifier: a set of probe rules, one or more per child category, whose hit counts decide which children a
// collection belongs to.
package taxonomy

import (
	"github.com/pkg/errors"
)

// ErrUnknownNode is returned when a node is looked up by a name that is not in the hierarchy.
var ErrUnknownNode = errors.New("unknown taxonomy node")

// NodeID indexes a node in its hierarchy.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is one category of the taxonomy.
type Node struct {
	ID    NodeID
	Name  string
	Level int
	// Parent refers back to the owning node, or NoNode for the root.
	Parent   NodeID
	Children []NodeID
	// Classifier is nil for a leaf.
	Classifier *Classifier
}

// IsLeaf reports whether the node has no classifier.
func (n *Node) IsLeaf() bool {
	return n.Classifier == nil
}

// Hierarchy is an immutable tree of nodes. It is safe for concurrent use once loaded.
type Hierarchy struct {
	nodes []Node
	names map[string]NodeID
}

func newHierarchy() *Hierarchy {
	return &Hierarchy{names: make(map[string]NodeID)}
}

// add appends a node to the arena and links it to its parent.
func (h *Hierarchy) add(name string, parent NodeID) NodeID {
	id := NodeID(len(h.nodes))
	level := 0
	if parent != NoNode {
		level = h.nodes[parent].Level + 1
		h.nodes[parent].Children = append(h.nodes[parent].Children, id)
	}
	h.nodes = append(h.nodes, Node{ID: id, Name: name, Level: level, Parent: parent})
	h.names[name] = id
	return id
}

// Len is the number of nodes in the hierarchy.
func (h *Hierarchy) Len() int {
	return len(h.nodes)
}

// Root of the hierarchy.
func (h *Hierarchy) Root() *Node {
	return &h.nodes[0]
}

// At returns the node with the given id.
func (h *Hierarchy) At(id NodeID) *Node {
	return &h.nodes[id]
}

// Node looks a node up by name.
func (h *Hierarchy) Node(name string) (*Node, error) {
	id, ok := h.names[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "%q", name)
	}
	return &h.nodes[id], nil
}

// Children of a node, in the order they were declared.
func (h *Hierarchy) Children(n *Node) []*Node {
	children := make([]*Node, len(n.Children))
	for i, id := range n.Children {
		children[i] = &h.nodes[id]
	}
	return children
}

// Parent of a node; false for the root.
func (h *Hierarchy) Parent(n *Node) (*Node, bool) {
	if n.Parent == NoNode {
		return nil, false
	}
	return &h.nodes[n.Parent], true
}

// child finds the direct child of n with the given name.
func (h *Hierarchy) child(n *Node, name string) (*Node, bool) {
	for _, id := range n.Children {
		if h.nodes[id].Name == name {
			return &h.nodes[id], true
		}
	}
	return nil, false
}

// Subtree lists the names of a node and all of its descendants, depth first.
func (h *Hierarchy) Subtree(name string) ([]string, error) {
	n, err := h.Node(name)
	if err != nil {
		return nil, err
	}
	return h.subtree(n), nil
}

func (h *Hierarchy) subtree(n *Node) []string {
	names := []string{n.Name}
	for _, id := range n.Children {
		names = append(names, h.subtree(&h.nodes[id])...)
	}
	return names
}

// Ancestors lists the names on the path from the root to the node, inclusive.
func (h *Hierarchy) Ancestors(name string) ([]string, error) {
	n, err := h.Node(name)
	if err != nil {
		return nil, err
	}
	var path []string
	for id := n.ID; id != NoNode; id = h.nodes[id].Parent {
		path = append([]string{h.nodes[id].Name}, path...)
	}
	return path, nil
}

// Categories lists the names of every node whose level is at most levelLimit, breadth first.
func (h *Hierarchy) Categories(levelLimit int) []string {
	return h.NodeCategories(h.Root(), levelLimit)
}

// NodeCategories lists the names of the node and its descendants at most depth levels below it, breadth first.
func (h *Hierarchy) NodeCategories(n *Node, depth int) []string {
	var names []string
	queue := []NodeID{n.ID}
	for len(queue) > 0 {
		m := &h.nodes[queue[0]]
		queue = queue[1:]
		if m.Level-n.Level > depth {
			continue
		}
		names = append(names, m.Name)
		queue = append(queue, m.Children...)
	}
	return names
}

// Cost is the number of probe queries needed to classify a collection into every node of the subtree, i.e. the total
// number of rules held by the classifiers in the subtree.
func (h *Hierarchy) Cost(name string) (int, error) {
	n, err := h.Node(name)
	if err != nil {
		return 0, err
	}
	return h.cost(n), nil
}

func (h *Hierarchy) cost(n *Node) int {
	c := 0
	if n.Classifier != nil {
		c = len(n.Classifier.Rules)
	}
	for _, id := range n.Children {
		c += h.cost(&h.nodes[id])
	}
	return c
}
