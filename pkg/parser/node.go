package parser

import "strings"

// Node is one bracketed block of a pause report, or a whole concurrent
// phase line. Children keep source order.
type Node struct {
	Type   string
	Detail string

	// Timestamp is in milliseconds ("126.426" becomes 126426).
	Timestamp *int64

	// Sizes in kilobytes.
	Before   *int64
	After    *int64
	Capacity *int64

	// Durations in seconds.
	Elapsed *float64
	User    *float64
	Sys     *float64
	Real    *float64
	CMSCPU  *float64
	CMSWall *float64

	Children []*Node
}

// TypeAndDetail renders the node as "type" or "type (detail)".
func (n *Node) TypeAndDetail() string {
	if n.Detail == "" {
		return n.Type
	}
	return n.Type + " (" + n.Detail + ")"
}

// Walk visits n and all of its descendants in pre-order.
// Returning false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// ChildTypes returns the types of the immediate children.
func (n *Node) ChildTypes() []string {
	types := make([]string, len(n.Children))
	for i, child := range n.Children {
		types[i] = child.Type
	}
	return types
}

// typeDetails joins the root and all descendants with "; ".
func (n *Node) typeDetails() string {
	var parts []string
	n.Walk(func(node *Node) bool {
		parts = append(parts, node.TypeAndDetail())
		return true
	})
	return strings.Join(parts, "; ")
}

func (n *Node) find(typ string) *Node {
	var found *Node
	n.Walk(func(node *Node) bool {
		if node != n && node.Type == typ {
			found = node
			return false
		}
		return true
	})
	return found
}
