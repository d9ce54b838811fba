// Package models provides the data structures for the sitegraph layout engine.
// It defines the graph state the physics stepper mutates and the description
// format collaborators hand to it.
package models

import (
	"errors"
	"time"
)

var (
	// ErrInvalidGraph is returned when a graph description is malformed or
	// references nodes that do not exist.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrInvalidParameter is returned when a layout parameter is outside its
	// documented domain.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Vec2 is a 2D vector used for positions, velocities and forces
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge is an ordered pair of node indices (node_out, node_in)
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// IsSelfLoop reports whether both endpoints are the same node
func (e Edge) IsSelfLoop() bool {
	return e.From == e.To
}

// State is the placement state of a graph
type State int

const (
	// Unplaced graphs have every node at the origin
	Unplaced State = iota
	// Placed graphs have been randomized or restored from a checkpoint
	Placed
)

// String returns the string representation of a state
func (s State) String() string {
	switch s {
	case Unplaced:
		return "unplaced"
	case Placed:
		return "placed"
	default:
		return "unknown"
	}
}

// Graph holds node positions, per-node velocities and the edge list.
// Positions and velocities are parallel slices indexed by node identity.
type Graph struct {
	ID         string
	positions  []Vec2
	velocities []Vec2
	edges      []Edge
	state      State
	CreatedAt  time.Time
}

// Description is the external form of a graph: a node count and the edges
// between node indices. NodeCount is a pointer so a missing field can be told
// apart from an empty graph.
type Description struct {
	Nodes     []string `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	NodeCount *int     `json:"node_count" yaml:"node_count"`
	Edges     [][2]int `json:"edges" yaml:"edges"`
}
