package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Build creates a graph with nodeCount nodes at the origin and the given edges.
// Edges are stored verbatim, duplicates and self-loops included.
func Build(nodeCount int, edges []Edge) (*Graph, error) {
	return BuildWithID(uuid.New().String(), nodeCount, edges)
}

// BuildWithID creates a graph like Build but keeps a known identifier, for
// example when reloading a stored graph.
func BuildWithID(id string, nodeCount int, edges []Edge) (*Graph, error) {
	if nodeCount < 0 {
		return nil, fmt.Errorf("%w: negative node count %d", ErrInvalidGraph, nodeCount)
	}
	for i, e := range edges {
		if e.From < 0 || e.From >= nodeCount || e.To < 0 || e.To >= nodeCount {
			return nil, fmt.Errorf("%w: edge %d (%d, %d) out of range for %d nodes",
				ErrInvalidGraph, i, e.From, e.To, nodeCount)
		}
	}

	stored := make([]Edge, len(edges))
	copy(stored, edges)

	return &Graph{
		ID:         id,
		positions:  make([]Vec2, nodeCount),
		velocities: make([]Vec2, nodeCount),
		edges:      stored,
		state:      Unplaced,
		CreatedAt:  time.Now(),
	}, nil
}

// BuildFromDescription creates a graph from an external description
func BuildFromDescription(d *Description) (*Graph, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil description", ErrInvalidGraph)
	}
	if d.NodeCount == nil {
		return nil, fmt.Errorf("%w: node_count is missing", ErrInvalidGraph)
	}

	edges := make([]Edge, len(d.Edges))
	for i, pair := range d.Edges {
		edges[i] = Edge{From: pair[0], To: pair[1]}
	}
	return Build(*d.NodeCount, edges)
}

// Randomize places every node independently and uniformly inside
// [-1+margin, 1-margin] on both axes. Velocities are left untouched.
func (g *Graph) Randomize(margin float64, sampler Sampler) error {
	lo, hi, err := Bounds(margin)
	if err != nil {
		return err
	}
	if sampler == nil {
		return fmt.Errorf("%w: nil sampler", ErrInvalidParameter)
	}

	span := hi - lo
	for i := range g.positions {
		g.positions[i] = Vec2{
			X: clamp(lo+sampler.Float64()*span, lo, hi),
			Y: clamp(lo+sampler.Float64()*span, lo, hi),
		}
	}
	g.state = Placed
	return nil
}

// Restore loads positions and velocities from a checkpoint
func (g *Graph) Restore(positions, velocities []Vec2) error {
	if len(positions) != len(g.positions) || len(velocities) != len(g.velocities) {
		return fmt.Errorf("%w: checkpoint has %d positions and %d velocities, graph has %d nodes",
			ErrInvalidGraph, len(positions), len(velocities), len(g.positions))
	}
	copy(g.positions, positions)
	copy(g.velocities, velocities)
	g.state = Placed
	return nil
}

// SetPosition moves a node. It does not change the placement state.
func (g *Graph) SetPosition(i int, x, y float64) {
	g.positions[i] = Vec2{X: x, Y: y}
}

// Bounds returns the domain [-1+margin, 1-margin] for a margin, or
// ErrInvalidParameter when the interval would be empty or inverted.
func Bounds(margin float64) (float64, float64, error) {
	if math.IsNaN(margin) || margin < 0 || margin >= 1 {
		return 0, 0, fmt.Errorf("%w: margin %v outside [0, 1)", ErrInvalidParameter, margin)
	}
	return -1 + margin, 1 - margin, nil
}

// EdgeVertices flattens edges into x1, y1, x2, y2 quadruples using the given
// positions, ready for a batched line upload.
func EdgeVertices(positions []Vec2, edges []Edge) []float64 {
	vertices := make([]float64, 0, len(edges)*4)
	for _, e := range edges {
		from, to := positions[e.From], positions[e.To]
		vertices = append(vertices, from.X, from.Y, to.X, to.Y)
	}
	return vertices
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
