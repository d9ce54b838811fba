package models

// NodeCount returns the number of nodes in the graph
func (g *Graph) NodeCount() int {
	return len(g.positions)
}

// EdgeCount returns the number of stored edges, duplicates and self-loops included
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// State returns the placement state of the graph
func (g *Graph) State() State {
	return g.state
}

// Position returns the position of a single node
func (g *Graph) Position(i int) Vec2 {
	return g.positions[i]
}

// Velocity returns the velocity of a single node
func (g *Graph) Velocity(i int) Vec2 {
	return g.velocities[i]
}

// Positions returns a snapshot of all node positions, index-aligned to node identity
func (g *Graph) Positions() []Vec2 {
	out := make([]Vec2, len(g.positions))
	copy(out, g.positions)
	return out
}

// Velocities returns a snapshot of all node velocities
func (g *Graph) Velocities() []Vec2 {
	out := make([]Vec2, len(g.velocities))
	copy(out, g.velocities)
	return out
}

// Edges returns a copy of the edge list
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Buffers returns the live position and velocity slices for in-place
// mutation by the physics stepper. Other callers should use Positions.
func (g *Graph) Buffers() (positions, velocities []Vec2) {
	return g.positions, g.velocities
}

// EdgeList returns the live edge slice. Callers must not modify it.
func (g *Graph) EdgeList() []Edge {
	return g.edges
}

// Description converts the graph back to its external form
func (g *Graph) Description() *Description {
	count := len(g.positions)
	edges := make([][2]int, len(g.edges))
	for i, e := range g.edges {
		edges[i] = [2]int{e.From, e.To}
	}
	return &Description{NodeCount: &count, Edges: edges}
}
