package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestBuildZeroState(t *testing.T) {
	g, err := Build(4, []Edge{{0, 1}, {1, 2}, {2, 2}, {0, 1}})
	require.NoError(t, err)

	assert.Equal(t, 4, g.NodeCount())
	assert.Len(t, g.Positions(), 4)
	assert.Len(t, g.Velocities(), 4)
	for i := 0; i < g.NodeCount(); i++ {
		assert.Equal(t, Vec2{}, g.Position(i))
		assert.Equal(t, Vec2{}, g.Velocity(i))
	}
	assert.Equal(t, Unplaced, g.State())
	assert.NotEmpty(t, g.ID)

	// Edges are kept verbatim: order, duplicates and self-loops
	assert.Equal(t, []Edge{{0, 1}, {1, 2}, {2, 2}, {0, 1}}, g.Edges())
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		nodeCount int
		edges     []Edge
	}{
		{"negative count", -1, nil},
		{"edge past end", 2, []Edge{{0, 2}}},
		{"negative endpoint", 3, []Edge{{-1, 0}}},
		{"edges on empty graph", 0, []Edge{{0, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.nodeCount, tt.edges)
			assert.True(t, errors.Is(err, ErrInvalidGraph), "got %v", err)
		})
	}
}

func TestBuildEmptyGraph(t *testing.T) {
	g, err := Build(0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NodeCount())
	assert.Empty(t, g.Positions())
}

func TestBuildFromDescription(t *testing.T) {
	g, err := BuildFromDescription(&Description{NodeCount: intPtr(3), Edges: [][2]int{{0, 1}, {2, 1}}})
	require.NoError(t, err)
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, []Edge{{0, 1}, {2, 1}}, g.Edges())

	_, err = BuildFromDescription(&Description{Edges: [][2]int{{0, 1}}})
	assert.ErrorIs(t, err, ErrInvalidGraph)

	_, err = BuildFromDescription(nil)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestRandomizeStaysInsideMargin(t *testing.T) {
	for _, sampler := range []Sampler{NewUniformSampler(7), NewNoiseSampler(7)} {
		g, err := Build(200, nil)
		require.NoError(t, err)

		margin := 0.25
		require.NoError(t, g.Randomize(margin, sampler))
		assert.Equal(t, Placed, g.State())

		for i, p := range g.Positions() {
			assert.GreaterOrEqual(t, p.X, -1+margin, "node %d x", i)
			assert.LessOrEqual(t, p.X, 1-margin, "node %d x", i)
			assert.GreaterOrEqual(t, p.Y, -1+margin, "node %d y", i)
			assert.LessOrEqual(t, p.Y, 1-margin, "node %d y", i)
		}
		for _, v := range g.Velocities() {
			assert.Equal(t, Vec2{}, v)
		}
	}
}

func TestRandomizeIsSeeded(t *testing.T) {
	a, _ := Build(10, nil)
	b, _ := Build(10, nil)
	require.NoError(t, a.Randomize(0.1, NewUniformSampler(42)))
	require.NoError(t, b.Randomize(0.1, NewUniformSampler(42)))
	assert.Equal(t, a.Positions(), b.Positions())
}

func TestRandomizeRejectsBadMargin(t *testing.T) {
	g, _ := Build(3, nil)
	for _, margin := range []float64{-0.1, 1, 1.5, math.NaN()} {
		err := g.Randomize(margin, NewUniformSampler(1))
		assert.ErrorIs(t, err, ErrInvalidParameter, "margin %v", margin)
	}
	assert.Equal(t, Unplaced, g.State())
	assert.ErrorIs(t, g.Randomize(0.1, nil), ErrInvalidParameter)
}

func TestRestore(t *testing.T) {
	g, _ := Build(2, []Edge{{0, 1}})
	pos := []Vec2{{0.1, 0.2}, {-0.3, 0.4}}
	vel := []Vec2{{0.01, 0}, {0, -0.01}}

	require.NoError(t, g.Restore(pos, vel))
	assert.Equal(t, pos, g.Positions())
	assert.Equal(t, vel, g.Velocities())
	assert.Equal(t, Placed, g.State())

	assert.ErrorIs(t, g.Restore(pos[:1], vel), ErrInvalidGraph)
}

func TestSnapshotsAreCopies(t *testing.T) {
	g, _ := Build(1, nil)
	snap := g.Positions()
	snap[0] = Vec2{X: 0.5}
	assert.Equal(t, Vec2{}, g.Position(0))
}

func TestEdgeVertices(t *testing.T) {
	positions := []Vec2{{-0.5, 0}, {0.5, 0}, {0, 0.25}}
	edges := []Edge{{0, 1}, {2, 0}, {1, 1}}

	got := EdgeVertices(positions, edges)
	assert.Equal(t, []float64{
		-0.5, 0, 0.5, 0,
		0, 0.25, -0.5, 0,
		0.5, 0, 0.5, 0,
	}, got)
	assert.Empty(t, EdgeVertices(positions, nil))
}

func TestDescriptionRoundTrip(t *testing.T) {
	g, _ := Build(3, []Edge{{0, 1}, {1, 2}})
	d := g.Description()
	require.NotNil(t, d.NodeCount)
	assert.Equal(t, 3, *d.NodeCount)

	back, err := BuildFromDescription(d)
	require.NoError(t, err)
	assert.Equal(t, g.Edges(), back.Edges())
}
