package physics

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/TFMV/sitegraph/models"
)

type layoutCase struct {
	nodes     int
	edges     []models.Edge
	seed      int64
	margin    float64
	smoothing float64
	repulsive float64
	steps     int
	// squeeze pulls node 1 to within this distance of node 0
	squeeze float64
}

func genLayoutCase() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 30),
		gen.SliceOf(gen.IntRange(0, 1<<20)),
		gen.Int64(),
		gen.Float64Range(0, 0.95),
		gen.Float64Range(0.01, 1),
		gen.Float64Range(0, 0.05),
		gen.IntRange(1, 8),
		gen.OneConstOf(0.0, 1e-300, 1e-160, 1e-150, 1e-100),
	).Map(func(vals []interface{}) layoutCase {
		n := vals[0].(int)
		raw := vals[1].([]int)
		edges := make([]models.Edge, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			edges = append(edges, models.Edge{From: raw[i] % n, To: raw[i+1] % n})
		}
		return layoutCase{
			nodes:     n,
			edges:     edges,
			seed:      vals[2].(int64),
			margin:    vals[3].(float64),
			smoothing: vals[4].(float64),
			repulsive: vals[5].(float64),
			steps:     vals[6].(int),
			squeeze:   vals[7].(float64),
		}
	})
}

func (c layoutCase) build() *models.Graph {
	g, err := models.Build(c.nodes, c.edges)
	if err != nil {
		panic(err)
	}
	if err := g.Randomize(c.margin, models.NewUniformSampler(c.seed)); err != nil {
		panic(err)
	}
	if c.squeeze > 0 && c.nodes > 1 {
		p := g.Position(0)
		g.SetPosition(1, p.X+c.squeeze, p.Y)
	}
	return g
}

func (c layoutCase) params() Params {
	return Params{RepulsiveK: c.repulsive, AttractiveK: 0.05, Margin: c.margin, Smoothing: c.smoothing}
}

func TestLayoutInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("positions stay inside the margin after every step", prop.ForAll(
		func(c layoutCase) bool {
			g := c.build()
			lo, hi := -1+c.margin, 1-c.margin
			for s := 0; s < c.steps; s++ {
				if err := Step(g, c.params()); err != nil {
					return false
				}
				for _, p := range g.Positions() {
					if !(p.X >= lo && p.X <= hi && p.Y >= lo && p.Y <= hi) {
						return false
					}
				}
			}
			return true
		},
		genLayoutCase(),
	))

	properties.Property("self-loops never change a step", prop.ForAll(
		func(c layoutCase, loopAt int) bool {
			plain := c.build()
			looped := c
			looped.edges = append(append([]models.Edge{}, c.edges...), models.Edge{From: loopAt % c.nodes, To: loopAt % c.nodes})
			withLoop := looped.build()

			for s := 0; s < c.steps; s++ {
				if Step(plain, c.params()) != nil || Step(withLoop, c.params()) != nil {
					return false
				}
			}
			a, b := plain.Positions(), withLoop.Positions()
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		genLayoutCase(),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
