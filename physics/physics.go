// Package physics implements the force-directed layout stepper.
//
// Every node repels every other node with an inverse-square force and every
// edge pulls its endpoints together like a spring with no rest length. Forces
// are blended into velocities with an exponential moving average, positions
// are advanced by one unit timestep and then clamped into the layout domain.
package physics

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/TFMV/sitegraph/models"
)

// LayoutAlgorithm defines an interface for layout algorithms
type LayoutAlgorithm interface {
	// Step advances the layout of g by one iteration
	Step(g *models.Graph) error
	// GetName returns the name of the algorithm
	GetName() string
}

// ForceDirectedLayout is a reusable stepper bound to a parameter set.
// It holds no simulation state between calls; everything lives in the graph.
type ForceDirectedLayout struct {
	params  Params
	workers int
}

var _ LayoutAlgorithm = (*ForceDirectedLayout)(nil)

// NewForceDirectedLayout creates a stepper. workers <= 1 runs the repulsion
// phase serially; larger values fan it out across goroutines.
func NewForceDirectedLayout(params Params, workers int) (*ForceDirectedLayout, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	if procs := runtime.GOMAXPROCS(0); workers > procs {
		workers = procs
	}
	return &ForceDirectedLayout{params: params, workers: workers}, nil
}

// GetName returns the name of the layout algorithm
func (fd *ForceDirectedLayout) GetName() string {
	return "Force-Directed Layout"
}

// Params returns the stepper's parameters
func (fd *ForceDirectedLayout) Params() Params {
	return fd.params
}

// Workers returns the number of goroutines used for repulsion
func (fd *ForceDirectedLayout) Workers() int {
	return fd.workers
}

// Step performs one update of g with the stepper's parameters
func (fd *ForceDirectedLayout) Step(g *models.Graph) error {
	return step(g, fd.params, fd.workers)
}

// Forces returns the accumulated force on every node before smoothing
func (fd *ForceDirectedLayout) Forces(g *models.Graph) []models.Vec2 {
	positions, _ := g.Buffers()
	return accumulate(positions, g.EdgeList(), fd.params, fd.workers)
}

// Step performs one discrete update of all node positions and velocities.
// Parameters are validated before anything is touched, so a failed call
// leaves the graph unchanged.
//
// Stepping an unplaced graph is allowed: every node sits at the origin, all
// pairwise distances are zero and the first iteration moves nothing.
func Step(g *models.Graph, p Params) error {
	return step(g, p, 1)
}

// Forces returns the accumulated repulsion and attraction on every node for
// the graph's current positions, before velocity smoothing.
func Forces(g *models.Graph, p Params) []models.Vec2 {
	positions, _ := g.Buffers()
	return accumulate(positions, g.EdgeList(), p, 1)
}

func step(g *models.Graph, p Params, workers int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	lo, hi, err := models.Bounds(p.Margin)
	if err != nil {
		return err
	}

	positions, velocities := g.Buffers()
	forces := accumulate(positions, g.EdgeList(), p, workers)

	s := p.Smoothing
	for i, f := range forces {
		v := velocities[i]
		v.X = v.X*(1-s) + f.X*s
		v.Y = v.Y*(1-s) + f.Y*s
		v.X, v.Y = bounded(v.X), bounded(v.Y)
		velocities[i] = v

		pos := positions[i]
		pos.X = math.Max(lo, math.Min(hi, pos.X+v.X))
		pos.Y = math.Max(lo, math.Min(hi, pos.Y+v.Y))
		positions[i] = pos
	}
	return nil
}

func accumulate(positions []models.Vec2, edges []models.Edge, p Params, workers int) []models.Vec2 {
	n := len(positions)
	var forces []models.Vec2
	if workers > 1 && n > 2*workers {
		forces = repelParallel(positions, p.RepulsiveK, workers)
	} else {
		forces = make([]models.Vec2, n)
		for i := 0; i < n; i++ {
			repelRow(positions, forces, i, p.RepulsiveK)
		}
	}
	attract(positions, edges, forces, p.AttractiveK)
	return forces
}

// repelRow applies the repulsion between node i and every node j > i
func repelRow(positions, forces []models.Vec2, i int, k float64) {
	pi := positions[i]
	for j := i + 1; j < len(positions); j++ {
		dx := pi.X - positions[j].X
		dy := pi.Y - positions[j].Y
		d2 := dx*dx + dy*dy
		// Coincident nodes do not push each other
		if d2 <= 0 {
			continue
		}
		d := math.Sqrt(d2)
		mag := k / d2
		fx := mag * dx / d
		fy := mag * dy / d
		// Nodes close enough to overflow the force are treated as coincident
		if !finite(fx) || !finite(fy) {
			continue
		}
		forces[i].X += fx
		forces[i].Y += fy
		forces[j].X -= fx
		forces[j].Y -= fy
	}
}

// repelParallel deals rows out round-robin so each worker gets a similar
// number of pairs, accumulates into private buffers and sums them in worker
// order.
func repelParallel(positions []models.Vec2, k float64, workers int) []models.Vec2 {
	n := len(positions)
	buffers := make([][]models.Vec2, workers)

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		buffers[w] = make([]models.Vec2, n)
		eg.Go(func() error {
			for i := w; i < n; i += workers {
				repelRow(positions, buffers[w], i, k)
			}
			return nil
		})
	}
	_ = eg.Wait()

	forces := buffers[0]
	for _, buf := range buffers[1:] {
		for i := range forces {
			forces[i].X += buf[i].X
			forces[i].Y += buf[i].Y
		}
	}
	return forces
}

// attract applies the spring force of every edge. Duplicates each contribute;
// self-loops and coincident endpoints contribute nothing.
func attract(positions []models.Vec2, edges []models.Edge, forces []models.Vec2, k float64) {
	for _, e := range edges {
		if e.IsSelfLoop() {
			continue
		}
		dx := positions[e.From].X - positions[e.To].X
		dy := positions[e.From].Y - positions[e.To].Y
		d := math.Sqrt(dx*dx + dy*dy)
		if d <= 0 {
			continue
		}
		mag := k * d
		fx := mag * dx / d
		fy := mag * dy / d
		if !finite(fx) || !finite(fy) {
			continue
		}
		forces[e.From].X -= fx
		forces[e.From].Y -= fy
		forces[e.To].X += fx
		forces[e.To].Y += fy
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// bounded keeps a velocity component representable: overflow saturates at
// the largest float and NaN becomes zero, so positions always clamp cleanly.
func bounded(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(-math.MaxFloat64, math.Min(math.MaxFloat64, x))
}
