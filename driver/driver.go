// Package driver runs a layout over time. A Driver owns its graph: only the
// driver goroutine mutates it, and everyone else receives immutable Frames.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TFMV/sitegraph/logging"
	"github.com/TFMV/sitegraph/metrics"
	"github.com/TFMV/sitegraph/models"
	"github.com/TFMV/sitegraph/physics"
	"github.com/TFMV/sitegraph/render"
)

// ErrRunning is returned when Run or RunSteps is called while the driver is
// already stepping.
var ErrRunning = errors.New("driver is already running")

// DefaultTick is one step per frame at 60 frames per second
const DefaultTick = time.Second / 60

// Checkpointer persists a graph and its layout progress
type Checkpointer interface {
	SaveGraph(ctx context.Context, g *models.Graph, labels []string) error
	SaveSnapshot(ctx context.Context, graphID string, step int, positions, velocities []models.Vec2) error
}

// Pruner is implemented by checkpointers that can drop old snapshots
type Pruner interface {
	PruneSnapshots(ctx context.Context, graphID string, keep int) error
}

// Frame is the published state of the layout after a step
type Frame struct {
	GraphID   string        `json:"graph_id"`
	Step      int           `json:"step"`
	Positions []models.Vec2 `json:"positions"`
	Vertices  []float64     `json:"vertices"`
	Energy    float64       `json:"energy"`
	At        time.Time     `json:"at"`
}

// Option configures a Driver
type Option func(*Driver)

// WithLabels attaches node labels used by scenes
func WithLabels(labels []string) Option {
	return func(d *Driver) {
		d.labels = labels
	}
}

// WithTick sets the interval between steps in Run
func WithTick(tick time.Duration) Option {
	return func(d *Driver) {
		if tick > 0 {
			d.tick = tick
		}
	}
}

// WithMaxSteps stops Run after n steps; 0 runs until cancelled
func WithMaxSteps(n int) Option {
	return func(d *Driver) {
		d.maxSteps = n
	}
}

// WithStartStep sets the step counter, for example when resuming a checkpoint
func WithStartStep(step int) Option {
	return func(d *Driver) {
		d.step = step
	}
}

// WithCheckpoints saves a snapshot every n steps and when the driver stops
func WithCheckpoints(c Checkpointer, every int) Option {
	return func(d *Driver) {
		d.store = c
		d.checkpointEvery = every
	}
}

// WithRetention keeps only the newest keep snapshots after each checkpoint,
// when the checkpointer is a Pruner. 0 keeps everything.
func WithRetention(keep int) Option {
	return func(d *Driver) {
		d.keep = keep
	}
}

// WithMetrics records step and frame metrics
func WithMetrics(r *metrics.Registry) Option {
	return func(d *Driver) {
		d.metrics = r
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// Driver steps a layout and publishes frames to subscribers
type Driver struct {
	graph  *models.Graph
	layout physics.LayoutAlgorithm
	edges  []models.Edge
	labels []string

	tick            time.Duration
	maxSteps        int
	store           Checkpointer
	checkpointEvery int
	keep            int
	metrics         *metrics.Registry
	logger          *slog.Logger

	// owned by the stepping goroutine
	step           int
	lastCheckpoint int

	running atomic.Bool
	paused  atomic.Bool

	mu     sync.RWMutex
	latest *Frame
	subs   map[int]chan *Frame
	nextID int
}

// New creates a driver for g. The graph should already be placed; the
// driver never places nodes itself.
func New(g *models.Graph, layout physics.LayoutAlgorithm, opts ...Option) (*Driver, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", models.ErrInvalidGraph)
	}
	if layout == nil {
		return nil, fmt.Errorf("%w: nil layout", models.ErrInvalidParameter)
	}

	d := &Driver{
		graph:  g,
		layout: layout,
		edges:  g.Edges(),
		tick:   DefaultTick,
		subs:   make(map[int]chan *Frame),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrDiscard(d.logger).With("component", "driver", "graph", g.ID)
	d.lastCheckpoint = d.step

	if g.State() == models.Unplaced && g.NodeCount() > 1 {
		d.logger.Warn("driving an unplaced graph; every node starts at the origin")
	}
	if d.metrics != nil {
		d.metrics.SetGraphSize(g.NodeCount(), len(d.edges))
	}

	d.latest = d.snapshot()
	return d, nil
}

// GraphID returns the ID of the driven graph
func (d *Driver) GraphID() string {
	return d.graph.ID
}

// Labels returns the node labels
func (d *Driver) Labels() []string {
	return d.labels
}

// Edges returns the edge list, which never changes
func (d *Driver) Edges() []models.Edge {
	return d.edges
}

// NodeCount returns the number of nodes
func (d *Driver) NodeCount() int {
	return d.graph.NodeCount()
}

// Latest returns the most recently published frame
func (d *Driver) Latest() *Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest
}

// Scene returns the latest frame as a drawable scene
func (d *Driver) Scene() *render.Scene {
	f := d.Latest()
	return &render.Scene{
		GraphID:   f.GraphID,
		Step:      f.Step,
		Positions: f.Positions,
		Edges:     d.edges,
		Labels:    d.labels,
	}
}

// Pause stops Run from stepping until Resume is called
func (d *Driver) Pause() {
	d.paused.Store(true)
}

// Resume undoes Pause
func (d *Driver) Resume() {
	d.paused.Store(false)
}

// TogglePause flips the paused state and returns the new one
func (d *Driver) TogglePause() bool {
	for {
		old := d.paused.Load()
		if d.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Paused reports whether the driver is paused
func (d *Driver) Paused() bool {
	return d.paused.Load()
}

// Running reports whether Run or RunSteps is in progress
func (d *Driver) Running() bool {
	return d.running.Load()
}

// Subscribe returns a channel of frames and a function that cancels the
// subscription. Slow subscribers miss frames rather than stall the driver.
func (d *Driver) Subscribe() (<-chan *Frame, func()) {
	ch := make(chan *Frame, 4)

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = ch
	d.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			close(ch)
			d.mu.Unlock()
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscriptions
func (d *Driver) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Run steps the layout once per tick until ctx is cancelled or the step
// budget is spent. Stopping writes a final checkpoint. A cancelled context
// returns ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	if err := d.saveGraph(ctx); err != nil {
		return err
	}
	defer d.finalCheckpoint(ctx)

	d.logger.Info("layout started", "tick", d.tick, "max_steps", d.maxSteps, "step", d.step)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	start := d.step
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("layout stopped", "step", d.step)
			return ctx.Err()
		case <-ticker.C:
			if d.paused.Load() {
				continue
			}
			if err := d.stepOnce(ctx); err != nil {
				return err
			}
			if d.maxSteps > 0 && d.step-start >= d.maxSteps {
				d.logger.Info("layout finished", "step", d.step)
				return nil
			}
		}
	}
}

// RunSteps applies n steps back to back, ignoring the tick and pause state
func (d *Driver) RunSteps(ctx context.Context, n int) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer d.running.Store(false)

	if err := d.saveGraph(ctx); err != nil {
		return err
	}
	defer d.finalCheckpoint(ctx)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.stepOnce(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) stepOnce(ctx context.Context) error {
	began := time.Now()
	if err := d.layout.Step(d.graph); err != nil {
		if d.metrics != nil {
			d.metrics.RecordStepError()
		}
		return fmt.Errorf("step %d: %w", d.step+1, err)
	}
	elapsed := time.Since(began)
	d.step++

	frame := d.snapshot()
	if d.metrics != nil {
		d.metrics.RecordStep(d.layout.GetName(), elapsed, frame.Energy)
	}
	d.publish(frame)

	if d.store != nil && d.checkpointEvery > 0 && d.step%d.checkpointEvery == 0 {
		d.checkpoint(ctx)
	}
	return nil
}

func (d *Driver) snapshot() *Frame {
	positions := d.graph.Positions()
	energy := 0.0
	for _, v := range d.graph.Velocities() {
		energy += v.X*v.X + v.Y*v.Y
	}
	return &Frame{
		GraphID:   d.graph.ID,
		Step:      d.step,
		Positions: positions,
		Vertices:  models.EdgeVertices(positions, d.edges),
		Energy:    energy,
		At:        time.Now(),
	}
}

func (d *Driver) publish(frame *Frame) {
	d.mu.Lock()
	d.latest = frame
	d.mu.Unlock()

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.subs {
		select {
		case ch <- frame:
			if d.metrics != nil {
				d.metrics.RecordFrame(true)
			}
		default:
			if d.metrics != nil {
				d.metrics.RecordFrame(false)
			}
		}
	}
}

func (d *Driver) saveGraph(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	if err := d.store.SaveGraph(ctx, d.graph, d.labels); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	return nil
}

func (d *Driver) checkpoint(ctx context.Context) {
	err := d.store.SaveSnapshot(ctx, d.graph.ID, d.step, d.graph.Positions(), d.graph.Velocities())
	if d.metrics != nil {
		d.metrics.RecordCheckpoint(err)
	}
	if err != nil {
		d.logger.Warn("checkpoint failed", "step", d.step, "error", err)
		return
	}
	d.lastCheckpoint = d.step
	d.logger.Debug("checkpoint saved", "step", d.step)

	if pruner, ok := d.store.(Pruner); ok && d.keep > 0 {
		if err := pruner.PruneSnapshots(ctx, d.graph.ID, d.keep); err != nil {
			d.logger.Warn("prune snapshots failed", "step", d.step, "error", err)
		}
	}
}

// finalCheckpoint saves progress made since the last checkpoint. It runs
// with a context detached from cancellation so shutdown still persists.
func (d *Driver) finalCheckpoint(ctx context.Context) {
	if d.store == nil || d.step == d.lastCheckpoint {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	d.checkpoint(ctx)
}
