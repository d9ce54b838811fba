package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sitegraph/models"
)

// newTestStore creates an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newTestGraph(t *testing.T) *models.Graph {
	t.Helper()
	g, err := models.Build(3, []models.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 2}})
	require.NoError(t, err)
	return g
}

func TestLoadGraphWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := newTestGraph(t)

	require.NoError(t, s.SaveGraph(ctx, g, []string{"/", "/a/", "/b/"}))

	cp, err := s.LoadGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, cp.Graph.ID)
	assert.Equal(t, 3, cp.Graph.NodeCount())
	assert.Equal(t, g.Edges(), cp.Graph.Edges())
	assert.Equal(t, []string{"/", "/a/", "/b/"}, cp.Labels)
	assert.Equal(t, 0, cp.Step)
	assert.Equal(t, models.Unplaced, cp.Graph.State())
	assert.True(t, g.CreatedAt.Equal(cp.Graph.CreatedAt))
}

func TestLoadGraphRestoresLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := newTestGraph(t)
	require.NoError(t, s.SaveGraph(ctx, g, nil))

	early := []models.Vec2{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}, {X: 0.3, Y: 0.3}}
	late := []models.Vec2{{X: -0.5, Y: 0.25}, {X: 0.125, Y: -0.75}, {X: 0.5, Y: 0.5}}
	vel := []models.Vec2{{X: 0.001}, {Y: -0.002}, {}}

	require.NoError(t, s.SaveSnapshot(ctx, g.ID, 100, early, vel))
	require.NoError(t, s.SaveSnapshot(ctx, g.ID, 200, late, vel))

	cp, err := s.LoadGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, cp.Step)
	assert.Equal(t, models.Placed, cp.Graph.State())
	assert.Equal(t, late, cp.Graph.Positions())
	assert.Equal(t, vel, cp.Graph.Velocities())
	assert.Empty(t, cp.Labels)
}

func TestSaveSnapshotRejectsMismatchedLengths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := newTestGraph(t)
	require.NoError(t, s.SaveGraph(ctx, g, nil))

	err := s.SaveSnapshot(ctx, g.ID, 1, make([]models.Vec2, 3), make([]models.Vec2, 2))
	assert.ErrorIs(t, err, models.ErrInvalidGraph)
}

func TestSaveSnapshotForUnknownGraph(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveSnapshot(context.Background(), "nope", 1, nil, nil)
	assert.Error(t, err)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LoadGraph(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteGraph(ctx, "missing"), ErrNotFound)
}

func TestListDeleteAndPrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := newTestGraph(t)
	require.NoError(t, s.SaveGraph(ctx, g, nil))

	pos := make([]models.Vec2, 3)
	for step := 10; step <= 50; step += 10 {
		require.NoError(t, s.SaveSnapshot(ctx, g.ID, step, pos, pos))
	}

	infos, err := s.ListGraphs(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, GraphInfo{ID: g.ID, NodeCount: 3, EdgeCount: 3, LastStep: 50, CreatedAt: infos[0].CreatedAt}, infos[0])

	require.NoError(t, s.PruneSnapshots(ctx, g.ID, 2))
	var remaining int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE graph_id = ?`, g.ID).Scan(&remaining))
	assert.Equal(t, 2, remaining)
	snap, err := s.LatestSnapshot(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, snap.Step)

	require.NoError(t, s.DeleteGraph(ctx, g.ID))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestFileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sitegraph.db")
	g := newTestGraph(t)

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveGraph(ctx, g, []string{"a", "b", "c"}))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	cp, err := s.LoadGraph(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cp.Labels)
}
