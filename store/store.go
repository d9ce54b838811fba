// Package store persists graphs and layout checkpoints in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/TFMV/sitegraph/models"
)

// ErrNotFound is returned when a graph or snapshot does not exist
var ErrNotFound = errors.New("not found")

// Store keeps graphs and their position snapshots
type Store struct {
	db *sql.DB
}

// GraphInfo summarizes a stored graph
type GraphInfo struct {
	ID        string    `json:"id"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	LastStep  int       `json:"last_step"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the layout state of a graph after a given step
type Snapshot struct {
	GraphID    string        `json:"graph_id"`
	Step       int           `json:"step"`
	Positions  []models.Vec2 `json:"positions"`
	Velocities []models.Vec2 `json:"velocities"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Checkpoint is a graph restored from the store
type Checkpoint struct {
	Graph  *models.Graph
	Labels []string
	Step   int
}

// New opens (or creates) the database at dbPath. ":memory:" is accepted.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps ":memory:" on a single shared connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS graphs (
		id TEXT PRIMARY KEY,
		node_count INTEGER NOT NULL,
		edges JSON NOT NULL,
		labels JSON NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		graph_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		positions JSON NOT NULL,
		velocities JSON NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (graph_id, step),
		FOREIGN KEY (graph_id) REFERENCES graphs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_graph_step ON snapshots(graph_id, step DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGraph stores the structure of g with optional node labels.
// Saving the same ID again replaces the structure and keeps its snapshots.
func (s *Store) SaveGraph(ctx context.Context, g *models.Graph, labels []string) error {
	d := g.Description()
	edges, err := json.Marshal(d.Edges)
	if err != nil {
		return fmt.Errorf("failed to marshal edges: %w", err)
	}
	if labels == nil {
		labels = []string{}
	}
	labelData, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graphs (id, node_count, edges, labels, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			node_count = excluded.node_count,
			edges = excluded.edges,
			labels = excluded.labels
	`, g.ID, *d.NodeCount, string(edges), string(labelData), g.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save graph %s: %w", g.ID, err)
	}
	return nil
}

// SaveSnapshot records positions and velocities after step
func (s *Store) SaveSnapshot(ctx context.Context, graphID string, step int, positions, velocities []models.Vec2) error {
	if len(positions) != len(velocities) {
		return fmt.Errorf("%w: %d positions, %d velocities", models.ErrInvalidGraph, len(positions), len(velocities))
	}
	pos, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}
	vel, err := json.Marshal(velocities)
	if err != nil {
		return fmt.Errorf("failed to marshal velocities: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (graph_id, step, positions, velocities, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, graphID, step, string(pos), string(vel), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s@%d: %w", graphID, step, err)
	}
	return nil
}

// LatestSnapshot returns the snapshot with the highest step for graphID
func (s *Store) LatestSnapshot(ctx context.Context, graphID string) (*Snapshot, error) {
	var (
		snap     = Snapshot{GraphID: graphID}
		pos, vel string
		created  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT step, positions, velocities, created_at
		FROM snapshots
		WHERE graph_id = ?
		ORDER BY step DESC
		LIMIT 1
	`, graphID).Scan(&snap.Step, &pos, &vel, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for %s: %w", graphID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(0, created)

	if err := json.Unmarshal([]byte(pos), &snap.Positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	if err := json.Unmarshal([]byte(vel), &snap.Velocities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal velocities: %w", err)
	}
	return &snap, nil
}

// LoadGraph rebuilds graph id. When a snapshot exists the graph is restored
// to it and the checkpoint's Step is the snapshot's; otherwise the graph is
// unplaced at step 0.
func (s *Store) LoadGraph(ctx context.Context, id string) (*Checkpoint, error) {
	var (
		nodeCount           int
		edgeData, labelData string
		createdAt           int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT node_count, edges, labels, created_at FROM graphs WHERE id = ?
	`, id).Scan(&nodeCount, &edgeData, &labelData, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query graph: %w", err)
	}

	var pairs [][2]int
	if err := json.Unmarshal([]byte(edgeData), &pairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}
	var labels []string
	if err := json.Unmarshal([]byte(labelData), &labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}

	edges := make([]models.Edge, len(pairs))
	for i, p := range pairs {
		edges[i] = models.Edge{From: p[0], To: p[1]}
	}
	g, err := models.BuildWithID(id, nodeCount, edges)
	if err != nil {
		return nil, err
	}
	g.CreatedAt = time.Unix(0, createdAt)

	cp := &Checkpoint{Graph: g, Labels: labels}
	snap, err := s.LatestSnapshot(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return cp, nil
	case err != nil:
		return nil, err
	}
	if err := g.Restore(snap.Positions, snap.Velocities); err != nil {
		return nil, fmt.Errorf("snapshot %s@%d: %w", id, snap.Step, err)
	}
	cp.Step = snap.Step
	return cp, nil
}

// ListGraphs returns every stored graph, newest first
func (s *Store) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.node_count, json_array_length(g.edges), COALESCE(MAX(s.step), 0), g.created_at
		FROM graphs g
		LEFT JOIN snapshots s ON s.graph_id = g.id
		GROUP BY g.id
		ORDER BY g.created_at DESC, g.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphs: %w", err)
	}
	defer rows.Close()

	var infos []GraphInfo
	for rows.Next() {
		var (
			info    GraphInfo
			created int64
		)
		if err := rows.Scan(&info.ID, &info.NodeCount, &info.EdgeCount, &info.LastStep, &created); err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}
		info.CreatedAt = time.Unix(0, created)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteGraph removes a graph and its snapshots
func (s *Store) DeleteGraph(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	return nil
}

// PruneSnapshots keeps the newest keep snapshots of graphID
func (s *Store) PruneSnapshots(ctx context.Context, graphID string, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE graph_id = ? AND step NOT IN (
			SELECT step FROM snapshots WHERE graph_id = ? ORDER BY step DESC LIMIT ?
		)
	`, graphID, graphID, keep)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}
