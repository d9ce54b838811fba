package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sitegraph/config"
	"github.com/TFMV/sitegraph/store"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sitegraph.yaml")
	body := "layout:\n  seed: 11\n" +
		"driver:\n  checkpoint_every: 10\n" +
		"store:\n  path: " + filepath.Join(dir, "sitegraph.db") + "\n  keep: 2\n" +
		"log:\n  level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func writeTestGraph(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "graph.json")
	body := `{"vizdata": {"nodes": ["/", "/about/", "/blog/"], "node_count": 3, "edges": [[0, 1], [1, 2], [2, 0]]}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func storedGraphs(t *testing.T, dir string) []store.GraphInfo {
	t.Helper()
	st, err := store.New(filepath.Join(dir, "sitegraph.db"))
	require.NoError(t, err)
	defer st.Close()
	infos, err := st.ListGraphs(context.Background())
	require.NoError(t, err)
	return infos
}

func TestRunConfigMode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "effective.yaml")

	err := run(context.Background(), &Configuration{Mode: "config", ConfigFile: writeTestConfig(t, dir), OutputFile: out})
	require.NoError(t, err)

	cfg, _, err := config.LoadFromPath(out)
	require.NoError(t, err)
	assert.Equal(t, int64(11), cfg.Layout.Seed)
	assert.Equal(t, 2, cfg.Store.Keep)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestRunRenderCheckpointsResumeAndDelete(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	out := filepath.Join(dir, "layout.json")

	err := run(context.Background(), &Configuration{
		Mode:       "json",
		ConfigFile: cfgPath,
		DataFile:   writeTestGraph(t, dir),
		OutputFile: out,
		Steps:      25,
		Width:      400,
		Height:     400,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))

	infos := storedGraphs(t, dir)
	require.Len(t, infos, 1)
	id := infos[0].ID
	assert.Equal(t, 3, infos[0].NodeCount)
	assert.Equal(t, 25, infos[0].LastStep)

	// Resuming continues the step count of the stored graph
	err = run(context.Background(), &Configuration{
		Mode:       "json",
		ConfigFile: cfgPath,
		Resume:     id,
		OutputFile: out,
		Steps:      5,
		Width:      400,
		Height:     400,
	})
	require.NoError(t, err)
	infos = storedGraphs(t, dir)
	require.Len(t, infos, 1)
	assert.Equal(t, 30, infos[0].LastStep)

	require.NoError(t, run(context.Background(), &Configuration{Mode: "delete", ConfigFile: cfgPath, Graph: id}))
	assert.Empty(t, storedGraphs(t, dir))

	err = run(context.Background(), &Configuration{Mode: "delete", ConfigFile: cfgPath, Graph: id})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListGraphs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	require.NoError(t, run(context.Background(), &Configuration{
		Mode:       "svg",
		ConfigFile: cfgPath,
		DataFile:   writeTestGraph(t, dir),
		OutputFile: filepath.Join(dir, "out.svg"),
		Steps:      3,
		Width:      200,
		Height:     200,
	}))
	id := storedGraphs(t, dir)[0].ID

	st, err := store.New(filepath.Join(dir, "sitegraph.db"))
	require.NoError(t, err)
	defer st.Close()

	var buf bytes.Buffer
	require.NoError(t, listGraphs(context.Background(), st, &buf))
	assert.Contains(t, buf.String(), "LAST STEP")
	assert.Contains(t, buf.String(), id)
}

func TestRunRejectsStoreModesWithoutStore(t *testing.T) {
	err := run(context.Background(), &Configuration{Mode: "list", ConfigFile: writeTestConfigWithoutStore(t)})
	assert.Error(t, err)
}

func writeTestConfigWithoutStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0644))
	return path
}
