package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/sitegraph/models"
)

func TestJSONProcessorVizData(t *testing.T) {
	data := []byte(`{
		"graph": {"/": ["/about/"], "/about/": ["/"]},
		"vizdata": {
			"nodes": ["/", "/about/"],
			"node_count": 2,
			"edges": [[0, 1], [1, 0]]
		}
	}`)

	d, err := NewJSONProcessor().ProcessData(data)
	require.NoError(t, err)
	require.NotNil(t, d.NodeCount)
	assert.Equal(t, 2, *d.NodeCount)
	assert.Equal(t, [][2]int{{0, 1}, {1, 0}}, d.Edges)
	assert.Equal(t, []string{"/", "/about/"}, d.Nodes)
}

func TestJSONProcessorFlat(t *testing.T) {
	d, err := NewJSONProcessor().ProcessData([]byte(`{"node_count": 3, "edges": [[0, 2], [2, 2]]}`))
	require.NoError(t, err)
	assert.Equal(t, 3, *d.NodeCount)
	assert.Equal(t, [][2]int{{0, 2}, {2, 2}}, d.Edges)
}

func TestJSONProcessorErrors(t *testing.T) {
	tests := map[string]string{
		"missing node count": `{"edges": [[0, 1]]}`,
		"malformed json":     `{"node_count": 2,`,
		"fractional count":   `{"node_count": 2.5, "edges": []}`,
		"short edge":         `{"node_count": 2, "edges": [[0]]}`,
		"long edge":          `{"node_count": 2, "edges": [[0, 1, 1]]}`,
		"missing in vizdata": `{"vizdata": {"edges": []}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewJSONProcessor().ProcessData([]byte(input))
			assert.ErrorIs(t, err, models.ErrInvalidGraph)
		})
	}
}

func TestYAMLProcessor(t *testing.T) {
	data := []byte("vizdata:\n  node_count: 3\n  edges:\n    - [0, 1]\n    - [1, 2]\n")
	d, err := NewYAMLProcessor().ProcessData(data)
	require.NoError(t, err)
	assert.Equal(t, 3, *d.NodeCount)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, d.Edges)

	_, err = NewYAMLProcessor().ProcessData([]byte("edges: []\n"))
	assert.ErrorIs(t, err, models.ErrInvalidGraph)
}

func TestCSVProcessor(t *testing.T) {
	data := []byte("from,to,weight\na,b,1\nb,c,2\nc,a,1\na,b,1\n")
	d, err := NewCSVProcessor().ProcessData(data)
	require.NoError(t, err)
	assert.Equal(t, 3, *d.NodeCount)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 0}, {0, 1}}, d.Edges)
	assert.Equal(t, []string{"a", "b", "c"}, d.Nodes)

	_, err = NewCSVProcessor().ProcessData([]byte("name,value\na,1\n"))
	assert.ErrorIs(t, err, models.ErrInvalidGraph)
}

func TestLogProcessor(t *testing.T) {
	data := []byte("# comment\nhome -> about\nabout links to blog\n\nnoise line\nblog => home\n")
	d, err := NewLogProcessor().ProcessData(data)
	require.NoError(t, err)
	assert.Equal(t, 3, *d.NodeCount)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 0}}, d.Edges)
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"node_count": 2, "edges": [[0, 1]]}`), 0644))

	d, err := ProcessFile(path)
	require.NoError(t, err)
	g, err := models.BuildFromDescription(d)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())

	_, err = ProcessFile(filepath.Join(dir, "site.xml"))
	assert.Error(t, err)

	_, err = ProcessFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestGetProcessor(t *testing.T) {
	for format, name := range map[string]string{
		"json": "JSON Processor",
		".yml": "YAML Processor",
		"CSV":  "CSV Processor",
		"log":  "Log Processor",
	} {
		p, err := GetProcessor(format)
		require.NoError(t, err)
		assert.Equal(t, name, p.GetName())
	}
	_, err := GetProcessor("sql")
	assert.Error(t, err)
}
