package sitegraph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/TFMV/sitegraph/ingest"
	"github.com/TFMV/sitegraph/models"
)

func writePage(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("<html><body>"+body+"</body></html>"), 0644))
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "/", PageURL("index.html"))
	assert.Equal(t, "/blog/post/", PageURL(filepath.Join("blog", "post", "index.html")))
	assert.Equal(t, "/404.html", PageURL("404.html"))
}

func TestExtractLinks(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`
		<a href="/about/">About</a>
		<a href="/about/">About again</a>
		<a href="//cdn.example.com/x">CDN</a>
		<a href="https://example.com/">External</a>
		<a href="relative/">Relative</a>
		<div><a class="x" href="/blog/">Blog</a></div>
		<a>no href</a>`))
	require.NoError(t, err)

	assert.Equal(t, []string{"/about/", "/blog/"}, extractLinks(doc))
}

func TestCrawl(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "index.html", `<a href="/about/">a</a><a href="/blog/">b</a><a href="/missing/">m</a>`)
	writePage(t, root, "about/index.html", `<a href="/">home</a>`)
	writePage(t, root, "blog/index.html", `<a href="/blog/">self</a><a href="/about/">about</a>`)
	require.NoError(t, os.WriteFile(filepath.Join(root, "style.css"), []byte("body{}"), 0644))

	doc, err := NewCrawler(nil).Crawl(context.Background(), root)
	require.NoError(t, err)

	assert.Len(t, doc.Graph, 3)
	assert.Equal(t, []string{"/about/", "/blog/", "/missing/"}, doc.Graph["/"])

	viz := doc.VizData
	require.NotNil(t, viz)
	assert.Equal(t, []string{"/", "/about/", "/blog/"}, viz.Nodes)
	assert.Equal(t, 3, viz.NodeCount)
	assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {1, 0}, {2, 1}, {2, 2}}, viz.Edges)

	d, err := doc.Description()
	require.NoError(t, err)
	g, err := models.BuildFromDescription(d)
	require.NoError(t, err)
	assert.Equal(t, 5, g.EdgeCount())
}

func TestCrawlMissingDir(t *testing.T) {
	_, err := NewCrawler(nil).Crawl(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWriteFileRoundTripsThroughIngest(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "index.html", `<a href="/about/">a</a>`)
	writePage(t, root, "about/index.html", `<a href="/">home</a>`)

	doc, err := NewCrawler(nil).Crawl(context.Background(), root)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "sitegraph.json")
	require.NoError(t, doc.WriteFile(out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "graph")
	assert.Contains(t, generic, "vizdata")

	d, err := ingest.ProcessFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, *d.NodeCount)
	assert.Equal(t, [][2]int{{0, 1}, {1, 0}}, d.Edges)
}

func TestDescriptionWithoutVizData(t *testing.T) {
	_, err := (&Document{}).Description()
	assert.ErrorIs(t, err, models.ErrInvalidGraph)
}
