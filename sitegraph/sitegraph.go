// Package sitegraph builds the internal link graph of a generated static site.
//
// Every HTML file under the output directory becomes a page keyed by its URL
// path ("/blog/post/" for blog/post/index.html). Root-relative links found in
// <a href> attributes become edges. The result carries both the adjacency map
// and the dense vizdata description the layout engine consumes.
package sitegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/sitegraph/graph"
	"github.com/TFMV/sitegraph/logging"
	"github.com/TFMV/sitegraph/models"
)

// VizData is the dense, index-based form of the link graph
type VizData struct {
	Nodes     []string `json:"nodes"`
	NodeCount int      `json:"node_count"`
	Edges     [][2]int `json:"edges"`
}

// Document is the crawler output: page URL to outgoing internal links, plus
// the vizdata description.
type Document struct {
	Graph   map[string][]string `json:"graph"`
	VizData *VizData            `json:"vizdata,omitempty"`
}

// Description converts the vizdata section to a models.Description
func (d *Document) Description() (*models.Description, error) {
	if d.VizData == nil {
		return nil, fmt.Errorf("%w: document has no vizdata", models.ErrInvalidGraph)
	}
	count := d.VizData.NodeCount
	return &models.Description{Nodes: d.VizData.Nodes, NodeCount: &count, Edges: d.VizData.Edges}, nil
}

// Crawler walks a site directory
type Crawler struct {
	logger  *slog.Logger
	workers int
}

// NewCrawler creates a crawler. A nil logger discards output.
func NewCrawler(logger *slog.Logger) *Crawler {
	return &Crawler{
		logger:  logging.OrDiscard(logger).With("component", "sitegraph"),
		workers: runtime.GOMAXPROCS(0),
	}
}

// Crawl parses every HTML file under dir and returns the link graph
func (c *Crawler) Crawl(ctx context.Context, dir string) (*Document, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".html") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	var mu sync.Mutex
	pages := make(map[string][]string, len(files))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)
	for _, path := range files {
		path := path
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			links, err := extractLinksFromFile(path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", rel, err)
			}
			mu.Lock()
			pages[PageURL(rel)] = links
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	doc := &Document{Graph: pages}
	doc.VizData = c.computeVizData(pages)
	c.logger.Info("crawled site",
		"dir", dir,
		"pages", doc.VizData.NodeCount,
		"edges", len(doc.VizData.Edges))
	return doc, nil
}

// computeVizData indexes pages in sorted URL order. Links to URLs that are not
// pages of the site are dropped.
func (c *Crawler) computeVizData(pages map[string][]string) *VizData {
	urls := make([]string, 0, len(pages))
	for u := range pages {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	b := graph.NewBuilder()
	for _, u := range urls {
		b.AddNode(u, u)
	}
	for _, u := range urls {
		for _, link := range pages[u] {
			if !b.Has(link) {
				c.logger.Debug("dropping link to unknown page", "page", u, "link", link)
				continue
			}
			b.AddEdge(u, link)
		}
	}

	d := b.Description()
	return &VizData{Nodes: d.Nodes, NodeCount: *d.NodeCount, Edges: d.Edges}
}

// PageURL maps a path relative to the site root to the page's URL
func PageURL(rel string) string {
	u := "/" + filepath.ToSlash(rel)
	return strings.Replace(u, "index.html", "", 1)
}

func extractLinksFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}
	return extractLinks(doc), nil
}

// extractLinks returns the distinct root-relative hrefs of all <a> tags,
// sorted. Protocol-relative links ("//host/...") are external and skipped.
func extractLinks(n *html.Node) []string {
	seen := make(map[string]bool)

	var visitNode func(*html.Node)
	visitNode = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href := attr.Val
					if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
						seen[href] = true
					}
					break
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visitNode(c)
		}
	}
	visitNode(n)

	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	return links
}

// WriteFile saves the document as indented JSON
func (d *Document) WriteFile(path string) error {
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}
