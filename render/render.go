package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/sitegraph/models"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format     string  // Output format (svg, ascii, json, dot, echarts)
	Width      float64 // Width of the output in pixels
	Height     float64 // Height of the output in pixels
	Columns    int     // ASCII grid width; 0 derives it from Width
	Rows       int     // ASCII grid height; 0 derives it from Height
	Background string  // Background color
	EdgeColor  string  // Edge stroke color
	NodeSize   float64 // Node radius
	EdgeWidth  float64 // Edge stroke width
	FontSize   float64 // Font size for labels
	ShowLabels bool    // Show node labels
	Timestamp  bool    // Include timestamp in visualization
	Title      string  // Title drawn by renderers that support one
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render creates a visualization of the scene using the provided options
	Render(scene *Scene, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string
}

// Scene is one drawable state of a layout: node positions in [-1, 1]
// with y pointing up, the edge list and optional node labels.
type Scene struct {
	GraphID   string
	Step      int
	Positions []models.Vec2
	Edges     []models.Edge
	Labels    []string
}

// NewScene snapshots the current positions of g
func NewScene(g *models.Graph, labels []string, step int) *Scene {
	return &Scene{
		GraphID:   g.ID,
		Step:      step,
		Positions: g.Positions(),
		Edges:     g.Edges(),
		Labels:    labels,
	}
}

// Label returns the label of node i, or its index when none was given
func (s *Scene) Label(i int) string {
	if i < len(s.Labels) && s.Labels[i] != "" {
		return s.Labels[i]
	}
	return strconv.Itoa(i)
}

// Degrees counts edge endpoints per node, ignoring self-loops
func (s *Scene) Degrees() []int {
	deg := make([]int, len(s.Positions))
	for _, e := range s.Edges {
		if e.IsSelfLoop() {
			continue
		}
		deg[e.From]++
		deg[e.To]++
	}
	return deg
}

// Vertices returns the flattened edge line segments
func (s *Scene) Vertices() []float64 {
	return models.EdgeVertices(s.Positions, s.Edges)
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		Width:      800,
		Height:     800,
		Background: "#f8f8f8",
		EdgeColor:  "#999999",
		NodeSize:   4.0,
		EdgeWidth:  0.5,
		FontSize:   9.0,
		ShowLabels: true,
		Timestamp:  false,
		Title:      "sitegraph",
	}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "svg":
		return &SVGRenderer{}, nil
	case "ascii":
		return &ASCIIRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "dot":
		return &DOTRenderer{}, nil
	case "echarts", "html":
		return &EChartsRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Generate renders a scene with the default options for format
func Generate(scene *Scene, format string) ([]byte, error) {
	renderer, err := GetRenderer(format)
	if err != nil {
		return nil, err
	}
	return renderer.Render(scene, NewDefaultOptions(format))
}

// toPixels maps layout coordinates to an image of the given size, y down
func toPixels(p models.Vec2, width, height float64) (float64, float64) {
	return (p.X + 1) / 2 * width, (1 - p.Y) / 2 * height
}

var degreePalette = []string{"#9aa0a6", "#4285f4", "#34a853", "#fbbc05", "#ea4335"}

// nodeColor picks a palette entry by degree relative to the busiest node
func nodeColor(degree, maxDegree int) string {
	if maxDegree <= 0 {
		return degreePalette[0]
	}
	i := degree * (len(degreePalette) - 1) / maxDegree
	return degreePalette[i]
}

func maxInt(values []int) int {
	m := 0
	for _, v := range values {
		m = max(m, v)
	}
	return m
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders the layout as Scalable Vector Graphics (SVG)"
}

// Render creates an SVG representation of the scene
func (r *SVGRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer
	w, h := options.Width, options.Height

	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%g" height="%g" viewBox="0 0 %g %g" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, w, h, w, h, options.Background)

	buf.WriteString(fmt.Sprintf(`<g stroke="%s" stroke-width="%g">
`, options.EdgeColor, options.EdgeWidth))
	for _, e := range scene.Edges {
		if e.IsSelfLoop() {
			continue
		}
		x1, y1 := toPixels(scene.Positions[e.From], w, h)
		x2, y2 := toPixels(scene.Positions[e.To], w, h)
		fmt.Fprintf(&buf, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>
`, x1, y1, x2, y2)
	}
	buf.WriteString("</g>\n")

	degrees := scene.Degrees()
	top := maxInt(degrees)
	for i, p := range scene.Positions {
		x, y := toPixels(p, w, h)
		fmt.Fprintf(&buf, `<circle cx="%.2f" cy="%.2f" r="%g" fill="%s" stroke="rgba(0,0,0,0.3)" stroke-width="0.5"><title>%s</title></circle>
`, x, y, options.NodeSize, nodeColor(degrees[i], top), html.EscapeString(scene.Label(i)))

		if options.ShowLabels && i < len(scene.Labels) && scene.Labels[i] != "" {
			fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%g" fill="#333333" text-anchor="middle">%s</text>
`, x, y+options.NodeSize+options.FontSize, options.FontSize, html.EscapeString(scene.Labels[i]))
		}
	}

	if options.Title != "" {
		fmt.Fprintf(&buf, `<text x="5" y="15" font-family="sans-serif" font-size="10" fill="#808080">%s | nodes: %d | edges: %d | step: %d</text>
`, html.EscapeString(options.Title), len(scene.Positions), len(scene.Edges), scene.Step)
	}

	if options.Timestamp {
		fmt.Fprintf(&buf, `<text x="5" y="%g" font-family="sans-serif" font-size="8" fill="#808080">%s</text>
`, h-5, time.Now().Format("2006-01-02 15:04:05"))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

// ASCIIRenderer outputs ASCII art format
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders the layout as ASCII art for terminal output"
}

// Render creates an ASCII representation of the scene
func (r *ASCIIRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	width, height := options.Columns, options.Rows
	if width <= 0 {
		width = max(int(options.Width/10), 40)
	}
	if height <= 0 {
		height = max(int(options.Height/20), 20)
	}
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("ascii grid %dx%d is too small", width, height)
	}

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0] = '+'
	grid[0][width-1] = '+'
	grid[height-1][0] = '+'
	grid[height-1][width-1] = '+'

	// cell maps a layout position to an interior grid cell
	cell := func(p models.Vec2) (int, int) {
		x := 1 + int(math.Round((p.X+1)/2*float64(width-3)))
		y := 1 + int(math.Round((1-p.Y)/2*float64(height-3)))
		return clamp(x, 1, width-2), clamp(y, 1, height-2)
	}

	for _, e := range scene.Edges {
		if e.IsSelfLoop() {
			continue
		}
		x1, y1 := cell(scene.Positions[e.From])
		x2, y2 := cell(scene.Positions[e.To])
		drawLine(grid, x1, y1, x2, y2)
	}

	degrees := scene.Degrees()
	for i, p := range scene.Positions {
		x, y := cell(p)
		grid[y][x] = nodeSymbol(degrees[i])

		if options.ShowLabels && i < len(scene.Labels) && scene.Labels[i] != "" && y+1 < height-1 {
			for j, c := range []rune(scene.Labels[i]) {
				col := x + j
				if col >= width-1 {
					break
				}
				if grid[y+1][col] == ' ' || grid[y+1][col] == '·' {
					grid[y+1][col] = c
				}
			}
		}
	}

	if options.Title != "" {
		writeRow(grid[0], fmt.Sprintf(" %s  step %d ", options.Title, scene.Step))
	}
	if options.Timestamp {
		writeRow(grid[height-1], " "+time.Now().Format("2006-01-02 15:04")+" ")
	}

	var result strings.Builder
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

// nodeSymbol grows with the node's degree
func nodeSymbol(degree int) rune {
	switch {
	case degree == 0:
		return 'o'
	case degree < 5:
		return 'O'
	default:
		return '@'
	}
}

// writeRow overlays text on a border row, leaving the corners alone
func writeRow(row []rune, text string) {
	for i, c := range []rune(text) {
		col := i + 2
		if col >= len(row)-1 {
			return
		}
		row[col] = c
	}
}

// JSONRenderer outputs raw JSON format
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders the layout as JSON for machine consumption or custom visualizations"
}

type jsonNode struct {
	Index  int     `json:"index"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Degree int     `json:"degree"`
}

type jsonEdge struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

type jsonScene struct {
	GraphID  string         `json:"graph_id,omitempty"`
	Step     int            `json:"step"`
	Nodes    []jsonNode     `json:"nodes"`
	Edges    []jsonEdge     `json:"edges"`
	Metadata map[string]any `json:"metadata"`
}

// Render creates a JSON representation of the scene
func (r *JSONRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	degrees := scene.Degrees()
	out := jsonScene{
		GraphID: scene.GraphID,
		Step:    scene.Step,
		Nodes:   make([]jsonNode, len(scene.Positions)),
		Edges:   make([]jsonEdge, len(scene.Edges)),
		Metadata: map[string]any{
			"node_count": len(scene.Positions),
			"edge_count": len(scene.Edges),
		},
	}
	if options.Timestamp {
		out.Metadata["timestamp"] = time.Now().Format(time.RFC3339)
	}

	for i, p := range scene.Positions {
		out.Nodes[i] = jsonNode{Index: i, Label: scene.Label(i), X: p.X, Y: p.Y, Degree: degrees[i]}
	}
	for i, e := range scene.Edges {
		out.Edges[i] = jsonEdge{Source: e.From, Target: e.To}
	}

	return json.MarshalIndent(out, "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// Description returns a description of the renderer
func (r *DOTRenderer) Description() string {
	return "Renders the layout in Graphviz DOT format with pinned positions for neato -n"
}

// Render creates a DOT representation of the scene
func (r *DOTRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  graph [bgcolor=%q, size=\"%g,%g\"];\n",
		options.Background, options.Width/72.0, options.Height/72.0)
	fmt.Fprintf(&buf, "  node [shape=circle, style=filled, fontname=\"Arial\", fontsize=%g];\n", options.FontSize)
	fmt.Fprintf(&buf, "  edge [color=%q, arrowsize=0.5];\n", options.EdgeColor)

	degrees := scene.Degrees()
	top := maxInt(degrees)
	for i, p := range scene.Positions {
		// Graphviz points, y up
		x := (p.X + 1) / 2 * options.Width
		y := (p.Y + 1) / 2 * options.Height
		fmt.Fprintf(&buf, "  n%d [label=%s, fillcolor=%q, pos=\"%.2f,%.2f!\"];\n",
			i, strconv.Quote(scene.Label(i)), nodeColor(degrees[i], top), x, y)
	}
	for _, e := range scene.Edges {
		fmt.Fprintf(&buf, "  n%d -> n%d;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Helper functions

// Clamp a value between lo and hi
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Draw a line on the ASCII grid using Bresenham's algorithm.
// Only blank cells are overwritten.
func drawLine(grid [][]rune, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if y1 >= 0 && y1 < len(grid) && x1 >= 0 && x1 < len(grid[y1]) && grid[y1][x1] == ' ' {
			grid[y1][x1] = '·'
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 >= dy {
			if x1 == x2 {
				break
			}
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			if y1 == y2 {
				break
			}
			err += dx
			y1 += sy
		}
	}
}

// Absolute value of an integer
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
