package render

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsScale spreads layout coordinates over a canvas echarts fits to the view
const echartsScale = 1000

// EChartsRenderer outputs an interactive HTML page built with go-echarts.
// Nodes are pinned at their layout positions; echarts runs no layout of its own.
type EChartsRenderer struct{}

// Name returns the name of the renderer
func (r *EChartsRenderer) Name() string {
	return "ECharts Renderer"
}

// Description returns a description of the renderer
func (r *EChartsRenderer) Description() string {
	return "Renders the layout as an interactive HTML page with pan, zoom and tooltips"
}

// Render creates an HTML page holding one graph chart
func (r *EChartsRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	degrees := scene.Degrees()
	top := maxInt(degrees)
	names := uniqueNames(scene)

	nodes := make([]opts.GraphNode, len(scene.Positions))
	for i, p := range scene.Positions {
		nodes[i] = opts.GraphNode{
			Name:  names[i],
			X:     float32(p.X * echartsScale),
			Y:     float32(-p.Y * echartsScale),
			Value: float32(degrees[i]),
			ItemStyle: &opts.ItemStyle{
				Color: nodeColor(degrees[i], top),
			},
		}
	}

	links := make([]opts.GraphLink, 0, len(scene.Edges))
	for _, e := range scene.Edges {
		links = append(links, opts.GraphLink{
			Source: names[e.From],
			Target: names[e.To],
		})
	}

	graph := charts.NewGraph()
	graph.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       options.Title,
			Width:           fmt.Sprintf("%gpx", options.Width),
			Height:          fmt.Sprintf("%gpx", options.Height),
			BackgroundColor: options.Background,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    options.Title,
			Subtitle: fmt.Sprintf("nodes: %d  edges: %d  step: %d", len(scene.Positions), len(scene.Edges), scene.Step),
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(false),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
	)
	graph.AddSeries(
		"layout",
		nodes,
		links,
		charts.WithGraphChartOpts(
			opts.GraphChart{
				Layout:    "none",
				Draggable: opts.Bool(true),
				Roam:      opts.Bool(true),
			},
		),
		charts.WithLabelOpts(opts.Label{
			Show:     opts.Bool(options.ShowLabels),
			Color:    "black",
			Position: "top",
		}),
	)

	page := components.NewPage()
	page.AddCharts(graph)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render echarts page: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueNames returns one distinct name per node. echarts links nodes by
// name, so repeated labels get the node index appended.
func uniqueNames(scene *Scene) []string {
	names := make([]string, len(scene.Positions))
	seen := make(map[string]bool, len(names))
	for i := range names {
		name := scene.Label(i)
		for seen[name] {
			name = fmt.Sprintf("%s#%d", name, i)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
