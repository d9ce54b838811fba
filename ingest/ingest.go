package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TFMV/sitegraph/graph"
	"github.com/TFMV/sitegraph/models"
)

// DataProcessor defines the interface that all data processors must implement
type DataProcessor interface {
	// ProcessData takes raw data bytes and returns a graph description
	ProcessData(data []byte) (*models.Description, error)

	// GetName returns the name of the processor
	GetName() string
}

// rawDescription mirrors models.Description with loosely typed edges so
// malformed pairs can be reported instead of silently truncated.
type rawDescription struct {
	Nodes     []string `json:"nodes" yaml:"nodes"`
	NodeCount *int     `json:"node_count" yaml:"node_count"`
	Edges     [][]int  `json:"edges" yaml:"edges"`
}

// rawDocument accepts both the crawler output, where the description lives
// under "vizdata", and a bare description at the top level.
type rawDocument struct {
	VizData        *rawDescription `json:"vizdata" yaml:"vizdata"`
	rawDescription `yaml:",inline"`
}

func (d *rawDocument) description() (*models.Description, error) {
	raw := &d.rawDescription
	if d.VizData != nil {
		raw = d.VizData
	}
	if raw.NodeCount == nil {
		return nil, fmt.Errorf("%w: node_count is missing", models.ErrInvalidGraph)
	}

	edges := make([][2]int, len(raw.Edges))
	for i, pair := range raw.Edges {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: edge %d has %d endpoints", models.ErrInvalidGraph, i, len(pair))
		}
		edges[i] = [2]int{pair[0], pair[1]}
	}

	count := *raw.NodeCount
	return &models.Description{Nodes: raw.Nodes, NodeCount: &count, Edges: edges}, nil
}

// JSONProcessor handles vizdata JSON documents
type JSONProcessor struct{}

// NewJSONProcessor creates a new JSON processor
func NewJSONProcessor() *JSONProcessor {
	return &JSONProcessor{}
}

// GetName returns the name of the processor
func (p *JSONProcessor) GetName() string {
	return "JSON Processor"
}

// ProcessData processes JSON data
func (p *JSONProcessor) ProcessData(data []byte) (*models.Description, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: error parsing JSON: %v", models.ErrInvalidGraph, err)
	}
	return doc.description()
}

// YAMLProcessor handles the same document shape written as YAML
type YAMLProcessor struct{}

// NewYAMLProcessor creates a new YAML processor
func NewYAMLProcessor() *YAMLProcessor {
	return &YAMLProcessor{}
}

// GetName returns the name of the processor
func (p *YAMLProcessor) GetName() string {
	return "YAML Processor"
}

// ProcessData processes YAML data
func (p *YAMLProcessor) ProcessData(data []byte) (*models.Description, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: error parsing YAML: %v", models.ErrInvalidGraph, err)
	}
	return doc.description()
}

// CSVProcessor handles edge lists with source and target columns
type CSVProcessor struct{}

// NewCSVProcessor creates a new CSV processor
func NewCSVProcessor() *CSVProcessor {
	return &CSVProcessor{}
}

// GetName returns the name of the processor
func (p *CSVProcessor) GetName() string {
	return "CSV Processor"
}

// ProcessData processes CSV data. Node keys are assigned indices in order of
// first appearance.
func (p *CSVProcessor) ProcessData(data []byte) (*models.Description, error) {
	reader := csv.NewReader(bytes.NewReader(data))

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: error reading CSV header: %v", models.ErrInvalidGraph, err)
	}

	sourceIdx, targetIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "source", "from", "src":
			sourceIdx = i
		case "target", "to", "dst":
			targetIdx = i
		}
	}
	if sourceIdx == -1 || targetIdx == -1 {
		return nil, fmt.Errorf("%w: CSV must contain source and target columns", models.ErrInvalidGraph)
	}

	b := graph.NewBuilder()
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: error reading CSV row: %v", models.ErrInvalidGraph, err)
		}
		b.AddEdge(strings.TrimSpace(row[sourceIdx]), strings.TrimSpace(row[targetIdx]))
	}

	return b.Description(), nil
}

// LogProcessor handles text where each line names a relationship,
// e.g. "A -> B" or "X links to Y"
type LogProcessor struct{}

// NewLogProcessor creates a new log processor
func NewLogProcessor() *LogProcessor {
	return &LogProcessor{}
}

// GetName returns the name of the processor
func (p *LogProcessor) GetName() string {
	return "Log Processor"
}

var logSeparators = []string{" -> ", " => ", " connected to ", " connects to ", " links to ", " linked to "}

// ProcessData processes log data. Lines that match no separator are skipped.
func (p *LogProcessor) ProcessData(data []byte) (*models.Description, error) {
	b := graph.NewBuilder()

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, sep := range logSeparators {
			parts := strings.Split(line, sep)
			if len(parts) == 2 {
				b.AddEdge(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
				break
			}
		}
	}

	return b.Description(), nil
}

// GetProcessor returns the appropriate processor for the given format
func GetProcessor(format string) (DataProcessor, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return NewJSONProcessor(), nil
	case "yaml", "yml":
		return NewYAMLProcessor(), nil
	case "csv":
		return NewCSVProcessor(), nil
	case "log", "txt":
		return NewLogProcessor(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ProcessFile reads a file and picks a processor from its extension
func ProcessFile(filename string) (*models.Description, error) {
	processor, err := GetProcessor(filepath.Ext(filename))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	desc, err := processor.ProcessData(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", processor.GetName(), err)
	}
	return desc, nil
}
