// Package graph turns string-keyed nodes and links into the dense, index-based
// description the layout engine consumes.
package graph

import (
	"sync"

	"github.com/TFMV/sitegraph/models"
)

type Node struct {
	Index int
	Key   string
	Label string
}

type Edge struct {
	Source string
	Target string
}

// Builder assigns dense indices to node keys in insertion order. It is safe
// for concurrent use.
type Builder struct {
	Nodes map[string]*Node
	order []string
	Edges []Edge
	Mutex sync.Mutex
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		Nodes: make(map[string]*Node),
		Edges: make([]Edge, 0),
	}
}

// AddNode inserts a node if its key is new and returns its index.
func (b *Builder) AddNode(key, label string) int {
	b.Mutex.Lock()
	defer b.Mutex.Unlock()
	return b.addNodeLocked(key, label)
}

func (b *Builder) addNodeLocked(key, label string) int {
	if n, ok := b.Nodes[key]; ok {
		return n.Index
	}
	if label == "" {
		label = key
	}
	n := &Node{Index: len(b.order), Key: key, Label: label}
	b.Nodes[key] = n
	b.order = append(b.order, key)
	return n.Index
}

// AddEdge appends an edge, creating either endpoint if needed.
func (b *Builder) AddEdge(source, target string) {
	b.Mutex.Lock()
	defer b.Mutex.Unlock()
	b.addNodeLocked(source, "")
	b.addNodeLocked(target, "")
	b.Edges = append(b.Edges, Edge{Source: source, Target: target})
}

// Has reports whether a node key has been added.
func (b *Builder) Has(key string) bool {
	b.Mutex.Lock()
	defer b.Mutex.Unlock()
	_, ok := b.Nodes[key]
	return ok
}

// Description resolves every edge to node indices.
func (b *Builder) Description() *models.Description {
	b.Mutex.Lock()
	defer b.Mutex.Unlock()

	count := len(b.order)
	edges := make([][2]int, 0, len(b.Edges))
	for _, e := range b.Edges {
		edges = append(edges, [2]int{b.Nodes[e.Source].Index, b.Nodes[e.Target].Index})
	}
	labels := make([]string, count)
	for i, key := range b.order {
		labels[i] = b.Nodes[key].Label
	}
	return &models.Description{Nodes: labels, NodeCount: &count, Edges: edges}
}
