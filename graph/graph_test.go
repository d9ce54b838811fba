package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAssignsIndicesInOrder(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, 0, b.AddNode("/", "Home"))
	assert.Equal(t, 1, b.AddNode("/about/", ""))
	assert.Equal(t, 0, b.AddNode("/", "ignored"))

	b.AddEdge("/", "/about/")
	b.AddEdge("/about/", "/blog/")
	b.AddEdge("/blog/", "/blog/")

	d := b.Description()
	require.NotNil(t, d.NodeCount)
	assert.Equal(t, 3, *d.NodeCount)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 2}}, d.Edges)
	assert.Equal(t, []string{"Home", "/about/", "/blog/"}, d.Nodes)
	assert.True(t, b.Has("/blog/"))
	assert.False(t, b.Has("/missing/"))
}

func TestBuilderConcurrentUse(t *testing.T) {
	b := NewBuilder()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.AddEdge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", (i+w)%50))
			}
		}(w)
	}
	wg.Wait()

	d := b.Description()
	assert.Equal(t, 50, *d.NodeCount)
	assert.Len(t, d.Edges, 400)
	assert.Len(t, d.Nodes, 50)
}
