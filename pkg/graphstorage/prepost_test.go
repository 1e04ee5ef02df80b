package graphstorage

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCycle(t *testing.T) *AdjacencyListStorage {
	t.Helper()
	a := NewAdjacencyListStorage()
	require.NoError(t, a.AddEdge(graphannis.Edge{Source: 1, Target: 2}))
	require.NoError(t, a.AddEdge(graphannis.Edge{Source: 2, Target: 3}))
	require.NoError(t, a.AddEdge(graphannis.Edge{Source: 3, Target: 1}))
	return a
}

// buildTree returns a small dominance-style tree:
//
//	1
//	├── 2
//	│   └── 4
//	└── 3
func buildTree(t *testing.T) *AdjacencyListStorage {
	t.Helper()
	a := NewAdjacencyListStorage()
	require.NoError(t, a.AddEdge(graphannis.Edge{Source: 1, Target: 2}))
	require.NoError(t, a.AddEdge(graphannis.Edge{Source: 1, Target: 3}))
	require.NoError(t, a.AddEdge(graphannis.Edge{Source: 2, Target: 4}))
	return a
}

func TestPrePostOrderCopyAndAncestry(t *testing.T) {
	src := buildTree(t)
	p := NewPrePostOrderStorage()
	require.NoError(t, p.Copy(nil, src))

	connected, err := p.IsConnected(1, 4, 1, Unbound())
	require.NoError(t, err)
	assert.True(t, connected)

	connected, err = p.IsConnected(3, 4, 1, Unbound())
	require.NoError(t, err)
	assert.False(t, connected)

	connected, err = p.IsConnected(1, 4, 1, IncludedAt(1))
	require.NoError(t, err)
	assert.False(t, connected, "4 is two hops below 1, not within distance 1")
}

func TestPrePostOrderCopyRejectsCycle(t *testing.T) {
	src := buildCycle(t)
	p := NewPrePostOrderStorage()
	err := p.Copy(nil, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, graphannis.ErrCycle)
}

func TestPrePostOrderSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	src := buildTree(t)
	p := NewPrePostOrderStorage()
	require.NoError(t, p.Copy(nil, src))
	require.NoError(t, p.SaveTo(dir))

	loaded := NewPrePostOrderStorage()
	require.NoError(t, loaded.LoadFrom(dir))

	connected, err := loaded.IsConnected(1, 4, 1, Unbound())
	require.NoError(t, err)
	assert.True(t, connected)
}
