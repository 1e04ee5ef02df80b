package graphstorage

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerAdjacencyAddAndQuery(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBadgerAdjacencyStorage(dir)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddEdge(graphannis.Edge{Source: 1, Target: 2}))
	require.NoError(t, b.AddEdge(graphannis.Edge{Source: 2, Target: 3}))

	outs, err := b.GetOutgoingEdges(1)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{2}, outs)

	ins, err := b.GetIngoingEdges(3)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{2}, ins)

	reached, err := b.FindConnected(1, 1, Unbound())
	require.NoError(t, err)
	assert.ElementsMatch(t, []graphannis.NodeID{2, 3}, reached)
}

func TestBadgerAdjacencyDeleteEdge(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBadgerAdjacencyStorage(dir)
	require.NoError(t, err)
	defer b.Close()

	e := graphannis.Edge{Source: 1, Target: 2}
	require.NoError(t, b.AddEdge(e))
	require.NoError(t, b.DeleteEdge(e))

	outs, err := b.GetOutgoingEdges(1)
	require.NoError(t, err)
	assert.Empty(t, outs)
}

func TestBadgerAdjacencyCopyFromAdjacencyList(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBadgerAdjacencyStorage(dir)
	require.NoError(t, err)
	defer b.Close()

	src := chain(t, 3)
	require.NoError(t, b.Copy(nil, src))

	outs, err := b.GetOutgoingEdges(0)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{1}, outs)
}
