package graphstorage

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionStorageDedupesOverlappingEdges(t *testing.T) {
	a := NewAdjacencyListStorage()
	require.NoError(t, a.AddEdge(graphannis.Edge{Source: 1, Target: 2}))

	b := NewAdjacencyListStorage()
	require.NoError(t, b.AddEdge(graphannis.Edge{Source: 1, Target: 2}))
	require.NoError(t, b.AddEdge(graphannis.Edge{Source: 2, Target: 3}))

	u := NewUnionStorage(a, b)
	outs, err := u.GetOutgoingEdges(1)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{2}, outs)

	sources, err := u.SourceNodes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []graphannis.NodeID{1, 2}, sources)
}

func TestUnionStorageCopyUnsupported(t *testing.T) {
	u := NewUnionStorage(NewAdjacencyListStorage())
	err := u.Copy(nil, NewAdjacencyListStorage())
	assert.ErrorIs(t, err, graphannis.ErrInconsistent)
}
