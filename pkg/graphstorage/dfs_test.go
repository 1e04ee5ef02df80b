package graphstorage

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds A->C (1 hop), A->B->C (2 hops): the same node C is
// reachable at two different distances from A.
func diamond(t *testing.T) *AdjacencyListStorage {
	t.Helper()
	const a, b, c = graphannis.NodeID(0), graphannis.NodeID(1), graphannis.NodeID(2)
	s := NewAdjacencyListStorage()
	require.NoError(t, s.AddEdge(graphannis.Edge{Source: a, Target: c}))
	require.NoError(t, s.AddEdge(graphannis.Edge{Source: a, Target: b}))
	require.NoError(t, s.AddEdge(graphannis.Edge{Source: b, Target: c}))
	return s
}

func TestFindConnectedReachesNodeOnlyAtLongerDistance(t *testing.T) {
	s := diamond(t)
	const a, c = graphannis.NodeID(0), graphannis.NodeID(2)

	reached, err := s.FindConnected(a, 2, IncludedAt(2))
	require.NoError(t, err)
	assert.ElementsMatch(t, []graphannis.NodeID{c}, reached,
		"C is 2 hops away via A->B->C even though it is also 1 hop away via A->C")
}

func TestFindConnectedDedupesOutputAcrossMultiplePaths(t *testing.T) {
	s := diamond(t)
	const a, b, c = graphannis.NodeID(0), graphannis.NodeID(1), graphannis.NodeID(2)

	reached, err := s.FindConnected(a, 1, Unbound())
	require.NoError(t, err)
	assert.ElementsMatch(t, []graphannis.NodeID{b, c}, reached, "C must appear exactly once despite two paths reaching it")
}

func TestIsConnectedReachesNodeOnlyAtLongerDistance(t *testing.T) {
	s := diamond(t)
	const a, c = graphannis.NodeID(0), graphannis.NodeID(2)

	ok, err := s.IsConnected(a, c, 2, IncludedAt(2))
	require.NoError(t, err)
	assert.True(t, ok, "C must be found 2 hops away via A->B->C")
}
