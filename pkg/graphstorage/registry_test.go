package graphstorage

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySerializeAndDeserializeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	a := chain(t, 3)
	require.NoError(t, r.Serialize(a, dir))

	tag, err := r.GetType(dir)
	require.NoError(t, err)
	assert.Equal(t, AdjacencyListSerializationID, tag)

	loaded, err := r.Deserialize(dir)
	require.NoError(t, err)
	outs, err := loaded.GetOutgoingEdges(0)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{1}, outs)
}

func TestRegistryCreateFromTypeUnknownTag(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateFromType("does-not-exist")
	assert.ErrorIs(t, err, graphannis.ErrInvalidComponentType)
}

func TestRegistryCreateFromTypeAtOpensBadgerAtLocation(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	storage, err := r.CreateFromTypeAt(BadgerAdjacencySerializationID, dir)
	require.NoError(t, err)
	badger, ok := storage.(*BadgerAdjacencyStorage)
	require.True(t, ok)
	defer badger.Close()

	require.NoError(t, badger.Copy(nil, chain(t, 3)))
	outs, err := badger.GetOutgoingEdges(0)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{1}, outs)
}

func TestGetOptimalImplHeuristic(t *testing.T) {
	linear := &GraphStatistic{RootedTree: true, MaxDepth: 5, MaxFanOut: 1, NodeCount: 10}
	assert.Equal(t, DiskPathSerializationID, GetOptimalImpl(linear, OptimizeHeuristicThresholds{}))

	acyclicTree := &GraphStatistic{RootedTree: false, Cyclic: false, MaxFanOut: 3, NodeCount: 10}
	assert.Equal(t, PrePostOrderSerializationID, GetOptimalImpl(acyclicTree, OptimizeHeuristicThresholds{}))

	cyclic := &GraphStatistic{Cyclic: true, NodeCount: 10}
	assert.Equal(t, AdjacencyListSerializationID, GetOptimalImpl(cyclic, OptimizeHeuristicThresholds{}))

	huge := &GraphStatistic{Cyclic: true, NodeCount: 10_000_000}
	assert.Equal(t, BadgerAdjacencySerializationID, GetOptimalImpl(huge, OptimizeHeuristicThresholds{MaxNodesForDiskBadger: 1000}))
}
