package graph

import (
	"path/filepath"
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/graphstorage"
	"github.com/graphannis-go/graphannis/pkg/updatelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpdateAddNodesAndEdge(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)
	defer g.Close()

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("tok1", graphannis.NodeTypeNode),
		updatelog.AddNodeLabel("tok1", graphannis.AnnisNS, graphannis.TokAnno, "The"),
		updatelog.AddNode("tok2", graphannis.NodeTypeNode),
		updatelog.AddNodeLabel("tok2", graphannis.AnnisNS, graphannis.TokAnno, "cat"),
		updatelog.AddEdge("tok1", "tok2", string(graphannis.Ordering), "", "default"),
	))

	id1, ok := g.resolveNode("tok1")
	require.True(t, ok)
	id2, ok := g.resolveNode("tok2")
	require.True(t, ok)

	comp := graphannis.Component{Type: graphannis.Ordering, Layer: "", Name: "default"}
	storage, err := g.GetGraphStorage(comp)
	require.NoError(t, err)
	outs, err := storage.GetOutgoingEdges(id1)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{id2}, outs)
}

func TestApplyUpdateDeleteNodeCascadesEdges(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)
	defer g.Close()

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("a", graphannis.NodeTypeNode),
		updatelog.AddNode("b", graphannis.NodeTypeNode),
		updatelog.AddEdge("a", "b", string(graphannis.Ordering), "", "default"),
	))
	idB, ok := g.resolveNode("b")
	require.True(t, ok)

	require.NoError(t, g.ApplyUpdate(updatelog.DeleteNode("a")))
	_, ok = g.resolveNode("a")
	assert.False(t, ok)

	comp := graphannis.Component{Type: graphannis.Ordering, Layer: "", Name: "default"}
	storage, err := g.GetGraphStorage(comp)
	require.NoError(t, err)
	ins, err := storage.GetIngoingEdges(idB)
	require.NoError(t, err)
	assert.Empty(t, ins)
}

func TestApplyUpdatePartialFailureDiscardsInMemoryMutations(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)
	defer g.Close()

	err = g.ApplyUpdate(
		updatelog.AddNode("a", graphannis.NodeTypeNode),
		updatelog.AddEdge("a", "missing", string(graphannis.Ordering), "", "default"),
	)
	require.Error(t, err)

	_, ok := g.resolveNode("a")
	assert.False(t, ok, "node added earlier in the failed batch must not survive in memory")
}

func TestSaveAndReopenRecoversState(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("a", graphannis.NodeTypeNode),
		updatelog.AddNode("b", graphannis.NodeTypeNode),
		updatelog.AddEdge("a", "b", string(graphannis.Ordering), "", "default"),
	))
	require.NoError(t, g.Save())
	require.NoError(t, g.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	idA, ok := reopened.resolveNode("a")
	require.True(t, ok)
	idB, ok := reopened.resolveNode("b")
	require.True(t, ok)

	comp := graphannis.Component{Type: graphannis.Ordering, Layer: "", Name: "default"}
	storage, err := reopened.GetGraphStorage(comp)
	require.NoError(t, err)
	outs, err := storage.GetOutgoingEdges(idA)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{idB}, outs)
}

func TestOpenReplaysUnsavedLogAfterCrash(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("a", graphannis.NodeTypeNode),
		updatelog.AddNode("b", graphannis.NodeTypeNode),
		updatelog.AddEdge("a", "b", string(graphannis.Ordering), "", "default"),
	))
	// No Save(): simulate a crash by closing without flushing to current/.
	require.NoError(t, g.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok := reopened.resolveNode("a")
	assert.True(t, ok)
	_, ok = reopened.resolveNode("b")
	assert.True(t, ok)
}

func TestOptimizeImplSwitchesToDiskBackedBadgerStorage(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)
	defer g.Close()

	g.thresholds = graphstorage.OptimizeHeuristicThresholds{MaxNodesForDiskBadger: 1}

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("a", graphannis.NodeTypeNode),
		updatelog.AddNode("b", graphannis.NodeTypeNode),
		updatelog.AddNode("c", graphannis.NodeTypeNode),
		updatelog.AddEdge("a", "b", string(graphannis.Ordering), "", "default"),
		updatelog.AddEdge("b", "c", string(graphannis.Ordering), "", "default"),
	))

	comp := graphannis.Component{Type: graphannis.Ordering, Layer: "", Name: "default"}
	require.NoError(t, g.OptimizeImpl(comp))

	storage, err := g.GetGraphStorage(comp)
	require.NoError(t, err)
	assert.Equal(t, graphstorage.BadgerAdjacencySerializationID, storage.SerializationID())

	idA, ok := g.resolveNode("a")
	require.True(t, ok)
	idB, ok := g.resolveNode("b")
	require.True(t, ok)
	outs, err := storage.GetOutgoingEdges(idA)
	require.NoError(t, err)
	assert.Equal(t, []graphannis.NodeID{idB}, outs)
}

func TestGetAllComponentsFilter(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)
	defer g.Close()

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("a", graphannis.NodeTypeNode),
		updatelog.AddNode("b", graphannis.NodeTypeNode),
		updatelog.AddEdge("a", "b", string(graphannis.Ordering), "", "default"),
		updatelog.AddEdge("a", "b", string(graphannis.Pointing), "dep", "ref"),
	))

	ordering := graphannis.Ordering
	comps := g.GetAllComponents(&ordering, nil)
	require.Len(t, comps, 1)
	assert.Equal(t, "default", comps[0].Name)

	all := g.GetAllComponents(nil, nil)
	assert.Len(t, all, 2)
}

func TestComponentDirRoundTrip(t *testing.T) {
	root := t.TempDir()
	c := graphannis.Component{Type: graphannis.Pointing, Layer: "dep", Name: "ref"}
	dir := componentDir(root, c)
	assert.Equal(t, filepath.Join(root, "gs", "Pointing", "dep", "ref"), dir)
}
