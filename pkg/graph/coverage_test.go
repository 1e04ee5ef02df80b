package graph

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/updatelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalculateAutomaticCoverageEdgesFillsSkippedTokens covers a span
// node that only has explicit Coverage edges to t1 and t4, connected by
// an Ordering chain t1->t2->t3->t4. The derived autogenerated Coverage
// component must also cover t2 and t3, and the original component must
// be untouched.
func TestCalculateAutomaticCoverageEdgesFillsSkippedTokens(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)
	defer g.Close()

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("span", graphannis.NodeTypeNode),
		updatelog.AddNode("t1", graphannis.NodeTypeNode),
		updatelog.AddNodeLabel("t1", graphannis.AnnisNS, graphannis.TokAnno, "The"),
		updatelog.AddNode("t2", graphannis.NodeTypeNode),
		updatelog.AddNodeLabel("t2", graphannis.AnnisNS, graphannis.TokAnno, "black"),
		updatelog.AddNode("t3", graphannis.NodeTypeNode),
		updatelog.AddNodeLabel("t3", graphannis.AnnisNS, graphannis.TokAnno, "cat"),
		updatelog.AddNode("t4", graphannis.NodeTypeNode),
		updatelog.AddNodeLabel("t4", graphannis.AnnisNS, graphannis.TokAnno, "sleeps"),
		updatelog.AddEdge("t1", "t2", string(graphannis.Ordering), "", "default"),
		updatelog.AddEdge("t2", "t3", string(graphannis.Ordering), "", "default"),
		updatelog.AddEdge("t3", "t4", string(graphannis.Ordering), "", "default"),
		updatelog.AddEdge("span", "t1", string(graphannis.Coverage), "default_ns", "explicit"),
		updatelog.AddEdge("span", "t4", string(graphannis.Coverage), "default_ns", "explicit"),
	))

	require.NoError(t, g.CalculateAutomaticCoverageEdges("default_ns", "autocov"))

	spanID, ok := g.resolveNode("span")
	require.True(t, ok)
	t1, ok := g.resolveNode("t1")
	require.True(t, ok)
	t2, ok := g.resolveNode("t2")
	require.True(t, ok)
	t3, ok := g.resolveNode("t3")
	require.True(t, ok)
	t4, ok := g.resolveNode("t4")
	require.True(t, ok)

	autoComp := graphannis.Component{Type: graphannis.Coverage, Layer: "default_ns", Name: "autocov"}
	autoStorage, err := g.GetGraphStorage(autoComp)
	require.NoError(t, err)
	autoTargets, err := autoStorage.GetOutgoingEdges(spanID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []graphannis.NodeID{t1, t2, t3, t4}, autoTargets)

	explicitComp := graphannis.Component{Type: graphannis.Coverage, Layer: "default_ns", Name: "explicit"}
	explicitStorage, err := g.GetGraphStorage(explicitComp)
	require.NoError(t, err)
	explicitTargets, err := explicitStorage.GetOutgoingEdges(spanID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []graphannis.NodeID{t1, t4}, explicitTargets)
}
