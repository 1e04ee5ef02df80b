package graphml

import (
	"bytes"
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graph"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/updatelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	require.NoError(t, g.ApplyUpdate(
		updatelog.AddNode("first_node", "node"),
		updatelog.AddNode("second_node", "node"),
		updatelog.AddNodeLabel("first_node", "default_ns", "an_annotation", "something"),
		updatelog.AddEdge("first_node", "second_node", "Pointing", "some_ns", "test_component"),
	))
	return g
}

func TestExportProducesWellFormedGraphML(t *testing.T) {
	g := buildSampleGraph(t)

	var buf bytes.Buffer
	require.NoError(t, Export(g, &buf, ExportOptions{GraphConfiguration: "some-config", Stable: true}))

	out := buf.String()
	assert.Contains(t, out, "<graphml>")
	assert.Contains(t, out, `attr.name="default_ns::an_annotation"`)
	assert.Contains(t, out, `id="first_node"`)
	assert.Contains(t, out, `label="Pointing/some_ns/test_component"`)
	assert.Contains(t, out, "some-config")
}

func TestExportImportRoundTrip(t *testing.T) {
	g := buildSampleGraph(t)

	var buf bytes.Buffer
	require.NoError(t, Export(g, &buf, ExportOptions{GraphConfiguration: "round-trip-config", Stable: true}))

	target, err := graph.New(t.TempDir())
	require.NoError(t, err)
	defer target.Close()

	result, err := Import(target, bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.Nodes)
	assert.Equal(t, 1, result.Stats.Edges)
	assert.Equal(t, 0, result.Stats.Malformed)
	assert.Equal(t, "round-trip-config", result.Configuration)

	firstID, ok := target.GetNodeIDFromName("first_node")
	require.True(t, ok)
	secondID, ok := target.GetNodeIDFromName("second_node")
	require.True(t, ok)

	val, ok := target.NodeAnnos().GetValueForItem(firstID, graphannis.AnnoKey{Ns: "default_ns", Name: "an_annotation"})
	require.True(t, ok)
	assert.Equal(t, "something", val)

	comp := graphannis.Component{Type: graphannis.Pointing, Layer: "some_ns", Name: "test_component"}
	storage, err := target.GetGraphStorage(comp)
	require.NoError(t, err)
	dist, ok, err := storage.Distance(firstID, secondID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, dist)
}

func TestImportSkipsEdgeWithMalformedLabel(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<graphml>
    <graph edgedefault="directed">
        <node id="a"></node>
        <node id="b"></node>
        <edge id="e0" source="a" target="b" label="not-a-component"></edge>
    </graph>
</graphml>`

	target, err := graph.New(t.TempDir())
	require.NoError(t, err)
	defer target.Close()

	result, err := Import(target, bytes.NewReader([]byte(doc)), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.Nodes)
	assert.Equal(t, 0, result.Stats.Edges)
	assert.Equal(t, 1, result.Stats.Malformed)
}
