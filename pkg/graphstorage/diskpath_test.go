package graphstorage

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskPathCopyRejectsBranching(t *testing.T) {
	src := NewAdjacencyListStorage()
	require.NoError(t, src.AddEdge(graphannis.Edge{Source: 1, Target: 2}))
	require.NoError(t, src.AddEdge(graphannis.Edge{Source: 1, Target: 3}))

	d := NewDiskPathStorage()
	err := d.Copy(nil, src)
	assert.ErrorIs(t, err, graphannis.ErrInconsistent)
}

func TestDiskPathCopyAndDistance(t *testing.T) {
	src := chain(t, 5) // 0 -> 1 -> 2 -> 3 -> 4
	d := NewDiskPathStorage()
	require.NoError(t, d.Copy(nil, src))

	dist, ok, err := d.Distance(0, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, dist)

	connected, err := d.IsConnected(0, 4, 1, Unbound())
	require.NoError(t, err)
	assert.True(t, connected)

	connected, err = d.IsConnected(0, 4, 1, IncludedAt(2))
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestDiskPathSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	src := chain(t, 4)
	d := NewDiskPathStorage()
	require.NoError(t, d.Copy(nil, src))
	require.NoError(t, d.SaveTo(dir))

	loaded := NewDiskPathStorage()
	require.NoError(t, loaded.LoadFrom(dir))

	dist, ok, err := loaded.Distance(0, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, dist)
}
