package annostorage

import (
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeNameUniqueness(t *testing.T) {
	s := NewNodeAnnotationStorage()
	require.NoError(t, s.Insert(1, graphannis.Annotation{Key: graphannis.NodeNameKey, Val: "first_node"}))

	err := s.Insert(2, graphannis.Annotation{Key: graphannis.NodeNameKey, Val: "first_node"})
	assert.ErrorIs(t, err, graphannis.ErrAlreadyExists)

	// Re-setting the same node's own name to the same value is fine.
	require.NoError(t, s.Insert(1, graphannis.Annotation{Key: graphannis.NodeNameKey, Val: "first_node"}))
}

func TestNodeGetLargestItem(t *testing.T) {
	s := NewNodeAnnotationStorage()
	require.NoError(t, s.Insert(3, graphannis.Annotation{Key: graphannis.NodeNameKey, Val: "a"}))
	require.NoError(t, s.Insert(7, graphannis.Annotation{Key: graphannis.NodeNameKey, Val: "b"}))
	require.NoError(t, s.Insert(2, graphannis.Annotation{Key: graphannis.NodeNameKey, Val: "c"}))

	largest, ok := s.GetLargestItem()
	require.True(t, ok)
	assert.Equal(t, graphannis.NodeID(7), largest)
}
