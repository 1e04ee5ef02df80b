package annostorage

import (
	"os"
	"testing"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(ns, name string) graphannis.AnnoKey {
	return graphannis.AnnoKey{Ns: ns, Name: name}
}

func TestInsertAndGet(t *testing.T) {
	s := New[graphannis.NodeID](nil)
	s.Insert(1, graphannis.Annotation{Key: key("default_ns", "pos"), Val: "NN"})
	s.Insert(1, graphannis.Annotation{Key: key("default_ns", "lemma"), Val: "dog"})

	annos := s.GetAnnotationsForItem(1)
	require.Len(t, annos, 2)

	val, ok := s.GetValueForItem(1, key("default_ns", "pos"))
	require.True(t, ok)
	assert.Equal(t, "NN", val)

	_, ok = s.GetValueForItem(2, key("default_ns", "pos"))
	assert.False(t, ok)
}

func TestInsertReplacesValue(t *testing.T) {
	s := New[graphannis.NodeID](nil)
	k := key("default_ns", "pos")
	s.Insert(1, graphannis.Annotation{Key: k, Val: "NN"})
	s.Insert(1, graphannis.Annotation{Key: k, Val: "VB"})

	val, ok := s.GetValueForItem(1, k)
	require.True(t, ok)
	assert.Equal(t, "VB", val)

	matches := s.ExactAnnoSearch(nil, "pos", Some("NN"))
	assert.Empty(t, matches)
	matches = s.ExactAnnoSearch(nil, "pos", Some("VB"))
	assert.Len(t, matches, 1)
}

func TestRemove(t *testing.T) {
	s := New[graphannis.NodeID](nil)
	k := key("default_ns", "pos")
	s.Insert(1, graphannis.Annotation{Key: k, Val: "NN"})

	val, ok := s.Remove(1, k)
	require.True(t, ok)
	assert.Equal(t, "NN", val)

	_, ok = s.Remove(1, k)
	assert.False(t, ok)
	assert.Empty(t, s.GetAnnotationsForItem(1))
}

func TestExactAnnoSearchValueSearchVariants(t *testing.T) {
	s := New[graphannis.NodeID](nil)
	k := key("default_ns", "pos")
	s.Insert(1, graphannis.Annotation{Key: k, Val: "NN"})
	s.Insert(2, graphannis.Annotation{Key: k, Val: "VB"})
	s.Insert(3, graphannis.Annotation{Key: k, Val: "NN"})

	assert.Len(t, s.ExactAnnoSearch(nil, "pos", Any()), 3)
	assert.Len(t, s.ExactAnnoSearch(nil, "pos", Some("NN")), 2)
	assert.Len(t, s.ExactAnnoSearch(nil, "pos", NotSome("NN")), 1)
}

func TestRegexAnnoSearch(t *testing.T) {
	s := New[graphannis.NodeID](nil)
	k := key("default_ns", "word")
	s.Insert(1, graphannis.Annotation{Key: k, Val: "running"})
	s.Insert(2, graphannis.Annotation{Key: k, Val: "jumping"})
	s.Insert(3, graphannis.Annotation{Key: k, Val: "cat"})

	matches, err := s.RegexAnnoSearch(nil, "word", "^.+ing$", false)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = s.RegexAnnoSearch(nil, "word", "^.+ing$", true)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestCalculateStatisticsAndGuesses(t *testing.T) {
	s := New[graphannis.NodeID](nil)
	k := key("default_ns", "pos")
	for i := 0; i < 5; i++ {
		s.Insert(graphannis.NodeID(i), graphannis.Annotation{Key: k, Val: "NN"})
	}
	s.Insert(5, graphannis.Annotation{Key: k, Val: "VB"})
	s.CalculateStatistics()

	val, ok := s.GuessMostFrequentValue(nil, "pos")
	require.True(t, ok)
	assert.Equal(t, "NN", val)

	assert.Equal(t, 6, s.GuessMaxCount(nil, "pos", "AA", "ZZ"))
}

func TestSaveAndLoadAnnotations(t *testing.T) {
	dir := t.TempDir()
	s := New[graphannis.NodeID](nil)
	k := key("default_ns", "pos")
	s.Insert(1, graphannis.Annotation{Key: k, Val: "NN"})
	s.Insert(2, graphannis.Annotation{Key: k, Val: "VB"})
	s.CalculateStatistics()

	require.NoError(t, s.SaveAnnotationsTo(dir))

	loaded := New[graphannis.NodeID](nil)
	require.NoError(t, loaded.LoadAnnotationsFrom(dir))

	assert.Equal(t, 2, loaded.NumberOfAnnotations())
	val, ok := loaded.GetValueForItem(1, k)
	require.True(t, ok)
	assert.Equal(t, "NN", val)

	val, ok = loaded.GuessMostFrequentValue(nil, "pos")
	require.True(t, ok)
	assert.NotEmpty(t, val)
}

func TestLoadAnnotationsFromMissingDirReturnsError(t *testing.T) {
	s := New[graphannis.NodeID](nil)
	err := s.LoadAnnotationsFrom(os.DevNull + "-does-not-exist")
	assert.Error(t, err)
}
