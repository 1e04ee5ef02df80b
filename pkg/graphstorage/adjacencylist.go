package graphstorage

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// AdjacencyListSerializationID is the tag written to impl.cfg for this
// implementation.
const AdjacencyListSerializationID = "adjacencylist_v1"

// AdjacencyListStorage is the default writable edge container: a
// sorted-slice adjacency list per source node, searched with binary
// search rather than a nested map. It is the only storage new
// components start as; Graph.OptimizeImpl
// may later Copy it into a more specialized read-only form.
type AdjacencyListStorage struct {
	edges    map[graphannis.NodeID][]graphannis.NodeID
	inverse  map[graphannis.NodeID][]graphannis.NodeID
	annos    *annostorage.EdgeAnnotationStorage
	stats    *GraphStatistic
}

// NewAdjacencyListStorage creates an empty adjacency list.
func NewAdjacencyListStorage() *AdjacencyListStorage {
	return &AdjacencyListStorage{
		edges:   make(map[graphannis.NodeID][]graphannis.NodeID),
		inverse: make(map[graphannis.NodeID][]graphannis.NodeID),
		annos:   annostorage.NewEdgeAnnotationStorage(),
	}
}

func insertSorted(s []graphannis.NodeID, v graphannis.NodeID) []graphannis.NodeID {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeSorted(s []graphannis.NodeID, v graphannis.NodeID) []graphannis.NodeID {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	if i >= len(s) || s[i] != v {
		return s
	}
	return append(s[:i], s[i+1:]...)
}

func containsSorted(s []graphannis.NodeID, v graphannis.NodeID) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	return i < len(s) && s[i] == v
}

// AddEdge inserts e, a no-op if it already exists. Self-loops are
// silently dropped.
func (a *AdjacencyListStorage) AddEdge(e graphannis.Edge) error {
	if e.Source == e.Target {
		return nil
	}
	a.edges[e.Source] = insertSorted(a.edges[e.Source], e.Target)
	a.inverse[e.Target] = insertSorted(a.inverse[e.Target], e.Source)
	return nil
}

// AddEdgeAnnotation attaches anno to e. e must already exist.
func (a *AdjacencyListStorage) AddEdgeAnnotation(e graphannis.Edge, anno graphannis.Annotation) error {
	if !containsSorted(a.edges[e.Source], e.Target) {
		return fmt.Errorf("%w: edge %v has no outgoing entry", graphannis.ErrNotFound, e)
	}
	a.annos.Insert(e, anno)
	return nil
}

// DeleteEdge removes e and every annotation on it.
func (a *AdjacencyListStorage) DeleteEdge(e graphannis.Edge) error {
	a.edges[e.Source] = removeSorted(a.edges[e.Source], e.Target)
	if len(a.edges[e.Source]) == 0 {
		delete(a.edges, e.Source)
	}
	a.inverse[e.Target] = removeSorted(a.inverse[e.Target], e.Source)
	if len(a.inverse[e.Target]) == 0 {
		delete(a.inverse, e.Target)
	}
	for _, anno := range a.annos.GetAnnotationsForItem(e) {
		a.annos.Remove(e, anno.Key)
	}
	return nil
}

// DeleteEdgeAnnotation removes only the given key from e.
func (a *AdjacencyListStorage) DeleteEdgeAnnotation(e graphannis.Edge, key graphannis.AnnoKey) error {
	a.annos.Remove(e, key)
	return nil
}

// DeleteNode removes every edge touching node, in either direction.
func (a *AdjacencyListStorage) DeleteNode(node graphannis.NodeID) error {
	for _, target := range append([]graphannis.NodeID(nil), a.edges[node]...) {
		_ = a.DeleteEdge(graphannis.Edge{Source: node, Target: target})
	}
	for _, source := range append([]graphannis.NodeID(nil), a.inverse[node]...) {
		_ = a.DeleteEdge(graphannis.Edge{Source: source, Target: node})
	}
	return nil
}

func (a *AdjacencyListStorage) SourceNodes() ([]graphannis.NodeID, error) {
	out := make([]graphannis.NodeID, 0, len(a.edges))
	for n := range a.edges {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (a *AdjacencyListStorage) GetOutgoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return append([]graphannis.NodeID(nil), a.edges[node]...), nil
}

func (a *AdjacencyListStorage) GetIngoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return append([]graphannis.NodeID(nil), a.inverse[node]...), nil
}

func (a *AdjacencyListStorage) FindConnected(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(a, node, minDistance, maxDistance, false, Deadline{})
}

func (a *AdjacencyListStorage) FindConnectedInverse(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(a, node, minDistance, maxDistance, true, Deadline{})
}

func (a *AdjacencyListStorage) Distance(source, target graphannis.NodeID) (int, bool, error) {
	return bfsDistance(a, source, target)
}

func (a *AdjacencyListStorage) IsConnected(source, target graphannis.NodeID, minDistance int, maxDistance Bound) (bool, error) {
	return isConnectedViaDFS(a, source, target, minDistance, maxDistance)
}

func (a *AdjacencyListStorage) GetAnnoStorage() *annostorage.EdgeAnnotationStorage { return a.annos }

func (a *AdjacencyListStorage) Copy(nodeAnnos *annostorage.NodeAnnotationStorage, other GraphStorage) error {
	a.edges = make(map[graphannis.NodeID][]graphannis.NodeID)
	a.inverse = make(map[graphannis.NodeID][]graphannis.NodeID)
	a.annos = annostorage.NewEdgeAnnotationStorage()

	sources, err := other.SourceNodes()
	if err != nil {
		return err
	}
	for _, src := range sources {
		targets, err := other.GetOutgoingEdges(src)
		if err != nil {
			return err
		}
		for _, tgt := range targets {
			e := graphannis.Edge{Source: src, Target: tgt}
			if err := a.AddEdge(e); err != nil {
				return err
			}
			for _, anno := range other.GetAnnoStorage().GetAnnotationsForItem(e) {
				if err := a.AddEdgeAnnotation(e, anno); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a *AdjacencyListStorage) SerializationID() string { return AdjacencyListSerializationID }

type adjacencyDisk struct {
	Edges map[graphannis.NodeID][]graphannis.NodeID
}

func (a *AdjacencyListStorage) SaveTo(location string) error {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("adjacencylist: %w", err)
	}
	f, err := os.Create(filepath.Join(location, "edges.gob"))
	if err != nil {
		return fmt.Errorf("adjacencylist: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(adjacencyDisk{Edges: a.edges}); err != nil {
		return fmt.Errorf("adjacencylist: encode: %w", err)
	}
	return a.annos.SaveAnnotationsTo(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

func (a *AdjacencyListStorage) LoadFrom(location string) error {
	f, err := os.Open(filepath.Join(location, "edges.gob"))
	if err != nil {
		return fmt.Errorf("adjacencylist: %w", err)
	}
	defer f.Close()
	var disk adjacencyDisk
	if err := gob.NewDecoder(f).Decode(&disk); err != nil {
		return fmt.Errorf("adjacencylist: decode: %w", err)
	}
	a.edges = disk.Edges
	if a.edges == nil {
		a.edges = make(map[graphannis.NodeID][]graphannis.NodeID)
	}
	a.inverse = make(map[graphannis.NodeID][]graphannis.NodeID)
	for src, targets := range a.edges {
		for _, tgt := range targets {
			a.inverse[tgt] = insertSorted(a.inverse[tgt], src)
		}
	}
	a.annos = annostorage.NewEdgeAnnotationStorage()
	return a.annos.LoadAnnotationsFrom(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

func (a *AdjacencyListStorage) GetStatistics() *GraphStatistic { return a.stats }

func (a *AdjacencyListStorage) CalculateStatistics() error {
	stat, err := computeStatistics(a)
	if err != nil {
		return err
	}
	a.stats = stat
	return nil
}

var _ WritableGraphStorage = (*AdjacencyListStorage)(nil)
