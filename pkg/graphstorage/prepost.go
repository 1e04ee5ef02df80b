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

// PrePostOrderSerializationID is the impl.cfg tag for this storage.
const PrePostOrderSerializationID = "prepost_v1"

// prePostEntry is one DFS visit of a node. A node reached through more
// than one parent (a DAG, not strictly a tree) accumulates one entry
// per path it was discovered on, so ancestor queries still work: target
// is a descendant of node if any of node's entries contains any of
// target's entries.
type prePostEntry struct {
	Pre, Post int
	Level     int
}

// PrePostOrderStorage is a read-only snapshot optimized for acyclic,
// close-to-tree-shaped components (typically dominance edges):
// ancestor/descendant queries become an interval containment test
// instead of a graph walk. Built once via Copy from a writable storage;
// mutating it is not supported.
type PrePostOrderStorage struct {
	order   map[graphannis.NodeID][]prePostEntry
	edges   map[graphannis.NodeID][]graphannis.NodeID
	inverse map[graphannis.NodeID][]graphannis.NodeID
	annos   *annostorage.EdgeAnnotationStorage
	stats   *GraphStatistic
}

// NewPrePostOrderStorage creates an empty storage; populate it via Copy.
func NewPrePostOrderStorage() *PrePostOrderStorage {
	return &PrePostOrderStorage{
		order:   make(map[graphannis.NodeID][]prePostEntry),
		edges:   make(map[graphannis.NodeID][]graphannis.NodeID),
		inverse: make(map[graphannis.NodeID][]graphannis.NodeID),
		annos:   annostorage.NewEdgeAnnotationStorage(),
	}
}

func (p *PrePostOrderStorage) SourceNodes() ([]graphannis.NodeID, error) {
	out := make([]graphannis.NodeID, 0, len(p.edges))
	for n := range p.edges {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (p *PrePostOrderStorage) GetOutgoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return append([]graphannis.NodeID(nil), p.edges[node]...), nil
}

func (p *PrePostOrderStorage) GetIngoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return append([]graphannis.NodeID(nil), p.inverse[node]...), nil
}

func (p *PrePostOrderStorage) FindConnected(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(p, node, minDistance, maxDistance, false, Deadline{})
}

func (p *PrePostOrderStorage) FindConnectedInverse(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(p, node, minDistance, maxDistance, true, Deadline{})
}

func (p *PrePostOrderStorage) Distance(source, target graphannis.NodeID) (int, bool, error) {
	return bfsDistance(p, source, target)
}

// IsConnected for this implementation is the interval-containment test
// the whole storage exists to make cheap, falling back to the
// level-distance recorded at discovery time to honor min/max bounds.
func (p *PrePostOrderStorage) IsConnected(source, target graphannis.NodeID, minDistance int, maxDistance Bound) (bool, error) {
	srcEntries := p.order[source]
	tgtEntries := p.order[target]
	for _, se := range srcEntries {
		for _, te := range tgtEntries {
			if te.Pre > se.Pre && te.Post < se.Post {
				dist := te.Level - se.Level
				if dist >= minDistance && maxDistance.allows(dist) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func (p *PrePostOrderStorage) GetAnnoStorage() *annostorage.EdgeAnnotationStorage { return p.annos }

func (p *PrePostOrderStorage) Copy(nodeAnnos *annostorage.NodeAnnotationStorage, other GraphStorage) error {
	p.edges = make(map[graphannis.NodeID][]graphannis.NodeID)
	p.inverse = make(map[graphannis.NodeID][]graphannis.NodeID)
	p.annos = annostorage.NewEdgeAnnotationStorage()

	sources, err := other.SourceNodes()
	if err != nil {
		return err
	}
	hasIncoming := map[graphannis.NodeID]bool{}
	for _, src := range sources {
		targets, err := other.GetOutgoingEdges(src)
		if err != nil {
			return err
		}
		p.edges[src] = append([]graphannis.NodeID(nil), targets...)
		for _, t := range targets {
			p.inverse[t] = insertSorted(p.inverse[t], src)
			hasIncoming[t] = true
			e := graphannis.Edge{Source: src, Target: t}
			for _, anno := range other.GetAnnoStorage().GetAnnotationsForItem(e) {
				p.annos.Insert(e, anno)
			}
		}
	}

	p.order = make(map[graphannis.NodeID][]prePostEntry)
	counter := 0
	onStack := map[graphannis.NodeID]struct{}{}
	var cycleErr error
	var visit func(node graphannis.NodeID, level int)
	visit = func(node graphannis.NodeID, level int) {
		if cycleErr != nil {
			return
		}
		if _, ok := onStack[node]; ok {
			cycleErr = fmt.Errorf("prepost: %w", graphannis.ErrCycle)
			return
		}
		onStack[node] = struct{}{}
		counter++
		pre := counter
		for _, child := range p.edges[node] {
			visit(child, level+1)
			if cycleErr != nil {
				break
			}
		}
		delete(onStack, node)
		if cycleErr != nil {
			return
		}
		counter++
		post := counter
		p.order[node] = append(p.order[node], prePostEntry{Pre: pre, Post: post, Level: level})
	}
	for _, src := range sources {
		if !hasIncoming[src] {
			visit(src, 0)
			if cycleErr != nil {
				break
			}
		}
	}
	if cycleErr == nil {
		// A component made up entirely of one or more cycles has no node
		// with hasIncoming == false, so the loop above never visits any of
		// them; catch that case too instead of silently leaving gaps.
		allNodes := make(map[graphannis.NodeID]struct{}, len(p.edges)+len(p.inverse))
		for n := range p.edges {
			allNodes[n] = struct{}{}
		}
		for n := range p.inverse {
			allNodes[n] = struct{}{}
		}
		for n := range allNodes {
			if len(p.order[n]) == 0 {
				cycleErr = fmt.Errorf("prepost: %w", graphannis.ErrCycle)
				break
			}
		}
	}
	if cycleErr != nil {
		return cycleErr
	}
	return nil
}

func (p *PrePostOrderStorage) SerializationID() string { return PrePostOrderSerializationID }

type prePostDisk struct {
	Order map[graphannis.NodeID][]prePostEntry
	Edges map[graphannis.NodeID][]graphannis.NodeID
}

func (p *PrePostOrderStorage) SaveTo(location string) error {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("prepost: %w", err)
	}
	f, err := os.Create(filepath.Join(location, "order.gob"))
	if err != nil {
		return fmt.Errorf("prepost: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(prePostDisk{Order: p.order, Edges: p.edges}); err != nil {
		return fmt.Errorf("prepost: encode: %w", err)
	}
	return p.annos.SaveAnnotationsTo(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

func (p *PrePostOrderStorage) LoadFrom(location string) error {
	f, err := os.Open(filepath.Join(location, "order.gob"))
	if err != nil {
		return fmt.Errorf("prepost: %w", err)
	}
	defer f.Close()
	var disk prePostDisk
	if err := gob.NewDecoder(f).Decode(&disk); err != nil {
		return fmt.Errorf("prepost: decode: %w", err)
	}
	p.order = disk.Order
	p.edges = disk.Edges
	p.inverse = make(map[graphannis.NodeID][]graphannis.NodeID)
	for src, targets := range p.edges {
		for _, t := range targets {
			p.inverse[t] = insertSorted(p.inverse[t], src)
		}
	}
	p.annos = annostorage.NewEdgeAnnotationStorage()
	return p.annos.LoadAnnotationsFrom(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

func (p *PrePostOrderStorage) GetStatistics() *GraphStatistic { return p.stats }

func (p *PrePostOrderStorage) CalculateStatistics() error {
	stat, err := computeStatistics(p)
	if err != nil {
		return err
	}
	stat.RootedTree = true
	stat.Cyclic = false
	p.stats = stat
	return nil
}

var _ GraphStorage = (*PrePostOrderStorage)(nil)
