package graphstorage

import (
	"fmt"
	"sort"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// UnionSerializationID is the tag SerializationID reports for this
// storage. A union is never itself saved to disk: SaveTo and LoadFrom
// do nothing, and its members are only those passed to NewUnionStorage.
const UnionSerializationID = "union_v1"

// UnionStorage presents several graph storages -- typically the
// automatically-derived LeftToken/RightToken/Coverage views -- as one
// read-only edge container, deduplicating edges and annotations that
// appear in more than one member.
type UnionStorage struct {
	members []GraphStorage
	stats   *GraphStatistic
}

// NewUnionStorage composes members into a single read-only view. The
// member order does not affect results: duplicate edges are collapsed
// via a set, not concatenated.
func NewUnionStorage(members ...GraphStorage) *UnionStorage {
	return &UnionStorage{members: members}
}

func (u *UnionStorage) SourceNodes() ([]graphannis.NodeID, error) {
	seen := map[graphannis.NodeID]struct{}{}
	for _, m := range u.members {
		nodes, err := m.SourceNodes()
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			seen[n] = struct{}{}
		}
	}
	out := make([]graphannis.NodeID, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (u *UnionStorage) GetOutgoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	seen := map[graphannis.NodeID]struct{}{}
	for _, m := range u.members {
		targets, err := m.GetOutgoingEdges(node)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			seen[t] = struct{}{}
		}
	}
	return dedupSorted(seen), nil
}

func (u *UnionStorage) GetIngoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	seen := map[graphannis.NodeID]struct{}{}
	for _, m := range u.members {
		sources, err := m.GetIngoingEdges(node)
		if err != nil {
			return nil, err
		}
		for _, s := range sources {
			seen[s] = struct{}{}
		}
	}
	return dedupSorted(seen), nil
}

func dedupSorted(seen map[graphannis.NodeID]struct{}) []graphannis.NodeID {
	out := make([]graphannis.NodeID, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (u *UnionStorage) FindConnected(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(u, node, minDistance, maxDistance, false, Deadline{})
}

func (u *UnionStorage) FindConnectedInverse(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(u, node, minDistance, maxDistance, true, Deadline{})
}

func (u *UnionStorage) Distance(source, target graphannis.NodeID) (int, bool, error) {
	return bfsDistance(u, source, target)
}

func (u *UnionStorage) IsConnected(source, target graphannis.NodeID, minDistance int, maxDistance Bound) (bool, error) {
	return isConnectedViaDFS(u, source, target, minDistance, maxDistance)
}

// GetAnnoStorage merges every member's edge annotations into a fresh,
// read-only snapshot on each call. Callers that need this frequently
// should cache the result themselves.
func (u *UnionStorage) GetAnnoStorage() *annostorage.EdgeAnnotationStorage {
	merged := annostorage.NewEdgeAnnotationStorage()
	for _, m := range u.members {
		src, err := m.SourceNodes()
		if err != nil {
			continue
		}
		for _, s := range src {
			targets, err := m.GetOutgoingEdges(s)
			if err != nil {
				continue
			}
			for _, t := range targets {
				e := graphannis.Edge{Source: s, Target: t}
				for _, anno := range m.GetAnnoStorage().GetAnnotationsForItem(e) {
					merged.Insert(e, anno)
				}
			}
		}
	}
	return merged
}

// Copy is unsupported: a union is a view over other storages, not an
// independent copy target.
func (u *UnionStorage) Copy(nodeAnnos *annostorage.NodeAnnotationStorage, other GraphStorage) error {
	return fmt.Errorf("%w: union storage cannot be the target of Copy", graphannis.ErrInconsistent)
}

func (u *UnionStorage) SerializationID() string { return UnionSerializationID }

// SaveTo/LoadFrom are no-ops: a union has no state of its own beyond
// its member list, which is neither written nor restored. The Registry
// has no factory for this tag, so a union is never loaded from disk.
func (u *UnionStorage) SaveTo(location string) error { return nil }
func (u *UnionStorage) LoadFrom(location string) error { return nil }

func (u *UnionStorage) GetStatistics() *GraphStatistic { return u.stats }

func (u *UnionStorage) CalculateStatistics() error {
	stat, err := computeStatistics(u)
	if err != nil {
		return err
	}
	u.stats = stat
	return nil
}

var _ GraphStorage = (*UnionStorage)(nil)
