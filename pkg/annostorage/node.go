package annostorage

import (
	"fmt"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// NodeAnnotationStorage specializes AnnotationStorage for node ids. It
// adds the one invariant node annotations alone are responsible for:
// annis:node_name must stay unique across the whole graph.
type NodeAnnotationStorage struct {
	*AnnotationStorage[graphannis.NodeID]
}

// NewNodeAnnotationStorage creates an empty node annotation storage.
func NewNodeAnnotationStorage() *NodeAnnotationStorage {
	return &NodeAnnotationStorage{AnnotationStorage: New[graphannis.NodeID](nil)}
}

// Insert behaves like AnnotationStorage.Insert, except that setting
// annis:node_name to a value already used by a different node is
// rejected as a consistency error rather than silently overwriting the
// other node's identity.
func (s *NodeAnnotationStorage) Insert(item graphannis.NodeID, anno graphannis.Annotation) error {
	if anno.Key == graphannis.NodeNameKey {
		ns := graphannis.AnnisNS
		matches := s.ExactAnnoSearch(&ns, graphannis.NodeNameAnno, Some(anno.Val))
		for _, m := range matches {
			if m.Item != item {
				return fmt.Errorf("%w: node_name %q already used by node %d", graphannis.ErrAlreadyExists, anno.Val, m.Item)
			}
		}
	}
	s.AnnotationStorage.Insert(item, anno)
	return nil
}

// GetLargestItem returns the node with the greatest id currently
// annotated, used to mint the next NodeID on AddNode.
func (s *NodeAnnotationStorage) GetLargestItem() (graphannis.NodeID, bool) {
	return GetLargestItem(s.AnnotationStorage, func(a, b graphannis.NodeID) bool { return a < b })
}

// NodeAnnotationsDir is the on-disk directory name for node
// annotations, relative to current/ (named "nodes.bin" despite being a
// directory holding the two-index-plus-metadata layout, exactly like a
// component's "annotations/" subfolder -- see DESIGN.md).
const NodeAnnotationsDir = "nodes.bin"
