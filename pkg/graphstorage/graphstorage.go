// Package graphstorage implements the family of edge containers for a
// single component: a writable adjacency list, a pre/post-order index
// for DAGs, a bounded-depth linear/disk-path store, a disk-backed
// (Badger) adjacency list, and a read-only union view. All five share
// the GraphStorage contract defined here.
package graphstorage

import (
	"time"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// BoundKind discriminates the three ways a traversal's upper distance
// bound can be expressed, mirroring Rust's std::ops::Bound.
type BoundKind int

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

// Bound is an upper distance bound for reachability traversals.
type Bound struct {
	Kind  BoundKind
	Value int
}

// Unbound is the "no upper limit" bound.
func Unbound() Bound { return Bound{Kind: Unbounded} }

// IncludedAt bounds the traversal to at most n hops, inclusive.
func IncludedAt(n int) Bound { return Bound{Kind: Included, Value: n} }

// ExcludedAt bounds the traversal to fewer than n hops.
func ExcludedAt(n int) Bound { return Bound{Kind: Excluded, Value: n} }

// allows reports whether a path of the given distance satisfies the bound.
func (b Bound) allows(distance int) bool {
	switch b.Kind {
	case Included:
		return distance <= b.Value
	case Excluded:
		return distance < b.Value
	default:
		return true
	}
}

// exceeded reports whether distance has gone past any possibility of
// satisfying the bound, so a DFS can stop descending.
func (b Bound) exceeded(distance int) bool {
	switch b.Kind {
	case Included:
		return distance > b.Value
	case Excluded:
		return distance >= b.Value
	default:
		return false
	}
}

// EdgeContainer is the read-only edge enumeration subset of
// GraphStorage. The linear/disk-path implementation's inverse-edge
// operations are expressed purely in terms of this interface.
type EdgeContainer interface {
	// SourceNodes streams every node with at least one outgoing edge.
	SourceNodes() ([]graphannis.NodeID, error)
	// GetOutgoingEdges returns the targets of node's outgoing edges.
	GetOutgoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error)
	// GetIngoingEdges returns the sources of node's incoming edges.
	// Optional in the sense that implementations without an inverse
	// index may derive this by scanning.
	GetIngoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error)
}

// GraphStatistic is the optional precomputed statistics snapshot a
// graph storage can expose.
type GraphStatistic struct {
	MaxDepth            int64
	MaxFanOut           int64
	AvgFanOut           float64
	Fan99PercentileOut  int64
	MaxFanIn            int64
	AvgFanIn            float64
	Fan99PercentileIn   int64
	Cyclic              bool
	RootedTree          bool
	NodeCount           int64
	DFSVisitRatio       float64
}

// GraphStorage is the contract every component's edge container
// implements.
type GraphStorage interface {
	EdgeContainer

	// FindConnected returns every node reachable from node within
	// [minDistance, maxDistance] hops, deduplicated. minDistance = 0
	// includes node itself.
	FindConnected(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error)
	// FindConnectedInverse is FindConnected over the reversed edges.
	FindConnectedInverse(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error)
	// Distance returns the shortest hop count from source to target, or
	// false if unreachable. The same node yields (0, false): distance
	// zero is not considered a connection.
	Distance(source, target graphannis.NodeID) (int, bool, error)
	// IsConnected reports whether target is reachable from source
	// within [minDistance, maxDistance] hops.
	IsConnected(source, target graphannis.NodeID, minDistance int, maxDistance Bound) (bool, error)

	GetAnnoStorage() *annostorage.EdgeAnnotationStorage

	// Copy destructively replaces this storage's contents -- edges,
	// annotations, and statistics -- with those of other.
	Copy(nodeAnnos *annostorage.NodeAnnotationStorage, other GraphStorage) error

	// SerializationID is the stable tag naming this implementation and
	// its on-disk version, written to impl.cfg.
	SerializationID() string

	SaveTo(location string) error
	LoadFrom(location string) error

	GetStatistics() *GraphStatistic
	CalculateStatistics() error
}

// WritableGraphStorage is the subset of implementations that support
// direct mutation. Only the adjacency list and the disk-backed
// adjacency variant implement it;
// pre/post-order, linear, and union storages are read-only snapshots
// built by Copy.
type WritableGraphStorage interface {
	GraphStorage

	AddEdge(e graphannis.Edge) error
	AddEdgeAnnotation(e graphannis.Edge, anno graphannis.Annotation) error
	DeleteEdge(e graphannis.Edge) error
	DeleteEdgeAnnotation(e graphannis.Edge, key graphannis.AnnoKey) error
	DeleteNode(node graphannis.NodeID) error
}

// Deadline is the cooperative cancellation mechanism traversals check
// at bounded intervals.
type Deadline struct {
	at time.Time
}

// NewDeadline returns a Deadline that expires at t. The zero Deadline
// never expires.
func NewDeadline(t time.Time) Deadline { return Deadline{at: t} }

func (d Deadline) expired() bool {
	return !d.at.IsZero() && time.Now().After(d.at)
}
