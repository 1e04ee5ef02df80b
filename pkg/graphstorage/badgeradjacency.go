package graphstorage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// BadgerAdjacencySerializationID is the impl.cfg tag for this storage.
const BadgerAdjacencySerializationID = "badgeradjacency_v1"

const (
	badgerOutPrefix = 'o'
	badgerInPrefix  = 'i'
)

// BadgerAdjacencyStorage is the out-of-core writable edge container:
// edges live in an embedded Badger LSM-tree keyed by
// (direction, source, target) instead of Go maps, so a component far
// larger than available memory can still be queried and mutated.
// Edge annotations stay in an
// in-memory EdgeAnnotationStorage, on the assumption that label data is
// orders of magnitude smaller than the edge set itself.
type BadgerAdjacencyStorage struct {
	db    *badger.DB
	dir   string
	annos *annostorage.EdgeAnnotationStorage
	stats *GraphStatistic
}

func edgeKey(prefix byte, a, b graphannis.NodeID) []byte {
	key := make([]byte, 17)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:9], uint64(a))
	binary.BigEndian.PutUint64(key[9:17], uint64(b))
	return key
}

// OpenBadgerAdjacencyStorage opens (creating if absent) a Badger
// database rooted at dir for a single component's edges.
func OpenBadgerAdjacencyStorage(dir string) (*BadgerAdjacencyStorage, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, "badger")).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgeradjacency: open: %w", err)
	}
	b := &BadgerAdjacencyStorage{db: db, dir: dir, annos: annostorage.NewEdgeAnnotationStorage()}
	if err := b.annos.LoadAnnotationsFrom(filepath.Join(dir, annostorage.EdgeAnnotationsDir)); err != nil {
		// A fresh component has no annotations on disk yet; that's fine.
		_ = err
	}
	return b, nil
}

// Close releases the underlying Badger handles.
func (b *BadgerAdjacencyStorage) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BadgerAdjacencyStorage) AddEdge(e graphannis.Edge) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(edgeKey(badgerOutPrefix, e.Source, e.Target), nil); err != nil {
			return err
		}
		return txn.Set(edgeKey(badgerInPrefix, e.Target, e.Source), nil)
	})
}

func (b *BadgerAdjacencyStorage) AddEdgeAnnotation(e graphannis.Edge, anno graphannis.Annotation) error {
	exists := false
	_ = b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(edgeKey(badgerOutPrefix, e.Source, e.Target))
		exists = err == nil
		return nil
	})
	if !exists {
		return fmt.Errorf("%w: edge %v", graphannis.ErrNotFound, e)
	}
	b.annos.Insert(e, anno)
	return nil
}

func (b *BadgerAdjacencyStorage) DeleteEdge(e graphannis.Edge) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(edgeKey(badgerOutPrefix, e.Source, e.Target)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(edgeKey(badgerInPrefix, e.Target, e.Source)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, anno := range b.annos.GetAnnotationsForItem(e) {
		b.annos.Remove(e, anno.Key)
	}
	return nil
}

func (b *BadgerAdjacencyStorage) DeleteEdgeAnnotation(e graphannis.Edge, key graphannis.AnnoKey) error {
	b.annos.Remove(e, key)
	return nil
}

func (b *BadgerAdjacencyStorage) DeleteNode(node graphannis.NodeID) error {
	outs, err := b.GetOutgoingEdges(node)
	if err != nil {
		return err
	}
	for _, t := range outs {
		if err := b.DeleteEdge(graphannis.Edge{Source: node, Target: t}); err != nil {
			return err
		}
	}
	ins, err := b.GetIngoingEdges(node)
	if err != nil {
		return err
	}
	for _, s := range ins {
		if err := b.DeleteEdge(graphannis.Edge{Source: s, Target: node}); err != nil {
			return err
		}
	}
	return nil
}

func (b *BadgerAdjacencyStorage) scanPrefixTargets(prefix byte, node graphannis.NodeID) ([]graphannis.NodeID, error) {
	var out []graphannis.NodeID
	base := edgeKey(prefix, node, 0)[:9]
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(base); it.ValidForPrefix(base); it.Next() {
			key := it.Item().KeyCopy(nil)
			out = append(out, graphannis.NodeID(binary.BigEndian.Uint64(key[9:17])))
		}
		return nil
	})
	return out, err
}

func (b *BadgerAdjacencyStorage) SourceNodes() ([]graphannis.NodeID, error) {
	seen := map[graphannis.NodeID]struct{}{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte{badgerOutPrefix}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			seen[graphannis.NodeID(binary.BigEndian.Uint64(key[1:9]))] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]graphannis.NodeID, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (b *BadgerAdjacencyStorage) GetOutgoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return b.scanPrefixTargets(badgerOutPrefix, node)
}

func (b *BadgerAdjacencyStorage) GetIngoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return b.scanPrefixTargets(badgerInPrefix, node)
}

func (b *BadgerAdjacencyStorage) FindConnected(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(b, node, minDistance, maxDistance, false, Deadline{})
}

func (b *BadgerAdjacencyStorage) FindConnectedInverse(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(b, node, minDistance, maxDistance, true, Deadline{})
}

func (b *BadgerAdjacencyStorage) Distance(source, target graphannis.NodeID) (int, bool, error) {
	return bfsDistance(b, source, target)
}

func (b *BadgerAdjacencyStorage) IsConnected(source, target graphannis.NodeID, minDistance int, maxDistance Bound) (bool, error) {
	return isConnectedViaDFS(b, source, target, minDistance, maxDistance)
}

func (b *BadgerAdjacencyStorage) GetAnnoStorage() *annostorage.EdgeAnnotationStorage { return b.annos }

func (b *BadgerAdjacencyStorage) Copy(nodeAnnos *annostorage.NodeAnnotationStorage, other GraphStorage) error {
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("badgeradjacency: drop: %w", err)
	}
	b.annos = annostorage.NewEdgeAnnotationStorage()

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
			if err := b.AddEdge(e); err != nil {
				return err
			}
			for _, anno := range other.GetAnnoStorage().GetAnnotationsForItem(e) {
				if err := b.AddEdgeAnnotation(e, anno); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *BadgerAdjacencyStorage) SerializationID() string { return BadgerAdjacencySerializationID }

// SaveTo flushes the annotation index; the Badger LSM tree underneath
// dir is already durable on every Update transaction.
func (b *BadgerAdjacencyStorage) SaveTo(location string) error {
	return b.annos.SaveAnnotationsTo(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

// LoadFrom re-opens the Badger database at location if it isn't
// already open at that path, and reloads edge annotations.
func (b *BadgerAdjacencyStorage) LoadFrom(location string) error {
	if b.db == nil || b.dir != location {
		if b.db != nil {
			_ = b.db.Close()
		}
		opts := badger.DefaultOptions(filepath.Join(location, "badger")).WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return fmt.Errorf("badgeradjacency: open: %w", err)
		}
		b.db = db
		b.dir = location
	}
	b.annos = annostorage.NewEdgeAnnotationStorage()
	return b.annos.LoadAnnotationsFrom(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

func (b *BadgerAdjacencyStorage) GetStatistics() *GraphStatistic { return b.stats }

func (b *BadgerAdjacencyStorage) CalculateStatistics() error {
	stat, err := computeStatistics(b)
	if err != nil {
		return err
	}
	b.stats = stat
	return nil
}

var _ WritableGraphStorage = (*BadgerAdjacencyStorage)(nil)
