package graphstorage

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// DiskPathSerializationID is the impl.cfg tag for this storage.
const DiskPathSerializationID = "diskpath_v1"

// MaxDepth bounds how many hops a linear-path storage records per
// node. Components deeper than this, or with a node that has more than
// one outgoing edge, cannot be represented and must fall back to
// AdjacencyListStorage.
const MaxDepth = 15

// entrySize is the fixed record length: MaxDepth*8 bytes for the
// successor chain (one uint64 NodeID each, nearest successor first)
// plus one length byte recording how many of those slots are
// populated.
const entrySize = MaxDepth*8 + 1

// DiskPathStorage is the bounded-depth, out-degree<=1 linear path
// store: a forest of single-child chains where each node records its
// full successor chain (up to MaxDepth hops) as a fixed-size binary
// record, giving O(1) reachability without walking edges. Read-only,
// built via Copy.
type DiskPathStorage struct {
	rowOf   map[graphannis.NodeID]int
	rows    [][MaxDepth]graphannis.NodeID
	rowLen  []uint8
	edges   map[graphannis.NodeID][]graphannis.NodeID
	inverse map[graphannis.NodeID][]graphannis.NodeID
	annos   *annostorage.EdgeAnnotationStorage
	stats   *GraphStatistic
}

// NewDiskPathStorage creates an empty storage; populate it via Copy.
func NewDiskPathStorage() *DiskPathStorage {
	return &DiskPathStorage{
		rowOf:   make(map[graphannis.NodeID]int),
		edges:   make(map[graphannis.NodeID][]graphannis.NodeID),
		inverse: make(map[graphannis.NodeID][]graphannis.NodeID),
		annos:   annostorage.NewEdgeAnnotationStorage(),
	}
}

func (d *DiskPathStorage) SourceNodes() ([]graphannis.NodeID, error) {
	out := make([]graphannis.NodeID, 0, len(d.edges))
	for n := range d.edges {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (d *DiskPathStorage) GetOutgoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return append([]graphannis.NodeID(nil), d.edges[node]...), nil
}

// GetIngoingEdges reads the inverse edge map this storage keeps
// alongside its forward edges.
func (d *DiskPathStorage) GetIngoingEdges(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	return append([]graphannis.NodeID(nil), d.inverse[node]...), nil
}

func (d *DiskPathStorage) FindConnected(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(d, node, minDistance, maxDistance, false, Deadline{})
}

// FindConnectedInverse runs the cycle-safe DFS over the inverse edge
// map, the same map GetIngoingEdges reads.
func (d *DiskPathStorage) FindConnectedInverse(node graphannis.NodeID, minDistance int, maxDistance Bound) ([]graphannis.NodeID, error) {
	return cycleSafeDFS(d, node, minDistance, maxDistance, true, Deadline{})
}

// Distance exploits the stored forward chain directly: rows[source]
// holds the nodes reachable by following single-child edges out of
// source, nearest first, so target's position in that chain is its
// hop distance.
func (d *DiskPathStorage) Distance(source, target graphannis.NodeID) (int, bool, error) {
	row, ok := d.rowOf[source]
	if !ok {
		return 0, false, nil
	}
	length := int(d.rowLen[row])
	for i := 0; i < length; i++ {
		if d.rows[row][i] == target {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// IsConnected exploits the stored forward chain directly: target is
// reachable from source iff it appears somewhere in source's recorded
// path, at a distance within bounds.
func (d *DiskPathStorage) IsConnected(source, target graphannis.NodeID, minDistance int, maxDistance Bound) (bool, error) {
	dist, ok, err := d.Distance(source, target)
	if err != nil || !ok {
		return false, err
	}
	return dist >= minDistance && maxDistance.allows(dist), nil
}

func (d *DiskPathStorage) GetAnnoStorage() *annostorage.EdgeAnnotationStorage { return d.annos }

func (d *DiskPathStorage) Copy(nodeAnnos *annostorage.NodeAnnotationStorage, other GraphStorage) error {
	d.edges = make(map[graphannis.NodeID][]graphannis.NodeID)
	d.inverse = make(map[graphannis.NodeID][]graphannis.NodeID)
	d.annos = annostorage.NewEdgeAnnotationStorage()
	d.rowOf = make(map[graphannis.NodeID]int)
	d.rows = nil
	d.rowLen = nil

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
		if len(targets) > 1 {
			return fmt.Errorf("%w: node %d has out-degree %d, linear storage requires <=1", graphannis.ErrInconsistent, src, len(targets))
		}
		d.edges[src] = append([]graphannis.NodeID(nil), targets...)
		for _, t := range targets {
			d.inverse[t] = insertSorted(d.inverse[t], src)
			hasIncoming[t] = true
			e := graphannis.Edge{Source: src, Target: t}
			for _, anno := range other.GetAnnoStorage().GetAnnotationsForItem(e) {
				d.annos.Insert(e, anno)
			}
		}
	}

	allNodes := map[graphannis.NodeID]struct{}{}
	for n := range d.edges {
		allNodes[n] = struct{}{}
	}
	for n := range d.inverse {
		allNodes[n] = struct{}{}
	}
	for node := range allNodes {
		path, err := d.computePath(node)
		if err != nil {
			return err
		}
		d.setRow(node, path)
	}
	return nil
}

// computePath walks outgoing edges from node up to MaxDepth hops,
// returning the visited chain (nearest first).
func (d *DiskPathStorage) computePath(node graphannis.NodeID) ([]graphannis.NodeID, error) {
	var path []graphannis.NodeID
	cur := node
	for i := 0; i < MaxDepth; i++ {
		next := d.edges[cur]
		if len(next) == 0 {
			break
		}
		path = append(path, next[0])
		cur = next[0]
	}
	if len(path) >= MaxDepth {
		if len(d.edges[cur]) != 0 {
			return nil, fmt.Errorf("%w: path from %d exceeds MaxDepth=%d", graphannis.ErrInconsistent, node, MaxDepth)
		}
	}
	return path, nil
}

func (d *DiskPathStorage) setRow(node graphannis.NodeID, path []graphannis.NodeID) {
	row := len(d.rows)
	d.rowOf[node] = row
	var entry [MaxDepth]graphannis.NodeID
	copy(entry[:], path)
	d.rows = append(d.rows, entry)
	d.rowLen = append(d.rowLen, uint8(len(path)))
}

func (d *DiskPathStorage) SerializationID() string { return DiskPathSerializationID }

type diskPathMeta struct {
	RowOf map[graphannis.NodeID]int
	Edges map[graphannis.NodeID][]graphannis.NodeID
}

// SaveTo writes path.bin as ENTRY_SIZE fixed records (row-indexed by
// rowOf) and a small gob sidecar with the row index and edge map, in
// keeping with the original's fixed-width binary record layout.
func (d *DiskPathStorage) SaveTo(location string) error {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("diskpath: %w", err)
	}
	f, err := os.Create(filepath.Join(location, "path.bin"))
	if err != nil {
		return fmt.Errorf("diskpath: %w", err)
	}
	defer f.Close()

	buf := make([]byte, entrySize)
	for row := range d.rows {
		for i := 0; i < MaxDepth; i++ {
			binary.BigEndian.PutUint64(buf[i*8:i*8+8], uint64(d.rows[row][i]))
		}
		buf[MaxDepth*8] = d.rowLen[row]
		if _, err := f.WriteAt(buf, int64(row*entrySize)); err != nil {
			return fmt.Errorf("diskpath: write row %d: %w", row, err)
		}
	}

	metaFile, err := os.Create(filepath.Join(location, "meta.gob"))
	if err != nil {
		return fmt.Errorf("diskpath: %w", err)
	}
	defer metaFile.Close()
	if err := gob.NewEncoder(metaFile).Encode(diskPathMeta{RowOf: d.rowOf, Edges: d.edges}); err != nil {
		return fmt.Errorf("diskpath: encode meta: %w", err)
	}
	return d.annos.SaveAnnotationsTo(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

func (d *DiskPathStorage) LoadFrom(location string) error {
	metaFile, err := os.Open(filepath.Join(location, "meta.gob"))
	if err != nil {
		return fmt.Errorf("diskpath: %w", err)
	}
	defer metaFile.Close()
	var meta diskPathMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("diskpath: decode meta: %w", err)
	}
	d.rowOf = meta.RowOf
	d.edges = meta.Edges
	if d.edges == nil {
		d.edges = make(map[graphannis.NodeID][]graphannis.NodeID)
	}
	d.inverse = make(map[graphannis.NodeID][]graphannis.NodeID)
	for src, targets := range d.edges {
		for _, t := range targets {
			d.inverse[t] = insertSorted(d.inverse[t], src)
		}
	}

	f, err := os.Open(filepath.Join(location, "path.bin"))
	if err != nil {
		return fmt.Errorf("diskpath: %w", err)
	}
	defer f.Close()

	numRows := len(d.rowOf)
	d.rows = make([][MaxDepth]graphannis.NodeID, numRows)
	d.rowLen = make([]uint8, numRows)
	buf := make([]byte, entrySize)
	for row := 0; row < numRows; row++ {
		if _, err := f.ReadAt(buf, int64(row*entrySize)); err != nil {
			return fmt.Errorf("diskpath: read row %d: %w", row, err)
		}
		for i := 0; i < MaxDepth; i++ {
			d.rows[row][i] = graphannis.NodeID(binary.BigEndian.Uint64(buf[i*8 : i*8+8]))
		}
		d.rowLen[row] = buf[MaxDepth*8]
	}

	d.annos = annostorage.NewEdgeAnnotationStorage()
	return d.annos.LoadAnnotationsFrom(filepath.Join(location, annostorage.EdgeAnnotationsDir))
}

func (d *DiskPathStorage) GetStatistics() *GraphStatistic { return d.stats }

func (d *DiskPathStorage) CalculateStatistics() error {
	stat, err := computeStatistics(d)
	if err != nil {
		return err
	}
	stat.RootedTree = true
	stat.Cyclic = false
	stat.MaxDepth = int64(MaxDepth)
	d.stats = stat
	return nil
}

var _ GraphStorage = (*DiskPathStorage)(nil)
