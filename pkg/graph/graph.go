// Package graph implements the top-level aggregate that owns a
// corpus's components, node annotations, and update log, and
// coordinates lazy loading, optimization, and crash-consistent saving
// across them.
package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/graphstorage"
	"github.com/graphannis-go/graphannis/pkg/updatelog"
)

const (
	currentDirName    = "current"
	backupDirName     = "backup"
	walFileName       = "update_log.bin"
	nodesDirName      = annostorage.NodeAnnotationsDir
	componentsDirName = "gs"
)

// componentEntry is one slot in the component map: either just a
// registration (known to exist, not yet read off disk) or a loaded,
// ready-to-query storage.
type componentEntry struct {
	mu      sync.Mutex
	storage graphstorage.GraphStorage
	loaded  bool
}

// Graph is the aggregate that owns every component of one corpus.
type Graph struct {
	mu         sync.RWMutex
	components map[graphannis.Component]*componentEntry
	nameToID   map[string]graphannis.NodeID

	nodeAnnos *annostorage.NodeAnnotationStorage
	registry  *graphstorage.Registry

	directory     string
	saveMu        sync.Mutex
	wal           *updatelog.WAL
	changeCounter uint64

	thresholds graphstorage.OptimizeHeuristicThresholds
}

// New creates a fresh, empty graph rooted at directory. The directory
// is created (along with current/) if it does not already exist.
func New(directory string) (*Graph, error) {
	g := newEmpty(directory)
	if err := os.MkdirAll(filepath.Join(directory, currentDirName), 0o755); err != nil {
		return nil, fmt.Errorf("graph: create %s: %w", directory, err)
	}
	wal, err := updatelog.Open(filepath.Join(directory, walFileName), updatelog.SyncImmediate, 0)
	if err != nil {
		return nil, err
	}
	g.wal = wal
	return g, nil
}

func newEmpty(directory string) *Graph {
	return &Graph{
		components: make(map[graphannis.Component]*componentEntry),
		nameToID:   make(map[string]graphannis.NodeID),
		nodeAnnos:  annostorage.NewNodeAnnotationStorage(),
		registry:   graphstorage.NewRegistry(),
		directory:  directory,
		thresholds: graphstorage.DefaultOptimizeHeuristicThresholds,
	}
}

// Open recovers a graph previously saved at directory:
//
//  1. If backup/ exists, a prior Save crashed after moving the old
//     current/ to backup/ but before removing backup/; backup/ is the
//     last known-consistent state and wins over current/.
//  2. current/ (now guaranteed consistent) is loaded.
//  3. Every record of the update log is replayed on top of it. Save
//     removes the log once current/ is written, so the log normally
//     holds only unsaved events; replay does not compare sequence
//     numbers against the loaded snapshot.
func Open(directory string) (*Graph, error) {
	g := newEmpty(directory)

	backupDir := filepath.Join(directory, backupDirName)
	currentDir := filepath.Join(directory, currentDirName)

	if _, err := os.Stat(backupDir); err == nil {
		if err := os.RemoveAll(currentDir); err != nil {
			return nil, fmt.Errorf("graph: recover: remove stale current: %w", err)
		}
		if err := os.Rename(backupDir, currentDir); err != nil {
			return nil, fmt.Errorf("graph: recover: promote backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("graph: stat backup: %w", err)
	}

	if _, err := os.Stat(currentDir); err == nil {
		if err := g.loadFromDisk(currentDir); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(currentDir, 0o755); err != nil {
			return nil, fmt.Errorf("graph: create current: %w", err)
		}
	} else {
		return nil, fmt.Errorf("graph: stat current: %w", err)
	}

	walPath := filepath.Join(directory, walFileName)
	watermark, err := updatelog.Replay(walPath, g.applyInMemory)
	if err != nil {
		return nil, fmt.Errorf("graph: replay update log: %w", err)
	}
	g.changeCounter = watermark

	wal, err := updatelog.Open(walPath, updatelog.SyncImmediate, watermark)
	if err != nil {
		return nil, err
	}
	g.wal = wal
	return g, nil
}

// Close releases the update log's file handle.
func (g *Graph) Close() error {
	if g.wal == nil {
		return nil
	}
	return g.wal.Close()
}

// ChangeCounter returns the sequence number of the most recently
// applied update, used as the save watermark.
func (g *Graph) ChangeCounter() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.changeCounter
}

// NodeAnnos exposes the node annotation storage for read access.
func (g *Graph) NodeAnnos() *annostorage.NodeAnnotationStorage { return g.nodeAnnos }

// GetNodeIDFromName resolves a node's annis:node_name to its id, the
// same lookup UpdateEvents use internally to address nodes by name.
func (g *Graph) GetNodeIDFromName(name string) (graphannis.NodeID, bool) {
	return g.resolveNode(name)
}

func componentDir(root string, c graphannis.Component) string {
	return filepath.Join(root, componentsDirName, string(c.Type), sanitizeSegment(c.Layer), sanitizeSegment(c.Name))
}

// sanitizeSegment maps the empty layer/name (legal in graphANNIS,
// illegal as a path segment) to a fixed placeholder.
func sanitizeSegment(s string) string {
	if s == "" {
		return "_"
	}
	return s
}
