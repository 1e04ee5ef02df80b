package graph

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/graphstorage"
)

// GetAllComponents returns every registered component, optionally
// filtered by type and/or name. A nil filter matches everything.
func (g *Graph) GetAllComponents(ctype *graphannis.ComponentType, name *string) []graphannis.Component {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]graphannis.Component, 0, len(g.components))
	for c := range g.components {
		if ctype != nil && c.Type != *ctype {
			continue
		}
		if name != nil && c.Name != *name {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// registerComponent adds comp to the map if it isn't already known,
// without loading its storage.
func (g *Graph) registerComponent(comp graphannis.Component) *componentEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.components[comp]
	if !ok {
		entry = &componentEntry{}
		g.components[comp] = entry
	}
	return entry
}

func (g *Graph) entryFor(comp graphannis.Component) (*componentEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.components[comp]
	return e, ok
}

// EnsureLoaded deserializes comp's storage from disk if it has not
// been read yet. Safe to call repeatedly; a no-op once loaded.
func (g *Graph) EnsureLoaded(comp graphannis.Component) error {
	entry, ok := g.entryFor(comp)
	if !ok {
		return fmt.Errorf("%w: component %s", graphannis.ErrNotFound, comp)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return g.loadComponentLocked(comp, entry)
}

func (g *Graph) loadComponentLocked(comp graphannis.Component, entry *componentEntry) error {
	if entry.loaded {
		return nil
	}
	dir := componentDir(filepath.Join(g.directory, currentDirName), comp)
	storage, err := g.registry.Deserialize(dir)
	if err != nil {
		return fmt.Errorf("graph: load component %s: %w", comp, err)
	}
	entry.storage = storage
	entry.loaded = true
	return nil
}

// EnsureLoadedAll loads every registered component's storage
// concurrently, the way a full-corpus query plan needs to. Loading
// continues for the other components when one fails; the returned
// error reports how many failed and wraps only the first of them.
func (g *Graph) EnsureLoadedAll() error {
	g.mu.RLock()
	comps := make([]graphannis.Component, 0, len(g.components))
	for c := range g.components {
		comps = append(comps, c)
	}
	g.mu.RUnlock()

	errCh := make(chan error, len(comps))
	var wg sync.WaitGroup
	for _, c := range comps {
		wg.Add(1)
		go func(c graphannis.Component) {
			defer wg.Done()
			if err := g.EnsureLoaded(c); err != nil {
				errCh <- err
			}
		}(c)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("graph: ensure loaded all: %d component(s) failed, first: %w", len(errs), errs[0])
	}
	return nil
}

// GetGraphStorage returns the (read-only view of the) storage for
// comp, loading it first if necessary.
func (g *Graph) GetGraphStorage(comp graphannis.Component) (graphstorage.GraphStorage, error) {
	entry, ok := g.entryFor(comp)
	if !ok {
		return nil, fmt.Errorf("%w: component %s", graphannis.ErrNotFound, comp)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := g.loadComponentLocked(comp, entry); err != nil {
		return nil, err
	}
	return entry.storage, nil
}

// getOrCreateWritableGraphStorage returns a writable handle for comp,
// registering it if unknown and upgrading a read-only optimized
// storage back to an AdjacencyListStorage by copying its contents if
// necessary.
func (g *Graph) getOrCreateWritableGraphStorage(comp graphannis.Component) (graphstorage.WritableGraphStorage, error) {
	entry := g.registerComponent(comp)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.loaded {
		dir := componentDir(filepath.Join(g.directory, currentDirName), comp)
		if _, err := os.Stat(filepath.Join(dir, graphstorage.ImplConfigFile)); err == nil {
			if err := g.loadComponentLocked(comp, entry); err != nil {
				return nil, err
			}
		} else {
			entry.storage = g.registry.CreateWritable()
			entry.loaded = true
		}
	}

	if w, ok := entry.storage.(graphstorage.WritableGraphStorage); ok {
		return w, nil
	}

	writable := g.registry.CreateWritable()
	if err := writable.Copy(g.nodeAnnos, entry.storage); err != nil {
		return nil, fmt.Errorf("graph: upgrade component %s to writable: %w", comp, err)
	}
	entry.storage = writable
	return writable, nil
}

// OptimizeImpl recomputes comp's statistics and, if a better-suited
// read-only implementation exists for its current shape, copies it
// into that implementation in place.
func (g *Graph) OptimizeImpl(comp graphannis.Component) error {
	entry, ok := g.entryFor(comp)
	if !ok {
		return fmt.Errorf("%w: component %s", graphannis.ErrNotFound, comp)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := g.loadComponentLocked(comp, entry); err != nil {
		return err
	}
	if err := entry.storage.CalculateStatistics(); err != nil {
		return err
	}
	best := graphstorage.GetOptimalImpl(entry.storage.GetStatistics(), g.thresholds)
	if best == entry.storage.SerializationID() {
		return nil
	}
	dir := componentDir(filepath.Join(g.directory, currentDirName), comp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("graph: optimize component %s: %w", comp, err)
	}
	replacement, err := g.registry.CreateFromTypeAt(best, dir)
	if err != nil {
		return err
	}
	if err := replacement.Copy(g.nodeAnnos, entry.storage); err != nil {
		if best != graphstorage.PrePostOrderSerializationID || !errors.Is(err, graphannis.ErrCycle) {
			return fmt.Errorf("graph: optimize component %s into %s: %w", comp, best, err)
		}
		// The heuristic picked pre/post order from stale statistics; fall
		// back to the adjacency list, which tolerates cycles.
		fallback := g.registry.CreateWritable()
		if err := fallback.Copy(g.nodeAnnos, entry.storage); err != nil {
			return fmt.Errorf("graph: optimize component %s: adjacency fallback: %w", comp, err)
		}
		replacement = fallback
	}
	entry.storage = replacement
	return nil
}

// loadFromDisk populates node annotations and the component registry
// (without loading individual component storages) from dir.
func (g *Graph) loadFromDisk(dir string) error {
	if err := g.nodeAnnos.LoadAnnotationsFrom(filepath.Join(dir, nodesDirName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("graph: load node annotations: %w", err)
	}
	g.rebuildNameIndex()

	componentsRoot := filepath.Join(dir, componentsDirName)
	entries, err := os.ReadDir(componentsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("graph: read components dir: %w", err)
	}
	for _, typeEntry := range entries {
		if !typeEntry.IsDir() {
			continue
		}
		ctype := graphannis.ComponentType(typeEntry.Name())
		typeDir := filepath.Join(componentsRoot, typeEntry.Name())
		err := filepath.WalkDir(typeDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || d.Name() != graphstorage.ImplConfigFile {
				return nil
			}
			leafDir := filepath.Dir(path)
			layerDir := filepath.Dir(leafDir)
			layer := desanitizeSegment(filepath.Base(layerDir))
			name := desanitizeSegment(filepath.Base(leafDir))
			comp := graphannis.Component{Type: ctype, Layer: layer, Name: name}
			g.registerComponent(comp)
			return nil
		})
		if err != nil {
			return fmt.Errorf("graph: scan components: %w", err)
		}
	}
	return nil
}

func desanitizeSegment(s string) string {
	if s == "_" {
		return ""
	}
	return s
}

// rebuildNameIndex scans every node with an annis:node_name annotation
// and rebuilds the in-memory name->id lookup used to resolve
// UpdateEvents, which address nodes by name rather than id.
func (g *Graph) rebuildNameIndex() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nameToID = make(map[string]graphannis.NodeID)
	ns := graphannis.AnnisNS
	for _, m := range g.nodeAnnos.ExactAnnoSearch(&ns, graphannis.NodeNameAnno, annostorage.Any()) {
		if val, ok := g.nodeAnnos.GetValueForItem(m.Item, graphannis.NodeNameKey); ok {
			g.nameToID[val] = m.Item
		}
	}
}
