package graph

import (
	"fmt"
	"path/filepath"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/updatelog"
)

// ApplyUpdate applies events in order, durably. Each event is first
// applied to the in-memory state, then appended to the write-ahead
// log; if the append fails partway through the batch, the in-memory
// state is discarded and reloaded from the last known-good disk state
// plus whatever the log actually contains, so a crash never leaves the
// in-memory graph ahead of what is durable.
func (g *Graph) ApplyUpdate(events ...updatelog.UpdateEvent) error {
	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	for _, e := range events {
		if err := g.applyInMemory(e); err != nil {
			if reloadErr := g.reloadLocked(); reloadErr != nil {
				return fmt.Errorf("graph: apply update failed (%v) and reload failed: %w", err, reloadErr)
			}
			return fmt.Errorf("graph: apply update: %w", err)
		}
	}
	for _, e := range events {
		seq, err := g.wal.Append(e)
		if err != nil {
			if reloadErr := g.reloadLocked(); reloadErr != nil {
				return fmt.Errorf("graph: wal append failed (%v) and reload failed: %w", err, reloadErr)
			}
			return fmt.Errorf("%w: wal append: %v", graphannis.ErrInconsistent, err)
		}
		g.mu.Lock()
		g.changeCounter = seq
		g.mu.Unlock()
	}
	return nil
}

// reloadLocked discards all in-memory state and rebuilds it from
// current/ plus a fresh replay of the update log, used to recover from
// a failed WAL append without leaving dangling in-memory mutations.
// Callers must hold saveMu.
func (g *Graph) reloadLocked() error {
	fresh := newEmpty(g.directory)
	if err := fresh.loadFromDisk(pathCurrentDir(g.directory)); err != nil {
		return err
	}
	watermark, err := updatelog.Replay(pathWAL(g.directory), fresh.applyInMemory)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.components = fresh.components
	g.nameToID = fresh.nameToID
	g.nodeAnnos = fresh.nodeAnnos
	g.changeCounter = watermark
	g.mu.Unlock()
	return nil
}

func pathCurrentDir(directory string) string { return filepath.Join(directory, currentDirName) }
func pathWAL(directory string) string        { return filepath.Join(directory, walFileName) }

// applyInMemory dispatches one event to the in-memory graph state
// without touching the update log.
func (g *Graph) applyInMemory(e updatelog.UpdateEvent) error {
	switch e.Kind {
	case updatelog.KindAddNode:
		return g.applyAddNode(e)
	case updatelog.KindDeleteNode:
		return g.applyDeleteNode(e)
	case updatelog.KindAddNodeLabel:
		return g.applyAddNodeLabel(e)
	case updatelog.KindDeleteNodeLabel:
		return g.applyDeleteNodeLabel(e)
	case updatelog.KindAddEdge:
		return g.applyAddEdge(e)
	case updatelog.KindDeleteEdge:
		return g.applyDeleteEdge(e)
	case updatelog.KindAddEdgeLabel:
		return g.applyAddEdgeLabel(e)
	case updatelog.KindDeleteEdgeLabel:
		return g.applyDeleteEdgeLabel(e)
	default:
		return fmt.Errorf("%w: unknown update event kind %q", graphannis.ErrInconsistent, e.Kind)
	}
}

func (g *Graph) applyAddNode(e updatelog.UpdateEvent) error {
	g.mu.Lock()
	if _, exists := g.nameToID[e.NodeName]; exists {
		g.mu.Unlock()
		return nil
	}
	id := g.nextNodeIDLocked()
	g.nameToID[e.NodeName] = id
	g.mu.Unlock()

	if err := g.nodeAnnos.Insert(id, graphannis.Annotation{Key: graphannis.NodeNameKey, Val: e.NodeName}); err != nil {
		return err
	}
	nodeType := e.NodeType
	if nodeType == "" {
		nodeType = graphannis.NodeTypeNode
	}
	return g.nodeAnnos.Insert(id, graphannis.Annotation{Key: graphannis.NodeTypeKey, Val: nodeType})
}

func (g *Graph) nextNodeIDLocked() graphannis.NodeID {
	if largest, ok := g.nodeAnnos.GetLargestItem(); ok {
		return largest + 1
	}
	return 1
}

func (g *Graph) applyDeleteNode(e updatelog.UpdateEvent) error {
	id, ok := g.resolveNode(e.NodeName)
	if !ok {
		return nil
	}
	if err := g.EnsureLoadedAll(); err != nil {
		return err
	}
	g.mu.RLock()
	comps := make([]graphannis.Component, 0, len(g.components))
	for c := range g.components {
		comps = append(comps, c)
	}
	g.mu.RUnlock()

	for _, c := range comps {
		w, err := g.getOrCreateWritableGraphStorage(c)
		if err != nil {
			return err
		}
		if err := w.DeleteNode(id); err != nil {
			return err
		}
	}
	for _, anno := range g.nodeAnnos.GetAnnotationsForItem(id) {
		g.nodeAnnos.Remove(id, anno.Key)
	}
	g.mu.Lock()
	delete(g.nameToID, e.NodeName)
	g.mu.Unlock()
	return nil
}

func (g *Graph) applyAddNodeLabel(e updatelog.UpdateEvent) error {
	id, ok := g.resolveNode(e.NodeName)
	if !ok {
		return fmt.Errorf("%w: node %q", graphannis.ErrNotFound, e.NodeName)
	}
	return g.nodeAnnos.Insert(id, graphannis.Annotation{
		Key: graphannis.AnnoKey{Ns: e.AnnoNs, Name: e.AnnoName}, Val: e.AnnoValue,
	})
}

func (g *Graph) applyDeleteNodeLabel(e updatelog.UpdateEvent) error {
	id, ok := g.resolveNode(e.NodeName)
	if !ok {
		return fmt.Errorf("%w: node %q", graphannis.ErrNotFound, e.NodeName)
	}
	g.nodeAnnos.Remove(id, graphannis.AnnoKey{Ns: e.AnnoNs, Name: e.AnnoName})
	return nil
}

func (g *Graph) applyAddEdge(e updatelog.UpdateEvent) error {
	comp, source, target, err := g.resolveEdgeEvent(e)
	if err != nil {
		return err
	}
	w, err := g.getOrCreateWritableGraphStorage(comp)
	if err != nil {
		return err
	}
	return w.AddEdge(graphannis.Edge{Source: source, Target: target})
}

func (g *Graph) applyDeleteEdge(e updatelog.UpdateEvent) error {
	comp, source, target, err := g.resolveEdgeEvent(e)
	if err != nil {
		return err
	}
	w, err := g.getOrCreateWritableGraphStorage(comp)
	if err != nil {
		return err
	}
	return w.DeleteEdge(graphannis.Edge{Source: source, Target: target})
}

func (g *Graph) applyAddEdgeLabel(e updatelog.UpdateEvent) error {
	comp, source, target, err := g.resolveEdgeEvent(e)
	if err != nil {
		return err
	}
	w, err := g.getOrCreateWritableGraphStorage(comp)
	if err != nil {
		return err
	}
	anno := graphannis.Annotation{Key: graphannis.AnnoKey{Ns: e.AnnoNs, Name: e.AnnoName}, Val: e.AnnoValue}
	return w.AddEdgeAnnotation(graphannis.Edge{Source: source, Target: target}, anno)
}

func (g *Graph) applyDeleteEdgeLabel(e updatelog.UpdateEvent) error {
	comp, source, target, err := g.resolveEdgeEvent(e)
	if err != nil {
		return err
	}
	w, err := g.getOrCreateWritableGraphStorage(comp)
	if err != nil {
		return err
	}
	return w.DeleteEdgeAnnotation(graphannis.Edge{Source: source, Target: target}, graphannis.AnnoKey{Ns: e.AnnoNs, Name: e.AnnoName})
}

func (g *Graph) resolveNode(name string) (graphannis.NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.nameToID[name]
	return id, ok
}

func (g *Graph) resolveEdgeEvent(e updatelog.UpdateEvent) (graphannis.Component, graphannis.NodeID, graphannis.NodeID, error) {
	source, ok := g.resolveNode(e.SourceNode)
	if !ok {
		return graphannis.Component{}, 0, 0, fmt.Errorf("%w: node %q", graphannis.ErrNotFound, e.SourceNode)
	}
	target, ok := g.resolveNode(e.TargetNode)
	if !ok {
		return graphannis.Component{}, 0, 0, fmt.Errorf("%w: node %q", graphannis.ErrNotFound, e.TargetNode)
	}
	comp := graphannis.Component{
		Type:  graphannis.ComponentType(e.ComponentType),
		Layer: e.ComponentLayer,
		Name:  e.ComponentName,
	}
	if !graphannis.ValidComponentType(comp.Type) {
		return graphannis.Component{}, 0, 0, fmt.Errorf("%w: %q", graphannis.ErrInvalidComponentType, e.ComponentType)
	}
	return comp, source, target, nil
}
