// Package updatelog implements the crash-consistent update protocol and
// write-ahead log a Graph uses to apply mutations durably.
package updatelog

// EventKind discriminates the eight mutation variants a Graph accepts.
// Graph identifies nodes and edges by name/id strings in the log so a
// replayed event does not depend on in-memory NodeID assignment order
// surviving a crash.
type EventKind string

const (
	KindAddNode         EventKind = "add_node"
	KindDeleteNode      EventKind = "delete_node"
	KindAddNodeLabel    EventKind = "add_node_label"
	KindDeleteNodeLabel EventKind = "delete_node_label"
	KindAddEdge         EventKind = "add_edge"
	KindDeleteEdge      EventKind = "delete_edge"
	KindAddEdgeLabel    EventKind = "add_edge_label"
	KindDeleteEdgeLabel EventKind = "delete_edge_label"
)

// UpdateEvent is one entry of the update log. Only the fields relevant
// to Kind are populated; the rest stay zero-valued and are omitted from
// the JSON encoding.
type UpdateEvent struct {
	Kind EventKind `json:"kind"`

	// AddNode / DeleteNode / node-label variants
	NodeName string `json:"node_name,omitempty"`
	NodeType string `json:"node_type,omitempty"`

	// node-label and edge-label variants
	AnnoNs    string `json:"anno_ns,omitempty"`
	AnnoName  string `json:"anno_name,omitempty"`
	AnnoValue string `json:"anno_value,omitempty"`

	// edge variants
	SourceNode     string `json:"source_node,omitempty"`
	TargetNode     string `json:"target_node,omitempty"`
	ComponentType  string `json:"component_type,omitempty"`
	ComponentLayer string `json:"component_layer,omitempty"`
	ComponentName  string `json:"component_name,omitempty"`
}

// AddNode records the creation of a node identified by name.
func AddNode(name, nodeType string) UpdateEvent {
	return UpdateEvent{Kind: KindAddNode, NodeName: name, NodeType: nodeType}
}

// DeleteNode records the removal of a node and everything attached to
// it (labels, incident edges).
func DeleteNode(name string) UpdateEvent {
	return UpdateEvent{Kind: KindDeleteNode, NodeName: name}
}

// AddNodeLabel records setting an annotation on a node.
func AddNodeLabel(name, ns, annoName, value string) UpdateEvent {
	return UpdateEvent{Kind: KindAddNodeLabel, NodeName: name, AnnoNs: ns, AnnoName: annoName, AnnoValue: value}
}

// DeleteNodeLabel records removing one annotation key from a node.
func DeleteNodeLabel(name, ns, annoName string) UpdateEvent {
	return UpdateEvent{Kind: KindDeleteNodeLabel, NodeName: name, AnnoNs: ns, AnnoName: annoName}
}

// AddEdge records creating an edge in the named component.
func AddEdge(source, target, ctype, layer, name string) UpdateEvent {
	return UpdateEvent{
		Kind: KindAddEdge, SourceNode: source, TargetNode: target,
		ComponentType: ctype, ComponentLayer: layer, ComponentName: name,
	}
}

// DeleteEdge records removing an edge from the named component.
func DeleteEdge(source, target, ctype, layer, name string) UpdateEvent {
	return UpdateEvent{
		Kind: KindDeleteEdge, SourceNode: source, TargetNode: target,
		ComponentType: ctype, ComponentLayer: layer, ComponentName: name,
	}
}

// AddEdgeLabel records setting an annotation on an edge.
func AddEdgeLabel(source, target, ctype, layer, name, ns, annoName, value string) UpdateEvent {
	return UpdateEvent{
		Kind: KindAddEdgeLabel, SourceNode: source, TargetNode: target,
		ComponentType: ctype, ComponentLayer: layer, ComponentName: name,
		AnnoNs: ns, AnnoName: annoName, AnnoValue: value,
	}
}

// DeleteEdgeLabel records removing one annotation key from an edge.
func DeleteEdgeLabel(source, target, ctype, layer, name, ns, annoName string) UpdateEvent {
	return UpdateEvent{
		Kind: KindDeleteEdgeLabel, SourceNode: source, TargetNode: target,
		ComponentType: ctype, ComponentLayer: layer, ComponentName: name,
		AnnoNs: ns, AnnoName: annoName,
	}
}
