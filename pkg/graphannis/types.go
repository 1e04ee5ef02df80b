// Package graphannis defines the core data model shared by every layer of
// the graph storage engine: node identifiers, annotation keys, edges,
// and components.
//
// The types here have no behavior of their own beyond ordering and
// stringification; the storage and indexing logic that operates on them
// lives in the sibling packages (annostorage, graphstorage, graph).
package graphannis

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the storage engine. Layers wrap these
// with fmt.Errorf("...: %w", err) so callers can still match with
// errors.Is.
var (
	ErrNotFound             = errors.New("graphannis: not found")
	ErrAlreadyExists        = errors.New("graphannis: already exists")
	ErrInvalidComponentType = errors.New("graphannis: invalid component type")
	ErrMissingAnnotationKey = errors.New("graphannis: missing annotation key")
	ErrTimeout              = errors.New("graphannis: timeout")
	ErrCycle                = errors.New("graphannis: cycle detected")
	ErrInconsistent         = errors.New("graphannis: inconsistent snapshot")
	ErrParse                = errors.New("graphannis: parse error")
)

// NodeID uniquely identifies a node within one graph. The owning Graph
// assigns a new node the largest id currently in use plus one, so after
// the node holding the largest id is deleted, its id can be assigned
// again.
type NodeID uint64

// Reserved namespace and annotation names.
const (
	AnnisNS       = "annis"
	NodeNameAnno  = "node_name"
	NodeTypeAnno  = "node_type"
	TokAnno       = "tok"
	LayerAnno     = "layer"
	NodeTypeNode  = "node"
	NodeTypeCorp  = "corpus"
	NodeTypeDatas = "datasource"
)

// AnnoKey is the fully qualified name of an annotation: a namespace and
// a short name. Keys order lexicographically on (Ns, Name).
type AnnoKey struct {
	Ns   string
	Name string
}

// Less reports whether k sorts before other, namespace first.
func (k AnnoKey) Less(other AnnoKey) bool {
	if k.Ns != other.Ns {
		return k.Ns < other.Ns
	}
	return k.Name < other.Name
}

// String renders the key in "ns::name" form (empty namespace is elided).
func (k AnnoKey) String() string {
	if k.Ns == "" {
		return k.Name
	}
	return k.Ns + "::" + k.Name
}

// NodeNameKey and NodeTypeKey are the two annotation keys every node
// must carry.
var (
	NodeNameKey = AnnoKey{Ns: AnnisNS, Name: NodeNameAnno}
	NodeTypeKey = AnnoKey{Ns: AnnisNS, Name: NodeTypeAnno}
	TokKey      = AnnoKey{Ns: AnnisNS, Name: TokAnno}
	LayerKey    = AnnoKey{Ns: AnnisNS, Name: LayerAnno}
)

// Annotation is a (key, value) pair attached to a node or edge.
type Annotation struct {
	Key AnnoKey
	Val string
}

// Edge is a directed pair of node ids. An Edge is the item type used by
// the edge-annotation storage and the key type for per-component
// adjacency.
type Edge struct {
	Source NodeID
	Target NodeID
}

// Inverse returns the edge with source and target swapped.
func (e Edge) Inverse() Edge {
	return Edge{Source: e.Target, Target: e.Source}
}

// ComponentType is the closed set of semantic roles an edge component
// can have, plus room for user-defined extensions.
type ComponentType string

const (
	Coverage   ComponentType = "Coverage"
	Dominance  ComponentType = "Dominance"
	Pointing   ComponentType = "Pointing"
	Ordering   ComponentType = "Ordering"
	LeftToken  ComponentType = "LeftToken"
	RightToken ComponentType = "RightToken"
	PartOf     ComponentType = "PartOf"
)

// knownComponentTypes lists the built-in types; anything else is
// accepted as a user-defined extension as long as it is non-empty.
var knownComponentTypes = map[ComponentType]bool{
	Coverage: true, Dominance: true, Pointing: true, Ordering: true,
	LeftToken: true, RightToken: true, PartOf: true,
}

// ValidComponentType reports whether ct is one of the built-in types or
// a non-empty user-defined extension.
func ValidComponentType(ct ComponentType) bool {
	return ct != ""
}

// IsAutogenerated reports whether components of this type are derived
// rather than hand-authored, and are therefore excluded from
// interchange exports.
func (ct ComponentType) IsAutogenerated() bool {
	return ct == LeftToken || ct == RightToken
}

// Component identifies a set of edges with a single semantic role: a
// (type, layer, name) triple. At most one graph storage is bound to a
// given component. Components order lexicographically on
// (Type, Layer, Name), which is the order the Graph's component map
// walks for prefix queries.
type Component struct {
	Type  ComponentType
	Layer string
	Name  string
}

// String renders the component as "{type}/{layer}/{name}", the same
// form used as the GraphML edge "label" attribute.
func (c Component) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Type, c.Layer, c.Name)
}

// Less reports whether c sorts before other.
func (c Component) Less(other Component) bool {
	if c.Type != other.Type {
		return c.Type < other.Type
	}
	if c.Layer != other.Layer {
		return c.Layer < other.Layer
	}
	return c.Name < other.Name
}

// ParseComponent parses the "{type}/{layer}/{name}" form produced by
// String, as used when importing GraphML edge labels.
func ParseComponent(s string) (Component, error) {
	parts := splitN3(s, '/')
	if len(parts) != 3 {
		return Component{}, fmt.Errorf("%w: component label %q must have 3 parts", ErrParse, s)
	}
	ctype, layer, name := parts[0], parts[1], parts[2]
	if !ValidComponentType(ComponentType(ctype)) {
		return Component{}, fmt.Errorf("%w: %q", ErrInvalidComponentType, ctype)
	}
	return Component{Type: ComponentType(ctype), Layer: layer, Name: name}, nil
}

// splitN3 splits s into exactly 3 parts on the first two occurrences of
// sep, leaving the remainder (which may itself contain sep) in the
// third part.
func splitN3(s string, sep byte) []string {
	first := -1
	second := -1
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if first == -1 {
				first = i
			} else {
				second = i
				break
			}
		}
	}
	if first == -1 || second == -1 {
		return nil
	}
	return []string{s[:first], s[first+1 : second], s[second+1:]}
}
