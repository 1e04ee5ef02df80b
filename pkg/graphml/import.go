package graphml

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/graphannis-go/graphannis/pkg/graph"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/updatelog"
)

// ImportStats summarizes an Import run. Malformed counts data elements
// that referenced an undeclared key or an edge whose "label" was not a
// well-formed component string; these are skipped rather than aborting
// the whole import, preserving the relANNIS loader's historical
// tolerance for slightly malformed legacy corpora.
type ImportStats struct {
	Nodes     int
	Edges     int
	Malformed int
}

// ImportResult is what Import returns: the applied stats and the
// optional graph-level configuration string recovered from the "k0"
// data element, if the document declared one.
type ImportResult struct {
	Stats         ImportStats
	Configuration string
}

// Import reads a GraphML document from r and applies it to g as a
// single batch of update events, node events first so that no AddEdge
// ever references a node that has not been created yet.
func Import(g *graph.Graph, r io.Reader, progress ProgressFunc) (ImportResult, error) {
	if progress == nil {
		progress = noopProgress
	}

	progress("reading GraphML")
	parsed, err := parse(r, progress)
	if err != nil {
		return ImportResult{}, err
	}

	var events []updatelog.UpdateEvent
	for _, n := range parsed.nodes {
		nodeType := n.data[graphannis.NodeTypeKey]
		if nodeType == "" {
			nodeType = graphannis.NodeTypeNode
		}
		events = append(events, updatelog.AddNode(n.id, nodeType))
		for key, val := range n.data {
			if key == graphannis.NodeTypeKey {
				continue
			}
			events = append(events, updatelog.AddNodeLabel(n.id, key.Ns, key.Name, val))
		}
	}
	for _, e := range parsed.edges {
		events = append(events, updatelog.AddEdge(e.source, e.target, string(e.component.Type), e.component.Layer, e.component.Name))
		for key, val := range e.data {
			events = append(events, updatelog.AddEdgeLabel(e.source, e.target, string(e.component.Type), e.component.Layer, e.component.Name, key.Ns, key.Name, val))
		}
	}

	progress("applying imported changes")
	if err := g.ApplyUpdate(events...); err != nil {
		return ImportResult{}, err
	}

	return ImportResult{
		Stats: ImportStats{
			Nodes:     len(parsed.nodes),
			Edges:     len(parsed.edges),
			Malformed: parsed.malformed,
		},
		Configuration: parsed.configuration,
	}, nil
}

type parsedNode struct {
	id   string
	data map[graphannis.AnnoKey]string
}

type parsedEdge struct {
	source, target string
	component      graphannis.Component
	data           map[graphannis.AnnoKey]string
}

type parseResult struct {
	nodes         []parsedNode
	edges         []parsedEdge
	configuration string
	malformed     int
}

// parse walks the document token by token (SAX-style, matching the
// original streaming reader) rather than unmarshaling it as a tree. The
// parsed nodes and edges are all collected in the returned parseResult,
// so memory use grows with the number of nodes and edges in the
// document.
func parse(r io.Reader, progress ProgressFunc) (parseResult, error) {
	dec := xml.NewDecoder(r)

	keys := make(map[string]graphannis.AnnoKey)
	var result parseResult

	var level int
	var inGraph bool

	var currentNodeID string
	var haveNode bool
	var currentData map[graphannis.AnnoKey]string

	var currentSource, currentTarget, currentLabel string
	var haveEdge bool

	var currentDataKey string
	var currentDataValue string
	var inData bool

	processed := 0
	reportEvery := 1_000_000

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return parseResult{}, fmt.Errorf("%w: graphml: %v", graphannis.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			level++
			switch t.Name.Local {
			case "graph":
				if level == 2 {
					inGraph = true
				}
			case "key":
				if level == 2 {
					id, key, ok := parseKeyAttrs(t.Attr)
					if ok {
						keys[id] = key
					}
				}
			case "node":
				if inGraph && level == 3 {
					currentData = make(map[graphannis.AnnoKey]string)
					currentNodeID = attrValue(t.Attr, "id")
					haveNode = currentNodeID != ""
				}
			case "edge":
				if inGraph && level == 3 {
					currentData = make(map[graphannis.AnnoKey]string)
					currentSource = attrValue(t.Attr, "source")
					currentTarget = attrValue(t.Attr, "target")
					currentLabel = attrValue(t.Attr, "label")
					haveEdge = currentSource != "" && currentTarget != "" && currentLabel != ""
				}
			case "data":
				currentDataKey = attrValue(t.Attr, "key")
				currentDataValue = ""
				inData = true
			}
		case xml.CharData:
			if inData && currentDataKey != "" {
				currentDataValue += string(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "graph":
				inGraph = false
			case "node":
				if inGraph && haveNode {
					result.nodes = append(result.nodes, parsedNode{id: currentNodeID, data: currentData})
				}
				haveNode = false
				currentNodeID = ""
				processed++
				if processed%reportEvery == 0 {
					progress(fmt.Sprintf("processed %d GraphML nodes and edges", processed))
				}
			case "edge":
				if inGraph && haveEdge {
					comp, cerr := graphannis.ParseComponent(currentLabel)
					if cerr != nil {
						result.malformed++
					} else {
						result.edges = append(result.edges, parsedEdge{
							source: currentSource, target: currentTarget, component: comp, data: currentData,
						})
					}
				}
				haveEdge = false
				currentSource, currentTarget, currentLabel = "", "", ""
				processed++
				if processed%reportEvery == 0 {
					progress(fmt.Sprintf("processed %d GraphML nodes and edges", processed))
				}
			case "data":
				if currentDataKey == "k0" && level == 3 {
					result.configuration = currentDataValue
				} else if key, ok := keys[currentDataKey]; ok {
					currentData[key] = currentDataValue
				} else if currentDataKey != "" {
					result.malformed++
				}
				currentDataKey = ""
				currentDataValue = ""
				inData = false
			}
			level--
		}
	}
	return result, nil
}

func parseKeyAttrs(attrs []xml.Attr) (id string, key graphannis.AnnoKey, ok bool) {
	var attrName string
	for _, a := range attrs {
		switch a.Name.Local {
		case "id":
			id = a.Value
		case "attr.name":
			attrName = a.Value
		}
	}
	if id == "" || attrName == "" {
		return "", graphannis.AnnoKey{}, false
	}
	return id, splitQName(attrName), true
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// splitQName parses the "ns::name" form written by qname, treating an
// unqualified name as belonging to the default (empty) namespace.
func splitQName(s string) graphannis.AnnoKey {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ':' {
			return graphannis.AnnoKey{Ns: s[:i], Name: s[i+2:]}
		}
	}
	return graphannis.AnnoKey{Name: s}
}
