// Package graphml implements GraphML import and export for a Graph, the
// interchange format used to move corpora between graph storage
// engines. The dialect follows the original graphANNIS convention:
// annotation keys are declared once up front as <key>
// elements with a synthetic "k<N>" id, node/edge "data" children
// reference that id, and the non-standard "label" attribute on <edge>
// carries the component's "{type}/{layer}/{name}" string.
package graphml

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/graphannis-go/graphannis/pkg/annostorage"
	"github.com/graphannis-go/graphannis/pkg/graph"
	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// ProgressFunc receives human-readable progress messages during a long
// export or import, so a CLI can print a running status line.
type ProgressFunc func(message string)

func noopProgress(string) {}

// ExportOptions controls Export's behavior.
type ExportOptions struct {
	// GraphConfiguration, if non-empty, is written as the graph-level
	// "k0" data element -- an opaque string an application can use to
	// store its own corpus-level configuration.
	GraphConfiguration string
	// Stable forces deterministic key, node and edge ordering, at the
	// cost of sorting everything first. Useful for tests and diffable
	// exports; production callers that do not need reproducible byte
	// output should leave this false.
	Stable bool
	// Progress receives status updates. Defaults to a no-op.
	Progress ProgressFunc
}

// Export writes g as GraphML to w.
func Export(g *graph.Graph, w io.Writer, opts ExportOptions) error {
	progress := opts.Progress
	if progress == nil {
		progress = noopProgress
	}

	bw := bufio.NewWriter(w)
	enc := xml.NewEncoder(bw)
	enc.Indent("", "    ")

	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: "graphml"}}); err != nil {
		return err
	}

	progress("exporting all available annotation keys")
	keyIDs, err := writeKeys(enc, g, opts.GraphConfiguration != "", opts.Stable)
	if err != nil {
		return err
	}

	graphStart := xml.StartElement{
		Name: xml.Name{Local: "graph"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "edgedefault"}, Value: "directed"},
			{Name: xml.Name{Local: "parse.order"}, Value: "nodesfirst"},
			{Name: xml.Name{Local: "parse.nodeids"}, Value: "free"},
			{Name: xml.Name{Local: "parse.edgeids"}, Value: "canonical"},
		},
	}
	if err := enc.EncodeToken(graphStart); err != nil {
		return err
	}

	if opts.GraphConfiguration != "" {
		if err := writeConfigData(enc, bw, opts.GraphConfiguration); err != nil {
			return err
		}
	}

	progress("exporting nodes")
	if err := writeNodes(enc, g, keyIDs, opts.Stable); err != nil {
		return err
	}

	progress("exporting edges")
	if err := writeEdges(enc, g, keyIDs, opts.Stable); err != nil {
		return err
	}

	if err := enc.EncodeToken(graphStart.End()); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "graphml"}}); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	return bw.Flush()
}

// writeConfigData emits the graph-level configuration as a CDATA
// section rather than escaped character data, matching the original
// graphANNIS GraphML dialect. encoding/xml has no CDATA token, so the
// encoder is flushed and the section written directly to the
// underlying writer; "]]>" inside config is split across adjoining
// CDATA sections since it cannot appear inside one.
func writeConfigData(enc *xml.Encoder, bw *bufio.Writer, config string) error {
	start := xml.StartElement{Name: xml.Name{Local: "data"}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "key"}, Value: "k0"},
	}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	escaped := strings.ReplaceAll(config, "]]>", "]]]]><![CDATA[>")
	if _, err := bw.WriteString("<![CDATA[" + escaped + "]]>"); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

// writeKeys declares one <key> per distinct annotation key in use,
// skipping annis:node_name (it is carried by the node's own "id"
// attribute, never as separate data) and any key already seen on an
// earlier component. Returns the id assigned to each key.
func writeKeys(enc *xml.Encoder, g *graph.Graph, hasConfig, stable bool) (map[graphannis.AnnoKey]string, error) {
	keyIDs := make(map[graphannis.AnnoKey]string)
	counter := 0

	newKey := func(forElem, qname string) (string, error) {
		id := fmt.Sprintf("k%d", counter)
		counter++
		start := xml.StartElement{Name: xml.Name{Local: "key"}, Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: id},
			{Name: xml.Name{Local: "for"}, Value: forElem},
			{Name: xml.Name{Local: "attr.name"}, Value: qname},
			{Name: xml.Name{Local: "attr.type"}, Value: "string"},
		}}
		if err := enc.EncodeToken(start); err != nil {
			return "", err
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return "", err
		}
		return id, nil
	}

	if hasConfig {
		if _, err := newKey("graph", "configuration"); err != nil {
			return nil, err
		}
	}

	nodeKeys := g.NodeAnnos().AnnotationKeys()
	if stable {
		sort.Slice(nodeKeys, func(i, j int) bool { return nodeKeys[i].Less(nodeKeys[j]) })
	}
	for _, key := range nodeKeys {
		if key == graphannis.NodeNameKey {
			continue
		}
		if _, seen := keyIDs[key]; seen {
			continue
		}
		id, err := newKey("node", qname(key))
		if err != nil {
			return nil, err
		}
		keyIDs[key] = id
	}

	components := g.GetAllComponents(nil, nil)
	if stable {
		sort.Slice(components, func(i, j int) bool { return components[i].Less(components[j]) })
	}
	for _, c := range components {
		if c.Type.IsAutogenerated() {
			continue
		}
		storage, err := g.GetGraphStorage(c)
		if err != nil {
			return nil, err
		}
		for _, key := range storage.GetAnnoStorage().AnnotationKeys() {
			if _, seen := keyIDs[key]; seen {
				continue
			}
			id, err := newKey("node", qname(key))
			if err != nil {
				return nil, err
			}
			keyIDs[key] = id
		}
	}
	return keyIDs, nil
}

func qname(k graphannis.AnnoKey) string {
	if k.Ns == "" {
		return k.Name
	}
	return k.Ns + "::" + k.Name
}

func writeNodes(enc *xml.Encoder, g *graph.Graph, keyIDs map[graphannis.AnnoKey]string, stable bool) error {
	ns := graphannis.AnnisNS
	matches := g.NodeAnnos().ExactAnnoSearch(&ns, graphannis.NodeTypeAnno, annostorage.Any())
	if stable {
		sort.Slice(matches, func(i, j int) bool { return matches[i].Item < matches[j].Item })
	}

	for _, m := range matches {
		id, ok := g.NodeAnnos().GetValueForItem(m.Item, graphannis.NodeNameKey)
		if !ok {
			continue
		}
		annos := g.NodeAnnos().GetAnnotationsForItem(m.Item)
		var toWrite []graphannis.Annotation
		for _, a := range annos {
			if a.Key != graphannis.NodeNameKey {
				toWrite = append(toWrite, a)
			}
		}
		sort.Slice(toWrite, func(i, j int) bool { return keyIDs[toWrite[i].Key] < keyIDs[toWrite[j].Key] })

		start := xml.StartElement{Name: xml.Name{Local: "node"}, Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: id},
		}}
		if len(toWrite) == 0 {
			if err := enc.EncodeToken(start); err != nil {
				return err
			}
			if err := enc.EncodeToken(start.End()); err != nil {
				return err
			}
			continue
		}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		for _, a := range toWrite {
			if err := writeData(enc, a, keyIDs); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return err
		}
	}
	return nil
}

func writeData(enc *xml.Encoder, anno graphannis.Annotation, keyIDs map[graphannis.AnnoKey]string) error {
	keyID, ok := keyIDs[anno.Key]
	if !ok {
		return fmt.Errorf("%w: %s", graphannis.ErrMissingAnnotationKey, anno.Key)
	}
	start := xml.StartElement{Name: xml.Name{Local: "data"}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "key"}, Value: keyID},
	}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(anno.Val)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func writeEdges(enc *xml.Encoder, g *graph.Graph, keyIDs map[graphannis.AnnoKey]string, stable bool) error {
	edgeCounter := 0
	components := g.GetAllComponents(nil, nil)
	if stable {
		sort.Slice(components, func(i, j int) bool { return components[i].Less(components[j]) })
	}

	for _, c := range components {
		if c.Type.IsAutogenerated() {
			continue
		}
		storage, err := g.GetGraphStorage(c)
		if err != nil {
			return err
		}
		sources, err := storage.SourceNodes()
		if err != nil {
			return err
		}
		if stable {
			sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
		}
		for _, source := range sources {
			sourceID, ok := g.NodeAnnos().GetValueForItem(source, graphannis.NodeNameKey)
			if !ok {
				continue
			}
			targets, err := storage.GetOutgoingEdges(source)
			if err != nil {
				return err
			}
			if stable {
				sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
			}
			for _, target := range targets {
				targetID, ok := g.NodeAnnos().GetValueForItem(target, graphannis.NodeNameKey)
				if !ok {
					continue
				}
				edgeID := fmt.Sprintf("e%d", edgeCounter)
				edgeCounter++

				start := xml.StartElement{Name: xml.Name{Local: "edge"}, Attr: []xml.Attr{
					{Name: xml.Name{Local: "id"}, Value: edgeID},
					{Name: xml.Name{Local: "source"}, Value: sourceID},
					{Name: xml.Name{Local: "target"}, Value: targetID},
					{Name: xml.Name{Local: "label"}, Value: c.String()},
				}}
				if err := enc.EncodeToken(start); err != nil {
					return err
				}

				annos := storage.GetAnnoStorage().GetAnnotationsForItem(graphannis.Edge{Source: source, Target: target})
				sort.Slice(annos, func(i, j int) bool { return keyIDs[annos[i].Key] < keyIDs[annos[j].Key] })
				for _, a := range annos {
					if err := writeData(enc, a, keyIDs); err != nil {
						return err
					}
				}
				if err := enc.EncodeToken(start.End()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
