package graph

import (
	"fmt"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
	"github.com/graphannis-go/graphannis/pkg/graphstorage"
)

// CalculateAutomaticCoverageEdges derives a Coverage component from
// the existing Coverage-typed components plus the token order chain:
// for each non-token node that already carries explicit Coverage
// edges, it walks the Ordering component between those directly
// covered tokens and fills in every token the explicit edges skipped,
// so span queries work without requiring the corpus author to have
// listed every covered token (the Dominance-vs-Coverage relationship,
// a feature present in the original Rust
// implementation's automatic coverage calculation but left out of the
// distilled module list). The original Coverage component is left
// untouched; the result is written to a new autogenerated one.
func (g *Graph) CalculateAutomaticCoverageEdges(layer, name string) error {
	if err := g.EnsureLoadedAll(); err != nil {
		return err
	}

	ordering := graphannis.Ordering
	orderingComps := g.GetAllComponents(&ordering, nil)
	if len(orderingComps) == 0 {
		return fmt.Errorf("%w: no Ordering component to derive coverage from", graphannis.ErrNotFound)
	}
	orderStorage, err := g.GetGraphStorage(orderingComps[0])
	if err != nil {
		return err
	}

	coverageType := graphannis.Coverage
	var coverageStorages []graphstorage.GraphStorage
	for _, c := range g.GetAllComponents(&coverageType, nil) {
		s, err := g.GetGraphStorage(c)
		if err != nil {
			return err
		}
		coverageStorages = append(coverageStorages, s)
	}
	if len(coverageStorages) == 0 {
		return nil
	}
	union := graphstorage.NewUnionStorage(coverageStorages...)

	coverageComp := graphannis.Component{Type: graphannis.Coverage, Layer: layer, Name: name}
	w, err := g.getOrCreateWritableGraphStorage(coverageComp)
	if err != nil {
		return err
	}

	sources, err := union.SourceNodes()
	if err != nil {
		return err
	}
	for _, src := range sources {
		covered, err := union.GetOutgoingEdges(src)
		if err != nil {
			return err
		}
		if len(covered) == 0 {
			continue
		}
		span, err := spanCoveredTokens(orderStorage, covered)
		if err != nil {
			return err
		}
		for _, tok := range span {
			if err := w.AddEdge(graphannis.Edge{Source: src, Target: tok}); err != nil {
				return err
			}
		}
	}
	return nil
}

// spanCoveredTokens walks the Ordering chain forward from each
// already-covered token and, whenever the walk lands on another
// already-covered token, adds every token visited along the way to
// the returned span. This fills the gap an explicit Coverage
// component left implicit -- e.g. edges to t1 and t4 only, spanning
// the never-mentioned t2 and t3 in between.
func spanCoveredTokens(order graphstorage.GraphStorage, covered []graphannis.NodeID) ([]graphannis.NodeID, error) {
	coveredSet := make(map[graphannis.NodeID]struct{}, len(covered))
	span := make(map[graphannis.NodeID]struct{}, len(covered))
	for _, t := range covered {
		coveredSet[t] = struct{}{}
		span[t] = struct{}{}
	}

	const maxChainWalk = 15 // spec's MAX_DEPTH for single-successor chains
	for _, start := range covered {
		var path []graphannis.NodeID
		cur := start
		for depth := 0; depth < maxChainWalk; depth++ {
			next, err := order.GetOutgoingEdges(cur)
			if err != nil {
				return nil, err
			}
			if len(next) == 0 {
				break
			}
			cur = next[0]
			path = append(path, cur)
			if _, ok := coveredSet[cur]; ok {
				for _, n := range path {
					span[n] = struct{}{}
				}
				break
			}
		}
	}

	result := make([]graphannis.NodeID, 0, len(span))
	for n := range span {
		result = append(result, n)
	}
	return result, nil
}
