package graphstorage

import (
	"sort"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// computeStatistics derives a GraphStatistic snapshot by scanning every
// source node's fan-out and running a DFS from every root (then from
// any source node not yet reached, so a cycle without a root is still
// found) to find the maximum depth, classifying the graph as
// cyclic/acyclic and rooted-tree/not along the way. It visits each node
// at most once, so cost is
// O(nodes + edges) for acyclic graphs. The depth is exact for a rooted
// tree; in a DAG a node already reached from an earlier root is not
// walked again, so MaxDepth can be lower than the longest path.
func computeStatistics(c EdgeContainer) (*GraphStatistic, error) {
	sources, err := c.SourceNodes()
	if err != nil {
		return nil, err
	}

	stat := &GraphStatistic{RootedTree: true}
	fanOuts := make([]int64, 0, len(sources))
	nodeSeen := map[graphannis.NodeID]struct{}{}
	inDegree := map[graphannis.NodeID]int{}

	for _, src := range sources {
		targets, err := c.GetOutgoingEdges(src)
		if err != nil {
			return nil, err
		}
		fanOuts = append(fanOuts, int64(len(targets)))
		if len(targets) > 1 {
			stat.RootedTree = false
		}
		nodeSeen[src] = struct{}{}
		for _, t := range targets {
			nodeSeen[t] = struct{}{}
			inDegree[t]++
			if inDegree[t] > 1 {
				stat.RootedTree = false
			}
		}
	}
	stat.NodeCount = int64(len(nodeSeen))

	// Roots (no in-edges) are walked first so each tree's depth is
	// measured from its top; the remaining sources follow.
	starts := make([]graphannis.NodeID, 0, len(sources))
	for _, src := range sources {
		if inDegree[src] == 0 {
			starts = append(starts, src)
		}
	}
	for _, src := range sources {
		if inDegree[src] != 0 {
			starts = append(starts, src)
		}
	}
	cyclic, maxDepth, err := detectCycleAndDepth(c, starts)
	if err != nil {
		return nil, err
	}
	stat.Cyclic = cyclic
	stat.MaxDepth = maxDepth
	if cyclic {
		stat.RootedTree = false
	}

	sort.Slice(fanOuts, func(i, j int) bool { return fanOuts[i] < fanOuts[j] })
	stat.MaxFanOut, stat.AvgFanOut, stat.Fan99PercentileOut = summarize(fanOuts)

	var fanIns []int64
	for _, d := range inDegree {
		fanIns = append(fanIns, int64(d))
	}
	sort.Slice(fanIns, func(i, j int) bool { return fanIns[i] < fanIns[j] })
	stat.MaxFanIn, stat.AvgFanIn, stat.Fan99PercentileIn = summarize(fanIns)

	if stat.NodeCount > 0 {
		stat.DFSVisitRatio = float64(len(sources)) / float64(stat.NodeCount)
	}
	return stat, nil
}

func summarize(sorted []int64) (max int64, avg float64, p99 int64) {
	if len(sorted) == 0 {
		return 0, 0, 0
	}
	var sum int64
	for _, v := range sorted {
		sum += v
	}
	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[len(sorted)-1], float64(sum) / float64(len(sorted)), sorted[idx]
}

// color marks a node's state during the DFS below.
type color int

const (
	white color = iota
	gray
	black
)

// detectCycleAndDepth runs an iterative DFS with a three-color scheme
// from every node of sources, in the given order, reporting whether a
// back-edge (an edge into a node still on the current path) was ever
// seen and the deepest path length found from those starting nodes.
func detectCycleAndDepth(c EdgeContainer, sources []graphannis.NodeID) (bool, int64, error) {
	colors := map[graphannis.NodeID]color{}
	var maxDepth int64
	cyclic := false

	type stackEntry struct {
		node     graphannis.NodeID
		depth    int64
		children []graphannis.NodeID
		idx      int
	}

	for _, root := range sources {
		if colors[root] != white {
			continue
		}
		children, err := c.GetOutgoingEdges(root)
		if err != nil {
			return false, 0, err
		}
		stack := []*stackEntry{{node: root, depth: 0, children: children}}
		colors[root] = gray
		if 0 > maxDepth {
			maxDepth = 0
		}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.idx >= len(top.children) {
				colors[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			next := top.children[top.idx]
			top.idx++
			switch colors[next] {
			case white:
				colors[next] = gray
				depth := top.depth + 1
				if depth > maxDepth {
					maxDepth = depth
				}
				grandchildren, err := c.GetOutgoingEdges(next)
				if err != nil {
					return false, 0, err
				}
				stack = append(stack, &stackEntry{node: next, depth: depth, children: grandchildren})
			case gray:
				cyclic = true
			case black:
				// cross/forward edge, already fully explored
			}
		}
	}
	return cyclic, maxDepth, nil
}
