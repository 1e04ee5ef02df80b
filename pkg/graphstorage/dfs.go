package graphstorage

import (
	"fmt"

	"github.com/graphannis-go/graphannis/pkg/graphannis"
)

// dfsOp discriminates the two kinds of frame on the explicit DFS
// stack: entering a node for the first time on this path, and
// leaving it again once every descendant has been explored.
type dfsOp int

const (
	opEnter dfsOp = iota
	opExit
)

// frame is one entry of the explicit DFS path stack.
type frame struct {
	op       dfsOp
	node     graphannis.NodeID
	distance int
}

// cycleSafeDFS implements the FindConnected/FindConnectedInverse family
// shared by every GraphStorage: an explicit stack (never the call
// stack, so arbitrarily deep or cyclic graphs cannot blow it) carries
// the current root-to-node path, and a node already on that path is
// refused rather than recursed into again. A node reachable by two
// different paths of different lengths is walked down both -- only the
// *output* is
// deduplicated, in a set kept separate from the path-membership check,
// so e.g. find_connected(a, 2, 2) still finds a node two hops away via
// a longer route even though the same node sits one hop away via a
// shorter one. inverse selects ingoing vs outgoing edges.
func cycleSafeDFS(c EdgeContainer, start graphannis.NodeID, minDistance int, maxDistance Bound, inverse bool, deadline Deadline) ([]graphannis.NodeID, error) {
	neighbors := c.GetOutgoingEdges
	if inverse {
		neighbors = c.GetIngoingEdges
	}

	onPath := map[graphannis.NodeID]struct{}{}
	emitted := map[graphannis.NodeID]struct{}{}
	var result []graphannis.NodeID
	stack := []frame{{op: opEnter, node: start, distance: 0}}

	for len(stack) > 0 {
		if deadline.expired() {
			return nil, fmt.Errorf("%w: traversal cancelled", graphannis.ErrTimeout)
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.op == opExit {
			delete(onPath, top.node)
			continue
		}
		if _, onStack := onPath[top.node]; onStack {
			continue
		}
		onPath[top.node] = struct{}{}
		stack = append(stack, frame{op: opExit, node: top.node, distance: top.distance})

		inRange := top.distance >= minDistance && maxDistance.allows(top.distance) && top.distance > 0
		atRootWithZero := top.distance == 0 && minDistance == 0
		if inRange || atRootWithZero {
			if _, seen := emitted[top.node]; !seen {
				emitted[top.node] = struct{}{}
				result = append(result, top.node)
			}
		}

		if maxDistance.exceeded(top.distance + 1) {
			continue
		}
		next, err := neighbors(top.node)
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			stack = append(stack, frame{op: opEnter, node: n, distance: top.distance + 1})
		}
	}
	return result, nil
}

// bfsDistance finds the shortest hop count from source to target via
// breadth-first search, which (unlike the DFS above) is guaranteed to
// discover a node at its minimal distance.
func bfsDistance(c EdgeContainer, source, target graphannis.NodeID) (int, bool, error) {
	if source == target {
		return 0, false, nil
	}
	visited := map[graphannis.NodeID]struct{}{source: {}}
	queue := []graphannis.NodeID{source}
	dist := 0
	for len(queue) > 0 {
		dist++
		var next []graphannis.NodeID
		for _, node := range queue {
			outs, err := c.GetOutgoingEdges(node)
			if err != nil {
				return 0, false, err
			}
			for _, n := range outs {
				if n == target {
					return dist, true, nil
				}
				if _, seen := visited[n]; !seen {
					visited[n] = struct{}{}
					next = append(next, n)
				}
			}
		}
		queue = next
	}
	return 0, false, nil
}

// isConnectedViaDFS reports reachability without materializing the
// full connected set, stopping at the first match. Like cycleSafeDFS,
// cycle refusal is path-based (a node already on the current path is
// not recursed into again) rather than a single global visited set,
// so a target only reachable via a longer alternate route is not
// missed because a shorter route to the same intermediate node was
// explored first.
func isConnectedViaDFS(c EdgeContainer, source, target graphannis.NodeID, minDistance int, maxDistance Bound) (bool, error) {
	onPath := map[graphannis.NodeID]struct{}{}
	stack := []frame{{op: opEnter, node: source, distance: 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.op == opExit {
			delete(onPath, top.node)
			continue
		}
		if _, onStack := onPath[top.node]; onStack {
			continue
		}
		onPath[top.node] = struct{}{}
		stack = append(stack, frame{op: opExit, node: top.node, distance: top.distance})

		if top.node == target && top.distance >= minDistance && maxDistance.allows(top.distance) && top.distance > 0 {
			return true, nil
		}
		if maxDistance.exceeded(top.distance + 1) {
			continue
		}
		next, err := c.GetOutgoingEdges(top.node)
		if err != nil {
			return false, err
		}
		for _, n := range next {
			stack = append(stack, frame{op: opEnter, node: n, distance: top.distance + 1})
		}
	}
	return false, nil
}
