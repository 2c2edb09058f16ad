// Package graph analyses the node connection graph of a workflow item.
package graph

import (
	"maps"
	"slices"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
)

// color marks DFS progress.
type color int

const (
	unvisited color = iota
	inProgress
	done
)

// DetectOrphans returns, in node order, the nodes with neither inbound nor outbound edges.
// A single-node graph never has orphans; with two or more nodes and no edges every node is
// an orphan. Edges with an empty target count for neither endpoint.
func DetectOrphans(nodeIDs []string, edges map[string][]models.Edge) []string {
	ids := unique(nodeIDs)
	if len(ids) < 2 {
		return []string{}
	}

	connected := make(map[string]bool, len(ids))

	for source, out := range edges {
		for _, edge := range out {
			if edge.TargetNodeID == "" {
				continue
			}

			connected[source] = true
			connected[edge.TargetNodeID] = true
		}
	}

	orphans := []string{}

	for _, id := range ids {
		if !connected[id] {
			orphans = append(orphans, id)
		}
	}

	return orphans
}

// DetectCycle runs a three-color depth-first traversal over the known nodes and reports
// the first cycle found. The path starts and ends on the same node, so a self-loop on A
// yields [A A] and A→B→A yields [A B A]. Edges to or from unknown nodes are not followed;
// DanglingEdges reports them.
func DetectCycle(nodeIDs []string, edges map[string][]models.Edge) (bool, []string) {
	ids := unique(nodeIDs)

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	colors := make(map[string]color, len(ids))
	stack := make([]string, 0, len(ids))

	var visit func(id string) []string

	visit = func(id string) []string {
		colors[id] = inProgress
		stack = append(stack, id)

		for _, edge := range edges[id] {
			next := edge.TargetNodeID
			if !known[next] {
				continue
			}

			switch colors[next] {
			case inProgress:
				start := slices.Index(stack, next)
				path := slices.Clone(stack[start:])

				return append(path, next)
			case unvisited:
				if path := visit(next); path != nil {
					return path
				}
			case done:
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = done

		return nil
	}

	for _, id := range ids {
		if colors[id] != unvisited {
			continue
		}

		if path := visit(id); path != nil {
			return true, path
		}
	}

	return false, nil
}

// DanglingEdge is a connection whose source or target is not a known node.
type DanglingEdge struct {
	Source        string
	Edge          models.Edge
	UnknownSource bool
	MissingTarget bool
	UnknownTarget bool
}

// DanglingEdges lists the connection entries that reference nodes outside nodeIDs, in
// sorted source order. A source with no edges but an unknown id is reported once with a
// zero Edge.
func DanglingEdges(nodeIDs []string, edges map[string][]models.Edge) []DanglingEdge {
	known := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		known[id] = true
	}

	dangling := []DanglingEdge{}

	for _, source := range slices.Sorted(maps.Keys(edges)) {
		unknownSource := !known[source]

		if unknownSource && len(edges[source]) == 0 {
			dangling = append(dangling, DanglingEdge{Source: source, UnknownSource: true})

			continue
		}

		for _, edge := range edges[source] {
			d := DanglingEdge{
				Source:        source,
				Edge:          edge,
				UnknownSource: unknownSource,
				MissingTarget: edge.TargetNodeID == "",
			}
			d.UnknownTarget = !d.MissingTarget && !known[edge.TargetNodeID]

			if d.UnknownSource || d.MissingTarget || d.UnknownTarget {
				dangling = append(dangling, d)
			}
		}
	}

	return dangling
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}

		seen[id] = true
		out = append(out, id)
	}

	return out
}
