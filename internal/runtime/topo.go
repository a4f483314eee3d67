package runtime

import (
	"sort"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// topoSort orders nodes with Kahn's algorithm over data connections. Ties are
// broken by declaration order so the result is deterministic. Nodes left over
// once no zero in-degree node remains sit on (or behind) a cycle and are
// returned as the second value.
func topoSort(nodes []string, conns []domain.Connection) (order []string, cyclic []string) {
	index := make(map[string]int, len(nodes))
	for i, id := range nodes {
		index[id] = i
	}

	inDegree := make(map[string]int, len(nodes))
	next := make(map[string][]string, len(nodes))
	seenEdge := make(map[[2]string]bool, len(conns))
	for _, c := range conns {
		if _, ok := index[c.From.Node]; !ok {
			continue
		}
		if _, ok := index[c.To.Node]; !ok {
			continue
		}
		// Several port-level connections between the same pair count once.
		key := [2]string{c.From.Node, c.To.Node}
		if seenEdge[key] {
			continue
		}
		seenEdge[key] = true
		inDegree[c.To.Node]++
		next[c.From.Node] = append(next[c.From.Node], c.To.Node)
	}

	var ready []string
	for _, id := range nodes {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order = make([]string, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, to := range next[id] {
			inDegree[to]--
			if inDegree[to] == 0 {
				ready = append(ready, to)
				sort.SliceStable(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })
			}
		}
	}

	if len(order) == len(nodes) {
		return order, nil
	}
	for _, id := range nodes {
		if inDegree[id] > 0 {
			cyclic = append(cyclic, id)
		}
	}
	return order, cyclic
}

// downstream returns from plus every node reachable from it over data connections.
func downstream(from string, conns []domain.Connection) map[string]bool {
	next := make(map[string][]string)
	for _, c := range conns {
		next[c.From.Node] = append(next[c.From.Node], c.To.Node)
	}
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, to := range next[id] {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return seen
}
