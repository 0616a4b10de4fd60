package network

import "slices"

// Order computes a topological processing order for the given segment set
// using Kahn's algorithm over the upstream→downstream dependency graph
// restricted to that set. Roots precede all downstream dependents; ties
// between independent branches are broken by ascending segment id so the
// order is deterministic.
//
// If ids is nil, the full segment set is ordered. Unknown ids are ignored.
// Returns [ErrCycleDetected] if the restricted dependency graph contains a
// cycle: a cycle means the acyclic-network assumption is violated and must
// be reported, never silently resolved.
//
// Time complexity is O(V + E) over the restricted set.
func (t *Topology) Order(ids []int64) ([]int64, error) {
	working := t.workingSet(ids)

	inDegree := make(map[int64]int, len(working))
	dependents := make(map[int64][]int64, len(working))

	for id := range working {
		for _, feeder := range t.UpstreamOf(id) {
			if !working[feeder] {
				continue
			}
			inDegree[id]++
			dependents[feeder] = append(dependents[feeder], id)
		}
	}

	queue := make([]int64, 0, len(working))
	for id := range working {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	slices.Sort(queue)

	order := make([]int64, 0, len(working))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)

		ready := dependents[curr]
		slices.Sort(ready)
		for _, next := range ready {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = insertSorted(queue, next)
			}
		}
	}

	if len(order) != len(working) {
		return nil, ErrCycleDetected
	}
	return order, nil
}

// insertSorted inserts v into sorted slice s, keeping it sorted.
func insertSorted(s []int64, v int64) []int64 {
	i, _ := slices.BinarySearch(s, v)
	return slices.Insert(s, i, v)
}

func (t *Topology) workingSet(ids []int64) map[int64]bool {
	working := make(map[int64]bool)
	if ids == nil {
		for id := range t.segments {
			working[id] = true
		}
		return working
	}
	for _, id := range ids {
		if _, ok := t.segments[id]; ok {
			working[id] = true
		}
	}
	return working
}

// OrderByComponent partitions the working set into weakly connected
// components and orders each one independently with [Order]. Acyclic
// components contribute to order; the segment ids of components that
// contain a cycle are returned in cyclic instead, so one malformed chain
// never blocks ordering of the rest of the network. Both slices are
// deterministic.
func (t *Topology) OrderByComponent(ids []int64) (order, cyclic []int64) {
	working := t.workingSet(ids)

	keys := make([]int64, 0, len(working))
	for id := range working {
		keys = append(keys, id)
	}
	slices.Sort(keys)

	visited := make(map[int64]bool, len(working))
	for _, id := range keys {
		if visited[id] {
			continue
		}
		comp := t.component(id, working, visited)
		part, err := t.Order(comp)
		if err != nil {
			cyclic = append(cyclic, comp...)
			continue
		}
		order = append(order, part...)
	}
	slices.Sort(cyclic)
	return order, cyclic
}

// component collects the weakly connected component containing start,
// restricted to the working set. The result is sorted.
func (t *Topology) component(start int64, working, visited map[int64]bool) []int64 {
	visited[start] = true
	comp := []int64{start}
	queue := []int64{start}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, adjacent := range [][]int64{t.UpstreamOf(curr), t.DownstreamOf(curr)} {
			for _, next := range adjacent {
				if !working[next] || visited[next] {
					continue
				}
				visited[next] = true
				comp = append(comp, next)
				queue = append(queue, next)
			}
		}
	}
	slices.Sort(comp)
	return comp
}

// Validate checks graph integrity and returns nil if the network is a
// valid acyclic directed graph. Cycles are detected using depth-first
// search with white/gray/black coloring over the segment dependency graph.
func (t *Topology) Validate() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[int64]int, len(t.segments))
	var hasCycle bool

	var dfs func(id int64)
	dfs = func(id int64) {
		color[id] = gray
		for _, next := range t.DownstreamOf(id) {
			switch color[next] {
			case white:
				dfs(next)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for id := range t.segments {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrCycleDetected
			}
		}
	}
	return nil
}
