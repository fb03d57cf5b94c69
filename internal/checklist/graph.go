package checklist

// Dependency graph helpers. Nodes are element positions in canonical order and
// deps[n] lists the nodes whose values or requiredness node n's rules read.

const (
	white = iota
	grey
	black
)

// findCycle returns the first cycle found, as a closed path starting and ending
// on the same node, or nil when the graph is acyclic. Traversal starts from
// nodes in canonical order so the reported cycle is deterministic.
func findCycle(deps [][]int) []int {
	color := make([]int, len(deps))
	parent := make([]int, len(deps))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var visit func(n int) bool
	visit = func(n int) bool {
		color[n] = grey
		for _, d := range deps[n] {
			switch color[d] {
			case grey:
				// Walk back from n to d to recover the loop.
				path := []int{d}
				for cur := n; cur != d; cur = parent[cur] {
					path = append(path, cur)
				}
				path = append(path, d)
				for i, j := 1, len(path)-2; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				cycle = path
				return true
			case white:
				parent[d] = n
				if visit(d) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}

	for n := range deps {
		if color[n] == white && visit(n) {
			return cycle
		}
	}
	return nil
}

// topologicalOrder orders nodes so that dependencies come first, picking the
// lowest canonical position among ready nodes at each step. deps must be acyclic.
func topologicalOrder(deps [][]int) []int {
	pending := make([]int, len(deps))
	dependents := make([][]int, len(deps))
	for n, ds := range deps {
		pending[n] = len(ds)
		for _, d := range ds {
			dependents[d] = append(dependents[d], n)
		}
	}

	done := make([]bool, len(deps))
	order := make([]int, 0, len(deps))
	for len(order) < len(deps) {
		next := -1
		for n := range deps {
			if !done[n] && pending[n] == 0 {
				next = n
				break
			}
		}
		if next < 0 {
			// unreachable for acyclic input
			break
		}
		done[next] = true
		order = append(order, next)
		for _, m := range dependents[next] {
			pending[m]--
		}
	}
	return order
}
