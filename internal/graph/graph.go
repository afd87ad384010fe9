// Package graph provides the travel-time graph over market and cauldron
// nodes and answers shortest-path queries on it.
package graph

import (
	"container/heap"
	"sort"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// Graph is an undirected weighted graph built once per planning run from
// connection records. It is read-only after construction, so concurrent
// shortest-path queries are safe.
type Graph struct {
	adj map[string][]arc
}

type arc struct {
	to     string
	weight float64
}

// New builds a graph from edge records. Edges with non-positive travel time
// or a missing endpoint are skipped.
func New(edges []cauldron.Edge) *Graph {
	g := &Graph{adj: make(map[string][]arc)}
	for _, e := range edges {
		if e.From == "" || e.To == "" || e.TravelMinutes <= 0 {
			continue
		}
		g.adj[e.From] = append(g.adj[e.From], arc{to: e.To, weight: e.TravelMinutes})
		g.adj[e.To] = append(g.adj[e.To], arc{to: e.From, weight: e.TravelMinutes})
	}
	return g
}

// HasNode reports whether the node appears in any edge.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// Nodes returns all node IDs in the graph, sorted.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.adj))
	for id := range g.adj {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// Path is a concrete shortest path between two nodes.
type Path struct {
	// Nodes lists the visited node IDs, source first, destination last.
	Nodes []string

	// Minutes is the total travel time along the path.
	Minutes float64
}

// ShortestPaths holds single-source shortest-path results.
type ShortestPaths struct {
	source string
	dist   map[string]float64
	prev   map[string]string
}

// From computes shortest paths from the source node to every reachable node
// using Dijkstra's algorithm with a binary heap.
func (g *Graph) From(source string) *ShortestPaths {
	sp := &ShortestPaths{
		source: source,
		dist:   make(map[string]float64),
		prev:   make(map[string]string),
	}
	if !g.HasNode(source) {
		return sp
	}

	sp.dist[source] = 0

	pq := &nodeQueue{{id: source, dist: 0}}
	heap.Init(pq)

	settled := make(map[string]bool)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(nodeItem)
		if settled[item.id] {
			continue
		}
		settled[item.id] = true

		for _, a := range g.adj[item.id] {
			alt := item.dist + a.weight
			if cur, ok := sp.dist[a.to]; !ok || alt < cur {
				sp.dist[a.to] = alt
				sp.prev[a.to] = item.id
				heap.Push(pq, nodeItem{id: a.to, dist: alt})
			}
		}
	}

	return sp
}

// DistanceTo returns the travel time from the source to the given node.
// The second return value is false when the node is unreachable.
func (sp *ShortestPaths) DistanceTo(id string) (float64, bool) {
	d, ok := sp.dist[id]
	return d, ok
}

// PathTo returns the concrete shortest path from the source to the given
// node. The second return value is false when the node is unreachable.
func (sp *ShortestPaths) PathTo(id string) (Path, bool) {
	d, ok := sp.dist[id]
	if !ok {
		return Path{}, false
	}

	var nodes []string
	for at := id; ; {
		nodes = append(nodes, at)
		if at == sp.source {
			break
		}
		at = sp.prev[at]
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}

	return Path{Nodes: nodes, Minutes: d}, true
}

// ShortestPath returns the shortest path between two nodes. The second
// return value is false when no path exists; callers must treat that as an
// exclusion, not an error. a == b yields a zero-length trivial path.
func (g *Graph) ShortestPath(a, b string) (Path, bool) {
	if a == b && g.HasNode(a) {
		return Path{Nodes: []string{a}, Minutes: 0}, true
	}
	return g.From(a).PathTo(b)
}

// nodeItem is a pending queue entry. Stale entries are skipped on pop, which
// keeps pushes O(log n) without a decrease-key operation.
type nodeItem struct {
	id   string
	dist float64
}

type nodeQueue []nodeItem

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(nodeItem)) }

func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
