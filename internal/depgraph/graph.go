// Package depgraph is the persistent directed dependency graph over
// FileNodes described in spec.md §3/§4.4, adapted from the teacher's
// pkg/graph (ImportGraph's forward/reverse adjacency and dedup-on-insert,
// package_graph.go's dense integer node ids and DFS cycle detection).
package depgraph

import "sort"

// Classification distinguishes a test file from everything else. Barrel
// status is orthogonal (see FileNode.IsBarrel): a barrel file is still a
// Source file, just one whose exports the affected engine can see through.
type Classification int

const (
	Source Classification = iota
	Test
)

// ParseStatus records whether a file's last parse succeeded.
type ParseStatus int

const (
	Ok ParseStatus = iota
	SyntaxError
	Unsupported
)

// EdgeKind is the import form that produced an ImportEdge, per spec.md §3.
type EdgeKind int

const (
	Static EdgeKind = iota
	Dynamic
	Require
	ReExportAll
	ReExportNamed
	TypeOnly
)

// EdgeStatus mirrors the resolver's Resolution kind onto an edge.
type EdgeStatus int

const (
	EdgeResolved EdgeStatus = iota
	EdgeExternal
	EdgeUnresolved
)

// Edge is a directed relation from an importer FileNode to a resolved
// target, an external package, or an unresolved specifier.
type Edge struct {
	ToID       int // valid when Status == EdgeResolved
	Specifier  string
	PackageName string // set when Status == EdgeExternal
	Kind       EdgeKind
	Status     EdgeStatus
	Span       [2]uint32 // byte offset [start, end) in the importer's source
}

// FileNode is a single file tracked by the graph, identified by id; Path is
// its absolute normalized path.
type FileNode struct {
	ID             int
	Path           string
	ContentHash    uint64
	ModTimeUnixNs  int64
	Classification Classification
	IsBarrel       bool
	ParseStatus    ParseStatus
	Edges          []Edge
}

// Graph is a dense-integer-id adjacency structure over FileNodes, per
// spec.md §9's "arena with dense integer node identifiers".
type Graph struct {
	nodes      []*FileNode
	byPath     map[string]int
	reverse    map[int]map[int]bool // target id -> set of importer ids
	tombstones map[string][]int     // removed path -> its importer ids at removal time
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{byPath: map[string]int{}, reverse: map[int]map[int]bool{}, tombstones: map[string][]int{}}
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the total number of edges across all nodes.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, node := range g.nodes {
		n += len(node.Edges)
	}
	return n
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id int) *FileNode {
	if id < 0 || id >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// NodeByPath returns the node for path, if present.
func (g *Graph) NodeByPath(path string) (*FileNode, bool) {
	id, ok := g.byPath[path]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

// Nodes returns every node in id order.
func (g *Graph) Nodes() []*FileNode { return g.nodes }

// AddNode inserts a new node for path if it doesn't exist and returns its
// id. Insertion is atomic with respect to traversal (spec.md §4.4).
func (g *Graph) AddNode(path string) int {
	if id, ok := g.byPath[path]; ok {
		return id
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, &FileNode{ID: id, Path: path})
	g.byPath[path] = id
	g.reverse[id] = map[int]bool{}
	delete(g.tombstones, path)
	return id
}

// SetEdges replaces a node's outgoing edges, updating the reverse index for
// both the old and new targets in one atomic step ("Update node" in
// spec.md §4.4).
func (g *Graph) SetEdges(id int, edges []Edge) {
	node := g.nodes[id]
	for _, old := range node.Edges {
		if old.Status == EdgeResolved {
			delete(g.reverse[old.ToID], id)
		}
	}
	node.Edges = edges
	for _, e := range edges {
		if e.Status == EdgeResolved {
			if g.reverse[e.ToID] == nil {
				g.reverse[e.ToID] = map[int]bool{}
			}
			g.reverse[e.ToID][id] = true
		}
	}
}

// RemoveNode removes a node's outgoing edges from the reverse index and
// marks any inbound edges from other nodes Unresolved rather than evicting
// their importer nodes, per spec.md §4.4's "Remove node". Before the node's
// own entry in the reverse index is dropped, its importer set is snapshotted
// into a tombstone keyed by path, so a later FindAffected seeding from this
// same path (per spec.md §4.6 point 1, "deleted files use their last known
// node") still reaches the files that used to import it, even though the
// node itself is no longer queryable by NodeByPath.
func (g *Graph) RemoveNode(id int) {
	node := g.nodes[id]
	if node == nil {
		return
	}
	for _, old := range node.Edges {
		if old.Status == EdgeResolved {
			delete(g.reverse[old.ToID], id)
		}
	}
	node.Edges = nil

	importers := g.Importers(id)
	if len(importers) > 0 {
		g.tombstones[node.Path] = importers
	}
	for _, importerID := range importers {
		importer := g.nodes[importerID]
		for i := range importer.Edges {
			if importer.Edges[i].Status == EdgeResolved && importer.Edges[i].ToID == id {
				importer.Edges[i].Status = EdgeUnresolved
				importer.Edges[i].ToID = 0
			}
		}
	}
	delete(g.reverse, id)
	delete(g.byPath, node.Path)
}

// FormerImporters returns the ids of nodes that imported path immediately
// before it was removed via RemoveNode, or nil if path was never removed
// from this Graph. It exists so the affected engine can still seed from a
// deleted file's last known position in the graph.
func (g *Graph) FormerImporters(path string) []int {
	return g.tombstones[path]
}

// Importers returns the ids of nodes that directly import id, ordered
// lexicographically by path rather than by internal id (assignment order),
// so that any traversal built on top of Importers — BFS shortest-path tie
// breaks, DFS enumeration order — is deterministic and matches spec.md's
// "lexicographic on node path" tie-break rule regardless of the order files
// were discovered in.
func (g *Graph) Importers(id int) []int {
	set := g.reverse[id]
	result := make([]int, 0, len(set))
	for importer := range set {
		result = append(result, importer)
	}
	sort.Slice(result, func(i, j int) bool {
		return g.nodes[result[i]].Path < g.nodes[result[j]].Path
	})
	return result
}

// TransitiveDependents performs a cycle-safe BFS over the reverse adjacency
// from every id in seeds, returning every reached id including the seeds
// themselves (spec.md §4.6 "Reverse traversal").
func (g *Graph) TransitiveDependents(seeds []int) []int {
	visited := map[int]bool{}
	queue := append([]int{}, seeds...)
	for _, s := range seeds {
		visited[s] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, importer := range g.Importers(id) {
			if !visited[importer] {
				visited[importer] = true
				queue = append(queue, importer)
			}
		}
	}
	result := make([]int, 0, len(visited))
	for id := range visited {
		result = append(result, id)
	}
	sort.Ints(result)
	return result
}

// DetectCycles finds import cycles among resolved, non-external edges,
// adapted from package_graph.go's DFS + recursion-stack approach.
func (g *Graph) DetectCycles() [][]int {
	var cycles [][]int
	visited := map[int]bool{}
	onStack := map[int]bool{}

	var dfs func(id int, path []int) []int
	dfs = func(id int, path []int) []int {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, edge := range g.nodes[id].Edges {
			if edge.Status != EdgeResolved {
				continue
			}
			target := edge.ToID
			if !visited[target] {
				if cycle := dfs(target, path); cycle != nil {
					return cycle
				}
			} else if onStack[target] {
				for i, p := range path {
					if p == target {
						return append([]int{}, path[i:]...)
					}
				}
			}
		}

		onStack[id] = false
		return nil
	}

	for _, node := range g.nodes {
		if !visited[node.ID] {
			if cycle := dfs(node.ID, nil); cycle != nil {
				cycles = append(cycles, cycle)
			}
		}
	}
	return cycles
}
