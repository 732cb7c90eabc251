// Package affected is the Affected Engine (spec.md §4, §5): it maps a set
// of changed file paths onto the transitively-dependent test files, and can
// explain the shortest chain of edges connecting a test back to a source,
// grounded on original_source/src/affected/mod.rs's AffectedTestFinder.
package affected

import (
	"sort"
	"strings"

	"github.com/mamaar/scopetest/internal/depgraph"
)

// Result is the outcome of finding affected files for a change set.
type Result struct {
	Tests   []string
	Sources []string
}

// ThresholdExceeded reports whether count (the size of the list the caller
// is about to render) exceeds threshold. threshold<=0 disables the check.
// Per spec.md §4.6 point 5, the engine only raises this signal — enumerating
// "run everything" is the formatter's job, not this package's.
func ThresholdExceeded(count, threshold int) bool {
	return threshold > 0 && count > threshold
}

// Totals summarizes Result against the whole graph, for stats reporting.
type Totals struct {
	TotalTests     int
	AffectedTests  int
	TotalSources   int
	AffectedSources int
}

// Finder answers affected-set and explanation queries against one graph.
type Finder struct {
	graph *depgraph.Graph
}

// New returns a Finder over graph.
func New(graph *depgraph.Graph) *Finder {
	return &Finder{graph: graph}
}

// FindAffected seeds a transitive-dependents traversal from changedPaths and
// splits the reachable set into tests and non-test sources, excluding
// anything under node_modules, per original_source's find_affected.
//
// expandBarrels controls what a barrel file (a pure re-export module) looks
// like in the returned Sources list: when true (the --expand-barrels
// default), a barrel is replaced by the concrete, non-barrel files it
// transitively re-exports, so a caller feeding Sources to a build tool sees
// real compilation units rather than an index file; when false the barrel's
// own path is reported as-is. Tests are never expanded — a test either
// imports the barrel or it doesn't.
func (f *Finder) FindAffected(changedPaths []string, expandBarrels bool) Result {
	seeds := make([]int, 0, len(changedPaths))
	for _, path := range changedPaths {
		if node, ok := f.graph.NodeByPath(path); ok {
			seeds = append(seeds, node.ID)
			continue
		}
		// path is gone from the graph, most likely a deletion. Its former
		// importers are seeded directly (spec.md §4.6 point 1): the deleted
		// node itself can no longer be queried, but whoever used to import
		// it still needs to land in the affected set.
		seeds = append(seeds, f.graph.FormerImporters(path)...)
	}
	if len(seeds) == 0 {
		return Result{}
	}

	reached := f.graph.TransitiveDependents(seeds)

	var res Result
	sourceIDs := map[int]bool{}
	for _, id := range reached {
		node := f.graph.Node(id)
		if node == nil {
			continue
		}
		if strings.Contains(filepathToSlash(node.Path), "node_modules") {
			continue
		}
		if node.Classification == depgraph.Test {
			res.Tests = append(res.Tests, node.Path)
		} else {
			sourceIDs[id] = true
		}
	}

	if expandBarrels {
		res.Sources = f.expandBarrelSources(sourceIDs)
	} else {
		for id := range sourceIDs {
			res.Sources = append(res.Sources, f.graph.Node(id).Path)
		}
	}

	sort.Strings(res.Tests)
	sort.Strings(res.Sources)
	return res
}

// expandBarrelSources replaces every barrel node in ids with the concrete
// files reachable by following its resolved edges, recursively (a barrel
// may re-export another barrel), and returns the deduplicated result.
func (f *Finder) expandBarrelSources(ids map[int]bool) []string {
	out := map[string]bool{}
	var walk func(id int, visiting map[int]bool)
	walk = func(id int, visiting map[int]bool) {
		node := f.graph.Node(id)
		if node == nil || visiting[id] {
			return
		}
		if !node.IsBarrel {
			out[node.Path] = true
			return
		}
		visiting[id] = true
		for _, edge := range node.Edges {
			if edge.Status == depgraph.EdgeResolved {
				walk(edge.ToID, visiting)
			}
		}
		delete(visiting, id)
	}
	for id := range ids {
		walk(id, map[int]bool{})
	}
	result := make([]string, 0, len(out))
	for path := range out {
		result = append(result, path)
	}
	return result
}

// Totals counts how many of the graph's tests and non-test sources appear
// in res, for the coverage-ratio stats spec.md §6 requires.
func (f *Finder) Totals(res Result) Totals {
	var t Totals
	for _, node := range f.graph.Nodes() {
		if node.Classification == depgraph.Test {
			t.TotalTests++
		} else {
			t.TotalSources++
		}
	}
	t.AffectedTests = len(res.Tests)
	t.AffectedSources = len(res.Sources)
	return t
}

// Step is one hop in a Why explanation: the edge from From to To, and the
// import construct that produced it.
type Step struct {
	From string
	To   string
	Kind depgraph.EdgeKind
	Span [2]uint32
}

// arrival records, for one BFS-discovered node, the importer id that found
// it and the edge connecting them.
type arrival struct {
	via  int // importer id that discovered this node, -1 for the start node
	edge depgraph.Edge
}

// Why finds the shortest import-edge path from sourcePath to testPath via a
// BFS over the forward (importer -> importee) direction reversed:
// since edges point importer->importee, a chain from source to test walks
// importer edges backwards, so this BFS runs over the same reverse
// adjacency TransitiveDependents uses, tracking the edge that discovered
// each node so the path can be reconstructed.
func (f *Finder) Why(sourcePath, testPath string) ([]Step, bool) {
	sourceNode, ok := f.graph.NodeByPath(sourcePath)
	if !ok {
		return nil, false
	}
	testNode, ok := f.graph.NodeByPath(testPath)
	if !ok {
		return nil, false
	}

	visited := map[int]arrival{sourceNode.ID: {via: -1}}
	queue := []int{sourceNode.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == testNode.ID {
			return reconstructPath(f.graph, visited, id), true
		}
		for _, importerID := range f.graph.Importers(id) {
			if _, seen := visited[importerID]; seen {
				continue
			}
			edge, ok := edgeTo(f.graph.Node(importerID), id)
			if !ok {
				continue
			}
			visited[importerID] = arrival{via: id, edge: edge}
			queue = append(queue, importerID)
		}
	}
	return nil, false
}

// reconstructPath walks the arrival chain from endID (the test) back to the
// BFS start (the source), appending one Step per hop in that order: for
// each node, visited[node].via is what it imports and visited[node].edge is
// the real importer->importee edge to it, so the walk naturally produces
// steps in test-to-source reading order without needing a final reverse.
func reconstructPath(graph *depgraph.Graph, visited map[int]arrival, endID int) []Step {
	var steps []Step
	id := endID
	for {
		arr := visited[id]
		if arr.via == -1 {
			break
		}
		from := graph.Node(id)
		to := graph.Node(arr.via)
		steps = append(steps, Step{
			From: from.Path,
			To:   to.Path,
			Kind: arr.edge.Kind,
			Span: arr.edge.Span,
		})
		id = arr.via
	}
	return steps
}

// WhyAll enumerates every simple import path from sourcePath to testPath,
// up to maxDepth hops (0 defaults to the node count, a safe upper bound on
// the graph's diameter), via depth-bounded DFS with a per-path visited set
// per spec.md §4.6's "--all" mode. Paths are returned in the same
// test-to-source step order Why uses, and in the deterministic order the
// DFS discovers them, itself lexicographic on path since it expands
// candidates through Importers.
func (f *Finder) WhyAll(sourcePath, testPath string, maxDepth int) ([][]Step, bool) {
	sourceNode, ok := f.graph.NodeByPath(sourcePath)
	if !ok {
		return nil, false
	}
	testNode, ok := f.graph.NodeByPath(testPath)
	if !ok {
		return nil, false
	}
	if maxDepth <= 0 {
		maxDepth = f.graph.NodeCount()
	}

	var paths [][]Step
	visited := map[int]bool{sourceNode.ID: true}

	var walk func(id int, steps []Step)
	walk = func(id int, steps []Step) {
		if id == testNode.ID {
			paths = append(paths, reverseSteps(steps))
			return
		}
		if len(steps) >= maxDepth {
			return
		}
		for _, importerID := range f.graph.Importers(id) {
			if visited[importerID] {
				continue
			}
			edge, ok := edgeTo(f.graph.Node(importerID), id)
			if !ok {
				continue
			}
			visited[importerID] = true
			walk(importerID, append(steps, Step{
				From: f.graph.Node(importerID).Path,
				To:   f.graph.Node(id).Path,
				Kind: edge.Kind,
				Span: edge.Span,
			}))
			delete(visited, importerID)
		}
	}
	walk(sourceNode.ID, nil)

	if len(paths) == 0 {
		return nil, false
	}
	return paths, true
}

// reverseSteps flips a source-to-test step sequence (the order WhyAll's DFS
// naturally discovers, walking outward from the source) into the
// test-to-source order Why/reconstructPath use.
func reverseSteps(steps []Step) []Step {
	rev := make([]Step, len(steps))
	for i, s := range steps {
		rev[len(steps)-1-i] = s
	}
	return rev
}

func edgeTo(node *depgraph.FileNode, targetID int) (depgraph.Edge, bool) {
	if node == nil {
		return depgraph.Edge{}, false
	}
	for _, e := range node.Edges {
		if e.Status == depgraph.EdgeResolved && e.ToID == targetID {
			return e, true
		}
	}
	return depgraph.Edge{}, false
}

func filepathToSlash(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
