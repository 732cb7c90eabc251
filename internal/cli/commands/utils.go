package commands

import (
	"context"
	"encoding/json"
	"errors"
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/mamaar/scopetest/internal/cachestore"
	"github.com/mamaar/scopetest/internal/cli"
	"github.com/mamaar/scopetest/internal/config"
	"github.com/mamaar/scopetest/internal/depgraph"
	"github.com/mamaar/scopetest/internal/resolve"
	"github.com/mamaar/scopetest/internal/scan"
	"github.com/mamaar/scopetest/internal/scopeerr"
	"github.com/mamaar/scopetest/internal/vcs"
	"github.com/mamaar/scopetest/internal/workspace"
)

// pipeline bundles the loaded state every subcommand starts from.
type pipeline struct {
	ws       *workspace.Snapshot
	graph    *depgraph.Graph
	cacheHit bool
}

// loadPipeline resolves the workspace root, loads its Snapshot, and either
// loads a valid cache or rebuilds the graph from scratch, per spec.md §4.5.
func loadPipeline(ctx context.Context) *pipeline {
	root, err := workspace.FindRoot(*cli.GlobalFlags.Root)
	if err != nil {
		fail(err)
	}

	ws, err := workspace.Load(root)
	if err != nil {
		fail(err)
	}

	store := cachestore.New(root)
	configHash := hashConfig(ws.Config)

	var graph *depgraph.Graph
	cacheHit := false
	if !*cli.GlobalFlags.NoCache && ws.Config.CacheEnabled {
		if loaded, err := store.Load(configHash); err == nil && loaded != nil {
			graph = loaded
			cacheHit = true
		}
	}

	if graph == nil {
		graph = buildGraph(ctx, ws)
		if ws.Config.CacheEnabled {
			if err := store.Save(graph, configHash); err != nil && *cli.GlobalFlags.Verbose {
				fmt.Fprintf(os.Stderr, "warning: failed to persist cache: %v\n", err)
			}
		}
	} else {
		reconcile(ctx, ws, graph)
	}

	return &pipeline{ws: ws, graph: graph, cacheHit: cacheHit}
}

// pendingEdge is a scanned-and-resolved import, not yet wired into the
// graph (resolution targets are paths, not node ids, until merge time).
type pendingEdge struct {
	kind depgraph.EdgeKind
	span [2]uint32
	spec string
	res  resolve.Resolution
}

// fileScan is the independent, side-effect-free result of scanning one
// file: safe to compute on any worker goroutine, since it touches neither
// the shared graph nor any other file's state.
type fileScan struct {
	path           string
	contentHash    uint64
	mtimeNs        int64
	classification depgraph.Classification
	isBarrel       bool
	parseStatus    depgraph.ParseStatus
	edges          []pendingEdge
	skip           bool // file vanished or became unreadable between enumeration and scan
}

// scanFile reads, hashes, parses, and resolves one file's imports. It does
// not touch the shared graph, so callers can run it from a worker pool.
func scanFile(ctx context.Context, ws *workspace.Snapshot, path string) fileScan {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileScan{path: path, skip: true}
	}
	info, statErr := os.Stat(path)

	fs := fileScan{path: path, contentHash: cachestore.ContentHash(data)}
	if statErr == nil {
		fs.mtimeNs = info.ModTime().UnixNano()
	}
	fs.classification = depgraph.Source
	if ws.Config.IsTestFile(path) {
		fs.classification = depgraph.Test
	}

	result, err := scan.ExtractImports(ctx, data, path)
	if err != nil {
		fs.parseStatus = depgraph.Unsupported
		return fs
	}
	fs.isBarrel = result.IsPureBarrel
	fs.parseStatus = depgraph.Ok
	if result.SyntaxErr {
		fs.parseStatus = depgraph.SyntaxError
	}

	fromDir := filepath.Dir(path)
	fs.edges = make([]pendingEdge, 0, len(result.Imports))
	for _, ref := range result.Imports {
		res := resolve.Resolve(fromDir, ref.Specifier, ws)
		if ref.Unresolvable {
			res = resolve.Resolution{Kind: resolve.Unresolved, Reason: "dynamic specifier is not a string literal"}
		}
		fs.edges = append(fs.edges, pendingEdge{
			kind: ref.Kind,
			span: ref.Span,
			spec: ref.Specifier,
			res:  res,
		})
	}
	return fs
}

// mergeFileScan applies a fileScan to the graph. Must run single-threaded:
// AddNode/SetEdges mutate the shared node arena and reverse index.
func mergeFileScan(graph *depgraph.Graph, fs fileScan) {
	if fs.skip {
		return
	}
	id := graph.AddNode(fs.path)
	node := graph.Node(id)
	node.ContentHash = fs.contentHash
	node.ModTimeUnixNs = fs.mtimeNs
	node.Classification = fs.classification
	node.ParseStatus = fs.parseStatus

	// A file that regressed from parseable to SyntaxError (or that ExtractImports
	// couldn't handle at all, Unsupported) carries no trustworthy edge list from
	// this scan: fs.edges is empty or best-effort from a partial tree. Leave the
	// node's prior edges and barrel flag as they were rather than overwriting a
	// known-good graph with an incomplete one, per spec.md §4.2/§9's "retain its
	// last-known edges from the cache" on a parse regression.
	if fs.parseStatus != depgraph.Ok {
		return
	}
	node.IsBarrel = fs.isBarrel

	edges := make([]depgraph.Edge, 0, len(fs.edges))
	for _, pe := range fs.edges {
		edge := depgraph.Edge{Kind: pe.kind, Span: pe.span, Specifier: pe.spec}
		switch pe.res.Kind {
		case resolve.Resolved:
			edge.Status = depgraph.EdgeResolved
			edge.ToID = graph.AddNode(pe.res.Path)
		case resolve.External:
			edge.Status = depgraph.EdgeExternal
			edge.PackageName = pe.res.PackageName
		default:
			edge.Status = depgraph.EdgeUnresolved
		}
		edges = append(edges, edge)
	}
	graph.SetEdges(id, edges)
}

// scanFiles runs scanFile across paths using a bounded worker pool sized to
// runtime.NumCPU, grounded on pkg/analysis/parser.go's ParseWorkspace: file
// discovery already happened sequentially in workspace.Load, so only the
// CPU-bound parse+resolve stage is parallelized here.
func scanFiles(ctx context.Context, ws *workspace.Snapshot, paths []string) []fileScan {
	results := make([]fileScan, len(paths))
	workers := runtime.NumCPU()
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers == 0 {
		return results
	}

	indices := make(chan int, len(paths))
	for i := range paths {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results[i] = scanFile(ctx, ws, paths[i])
			}
		}()
	}
	wg.Wait()
	return results
}

// buildGraph parses and resolves every file in ws.Files from scratch.
func buildGraph(ctx context.Context, ws *workspace.Snapshot) *depgraph.Graph {
	graph := depgraph.New()
	for _, fs := range scanFiles(ctx, ws, ws.Files) {
		mergeFileScan(graph, fs)
	}
	return graph
}

// reconcile re-scans any file whose mtime has changed since the cache was
// written and whose content hash then confirms a change, per SPEC_FULL.md
// §3.2's mtime pre-filter with content-hash ground truth, and drops nodes
// for files that no longer exist.
func reconcile(ctx context.Context, ws *workspace.Snapshot, graph *depgraph.Graph) {
	current := map[string]bool{}
	var dirty []string
	for _, path := range ws.Files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		current[path] = true
		id := graph.AddNode(path)
		node := graph.Node(id)
		if node.ModTimeUnixNs == info.ModTime().UnixNano() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if cachestore.ContentHash(data) == node.ContentHash && node.ModTimeUnixNs != 0 {
			node.ModTimeUnixNs = info.ModTime().UnixNano()
			continue
		}
		dirty = append(dirty, path)
	}

	for _, fs := range scanFiles(ctx, ws, dirty) {
		mergeFileScan(graph, fs)
	}

	for _, node := range graph.Nodes() {
		if !current[node.Path] {
			graph.RemoveNode(node.ID)
		}
	}
}

// effectiveExpandBarrels resolves --expand-barrels the same way --base
// resolves against Config.DefaultBase: the config file's expandBarrels
// supplies the project's default, and an explicit --expand-barrels/
// -expand-barrels=false on the command line overrides it. flag.Bool can't
// tell "left at its default" apart from "explicitly set to true", so this
// walks the set of flags flag.Parse actually saw.
func effectiveExpandBarrels(ws *workspace.Snapshot) bool {
	explicit := false
	goflag.Visit(func(f *goflag.Flag) {
		if f.Name == "expand-barrels" {
			explicit = true
		}
	})
	if explicit {
		return *cli.GlobalFlags.ExpandBarrels
	}
	return ws.Config.ExpandBarrels
}

// hashConfig produces a stable fingerprint of the resolved config, so a
// cache built under a different .scopetestrc.json is never trusted.
func hashConfig(cfg config.Config) uint64 {
	data, _ := json.Marshal(cfg)
	return cachestore.ContentHash(data)
}

// resolveChangedFiles diffs the workspace per the --base/--since flags.
func resolveChangedFiles(ctx context.Context, ws *workspace.Snapshot) []string {
	detector, err := vcs.NewDetector(ctx, ws.Root)
	if err != nil {
		fail(err)
	}

	base := *cli.GlobalFlags.Base
	since := *cli.GlobalFlags.Since

	var changes vcs.ChangeSet
	switch {
	case since != "":
		changes, err = detector.DiffSince(ctx, since)
	case base != "":
		changes, err = detector.Diff(ctx, base)
	default:
		defaultBase := ws.Config.DefaultBase
		if defaultBase == "" {
			defaultBase, err = detector.DefaultBase(ctx)
			if err != nil {
				fail(err)
			}
		}
		changes, err = detector.Diff(ctx, defaultBase)
	}
	if err != nil {
		fail(err)
	}

	paths := make([]string, 0, len(changes.AllChanged()))
	for _, rel := range changes.AllChanged() {
		paths = append(paths, filepath.Join(ws.Root, rel))
	}
	return paths
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitCodeFor(err))
}

// exitCodeFor maps err onto the process exit codes spec.md §6/§7 defines,
// falling back to 1 for anything not raised through scopeerr.
func exitCodeFor(err error) int {
	var scopeErr *scopeerr.Error
	if errors.As(err, &scopeErr) {
		return scopeerr.ExitCode(scopeErr.Kind)
	}
	return 1
}
