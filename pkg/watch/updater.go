package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mamaar/scopetest/internal/affected"
	"github.com/mamaar/scopetest/internal/cachestore"
	"github.com/mamaar/scopetest/internal/depgraph"
	"github.com/mamaar/scopetest/internal/resolve"
	"github.com/mamaar/scopetest/internal/scan"
	"github.com/mamaar/scopetest/internal/workspace"
)

// GraphUpdater incrementally re-evaluates the affected set as files change,
// instead of rebuilding the whole dependency graph on every batch.
type GraphUpdater struct {
	ws     *workspace.Snapshot
	graph  *depgraph.Graph
	logger *slog.Logger
}

// NewUpdater builds a GraphUpdater over an already-populated graph.
func NewUpdater(ws *workspace.Snapshot, graph *depgraph.Graph, logger *slog.Logger) *GraphUpdater {
	return &GraphUpdater{ws: ws, graph: graph, logger: logger}
}

// HandleChanges re-scans every changed path and logs every test reachable
// from that batch.
func (u *GraphUpdater) HandleChanges(ctx context.Context, events []ChangeEvent) {
	start := time.Now()

	var changed []string
	for _, ev := range events {
		switch {
		case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			u.handleDelete(ev.Path)
		default:
			u.handleUpsert(ctx, ev.Path)
		}
		changed = append(changed, ev.Path)
	}

	finder := affected.New(u.graph)
	res := finder.FindAffected(changed, u.ws.Config.ExpandBarrels)

	u.logger.Info("batch complete",
		"files", len(events),
		"affectedTests", len(res.Tests),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	for _, test := range res.Tests {
		u.logger.Info("affected", "test", test)
	}
}

// handleUpsert re-scans a modified or newly created file and rewires its
// outgoing edges.
func (u *GraphUpdater) handleUpsert(ctx context.Context, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		u.handleDelete(path)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		u.logger.Error("upsert: read failed", "file", path, "err", err)
		return
	}

	id := u.graph.AddNode(path)
	node := u.graph.Node(id)
	node.ContentHash = cachestore.ContentHash(data)
	if info, err := os.Stat(path); err == nil {
		node.ModTimeUnixNs = info.ModTime().UnixNano()
	}
	node.Classification = depgraph.Source
	if u.ws.Config.IsTestFile(path) {
		node.Classification = depgraph.Test
	}

	result, err := scan.ExtractImports(ctx, data, path)
	if err != nil {
		node.ParseStatus = depgraph.Unsupported
		u.logger.Error("upsert: parse failed", "file", path, "err", err)
		return
	}
	node.ParseStatus = depgraph.Ok
	if result.SyntaxErr {
		node.ParseStatus = depgraph.SyntaxError
	}
	if node.ParseStatus != depgraph.Ok {
		// Retain the node's last-known edges and barrel flag rather than
		// wiring in whatever the partial tree recovered (spec.md §4.2/§9).
		u.logger.Info("upsert: retaining prior edges after parse regression", "file", path)
		return
	}
	node.IsBarrel = result.IsPureBarrel

	edges := make([]depgraph.Edge, 0, len(result.Imports))
	fromDir := filepath.Dir(path)
	for _, ref := range result.Imports {
		res := resolve.Resolve(fromDir, ref.Specifier, u.ws)
		if ref.Unresolvable {
			res = resolve.Resolution{Kind: resolve.Unresolved, Reason: "dynamic specifier is not a string literal"}
		}
		edge := depgraph.Edge{Kind: ref.Kind, Span: ref.Span, Specifier: ref.Specifier}
		switch res.Kind {
		case resolve.Resolved:
			edge.Status = depgraph.EdgeResolved
			edge.ToID = u.graph.AddNode(res.Path)
		case resolve.External:
			edge.Status = depgraph.EdgeExternal
			edge.PackageName = res.PackageName
		default:
			edge.Status = depgraph.EdgeUnresolved
		}
		edges = append(edges, edge)
	}
	u.graph.SetEdges(id, edges)
}

// handleDelete removes a file's node from the graph entirely, leaving any
// importer edges pointing at it Unresolved.
func (u *GraphUpdater) handleDelete(path string) {
	node, ok := u.graph.NodeByPath(path)
	if !ok {
		return
	}
	u.graph.RemoveNode(node.ID)
	u.logger.Info("delete: removed node", "file", path)
}

// Graph returns the graph being maintained, for test assertions.
func (u *GraphUpdater) Graph() *depgraph.Graph {
	return u.graph
}
