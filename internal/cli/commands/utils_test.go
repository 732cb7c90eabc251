package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mamaar/scopetest/internal/config"
	"github.com/mamaar/scopetest/internal/depgraph"
	"github.com/mamaar/scopetest/internal/resolve"
	"github.com/mamaar/scopetest/internal/scopeerr"
	"github.com/mamaar/scopetest/internal/workspace"
)

func write(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig() config.Config {
	return config.Config{
		TestPatterns: []string{"**/*.test.ts"},
		Extensions:   []string{".ts"},
		CacheEnabled: true,
	}
}

func buildSnapshot(t *testing.T, root string) *workspace.Snapshot {
	t.Helper()
	ws, err := workspace.Load(root)
	if err != nil {
		t.Fatalf("workspace.Load failed: %v", err)
	}
	return ws
}

func TestScanFileClassifiesTestFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	write(t, filepath.Join(root, "src", "a.ts"), "export const a = 1")
	write(t, filepath.Join(root, "src", "a.test.ts"), "import { a } from './a'")

	ws := buildSnapshot(t, root)

	aScan := scanFile(context.Background(), ws, filepath.Join(root, "src", "a.ts"))
	if aScan.classification != depgraph.Source {
		t.Errorf("expected a.ts to be classified Source, got %v", aScan.classification)
	}

	testScan := scanFile(context.Background(), ws, filepath.Join(root, "src", "a.test.ts"))
	if testScan.classification != depgraph.Test {
		t.Errorf("expected a.test.ts to be classified Test, got %v", testScan.classification)
	}
	if len(testScan.edges) != 1 || testScan.edges[0].spec != "./a" {
		t.Errorf("expected a.test.ts to have one edge to ./a, got %+v", testScan.edges)
	}
	if testScan.edges[0].res.Kind != resolve.Resolved {
		t.Errorf("expected ./a to resolve to a sibling file, got %+v", testScan.edges[0].res)
	}
}

func TestScanFileSkipsUnreadableFile(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	ws := buildSnapshot(t, root)

	result := scanFile(context.Background(), ws, filepath.Join(root, "does-not-exist.ts"))
	if !result.skip {
		t.Error("expected scanFile to report skip for a missing file")
	}
}

func TestMergeFileScanPopulatesGraphAndEdges(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	write(t, filepath.Join(root, "src", "a.ts"), "export const a = 1")
	write(t, filepath.Join(root, "src", "b.ts"), "import { a } from './a'")
	ws := buildSnapshot(t, root)

	graph := depgraph.New()
	for _, fs := range scanFiles(context.Background(), ws, ws.Files) {
		mergeFileScan(graph, fs)
	}

	bNode, ok := graph.NodeByPath(filepath.Join(root, "src", "b.ts"))
	if !ok {
		t.Fatal("expected b.ts to be present in the graph")
	}
	if len(bNode.Edges) != 1 || bNode.Edges[0].Status != depgraph.EdgeResolved {
		t.Fatalf("expected b.ts to have one resolved edge, got %+v", bNode.Edges)
	}

	aNode := graph.Node(bNode.Edges[0].ToID)
	if aNode.Path != filepath.Join(root, "src", "a.ts") {
		t.Errorf("expected b.ts's edge to resolve to a.ts, got %s", aNode.Path)
	}
}

// TestMergeFileScanRetainsEdgesAcrossSyntaxErrorRegression exercises
// spec.md §4.2/§9's rule that a file regressing from parseable to
// SyntaxError keeps its last-known edges rather than being overwritten
// with whatever a partial-tree walk best-effort recovered.
func TestMergeFileScanRetainsEdgesAcrossSyntaxErrorRegression(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	write(t, filepath.Join(root, "src", "a.ts"), "export const a = 1")
	write(t, filepath.Join(root, "src", "b.ts"), "import { a } from './a'")
	ws := buildSnapshot(t, root)

	graph := depgraph.New()
	bPath := filepath.Join(root, "src", "b.ts")
	for _, fs := range scanFiles(context.Background(), ws, ws.Files) {
		mergeFileScan(graph, fs)
	}

	before, ok := graph.NodeByPath(bPath)
	if !ok || len(before.Edges) != 1 {
		t.Fatalf("expected b.ts to start with one edge, got %+v", before)
	}
	wantEdge := before.Edges[0]
	beforeHash := before.ContentHash

	// A rescan that regresses to SyntaxError with an empty best-effort edge
	// list must not wipe out the edge recorded above.
	mergeFileScan(graph, fileScan{
		path:           bPath,
		contentHash:    beforeHash + 1,
		classification: depgraph.Test,
		parseStatus:    depgraph.SyntaxError,
	})

	after, ok := graph.NodeByPath(bPath)
	if !ok {
		t.Fatal("expected b.ts to still be present after the syntax-error rescan")
	}
	if after.ParseStatus != depgraph.SyntaxError {
		t.Errorf("expected ParseStatus to record the regression, got %v", after.ParseStatus)
	}
	if after.ContentHash != beforeHash+1 {
		t.Error("expected ContentHash to still be refreshed on a syntax-error rescan")
	}
	if len(after.Edges) != 1 || after.Edges[0] != wantEdge {
		t.Errorf("expected b.ts's prior edge to survive the syntax-error regression, got %+v", after.Edges)
	}
}

func TestMergeFileScanRetainsEdgesForUnsupportedParse(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	write(t, filepath.Join(root, "src", "a.ts"), "export const a = 1")
	write(t, filepath.Join(root, "src", "b.ts"), "import { a } from './a'")
	ws := buildSnapshot(t, root)

	graph := depgraph.New()
	bPath := filepath.Join(root, "src", "b.ts")
	for _, fs := range scanFiles(context.Background(), ws, ws.Files) {
		mergeFileScan(graph, fs)
	}
	before, _ := graph.NodeByPath(bPath)
	wantEdges := before.Edges

	mergeFileScan(graph, fileScan{path: bPath, contentHash: before.ContentHash, parseStatus: depgraph.Unsupported})

	after, _ := graph.NodeByPath(bPath)
	if len(after.Edges) != len(wantEdges) {
		t.Errorf("expected edges to survive an Unsupported rescan, got %+v", after.Edges)
	}
}

func TestBuildGraphCoversAllFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	write(t, filepath.Join(root, "src", "a.ts"), "export const a = 1")
	write(t, filepath.Join(root, "src", "b.ts"), "import { a } from './a'")
	ws := buildSnapshot(t, root)

	graph := buildGraph(context.Background(), ws)
	if graph.NodeCount() < len(ws.Files) {
		t.Errorf("expected at least %d nodes, got %d", len(ws.Files), graph.NodeCount())
	}
}

func TestReconcileSkipsUnchangedAndRescansModified(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	write(t, filepath.Join(root, "src", "a.ts"), "export const a = 1")
	ws := buildSnapshot(t, root)

	graph := buildGraph(context.Background(), ws)
	aPath := filepath.Join(root, "src", "a.ts")
	before, _ := graph.NodeByPath(aPath)
	beforeHash := before.ContentHash

	// Reconciling with nothing changed should be a no-op.
	reconcile(context.Background(), ws, graph)
	after, _ := graph.NodeByPath(aPath)
	if after.ContentHash != beforeHash {
		t.Error("expected reconcile to leave an unchanged file's hash alone")
	}

	// Modify the file's content (and bump mtime) and reconcile again.
	write(t, aPath, "export const a = 2; export const extra = 3;")
	future := time.Unix(0, after.ModTimeUnixNs).Add(time.Second)
	if err := os.Chtimes(aPath, future, future); err != nil {
		t.Fatal(err)
	}
	reconcile(context.Background(), ws, graph)

	updated, _ := graph.NodeByPath(aPath)
	if updated.ContentHash == beforeHash {
		t.Error("expected reconcile to pick up the new content hash after a real change")
	}
}

func TestReconcileRemovesDeletedFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "package.json"), `{"name":"app"}`)
	write(t, filepath.Join(root, "src", "a.ts"), "export const a = 1")
	ws := buildSnapshot(t, root)
	graph := buildGraph(context.Background(), ws)

	aPath := filepath.Join(root, "src", "a.ts")
	if err := os.Remove(aPath); err != nil {
		t.Fatal(err)
	}
	// ws.Files still lists the deleted path; reconcile must drop its node.
	reconcile(context.Background(), ws, graph)

	if _, ok := graph.NodeByPath(aPath); ok {
		t.Error("expected reconcile to remove the node for a deleted file")
	}
}

func TestHashConfigIsStableAndSensitiveToChange(t *testing.T) {
	a := hashConfig(testConfig())
	b := hashConfig(testConfig())
	if a != b {
		t.Error("expected hashConfig to be deterministic for identical config")
	}

	changed := testConfig()
	changed.DefaultBase = "develop"
	if hashConfig(changed) == a {
		t.Error("expected hashConfig to change when the config changes")
	}
}

func TestExitCodeFor(t *testing.T) {
	if code := exitCodeFor(scopeerr.New(scopeerr.Configuration, "bad config")); code != 2 {
		t.Errorf("expected exit code 2 for Configuration errors, got %d", code)
	}
	if code := exitCodeFor(errors.New("plain error")); code != 1 {
		t.Errorf("expected exit code 1 for a non-scopeerr error, got %d", code)
	}
}
