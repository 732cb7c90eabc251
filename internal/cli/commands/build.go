package commands

import (
	"fmt"

	"github.com/mamaar/scopetest/internal/cachestore"
	"github.com/mamaar/scopetest/internal/cli"
	"github.com/mamaar/scopetest/internal/workspace"
)

// BuildCommand scans the workspace and persists the dependency graph cache,
// so a later affected/why/coverage invocation can load it instead of
// rebuilding from scratch.
func BuildCommand(args []string) {
	ctx := cli.RootContext
	root, err := workspace.FindRoot(*cli.GlobalFlags.Root)
	if err != nil {
		fail(err)
	}
	ws, err := workspace.Load(root)
	if err != nil {
		fail(err)
	}
	graph := buildGraph(ctx, ws)
	if err := cachestore.New(root).Save(graph, hashConfig(ws.Config)); err != nil {
		fail(err)
	}
	fmt.Printf("built graph: %d files, %d edges\n", graph.NodeCount(), graph.EdgeCount())
}
