package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mamaar/scopetest/internal/affected"
	"github.com/mamaar/scopetest/internal/cli"
	"github.com/mamaar/scopetest/internal/depgraph"
)

// WhyCommand explains the import chain connecting a test back to each file
// in the current change set, per spec.md §6's single-positional-arg
// `why <test-path>` surface: the "source" side comes from the same VCS diff
// affected/coverage use, not a second CLI argument. With --all, every
// simple path is printed instead of just the shortest one.
func WhyCommand(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: scopetest why <test-file>")
		os.Exit(2)
	}

	ctx := cli.RootContext
	p := loadPipeline(ctx)

	testPath, err := filepath.Abs(args[0])
	if err != nil {
		fail(err)
	}

	changed := resolveChangedFiles(ctx, p.ws)
	finder := affected.New(p.graph)
	all := *cli.GlobalFlags.All

	found := false
	for _, sourcePath := range changed {
		if all {
			paths, ok := finder.WhyAll(sourcePath, testPath, 0)
			if !ok {
				continue
			}
			found = true
			for _, steps := range paths {
				printChain(testPath, sourcePath, steps)
			}
			continue
		}
		steps, ok := finder.Why(sourcePath, testPath)
		if !ok {
			continue
		}
		found = true
		printChain(testPath, sourcePath, steps)
	}

	if !found {
		fmt.Printf("no import chain found from %s to any changed file\n", testPath)
		os.Exit(1)
	}
}

func printChain(testPath, sourcePath string, steps []affected.Step) {
	if len(steps) == 0 {
		fmt.Printf("%s is itself a changed file\n", testPath)
		return
	}
	for _, step := range steps {
		fmt.Printf("%s\n  --[%s]--> %s\n", step.From, kindLabel(step.Kind), step.To)
	}
}

func kindLabel(kind depgraph.EdgeKind) string {
	switch kind {
	case depgraph.Static:
		return "import"
	case depgraph.Dynamic:
		return "dynamic import"
	case depgraph.Require:
		return "require"
	case depgraph.ReExportAll:
		return "export *"
	case depgraph.ReExportNamed:
		return "re-export"
	case depgraph.TypeOnly:
		return "type-only import"
	default:
		return "import"
	}
}
