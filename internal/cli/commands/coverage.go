package commands

import (
	"fmt"
	"os"

	"github.com/mamaar/scopetest/internal/affected"
	"github.com/mamaar/scopetest/internal/cli"
)

// CoverageCommand reports what fraction of the workspace's tests the
// current change set affects, and fails the run if --coverage-threshold is
// set and that ratio falls below it.
func CoverageCommand(args []string) {
	ctx := cli.RootContext
	p := loadPipeline(ctx)

	changed := resolveChangedFiles(ctx, p.ws)
	finder := affected.New(p.graph)
	res := finder.FindAffected(changed, effectiveExpandBarrels(p.ws))
	totals := finder.Totals(res)

	ratio := 0.0
	if totals.TotalTests > 0 {
		ratio = float64(totals.AffectedTests) / float64(totals.TotalTests)
	}

	fmt.Printf("changed files:   %d\n", len(changed))
	fmt.Printf("affected tests:  %d / %d (%.1f%%)\n", totals.AffectedTests, totals.TotalTests, ratio*100)
	fmt.Printf("affected sources: %d / %d\n", totals.AffectedSources, totals.TotalSources)

	threshold := *cli.GlobalFlags.CoverageMin
	if threshold > 0 && ratio < threshold {
		fmt.Fprintf(os.Stderr, "coverage %.1f%% below threshold %.1f%%\n", ratio*100, threshold*100)
		os.Exit(1)
	}
}
