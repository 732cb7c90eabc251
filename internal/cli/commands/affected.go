package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mamaar/scopetest/internal/affected"
	"github.com/mamaar/scopetest/internal/cli"
	"github.com/mamaar/scopetest/internal/execrunner"
	"github.com/mamaar/scopetest/internal/output"
)

// AffectedCommand prints the tests reachable from the current change set.
func AffectedCommand(args []string) {
	start := time.Now()
	ctx := cli.RootContext
	p := loadPipeline(ctx)

	changed := resolveChangedFiles(ctx, p.ws)
	finder := affected.New(p.graph)
	res := finder.FindAffected(changed, effectiveExpandBarrels(p.ws))

	sourceMode := *cli.GlobalFlags.Sources
	primary := res.Tests
	if sourceMode {
		primary = res.Sources
	}
	fallback := affected.ThresholdExceeded(len(primary), *cli.GlobalFlags.Threshold)

	format, err := output.ParseFormat(*cli.GlobalFlags.Format)
	if err != nil {
		fail(err)
	}

	result := output.Result{
		Tests:      res.Tests,
		Sources:    res.Sources,
		SourceMode: sourceMode,
		Fallback:   fallback,
		Stats: output.Stats{
			RunID:         uuid.NewString(),
			ChangedFiles:  len(changed),
			AffectedFiles: len(res.Tests) + len(res.Sources),
			AffectedTests: len(res.Tests),
			GraphNodes:    p.graph.NodeCount(),
			DurationMs:    time.Since(start).Milliseconds(),
			CacheHit:      p.cacheHit,
		},
	}

	rendered, err := output.Render(result, format)
	if err != nil {
		fail(err)
	}
	fmt.Println(rendered)

	if *cli.GlobalFlags.Exec != "" {
		if fallback {
			fmt.Fprintln(os.Stderr, "warning: --threshold fallback triggered, skipping --exec (engine does not enumerate the full test set)")
			return
		}
		runExec(ctx, res.Tests)
	}
}

func runExec(ctx context.Context, tests []string) {
	mode := execrunner.Joined
	if *cli.GlobalFlags.ExecPerFile {
		mode = execrunner.PerFile
	}
	outcomes, err := execrunner.Run(ctx, tests, execrunner.Options{
		Template: *cli.GlobalFlags.Exec,
		Mode:     mode,
		FailFast: *cli.GlobalFlags.FailFast,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	failed := false
	for _, outcome := range outcomes {
		if outcome.ExitCode != 0 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
