package cli

import "flag"

// Flags holds every global command line flag scopetest accepts.
type Flags struct {
	Version       *bool
	Root          *string
	Base          *string
	Since         *string
	Format        *string
	NoCache       *bool
	Verbose       *bool
	ExpandBarrels *bool
	Exec          *string
	ExecPerFile   *bool
	FailFast      *bool
	Threshold     *int
	CoverageMin   *float64
	Sources       *bool
	All           *bool
}

// GlobalFlags holds the parsed command line flags.
var GlobalFlags *Flags

// InitFlags registers every flag scopetest accepts. Root is registered
// under both -root (spec.md §6's canonical name) and -workspace (the
// pre-existing alias): both flags write into the same variable, so
// whichever one is passed on the command line wins.
func InitFlags() *Flags {
	var root string
	flag.StringVar(&root, "root", ".", "Path to the project root (defaults to current directory)")
	flag.StringVar(&root, "workspace", ".", "Alias for -root")

	return &Flags{
		Version:       flag.Bool("version", false, "Show version information"),
		Root:          &root,
		Base:          flag.String("base", "", "Base ref to diff against (defaults to the configured default base)"),
		Since:         flag.String("since", "", "Diff sinceRef..HEAD instead of comparing against a base branch"),
		Format:        flag.String("format", "paths", "Output format: paths, jest, vitest, json, or list"),
		NoCache:       flag.Bool("no-cache", false, "Ignore any cached dependency graph and rebuild from scratch"),
		Verbose:       flag.Bool("verbose", false, "Enable verbose diagnostic output"),
		ExpandBarrels: flag.Bool("expand-barrels", true, "Resolve pure barrel re-exports to their underlying source files"),
		Exec:          flag.String("exec", "", "Run this command template against affected tests, substituting {}"),
		ExecPerFile:   flag.Bool("exec-per-file", false, "Invoke --exec once per affected test instead of once with all paths joined"),
		FailFast:      flag.Bool("fail-fast", false, "Stop at the first --exec invocation that fails"),
		Threshold:     flag.Int("threshold", 0, "Max affected-test count before affected falls back to running everything"),
		CoverageMin:   flag.Float64("coverage-threshold", 0, "Minimum coverage ratio (0-1) required by the coverage command"),
		Sources:       flag.Bool("sources", false, "affected: return affected source files instead of test files"),
		All:           flag.Bool("all", false, "why: print every simple import path to the changed file instead of just the shortest one"),
	}
}

// ParseFlags parses the command line with a custom usage function.
func ParseFlags(usage func()) {
	if GlobalFlags == nil {
		GlobalFlags = InitFlags()
	}
	flag.Usage = usage
	flag.Parse()
}
