package commands

import (
	"fmt"
	"os"

	"github.com/mamaar/scopetest/internal/cli"
)

// HelpCommand handles help requests for specific commands.
func HelpCommand(args []string) {
	if len(args) == 0 {
		cli.Usage()
		return
	}

	switch args[0] {
	case "affected":
		fmt.Println(`Affected Command - Print the tests affected by a set of changes

Usage: scopetest affected [options]

The affected command:
  - Diffs the working tree against --base (or the configured default base),
    or against --since..HEAD when --since is given
  - Builds or loads the cached dependency graph
  - Finds every test transitively reachable from a changed file
  - Prints the result in the format selected by --format

Examples:
  scopetest affected
  scopetest --base develop affected
  scopetest --since v1.2.0 --format json affected
  scopetest --exec "npx jest {}" affected`)

	case "build":
		fmt.Println(`Build Command - Build and persist the dependency graph cache

Usage: scopetest build

Scans the workspace, parses every source file, resolves every import, and
writes the resulting graph to .scopetest/cache.bin so a later affected run
can load it instead of rebuilding from scratch.

Examples:
  scopetest build
  scopetest --no-cache build`)

	case "why":
		fmt.Println(`Why Command - Explain why a test is affected by the current change set

Usage: scopetest why <test-file> [options]

Diffs the workspace the same way affected/coverage do, then finds the
shortest chain of imports connecting test-file back to each changed file,
printing each hop along with the import construct that produced it. With
--all, every simple import path is printed instead of just the shortest.

Examples:
  scopetest why src/user.test.ts
  scopetest --base develop why src/user.test.ts
  scopetest --all why src/user.test.ts`)

	case "coverage":
		fmt.Println(`Coverage Command - Report affected-test coverage of a change set

Usage: scopetest coverage [options]

Reports what fraction of the workspace's tests are affected by the change
set. Exits non-zero when --coverage-threshold is set and the ratio is
below it.

Examples:
  scopetest coverage
  scopetest --coverage-threshold 0.8 coverage`)

	case "watch":
		fmt.Println(`Watch Command - Recompute the affected set on every change

Usage: scopetest watch

Watches the workspace for file changes and reprints the affected set
incrementally, without re-scanning files that did not change.

Examples:
  scopetest watch`)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		cli.Usage()
	}
}
