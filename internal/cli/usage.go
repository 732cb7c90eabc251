package cli

import (
	"flag"
	"fmt"
	"os"
)

// Usage prints the usage information for the scopetest command.
func Usage() {
	fmt.Fprintf(os.Stderr, `scopetest - find the tests affected by a set of source changes

Usage: scopetest [options] <command> [arguments]

Commands:
  affected
    Print the tests affected by the current uncommitted or branch changes

  build
    Build and persist the dependency graph cache without running affected

  why <test-file>
    Explain the import chain connecting a test to each currently changed file

  coverage
    Report what fraction of the workspace's tests the changes affect

  watch
    Watch the workspace and recompute the affected set on every change

  version
    Show version information

  help [command]
    Show help for a specific command

Options:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  # List tests affected by changes against the default base branch
  scopetest affected

  # Diff against a specific branch and print JSON
  scopetest --base develop --format json affected

  # Diff everything since a tag
  scopetest --since v1.2.0 affected

  # Rebuild and persist the cache without computing an affected set
  scopetest build

  # Explain why a test is affected by the current change set
  scopetest why src/user.test.ts

  # Run affected tests through jest
  scopetest --exec "npx jest {}" affected

  # Fail the coverage gate below 80%% affected-test coverage
  scopetest --coverage-threshold 0.8 coverage

  # Fall back to running everything once more than 500 tests are affected
  scopetest --threshold 500 affected

  # Print every import path connecting a test to the change set, not just
  # the shortest one
  scopetest --all why src/user.test.ts

  # Run against a project that isn't the current directory
  scopetest --root ../other-app affected
`)
}
