// Package execrunner implements the -x/--exec subprocess launcher (spec.md
// §4/§6): given the affected test paths, it substitutes them into a
// user-provided command template and runs it, inheriting stdio.
package execrunner

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/mamaar/scopetest/internal/scopeerr"
)

// Mode selects how paths are fed into the command template.
type Mode int

const (
	// Joined runs the command once with every path substituted at once,
	// space-joined.
	Joined Mode = iota
	// PerFile runs the command once per path.
	PerFile
)

// Options configures a Run.
type Options struct {
	Template string // e.g. "npx jest {}"
	Mode     Mode
	FailFast bool
}

// Outcome records one invocation's result.
type Outcome struct {
	Command  string
	ExitCode int
	Err      error
}

// Run executes cmd's template against paths per opts.Mode, stopping early on
// the first failure when FailFast is set.
func Run(ctx context.Context, paths []string, opts Options) ([]Outcome, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if opts.Template == "" {
		return nil, scopeerr.New(scopeerr.Exec, "no exec template configured")
	}

	var invocations []string
	switch opts.Mode {
	case PerFile:
		for _, p := range paths {
			invocations = append(invocations, substitute(opts.Template, p))
		}
	default:
		invocations = []string{substitute(opts.Template, strings.Join(paths, " "))}
	}

	var outcomes []Outcome
	for _, invocation := range invocations {
		outcome := runOne(ctx, invocation)
		outcomes = append(outcomes, outcome)
		if outcome.Err != nil && opts.FailFast {
			return outcomes, outcome.Err
		}
	}
	return outcomes, nil
}

func runOne(ctx context.Context, command string) Outcome {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = 1
	}
	return Outcome{Command: command, ExitCode: code, Err: err}
}

// substitute replaces every "{}" occurrence in template with value.
func substitute(template, value string) string {
	if strings.Contains(template, "{}") {
		return strings.ReplaceAll(template, "{}", value)
	}
	return template + " " + value
}
