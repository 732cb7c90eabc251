package cli

import (
	"fmt"
	"os"
)

// CommandFunc is a scopetest subcommand: affected, build, why, coverage,
// watch, version, or help, each taking the arguments left after global
// flag parsing.
type CommandFunc func([]string)

// Runner dispatches a parsed subcommand name (e.g. "affected", "why") to
// its CommandFunc.
type Runner struct {
	commands map[string]CommandFunc
}

// NewRunner returns an empty Runner; cmd/scopetest registers affected,
// build, why, coverage, and watch onto it before calling Run.
func NewRunner() *Runner {
	return &Runner{
		commands: make(map[string]CommandFunc),
	}
}

// RegisterCommand associates name with fn.
func (r *Runner) RegisterCommand(name string, fn CommandFunc) {
	r.commands[name] = fn
}

// Execute looks up command (e.g. "coverage") and runs it with args, or
// prints usage and exits 2 if the name isn't registered.
func (r *Runner) Execute(command string, args []string) {
	if fn, ok := r.commands[command]; ok {
		fn(args)
	} else {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		Usage()
		os.Exit(2)
	}
}

// GetCommands returns the registered command table, keyed by subcommand
// name.
func (r *Runner) GetCommands() map[string]CommandFunc {
	return r.commands
}