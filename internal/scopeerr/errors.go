// Package scopeerr defines the error taxonomy shared across scopetest's
// components.
package scopeerr

import "fmt"

// Kind classifies an Error by which stage of the pipeline raised it.
type Kind int

const (
	Configuration Kind = iota
	Workspace
	Parse
	Resolution
	Cache
	VCS
	Exec
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Workspace:
		return "workspace"
	case Parse:
		return "parse"
	case Resolution:
		return "resolution"
	case Cache:
		return "cache"
	case VCS:
		return "vcs"
	case Exec:
		return "exec"
	default:
		return "unknown"
	}
}

// Error is the concrete error type raised by scopetest components. Path is
// set for file-scoped errors (Parse, Resolution) and empty for global ones.
type Error struct {
	Kind    Kind
	Message string
	Path    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error carrying cause as its Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithPath builds a file-scoped Error.
func WithPath(kind Kind, path, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Path: path, Cause: cause}
}

// ExitCode maps a Kind to the process exit code from spec.md §6/§7.
// Non-fatal kinds (Parse, Resolution, Cache) have no dedicated code and map
// to the generic failure code 1, like Exec.
func ExitCode(kind Kind) int {
	switch kind {
	case Configuration:
		return 2
	case VCS:
		return 3
	case Workspace:
		return 4
	case Exec:
		return 1
	default:
		return 1
	}
}
