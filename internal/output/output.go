// Package output formats an affected-tests result for the CLI's --format
// flag, grounded on original_source/src/output/mod.rs's Paths/Json/List
// formatter and extended with the fuller stats object spec.md §6 describes.
package output

import (
	"encoding/json"
	"strings"

	"github.com/mamaar/scopetest/internal/scopeerr"
)

// Format selects an output rendering. Jest and Vitest are aliases for
// Paths, matching the CLIs they target.
type Format int

const (
	Paths Format = iota
	JSON
	List
)

// ParseFormat maps a --format flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "paths", "jest", "vitest", "":
		return Paths, nil
	case "json":
		return JSON, nil
	case "list":
		return List, nil
	default:
		return Paths, scopeerr.New(scopeerr.Configuration, "unknown output format: "+s)
	}
}

// Stats is the run summary spec.md §6 requires in JSON output. RunID tags
// one invocation's diagnostics for correlation across a CI job's log lines.
type Stats struct {
	RunID         string `json:"runId"`
	ChangedFiles  int    `json:"changedFiles"`
	AffectedFiles int    `json:"affectedFiles"`
	AffectedTests int    `json:"affectedTests"`
	GraphNodes    int    `json:"graphNodes"`
	DurationMs    int64  `json:"durationMs"`
	CacheHit      bool   `json:"cacheHit"`
}

// Result is what a run of `affected` produced, ready to format.
//
// SourceMode selects which list the paths/list formatters render (--sources
// asks for Sources instead of Tests; JSON always carries both). Fallback
// marks that a --threshold cap was exceeded and the engine deliberately
// declined to enumerate the full set, per spec.md §4.6 point 5 and the
// §8 scenario 6 "ALL" marker.
type Result struct {
	Tests      []string
	Sources    []string
	SourceMode bool
	Fallback   bool
	Stats      Stats
}

type jsonOutput struct {
	Tests    []string `json:"tests"`
	Sources  []string `json:"sources"`
	Stats    Stats    `json:"stats"`
	Fallback string   `json:"fallback,omitempty"`
}

// Render formats res according to f.
func Render(res Result, f Format) (string, error) {
	switch f {
	case JSON:
		return formatJSON(res)
	case List:
		return formatList(res), nil
	default:
		return formatPaths(res), nil
	}
}

func formatPaths(res Result) string {
	if res.Fallback {
		return "ALL"
	}
	return strings.Join(res.primary(), " ")
}

func formatList(res Result) string {
	if res.Fallback {
		return "ALL"
	}
	return strings.Join(res.primary(), "\n")
}

func (res Result) primary() []string {
	if res.SourceMode {
		return res.Sources
	}
	return res.Tests
}

func formatJSON(res Result) (string, error) {
	out := jsonOutput{
		Tests:   nonNil(res.Tests),
		Sources: nonNil(res.Sources),
		Stats:   res.Stats,
	}
	if res.Fallback {
		out.Fallback = "all"
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", scopeerr.Wrap(scopeerr.Configuration, "failed to marshal output", err)
	}
	return string(data), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
