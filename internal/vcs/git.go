// Package vcs is the VCS diff adapter (spec.md §4, SPEC_FULL.md §4.7): it
// shells out to git the way GitGrove's runners do, and parses
// `--name-status` output the way original_source/src/git/mod.rs does.
package vcs

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/mamaar/scopetest/internal/scopeerr"
)

// ChangeSet is the parsed result of a git diff, split by status letter.
type ChangeSet struct {
	Modified []string
	Added    []string
	Deleted  []string
	Renamed  []Rename
}

// Rename records a path that moved from From to To.
type Rename struct {
	From string
	To   string
}

// AllChanged returns every path touched by the change; a rename contributes
// both its pre-rename and post-rename paths.
func (c ChangeSet) AllChanged() []string {
	paths := make([]string, 0, len(c.Modified)+len(c.Added)+len(c.Deleted)+len(c.Renamed))
	paths = append(paths, c.Modified...)
	paths = append(paths, c.Added...)
	paths = append(paths, c.Deleted...)
	for _, r := range c.Renamed {
		paths = append(paths, r.From, r.To)
	}
	return paths
}

// IsEmpty reports whether the change set touched nothing.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Modified) == 0 && len(c.Added) == 0 && len(c.Deleted) == 0 && len(c.Renamed) == 0
}

// Detector runs git commands rooted at repoRoot.
type Detector struct {
	repoRoot string
}

// NewDetector verifies repoRoot is inside a git working tree and returns a
// Detector for it.
func NewDetector(ctx context.Context, repoRoot string) (*Detector, error) {
	d := &Detector{repoRoot: repoRoot}
	if _, err := d.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, scopeerr.Wrap(scopeerr.VCS, "not a git repository", err)
	}
	return d, nil
}

// DefaultBase mirrors original_source's get_default_base: prefer main, fall
// back to master, error if neither exists.
func (d *Detector) DefaultBase(ctx context.Context) (string, error) {
	for _, candidate := range []string{"main", "master"} {
		if _, err := d.run(ctx, "rev-parse", "--verify", candidate); err == nil {
			return candidate, nil
		}
	}
	return "", scopeerr.New(scopeerr.VCS, "no default base branch found (tried main, master)")
}

// Diff compares the merge-base of HEAD and baseRef against the working tree
// via `git diff --name-status`.
func (d *Detector) Diff(ctx context.Context, baseRef string) (ChangeSet, error) {
	mergeBase, err := d.run(ctx, "merge-base", "HEAD", baseRef)
	if err != nil {
		return ChangeSet{}, scopeerr.Wrap(scopeerr.VCS, "git merge-base failed for base "+baseRef, err)
	}
	out, err := d.run(ctx, "diff", "--name-status", strings.TrimSpace(mergeBase))
	if err != nil {
		return ChangeSet{}, scopeerr.Wrap(scopeerr.VCS, "git diff failed for base "+baseRef, err)
	}
	return parseNameStatus(out), nil
}

// DiffSince compares sinceRef..HEAD via `git diff --name-status`.
func (d *Detector) DiffSince(ctx context.Context, sinceRef string) (ChangeSet, error) {
	out, err := d.run(ctx, "diff", "--name-status", sinceRef+"..HEAD")
	if err != nil {
		return ChangeSet{}, scopeerr.Wrap(scopeerr.VCS, "git diff failed since "+sinceRef, err)
	}
	return parseNameStatus(out), nil
}

func (d *Detector) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", scopeerr.New(scopeerr.VCS, msg)
	}
	return stdout.String(), nil
}

// parseNameStatus parses `git diff --name-status` lines: a status letter
// (M, A, D, or R### for renames with a similarity score) followed by one or
// two tab-separated paths.
func parseNameStatus(output string) ChangeSet {
	var cs ChangeSet
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		switch {
		case status == "M":
			cs.Modified = append(cs.Modified, fields[1])
		case status == "A":
			cs.Added = append(cs.Added, fields[1])
		case status == "D":
			cs.Deleted = append(cs.Deleted, fields[1])
		case strings.HasPrefix(status, "R") && len(fields) >= 3:
			cs.Renamed = append(cs.Renamed, Rename{From: fields[1], To: fields[2]})
		}
	}
	return cs
}
