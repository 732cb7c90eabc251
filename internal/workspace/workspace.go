// Package workspace discovers a project's root, enumerates its source
// files, and builds the resolver's view of tsconfig and workspace-package
// data, per SPEC_FULL.md §4.1.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/mamaar/scopetest/internal/config"
	"github.com/mamaar/scopetest/internal/scopeerr"
	"github.com/mamaar/scopetest/internal/tsconfig"
)

var rootMarkers = []string{"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", config.FileName}

// Snapshot is the immutable view of a workspace used by the rest of the
// pipeline for the duration of one run.
type Snapshot struct {
	Root          string
	Config        config.Config
	Files         []string // absolute, normalized, sorted
	TSConfigs     tsconfig.Chain
	WorkspacePkgs map[string]string // package name -> absolute root dir
}

type packageManifest struct {
	Name       string   `json:"name"`
	Workspaces []string `json:"workspaces"`
}

// FindRoot ascends from start looking for a workspace marker file.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", scopeerr.Wrap(scopeerr.Workspace, "cannot resolve root path", err)
	}
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", scopeerr.New(scopeerr.Workspace, "no workspace root found (no package.json, lockfile, or "+config.FileName+")")
		}
		dir = parent
	}
}

// Load builds a Snapshot rooted at root: reads config, enumerates source
// files, loads the tsconfig chain, and builds the workspace-package map.
func Load(root string) (*Snapshot, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, scopeerr.Wrap(scopeerr.Workspace, "cannot resolve root path", err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, scopeerr.WithPath(scopeerr.Workspace, root, "root is not readable", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	files, err := enumerateFiles(root, cfg)
	if err != nil {
		return nil, scopeerr.Wrap(scopeerr.Workspace, "failed to enumerate files", err)
	}

	chain, err := tsconfig.Discover(root)
	if err != nil {
		return nil, scopeerr.Wrap(scopeerr.Workspace, "failed to load tsconfig chain", err)
	}

	pkgs, err := discoverWorkspacePackages(root)
	if err != nil {
		return nil, scopeerr.Wrap(scopeerr.Workspace, "failed to discover workspace packages", err)
	}

	return &Snapshot{
		Root:          root,
		Config:        cfg,
		Files:         files,
		TSConfigs:     chain,
		WorkspacePkgs: pkgs,
	}, nil
}

func enumerateFiles(root string, cfg config.Config) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if cfg.ShouldIgnore(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if cfg.ShouldIgnore(rel) {
			return nil
		}
		if !cfg.IsSupportedExtension(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// discoverWorkspacePackages reads the root package.json's "workspaces"
// field and scans top-level node_modules for symlinks into the repo,
// per spec.md §4.1's "for robustness" clause.
func discoverWorkspacePackages(root string) (map[string]string, error) {
	pkgs := map[string]string{}

	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var manifest packageManifest
		if json.Unmarshal(data, &manifest) == nil {
			for _, pattern := range manifest.Workspaces {
				matches, _ := filepath.Glob(filepath.Join(root, pattern))
				for _, dir := range matches {
					if info, err := os.Stat(dir); err == nil && info.IsDir() {
						if name := readPackageName(dir); name != "" {
							pkgs[name] = dir
						}
					}
				}
			}
		}
	}

	nodeModules := filepath.Join(root, "node_modules")
	entries, err := os.ReadDir(nodeModules)
	if err != nil {
		return pkgs, nil
	}
	for _, entry := range entries {
		if entry.Name() == "" {
			continue
		}
		full := filepath.Join(nodeModules, entry.Name())
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := filepath.EvalSymlinks(full)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, target)
		if err != nil || len(rel) >= 2 && rel[:2] == ".." {
			continue
		}
		if name := readPackageName(target); name != "" {
			pkgs[name] = target
		} else {
			pkgs[entry.Name()] = target
		}
	}
	return pkgs, nil
}

func readPackageName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var manifest packageManifest
	if json.Unmarshal(data, &manifest) != nil {
		return ""
	}
	return manifest.Name
}
