// Package tsconfig reads tsconfig.json files (following "extends") into the
// directory-indexed map the resolver consults for baseUrl/paths aliasing.
package tsconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the subset of compilerOptions the resolver needs.
type Config struct {
	Dir     string
	BaseURL string
	Paths   map[string][]string
}

type rawFile struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// Load reads path and any tsconfig it extends, merging baseUrl/paths with
// the extending file taking precedence, matching tsc's own override order.
func Load(path string) (Config, error) {
	cfg := Config{Dir: filepath.Dir(path), Paths: map[string][]string{}}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, err
	}

	if raw.Extends != "" {
		parentPath := raw.Extends
		if !filepath.IsAbs(parentPath) {
			parentPath = filepath.Join(cfg.Dir, parentPath)
		}
		if parent, err := Load(parentPath); err == nil {
			cfg.BaseURL = parent.BaseURL
			for k, v := range parent.Paths {
				cfg.Paths[k] = v
			}
		}
	}

	if raw.CompilerOptions.BaseURL != "" {
		cfg.BaseURL = filepath.Join(cfg.Dir, raw.CompilerOptions.BaseURL)
	}
	for pattern, targets := range raw.CompilerOptions.Paths {
		cfg.Paths[pattern] = targets
	}

	return cfg, nil
}

// Chain is the directory-keyed set of loaded tsconfig files for a workspace.
type Chain map[string]Config

// Nearest ascends from dir looking for the closest entry in the chain,
// matching TypeScript's own "nearest enclosing tsconfig" rule.
func (c Chain) Nearest(dir string) (Config, bool) {
	for {
		if cfg, ok := c[dir]; ok {
			return cfg, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Config{}, false
		}
		dir = parent
	}
}

// Discover walks root looking for tsconfig.json files (skipping
// node_modules) and loads each into a Chain keyed by its directory.
func Discover(root string) (Chain, error) {
	chain := Chain{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == "node_modules" || name == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != "tsconfig.json" {
			return nil
		}
		cfg, loadErr := Load(path)
		if loadErr != nil {
			return nil
		}
		chain[filepath.Dir(path)] = cfg
		return nil
	})
	return chain, err
}
