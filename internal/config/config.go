// Package config loads .scopetestrc.json and supplies the defaults that
// apply when it is absent, mirroring the config shape defined in spec.md §6.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mamaar/scopetest/internal/scopeerr"
)

const FileName = ".scopetestrc.json"

// Config is the resolved project configuration, populated from
// .scopetestrc.json where present and defaulted otherwise.
type Config struct {
	TestPatterns   []string `json:"testPatterns"`
	IgnorePatterns []string `json:"ignorePatterns"`
	Extensions     []string `json:"extensions"`
	CacheEnabled   bool     `json:"cacheEnabled"`
	DefaultBase    string   `json:"defaultBase"`
	ExpandBarrels  bool     `json:"expandBarrels"`
	TSConfig       string   `json:"tsconfig,omitempty"`
	ExtraRoots     []string `json:"extraRoots,omitempty"`
}

func defaultConfig() Config {
	return Config{
		TestPatterns: []string{
			"**/*.spec.ts", "**/*.spec.tsx", "**/*.test.ts", "**/*.test.tsx",
			"**/*.spec.js", "**/*.spec.jsx", "**/*.test.js", "**/*.test.jsx",
		},
		IgnorePatterns: []string{
			"**/node_modules/**", "**/dist/**", "**/build/**", "**/.git/**", "**/coverage/**",
		},
		Extensions:    []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".json"},
		CacheEnabled:  true,
		DefaultBase:   "main",
		ExpandBarrels: true,
	}
}

// Load reads .scopetestrc.json from root, falling back to defaults if the
// file is absent. A present-but-invalid file is a Configuration error.
func Load(root string) (Config, error) {
	cfg := defaultConfig()
	path := filepath.Join(root, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, scopeerr.Wrap(scopeerr.Configuration, "failed to read config", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, scopeerr.Wrap(scopeerr.Configuration, "failed to parse config", err)
	}
	return cfg, nil
}

// IsTestFile reports whether path matches one of the configured test
// patterns, or falls back to the .spec./.test. filename heuristic used by
// the original implementation when no pattern matches.
func (c Config) IsTestFile(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range c.TestPatterns {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
	}
	name := filepath.Base(path)
	return strings.Contains(name, ".spec.") || strings.Contains(name, ".test.")
}

// ShouldIgnore reports whether path matches an ignore pattern.
func (c Config) ShouldIgnore(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range c.IgnorePatterns {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
	}
	return strings.Contains(slashed, "node_modules")
}

// IsSupportedExtension reports whether path's extension is in Extensions.
func (c Config) IsSupportedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}
