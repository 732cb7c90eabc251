// Package resolve implements module resolution as a pure function of
// (importer directory, specifier, workspace snapshot), per SPEC_FULL.md
// §4.3 and spec.md's own Design Notes ("Module resolution as pure
// function").
package resolve

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/mamaar/scopetest/internal/workspace"
)

// Kind is the outcome of resolving a specifier.
type Kind int

const (
	Resolved Kind = iota
	External
	Unresolved
)

// Resolution is the sum type spec.md §4.3 describes: Resolved(path),
// External(packageName), or Unresolved(reason).
type Resolution struct {
	Kind        Kind
	Path        string // set when Kind == Resolved
	PackageName string // set when Kind == External
	Reason      string // set when Kind == Unresolved
}

// Resolve resolves specifier as imported from fromDir against ws.
func Resolve(fromDir, specifier string, ws *workspace.Snapshot) Resolution {
	if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		base := normalize(filepath.Join(fromDir, specifier))
		if path, ok := resolveWithExtensions(base, ws); ok {
			return Resolution{Kind: Resolved, Path: path}
		}
		return Resolution{Kind: Unresolved, Reason: "relative specifier not found: " + specifier}
	}

	if strings.HasPrefix(specifier, "node:") {
		return Resolution{Kind: External, PackageName: strings.TrimPrefix(specifier, "node:")}
	}

	if path, ok := resolveAlias(fromDir, specifier, ws); ok {
		return Resolution{Kind: Resolved, Path: path}
	}

	if path, ok := resolveWorkspacePackage(specifier, ws); ok {
		return Resolution{Kind: Resolved, Path: path}
	}

	pkgName, _ := splitPackageImport(specifier)
	return Resolution{Kind: External, PackageName: pkgName}
}

// resolveAlias applies tsconfig paths/baseUrl aliasing (spec.md §4.3 step 2).
func resolveAlias(fromDir, specifier string, ws *workspace.Snapshot) (string, bool) {
	cfg, ok := ws.TSConfigs.Nearest(fromDir)
	if !ok {
		return "", false
	}
	for pattern, targets := range cfg.Paths {
		patternBase := strings.TrimSuffix(pattern, "*")
		if !strings.HasPrefix(specifier, patternBase) {
			continue
		}
		suffix := specifier[len(patternBase):]
		for _, target := range targets {
			targetBase := strings.TrimSuffix(target, "*")
			baseURL := cfg.BaseURL
			if baseURL == "" {
				baseURL = ws.Root
			}
			candidate := filepath.Join(baseURL, targetBase, suffix)
			if path, ok := resolveWithExtensions(candidate, ws); ok {
				return path, true
			}
		}
	}
	return "", false
}

// resolveWorkspacePackage handles specifiers naming a workspace package or a
// node_modules entry, per spec.md §4.3 step 3.
func resolveWorkspacePackage(specifier string, ws *workspace.Snapshot) (string, bool) {
	pkgName, subpath := splitPackageImport(specifier)
	pkgRoot, ok := ws.WorkspacePkgs[pkgName]
	if !ok {
		return "", false
	}

	real, err := filepath.EvalSymlinks(pkgRoot)
	if err != nil {
		real = pkgRoot
	}
	canonicalRoot, err := filepath.EvalSymlinks(ws.Root)
	if err != nil {
		canonicalRoot = ws.Root
	}
	if !withinRoot(real, canonicalRoot) {
		return "", false
	}

	var target string
	if subpath == "" {
		entry, ok := resolvePackageEntry(real, ws)
		if !ok {
			return "", false
		}
		target = entry
	} else {
		target = filepath.Join(real, subpath)
	}

	path, ok := resolveWithExtensions(target, ws)
	if !ok {
		return "", false
	}

	if canonical, err := filepath.EvalSymlinks(path); err == nil {
		if rel, err := filepath.Rel(canonicalRoot, canonical); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.Join(ws.Root, rel), true
		}
		return canonical, true
	}
	return path, true
}

// resolvePackageEntry implements the manifest-field probing order from
// SPEC_FULL.md §3.1: an "exports" "." conditional export, then
// original_source's source/main/module/types order, then src/index or
// index as final fallbacks.
func resolvePackageEntry(pkgDir string, ws *workspace.Snapshot) (string, bool) {
	manifestPath := filepath.Join(pkgDir, "package.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return pkgDir, true
	}

	var manifest struct {
		Exports json.RawMessage `json:"exports"`
		Source  string          `json:"source"`
		Main    string          `json:"main"`
		Module  string          `json:"module"`
		Types   string          `json:"types"`
	}
	if json.Unmarshal(data, &manifest) != nil {
		return pkgDir, true
	}

	if entry, ok := dotExport(manifest.Exports); ok {
		candidate := filepath.Join(pkgDir, entry)
		if _, ok := resolveWithExtensions(candidate, ws); ok {
			return candidate, true
		}
	}

	for _, entry := range []string{manifest.Source, manifest.Main, manifest.Module, manifest.Types} {
		if entry == "" {
			continue
		}
		candidate := filepath.Join(pkgDir, entry)
		if _, ok := resolveWithExtensions(candidate, ws); ok {
			return candidate, true
		}
	}

	srcIndex := filepath.Join(pkgDir, "src", "index")
	if _, ok := resolveWithExtensions(srcIndex, ws); ok {
		return srcIndex, true
	}

	return filepath.Join(pkgDir, "index"), true
}

// dotExport pulls the "." entry out of a package.json "exports" field,
// which may be a bare string or a conditional map.
func dotExport(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var asString string
	if json.Unmarshal(raw, &asString) == nil && asString != "" {
		return asString, true
	}
	var asMap map[string]json.RawMessage
	if json.Unmarshal(raw, &asMap) != nil {
		return "", false
	}
	dot, ok := asMap["."]
	if !ok {
		return "", false
	}
	var dotString string
	if json.Unmarshal(dot, &dotString) == nil && dotString != "" {
		return dotString, true
	}
	var dotConditions map[string]string
	if json.Unmarshal(dot, &dotConditions) == nil {
		for _, key := range []string{"import", "require", "default"} {
			if v, ok := dotConditions[key]; ok && v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// resolveWithExtensions implements spec.md §4.3 step 1's extension probing:
// exact path, then each configured extension, then index.<ext> in a
// directory.
func resolveWithExtensions(base string, ws *workspace.Snapshot) (string, bool) {
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return base, true
	}

	for _, ext := range ws.Config.Extensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}

	for _, ext := range ws.Config.Extensions {
		index := filepath.Join(base, "index"+ext)
		if info, err := os.Stat(index); err == nil && !info.IsDir() {
			return index, true
		}
	}

	return "", false
}

func splitPackageImport(specifier string) (pkgName, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		pkgName = parts[0] + "/" + parts[1]
		if len(parts) > 2 {
			subpath = parts[2]
		}
		return pkgName, subpath
	}
	pkgName = parts[0]
	if len(parts) > 1 {
		subpath = strings.Join(parts[1:], "/")
	}
	return pkgName, subpath
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// normalize collapses "." and ".." components without touching the
// filesystem, mirroring original_source's normalize_path.
func normalize(path string) string {
	return filepath.Clean(path)
}
