package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mamaar/scopetest/internal/config"
	"github.com/mamaar/scopetest/internal/tsconfig"
	"github.com/mamaar/scopetest/internal/workspace"
)

func write(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func snapshot(root string, extra func(*workspace.Snapshot)) *workspace.Snapshot {
	ws := &workspace.Snapshot{
		Root:          root,
		Config:        defaultTestConfig(),
		TSConfigs:     tsconfig.Chain{},
		WorkspacePkgs: map[string]string{},
	}
	if extra != nil {
		extra(ws)
	}
	return ws
}

func defaultTestConfig() config.Config {
	return config.Config{
		Extensions: []string{".ts", ".tsx", ".js"},
	}
}

func TestResolveRelativeExactExtension(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "b.ts"), "export const b = 1")
	ws := snapshot(root, nil)

	res := Resolve(filepath.Join(root, "src"), "./b", ws)
	if res.Kind != Resolved {
		t.Fatalf("expected Resolved, got %+v", res)
	}
	if res.Path != filepath.Join(root, "src", "b.ts") {
		t.Errorf("unexpected resolved path: %s", res.Path)
	}
}

func TestResolveRelativeIndexFallback(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "utils", "index.ts"), "export {}")
	ws := snapshot(root, nil)

	res := Resolve(filepath.Join(root, "src"), "./utils", ws)
	if res.Kind != Resolved {
		t.Fatalf("expected Resolved via index fallback, got %+v", res)
	}
	if res.Path != filepath.Join(root, "src", "utils", "index.ts") {
		t.Errorf("unexpected resolved path: %s", res.Path)
	}
}

func TestResolveRelativeNotFound(t *testing.T) {
	root := t.TempDir()
	ws := snapshot(root, nil)

	res := Resolve(filepath.Join(root, "src"), "./missing", ws)
	if res.Kind != Unresolved {
		t.Fatalf("expected Unresolved, got %+v", res)
	}
}

func TestResolveNodeBuiltin(t *testing.T) {
	root := t.TempDir()
	ws := snapshot(root, nil)

	res := Resolve(root, "node:fs", ws)
	if res.Kind != External || res.PackageName != "fs" {
		t.Errorf("expected External(fs), got %+v", res)
	}
}

func TestResolveBarePackageFallsBackToExternal(t *testing.T) {
	root := t.TempDir()
	ws := snapshot(root, nil)

	res := Resolve(root, "react", ws)
	if res.Kind != External || res.PackageName != "react" {
		t.Errorf("expected External(react), got %+v", res)
	}

	scoped := Resolve(root, "@scope/pkg/sub", ws)
	if scoped.Kind != External || scoped.PackageName != "@scope/pkg" {
		t.Errorf("expected External(@scope/pkg), got %+v", scoped)
	}
}

func TestResolveWorkspacePackage(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "packages", "shared")
	write(t, filepath.Join(pkgDir, "package.json"), `{"name":"@app/shared","main":"src/index.ts"}`)
	write(t, filepath.Join(pkgDir, "src", "index.ts"), "export {}")

	ws := snapshot(root, func(s *workspace.Snapshot) {
		s.WorkspacePkgs["@app/shared"] = pkgDir
	})

	res := Resolve(root, "@app/shared", ws)
	if res.Kind != Resolved {
		t.Fatalf("expected Resolved workspace package, got %+v", res)
	}
	if res.Path != filepath.Join(pkgDir, "src", "index.ts") {
		t.Errorf("unexpected resolved path: %s", res.Path)
	}
}

func TestResolveWorkspacePackageExportsMap(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "packages", "shared")
	write(t, filepath.Join(pkgDir, "package.json"), `{"name":"@app/shared","exports":{".":{"import":"src/entry.ts"}}}`)
	write(t, filepath.Join(pkgDir, "src", "entry.ts"), "export {}")

	ws := snapshot(root, func(s *workspace.Snapshot) {
		s.WorkspacePkgs["@app/shared"] = pkgDir
	})

	res := Resolve(root, "@app/shared", ws)
	if res.Kind != Resolved {
		t.Fatalf("expected Resolved via exports map, got %+v", res)
	}
	if res.Path != filepath.Join(pkgDir, "src", "entry.ts") {
		t.Errorf("unexpected resolved path: %s", res.Path)
	}
}

func TestResolveTSConfigPathAlias(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "components", "Button.ts"), "export {}")

	chain := tsconfig.Chain{
		root: {
			Dir:     root,
			BaseURL: root,
			Paths:   map[string][]string{"@components/*": {"src/components/*"}},
		},
	}
	ws := snapshot(root, func(s *workspace.Snapshot) {
		s.TSConfigs = chain
	})

	res := Resolve(root, "@components/Button", ws)
	if res.Kind != Resolved {
		t.Fatalf("expected Resolved via tsconfig alias, got %+v", res)
	}
	if res.Path != filepath.Join(root, "src", "components", "Button.ts") {
		t.Errorf("unexpected resolved path: %s", res.Path)
	}
}
