package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenAbsent(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("expected no error when .scopetestrc.json is absent, got %v", err)
	}
	if !cfg.CacheEnabled {
		t.Error("expected CacheEnabled to default to true")
	}
	if cfg.DefaultBase != "main" {
		t.Errorf("expected default base 'main', got %q", cfg.DefaultBase)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	root := t.TempDir()
	body := `{"defaultBase": "develop", "cacheEnabled": false}`
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultBase != "develop" {
		t.Errorf("expected overridden default base 'develop', got %q", cfg.DefaultBase)
	}
	if cfg.CacheEnabled {
		t.Error("expected CacheEnabled overridden to false")
	}
	// Fields absent from the file should retain their zero-config-default value.
	if len(cfg.TestPatterns) == 0 {
		t.Error("expected TestPatterns to still carry the default patterns")
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root); err == nil {
		t.Error("expected an error for malformed config JSON")
	}
}

func TestIsTestFile(t *testing.T) {
	cfg := defaultConfig()
	cases := map[string]bool{
		"/repo/src/util.test.ts":  true,
		"/repo/src/util.spec.tsx": true,
		"/repo/src/util.ts":       false,
	}
	for path, want := range cases {
		if got := cfg.IsTestFile(path); got != want {
			t.Errorf("IsTestFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestShouldIgnore(t *testing.T) {
	cfg := defaultConfig()
	if !cfg.ShouldIgnore("node_modules/react/index.js") {
		t.Error("expected node_modules to be ignored")
	}
	if !cfg.ShouldIgnore("dist/bundle.js") {
		t.Error("expected dist/ to be ignored")
	}
	if cfg.ShouldIgnore("src/index.ts") {
		t.Error("did not expect src/index.ts to be ignored")
	}
}

func TestIsSupportedExtension(t *testing.T) {
	cfg := defaultConfig()
	if !cfg.IsSupportedExtension("a.ts") || !cfg.IsSupportedExtension("a.tsx") {
		t.Error("expected .ts/.tsx to be supported")
	}
	if cfg.IsSupportedExtension("a.md") {
		t.Error("did not expect .md to be supported")
	}
}
