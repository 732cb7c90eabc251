package cachestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/mamaar/scopetest/internal/depgraph"
)

func buildGraph() *depgraph.Graph {
	g := depgraph.New()
	a := g.AddNode("/repo/src/a.ts")
	b := g.AddNode("/repo/src/b.test.ts")
	g.Node(a).ContentHash = 42
	g.Node(a).IsBarrel = true
	g.Node(b).Classification = depgraph.Test
	g.SetEdges(b, []depgraph.Edge{
		{ToID: a, Status: depgraph.EdgeResolved, Kind: depgraph.Static, Span: [2]uint32{10, 20}},
		{Status: depgraph.EdgeExternal, PackageName: "react", Kind: depgraph.Static},
		{Status: depgraph.EdgeUnresolved, Specifier: "./missing", Kind: depgraph.Static},
	})
	return g
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := buildGraph()
	data := encode(g, 7)

	decoded, ok := decode(data, 7)
	if !ok {
		t.Fatal("expected decode to succeed on freshly encoded data")
	}
	if decoded.NodeCount() != g.NodeCount() {
		t.Fatalf("expected %d nodes, got %d", g.NodeCount(), decoded.NodeCount())
	}

	a, ok := decoded.NodeByPath("/repo/src/a.ts")
	if !ok {
		t.Fatal("expected a.ts to survive the round trip")
	}
	if a.ContentHash != 42 || !a.IsBarrel {
		t.Errorf("expected a.ts's content hash and barrel flag to survive, got %+v", a)
	}

	b, ok := decoded.NodeByPath("/repo/src/b.test.ts")
	if !ok {
		t.Fatal("expected b.test.ts to survive the round trip")
	}
	if b.Classification != depgraph.Test {
		t.Errorf("expected b.test.ts to remain classified as Test")
	}
	if len(b.Edges) != 3 {
		t.Fatalf("expected 3 edges on b.test.ts, got %d", len(b.Edges))
	}
}

func TestDecodeRejectsWrongConfigHash(t *testing.T) {
	data := encode(buildGraph(), 7)
	if _, ok := decode(data, 8); ok {
		t.Error("expected decode to fail for a mismatched config hash")
	}
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	data := encode(buildGraph(), 7)
	data[len(data)-1] ^= 0xFF
	if _, ok := decode(data, 7); ok {
		t.Error("expected decode to fail when the tail checksum doesn't match")
	}
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	data := encode(buildGraph(), 7)
	if _, ok := decode(data[:len(data)/2], 7); ok {
		t.Error("expected decode to fail on truncated data")
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	g := buildGraph()

	if err := store.Save(g, 99); err != nil {
		t.Fatalf("Save returned an error: %v", err)
	}
	if !store.Exists() {
		t.Fatal("expected the cache file to exist after Save")
	}

	loaded, err := store.Load(99)
	if err != nil {
		t.Fatalf("Load returned an error: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected Load to return a graph")
	}
	if loaded.NodeCount() != g.NodeCount() {
		t.Errorf("expected %d nodes, got %d", g.NodeCount(), loaded.NodeCount())
	}
}

func TestStoreLoadMissesOnConfigChange(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	if err := store.Save(buildGraph(), 1); err != nil {
		t.Fatalf("Save returned an error: %v", err)
	}

	loaded, err := store.Load(2)
	if err != nil {
		t.Fatalf("Load should not return an error on a config mismatch, treats it as advisory: %v", err)
	}
	if loaded != nil {
		t.Error("expected Load to miss (nil, nil) when the config hash no longer matches")
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	loaded, err := store.Load(1)
	if err != nil {
		t.Fatalf("expected no error for a missing cache file, got %v", err)
	}
	if loaded != nil {
		t.Error("expected a nil graph when no cache file exists yet")
	}
}

func TestStoreRespectsCacheDirOverride(t *testing.T) {
	root := t.TempDir()
	override := t.TempDir()
	t.Setenv("SCOPETEST_CACHE_DIR", override)

	store := New(root)
	if err := store.Save(buildGraph(), 1); err != nil {
		t.Fatalf("Save returned an error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(override, CacheFile)); err != nil {
		t.Errorf("expected cache file under the override dir, got: %v", err)
	}
}

func TestStoreSaveProceedsReadOnlyWhenLockIsHeld(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	if err := os.MkdirAll(store.dir, 0o755); err != nil {
		t.Fatalf("failed to create cache dir: %v", err)
	}

	holder := flock.New(filepath.Join(store.dir, "cache.lock"))
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("failed to take the lock ahead of Save: locked=%v err=%v", locked, err)
	}
	defer holder.Unlock()

	prevTimeout := lockWaitTimeout
	lockWaitTimeout = 50 * time.Millisecond
	defer func() { lockWaitTimeout = prevTimeout }()

	if err := store.Save(buildGraph(), 1); err != nil {
		t.Fatalf("expected Save to succeed read-only rather than error out, got %v", err)
	}
	if store.Exists() {
		t.Error("expected Save to skip writing the cache file while the lock is held elsewhere")
	}
}

func TestContentHashIsDeterministic(t *testing.T) {
	if ContentHash([]byte("hello")) != ContentHash([]byte("hello")) {
		t.Error("expected ContentHash to be deterministic for identical input")
	}
	if ContentHash([]byte("hello")) == ContentHash([]byte("world")) {
		t.Error("expected ContentHash to differ for different input")
	}
}
