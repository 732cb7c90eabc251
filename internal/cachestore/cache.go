// Package cachestore persists the dependency graph to
// <root>/.scopetest/cache.bin per spec.md §6's byte layout, writing
// atomically (temp file + rename, grounded on
// Keyhole-Koro-InsightifyCore's LRUTTLStore.persistIndexLocked) and
// treating the cache as advisory: any inconsistency triggers a full
// rebuild rather than risking a wrong answer (spec.md §4.5).
package cachestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"

	"github.com/mamaar/scopetest/internal/depgraph"
	"github.com/mamaar/scopetest/internal/scopeerr"
)

const (
	CacheDir     = ".scopetest"
	CacheFile    = "cache.bin"
	SchemaVersion uint32 = 1
)

// Store persists and loads the graph for one project root.
type Store struct {
	dir  string
	path string
}

// New builds a Store rooted at project root. SCOPETEST_CACHE_DIR overrides
// the location if set, per spec.md §6.
func New(root string) *Store {
	dir := filepath.Join(root, CacheDir)
	if override := os.Getenv("SCOPETEST_CACHE_DIR"); override != "" {
		dir = override
	}
	return &Store{dir: dir, path: filepath.Join(dir, CacheFile)}
}

// Exists reports whether a cache file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and validates the cache. A version mismatch, a mismatched
// configHash, or a bad checksum are treated identically: (nil, nil) so the
// caller performs a full rebuild, per spec.md §4.5's "advisory" contract.
func (s *Store) Load(configHash uint64) (*depgraph.Graph, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, scopeerr.Wrap(scopeerr.Cache, "failed to read cache", err)
	}

	graph, ok := decode(data, configHash)
	if !ok {
		return nil, nil
	}
	return graph, nil
}

// lockWaitTimeout bounds how long Save waits for another instance's advisory
// lock before giving up and proceeding read-only, per spec.md §5's "a
// second instance operating on the same project root waits (bounded) or
// proceeds read-only."
var lockWaitTimeout = 2 * time.Second

// Save serializes graph and writes it to a sibling temp file, then renames
// it over the cache, so a failed write never replaces the prior cache.
// If the advisory lock can't be acquired within lockWaitTimeout, Save skips
// the write entirely and returns success without persisting — the run
// still has a correct in-memory graph, it just proceeds read-only against
// the cache.
func (s *Store) Save(graph *depgraph.Graph, configHash uint64) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return scopeerr.Wrap(scopeerr.Cache, "failed to create cache dir", err)
	}

	lock := flock.New(filepath.Join(s.dir, "cache.lock"))
	ctx, cancel := context.WithTimeout(context.Background(), lockWaitTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil
	}
	defer lock.Unlock()

	data := encode(graph, configHash)
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return scopeerr.Wrap(scopeerr.Cache, "failed to write cache", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return scopeerr.Wrap(scopeerr.Cache, "failed to finalize cache", err)
	}
	return nil
}

// Invalidate removes the cache file, forcing the next Load to miss.
func (s *Store) Invalidate() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return scopeerr.Wrap(scopeerr.Cache, "failed to remove cache", err)
	}
	return nil
}

// ContentHash is the 64-bit non-cryptographic hash spec.md §3 mandates.
func ContentHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// --- wire format --------------------------------------------------------
//
// u32 schema version
// u64 config hash
// u32 node count
// per node: u32 path_len, path bytes, u64 content_hash, u8 class
//           (bit 0 = Test, bit 1 = IsBarrel), i64 mtime_unix_nanos,
//           u16 edge_count
//   per edge: u8 kind, u8 status, u32 span_start, u32 span_end,
//             u32 field_len, field bytes (target path, package name, or
//             specifier depending on status)
// tail: u64 xxhash64 checksum of every preceding byte

func encode(graph *depgraph.Graph, configHash uint64) []byte {
	var buf bytes.Buffer
	writeU32(&buf, SchemaVersion)
	writeU64(&buf, configHash)
	writeU32(&buf, uint32(graph.NodeCount()))

	for _, node := range graph.Nodes() {
		writeString(&buf, node.Path)
		writeU64(&buf, node.ContentHash)
		buf.WriteByte(encodeClass(node))
		writeI64(&buf, node.ModTimeUnixNs)
		writeU16(&buf, uint16(len(node.Edges)))
		for _, edge := range node.Edges {
			buf.WriteByte(byte(edge.Kind))
			buf.WriteByte(byte(edge.Status))
			writeU32(&buf, edge.Span[0])
			writeU32(&buf, edge.Span[1])
			field := edgeField(graph, edge)
			writeString(&buf, field)
		}
	}

	checksum := xxhash.Sum64(buf.Bytes())
	writeU64(&buf, checksum)
	return buf.Bytes()
}

func encodeClass(node *depgraph.FileNode) byte {
	var b byte
	if node.Classification == depgraph.Test {
		b |= 1
	}
	if node.IsBarrel {
		b |= 2
	}
	return b
}

func decodeClass(b byte) (depgraph.Classification, bool) {
	class := depgraph.Source
	if b&1 != 0 {
		class = depgraph.Test
	}
	isBarrel := b&2 != 0
	return class, isBarrel
}

func edgeField(graph *depgraph.Graph, edge depgraph.Edge) string {
	switch edge.Status {
	case depgraph.EdgeResolved:
		if node := graph.Node(edge.ToID); node != nil {
			return node.Path
		}
		return ""
	case depgraph.EdgeExternal:
		return edge.PackageName
	default:
		return edge.Specifier
	}
}

func decode(data []byte, expectedConfigHash uint64) (*depgraph.Graph, bool) {
	if len(data) < 4+8+4+8 {
		return nil, false
	}

	body := data[:len(data)-8]
	wantChecksum := readU64(data[len(data)-8:])
	if xxhash.Sum64(body) != wantChecksum {
		return nil, false
	}

	r := bytes.NewReader(body)
	version, ok := readU32R(r)
	if !ok || version != SchemaVersion {
		return nil, false
	}
	configHash, ok := readU64R(r)
	if !ok || configHash != expectedConfigHash {
		return nil, false
	}
	nodeCount, ok := readU32R(r)
	if !ok {
		return nil, false
	}

	graph := depgraph.New()
	type pendingEdge struct {
		nodeID int
		kind   depgraph.EdgeKind
		status depgraph.EdgeStatus
		span   [2]uint32
		field  string
	}
	var pending []pendingEdge

	for i := uint32(0); i < nodeCount; i++ {
		path, ok := readStringR(r)
		if !ok {
			return nil, false
		}
		contentHash, ok := readU64R(r)
		if !ok {
			return nil, false
		}
		class, err := r.ReadByte()
		if err != nil {
			return nil, false
		}
		mtime, ok := readI64R(r)
		if !ok {
			return nil, false
		}
		edgeCount, ok := readU16R(r)
		if !ok {
			return nil, false
		}

		id := graph.AddNode(path)
		node := graph.Node(id)
		node.ContentHash = contentHash
		node.Classification, node.IsBarrel = decodeClass(class)
		node.ModTimeUnixNs = mtime

		for e := uint16(0); e < edgeCount; e++ {
			kindByte, err := r.ReadByte()
			if err != nil {
				return nil, false
			}
			statusByte, err := r.ReadByte()
			if err != nil {
				return nil, false
			}
			start, ok := readU32R(r)
			if !ok {
				return nil, false
			}
			end, ok := readU32R(r)
			if !ok {
				return nil, false
			}
			field, ok := readStringR(r)
			if !ok {
				return nil, false
			}
			pending = append(pending, pendingEdge{
				nodeID: id,
				kind:   depgraph.EdgeKind(kindByte),
				status: depgraph.EdgeStatus(statusByte),
				span:   [2]uint32{start, end},
				field:  field,
			})
		}
	}

	byNode := map[int][]depgraph.Edge{}
	for _, p := range pending {
		edge := depgraph.Edge{Kind: p.kind, Status: p.status, Span: p.span}
		switch p.status {
		case depgraph.EdgeResolved:
			edge.ToID = graph.AddNode(p.field)
			edge.Specifier = p.field
		case depgraph.EdgeExternal:
			edge.PackageName = p.field
		default:
			edge.Specifier = p.field
		}
		byNode[p.nodeID] = append(byNode[p.nodeID], edge)
	}
	for id, edges := range byNode {
		graph.SetEdges(id, edges)
	}

	return graph, true
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	writeU64(buf, uint64(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func readU16R(r *bytes.Reader) (uint16, bool) {
	var b [2]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[:]), true
}

func readU32R(r *bytes.Reader) (uint32, bool) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[:]), true
}

func readU64R(r *bytes.Reader) (uint64, bool) {
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(b[:]), true
}

func readI64R(r *bytes.Reader) (int64, bool) {
	v, ok := readU64R(r)
	return int64(v), ok
}

func readStringR(r *bytes.Reader) (string, bool) {
	length, ok := readU32R(r)
	if !ok {
		return "", false
	}
	buf := make([]byte, length)
	if _, err := readFull(r, buf); err != nil {
		return "", false
	}
	return string(buf), true
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, os.ErrClosed
		}
	}
	return n, nil
}
