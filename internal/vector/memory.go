// Package vector provides an in-memory vector index for development and tests.
package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryIndex is an in-memory vector index using brute-force inner product search.
// Suitable for development and small caches; Save/Load give it crash-survivable
// persistence between runs.
type MemoryIndex struct {
	dimensions int
	entries    map[string]*memoryEntry
	mu         sync.RWMutex
}

type memoryEntry struct {
	vec  []float32
	meta Metadata
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		entries:    make(map[string]*memoryEntry),
	}, nil
}

// Upsert stores or overwrites the entry for id.
func (m *MemoryIndex) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	if len(vec) != m.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), m.dimensions)
	}
	cp := make([]float32, m.dimensions)
	copy(cp, vec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &memoryEntry{vec: cp, meta: meta}
	return nil
}

// Query returns the top-k entries by inner product (equals cosine similarity for
// normalized vectors), ordered by descending score.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, topK int, includeMetadata bool) ([]Match, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	matches := make([]Match, 0, len(m.entries))
	for id, e := range m.entries {
		var dot float64
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j] * e.vec[j])
		}
		match := Match{ID: id, Score: dot}
		if includeMetadata {
			match.Metadata = e.meta
		}
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes the entries for ids. Missing IDs are ignored.
func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

// Save persists the index to path. Directory is created if needed. Format:
// dimension (4), n (4), then per entry: idLen (4), id, metaLen (4), meta JSON,
// vector (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for id, e := range m.entries {
		metaBytes, err := json.Marshal(e.meta)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if err := writeBlob(f, []byte(id)); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeBlob(f, metaBytes); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(e.vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions
// must match. If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	entries := make(map[string]*memoryEntry, n)
	for i := uint32(0); i < n; i++ {
		idBytes, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		metaBytes, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		var meta Metadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
		buf := make([]byte, m.dimensions*4)
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		entries[string(idBytes)] = &memoryEntry{vec: bytesToFloat32Slice(buf), meta: meta}
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return nil
}

func writeBlob(f *os.File, b []byte) error {
	if err := binary.Write(f, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := f.Write(b)
	return err
}

func readBlob(f *os.File) ([]byte, error) {
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, err
	}
	return b, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of entries in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
