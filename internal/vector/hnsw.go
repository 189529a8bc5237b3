package vector

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	"github.com/hyperjump/norma/internal/models"
)

// hnswSeed fixes level assignment so rebuilding the same corpus yields the same graph.
const hnswSeed = 42

// HNSWIndex is an approximate index backed by an HNSW graph. Graph node n maps to ids[n].
type HNSWIndex struct {
	graph      *hnsw.Graph[int]
	ids        []string
	dimensions int
	mu         sync.RWMutex
}

// NewHNSWIndex creates an empty graph using cosine distance.
func NewHNSWIndex(dimensions int) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	g.Rng = rand.New(rand.NewSource(hnswSeed))
	return &HNSWIndex{graph: g, dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Dimensions returns the vector length.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Add inserts vectors. Node keys are assigned sequentially so the id list stays parallel to the graph.
func (h *HNSWIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != h.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), h.dimensions)
		}
		if strings.ContainsAny(id, "\r\n") {
			return fmt.Errorf("id %q contains a line break", id)
		}
		vec := make([]float32, h.dimensions)
		copy(vec, vectors[i])
		h.graph.Add(hnsw.MakeNode(len(h.ids), vec))
		h.ids = append(h.ids, id)
	}
	return nil
}

// Search returns the k approximate nearest neighbors with similarity max(0, 1 - cosineDistance).
// Equal similarities are ordered by node key.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), h.dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || len(h.ids) == 0 {
		return nil, nil
	}
	nodes := h.graph.Search(query, k)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })

	out := make([]*Result, 0, len(nodes))
	for _, n := range nodes {
		if n.Key < 0 || n.Key >= len(h.ids) {
			continue
		}
		out = append(out, &Result{ID: h.ids[n.Key], Score: clampUnit(CosineSimilarity(query, n.Value))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Size returns the number of nodes.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ids)
}

// Close is a no-op; the graph lives in memory.
func (h *HNSWIndex) Close() error {
	return nil
}

// Save writes the graph blob and the parallel id list, one id per line.
func (h *HNSWIndex) Save(blobPath, idsPath string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range []string{blobPath, idsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
	}

	blob, err := os.Create(blobPath)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	bw := bufio.NewWriter(blob)
	if err := h.graph.Export(bw); err != nil {
		_ = blob.Close()
		return fmt.Errorf("export graph: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = blob.Close()
		return err
	}
	if err := blob.Close(); err != nil {
		return err
	}

	idf, err := os.Create(idsPath)
	if err != nil {
		return fmt.Errorf("create id list: %w", err)
	}
	defer idf.Close()
	iw := bufio.NewWriter(idf)
	for _, id := range h.ids {
		if _, err := iw.WriteString(id + "\n"); err != nil {
			return fmt.Errorf("write id list: %w", err)
		}
	}
	return iw.Flush()
}

// LoadHNSW reads a graph blob and its id list. Both files must exist; otherwise the result
// wraps models.ErrNotFound and the caller should fall back to an exact scan. A graph whose
// node count differs from the id list, or whose vectors have another length, wraps
// models.ErrStructural.
func LoadHNSW(blobPath, idsPath string, dimensions int) (*HNSWIndex, error) {
	for _, p := range []string{blobPath, idsPath} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("hnsw artifact %s: %w", p, models.ErrNotFound)
			}
			return nil, fmt.Errorf("stat hnsw artifact: %w", err)
		}
	}

	ids, err := readIDList(idsPath)
	if err != nil {
		return nil, err
	}

	h, err := NewHNSWIndex(dimensions)
	if err != nil {
		return nil, err
	}
	blob, err := os.Open(blobPath)
	if err != nil {
		return nil, fmt.Errorf("open graph file: %w", err)
	}
	defer blob.Close()
	if err := h.graph.Import(bufio.NewReader(blob)); err != nil {
		return nil, fmt.Errorf("import graph: %v: %w", err, models.ErrStructural)
	}
	if h.graph.Len() != len(ids) {
		return nil, fmt.Errorf("graph has %d nodes but id list has %d: %w", h.graph.Len(), len(ids), models.ErrStructural)
	}
	if v, ok := h.graph.Lookup(0); ok && len(v) != dimensions {
		return nil, fmt.Errorf("graph vectors have %d dimensions, expected %d: %w", len(v), dimensions, models.ErrStructural)
	}
	h.ids = ids
	return h, nil
}

func readIDList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open id list: %w", err)
	}
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			return nil, fmt.Errorf("id list line %d is blank: %w", n, models.ErrStructural)
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read id list: %w", err)
	}
	return ids, nil
}
