package embedindex

import (
	"context"
	"math"
	"sort"
)

// MemoryIndex is a brute-force cosine-similarity index held in
// process memory, sized for label sets that fit comfortably in RAM.
type MemoryIndex struct {
	ids     []string
	vectors [][]float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Add(conceptID string, vector []float32) {
	m.ids = append(m.ids, conceptID)
	m.vectors = append(m.vectors, vector)
}

func (m *MemoryIndex) Available() bool { return len(m.ids) > 0 }

func (m *MemoryIndex) Nearest(_ context.Context, vector []float32, k int) ([]Neighbor, error) {
	neighbors := make([]Neighbor, 0, len(m.ids))
	for i, v := range m.vectors {
		neighbors = append(neighbors, Neighbor{ConceptID: m.ids[i], Score: cosine(vector, v)})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Score > neighbors[j].Score })
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// NearestIn scores vector against only the vectors registered for
// candidateIDs, used by the Reconciler's embedding triage to compare a
// disputed surface's context against a short, already-known candidate
// list rather than the whole index.
func (m *MemoryIndex) NearestIn(_ context.Context, vector []float32, candidateIDs []string, k int) ([]Neighbor, error) {
	wanted := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		wanted[id] = true
	}
	neighbors := make([]Neighbor, 0, len(candidateIDs))
	for i, v := range m.vectors {
		if !wanted[m.ids[i]] {
			continue
		}
		neighbors = append(neighbors, Neighbor{ConceptID: m.ids[i], Score: cosine(vector, v)})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Score > neighbors[j].Score })
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
