package embedindex

import (
	"context"
	"testing"
)

func TestMemoryIndexNearestRanksByCosineSimilarity(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add("exact", []float32{1, 0, 0})
	idx.Add("orthogonal", []float32{0, 1, 0})
	idx.Add("opposite", []float32{-1, 0, 0})

	neighbors, err := idx.Nearest(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Nearest returned error: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].ConceptID != "exact" {
		t.Fatalf("top neighbor = %q, want %q", neighbors[0].ConceptID, "exact")
	}
	if neighbors[0].Score < 0.99 {
		t.Fatalf("expected near-1.0 score for identical vector, got %v", neighbors[0].Score)
	}
}

func TestMemoryIndexNearestInFiltersToCandidates(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add("a", []float32{1, 0})
	idx.Add("b", []float32{0, 1})
	idx.Add("c", []float32{1, 1})

	neighbors, err := idx.NearestIn(context.Background(), []float32{1, 0}, []string{"b", "c"}, 5)
	if err != nil {
		t.Fatalf("NearestIn returned error: %v", err)
	}
	for _, n := range neighbors {
		if n.ConceptID == "a" {
			t.Fatalf("expected candidate filtering to exclude %q", "a")
		}
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors from the candidate set, got %d", len(neighbors))
	}
}

func TestMemoryIndexAvailable(t *testing.T) {
	idx := NewMemoryIndex()
	if idx.Available() {
		t.Fatal("expected empty index to be unavailable")
	}
	idx.Add("a", []float32{1})
	if !idx.Available() {
		t.Fatal("expected non-empty index to be available")
	}
}

func TestMemoryIndexZeroVectorCosineIsZero(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Add("zero", []float32{0, 0, 0})
	neighbors, err := idx.Nearest(context.Background(), []float32{1, 2, 3}, 1)
	if err != nil {
		t.Fatalf("Nearest returned error: %v", err)
	}
	if neighbors[0].Score != 0 {
		t.Fatalf("expected score 0 for zero vector, got %v", neighbors[0].Score)
	}
}
