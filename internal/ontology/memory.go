package ontology

import (
	"context"
	"strings"
	"sync"

	"github.com/foliolab/enrich/internal/apperrors"
)

// MemoryAccessor is an in-process Accessor backed by a concept map and
// a memoized descendant check over the parent-pointer DAG. It is the
// default backend: small enough FOLIO snapshots fit comfortably in
// memory and this avoids a network round trip per lookup.
type MemoryAccessor struct {
	version  string
	concepts map[string]*Concept
	byLabel  map[string][]*Concept

	mu           sync.Mutex
	descendantMemo map[string]bool
}

// NewMemoryAccessor builds an Accessor from a flat concept list.
func NewMemoryAccessor(version string, concepts []*Concept) *MemoryAccessor {
	m := &MemoryAccessor{
		version:        version,
		concepts:       make(map[string]*Concept, len(concepts)),
		byLabel:        make(map[string][]*Concept),
		descendantMemo: make(map[string]bool),
	}
	for _, c := range concepts {
		m.concepts[c.ID] = c
		m.index(c.PrefLabel, c)
		for _, alt := range c.AltLabels {
			m.index(alt, c)
		}
	}
	return m
}

func (m *MemoryAccessor) index(label string, c *Concept) {
	if label == "" {
		return
	}
	key := strings.ToLower(label)
	m.byLabel[key] = append(m.byLabel[key], c)
}

func (m *MemoryAccessor) Concept(_ context.Context, id string) (*Concept, error) {
	c, ok := m.concepts[id]
	if !ok {
		return nil, apperrors.NewOntologyError("ontology", "unknown concept id: "+id, nil)
	}
	return c, nil
}

func (m *MemoryAccessor) ConceptsByLabel(_ context.Context, label string) ([]*Concept, error) {
	return m.byLabel[strings.ToLower(label)], nil
}

func (m *MemoryAccessor) BranchesFor(_ context.Context, id string) ([]string, error) {
	c, ok := m.concepts[id]
	if !ok {
		return nil, apperrors.NewOntologyError("ontology", "unknown concept id: "+id, nil)
	}
	return c.Branches, nil
}

func (m *MemoryAccessor) AllLabels(_ context.Context) ([]LabelEntry, error) {
	entries := make([]LabelEntry, 0, len(m.concepts)*2)
	for _, c := range m.concepts {
		if c.PrefLabel != "" {
			entries = append(entries, LabelEntry{Label: c.PrefLabel, ConceptID: c.ID, IsPreferred: true})
		}
		for _, alt := range c.AltLabels {
			entries = append(entries, LabelEntry{Label: alt, ConceptID: c.ID, IsPreferred: false})
		}
	}
	return entries, nil
}

// IsDescendant walks parent pointers breadth-first from candidateID
// looking for ancestorID, memoizing the result for the pair. FOLIO's
// DAG is shallow enough (a handful of levels) that this is cheap even
// unmemoized, but a hot property-matching loop can call it thousands
// of times per document.
func (m *MemoryAccessor) IsDescendant(_ context.Context, candidateID, ancestorID string) (bool, error) {
	if candidateID == ancestorID {
		return true, nil
	}
	key := candidateID + "\x00" + ancestorID
	m.mu.Lock()
	if v, ok := m.descendantMemo[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	visited := map[string]bool{candidateID: true}
	queue := []string{candidateID}
	found := false
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, ok := m.concepts[cur]
		if !ok {
			continue
		}
		for _, p := range c.ParentIDs {
			if p == ancestorID {
				found = true
				break
			}
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
		if found {
			break
		}
	}

	m.mu.Lock()
	m.descendantMemo[key] = found
	m.mu.Unlock()
	return found, nil
}

func (m *MemoryAccessor) Version() string { return m.version }
