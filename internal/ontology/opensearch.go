package ontology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/foliolab/enrich/internal/apperrors"
)

// OpenSearchAccessor backs the Accessor interface with an OpenSearch
// index of FOLIO concepts, for deployments whose ontology snapshot is
// too large to hold comfortably in process memory.
type OpenSearchAccessor struct {
	client  *opensearch.Client
	index   string
	version string
}

func NewOpenSearchAccessor(url, index, version string) (*OpenSearchAccessor, error) {
	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, apperrors.NewTransientDependencyError("ontology", "failed to build opensearch client", err)
	}
	return &OpenSearchAccessor{client: client, index: index, version: version}, nil
}

type conceptDoc struct {
	ID         string   `json:"id"`
	PrefLabel  string   `json:"pref_label"`
	AltLabels  []string `json:"alt_labels"`
	ParentIDs  []string `json:"parent_ids"`
	IsProperty bool     `json:"is_property"`
	Branches   []string `json:"branches"`
	DomainIDs  []string `json:"domain_ids"`
	RangeIDs   []string `json:"range_ids"`
	InverseID  string   `json:"inverse_id"`
}

func (o *OpenSearchAccessor) Concept(ctx context.Context, id string) (*Concept, error) {
	req := opensearchapi.GetRequest{Index: o.index, DocumentID: id}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return nil, apperrors.NewTransientDependencyError("ontology", "opensearch get failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewOntologyError("ontology", "unknown concept id: "+id, nil)
	}
	var body struct {
		Source conceptDoc `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, apperrors.NewSchemaError("ontology", "malformed opensearch concept doc", err)
	}
	return docToConcept(body.Source), nil
}

func (o *OpenSearchAccessor) ConceptsByLabel(ctx context.Context, label string) ([]*Concept, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"term": map[string]interface{}{"pref_label.keyword": label}},
					{"term": map[string]interface{}{"alt_labels.keyword": label}},
				},
			},
		},
	}
	hits, err := o.search(ctx, query)
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (o *OpenSearchAccessor) AllLabels(ctx context.Context) ([]LabelEntry, error) {
	concepts, err := o.search(ctx, map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"size":  10000,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]LabelEntry, 0, len(concepts)*2)
	for _, c := range concepts {
		if c.PrefLabel != "" {
			entries = append(entries, LabelEntry{Label: c.PrefLabel, ConceptID: c.ID, IsPreferred: true})
		}
		for _, alt := range c.AltLabels {
			entries = append(entries, LabelEntry{Label: alt, ConceptID: c.ID, IsPreferred: false})
		}
	}
	return entries, nil
}

// IsDescendant walks parent pointers via repeated Concept lookups. A
// memory-backed Accessor memoizes this; here each hop costs a network
// round trip, so callers on this backend should prefer batching
// descendant checks where the call site allows it.
func (o *OpenSearchAccessor) IsDescendant(ctx context.Context, candidateID, ancestorID string) (bool, error) {
	if candidateID == ancestorID {
		return true, nil
	}
	visited := map[string]bool{candidateID: true}
	queue := []string{candidateID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, err := o.Concept(ctx, cur)
		if err != nil {
			continue
		}
		for _, p := range c.ParentIDs {
			if p == ancestorID {
				return true, nil
			}
			if !visited[p] {
				visited[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}

func (o *OpenSearchAccessor) Version() string { return o.version }

func (o *OpenSearchAccessor) BranchesFor(ctx context.Context, id string) ([]string, error) {
	c, err := o.Concept(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Branches, nil
}

func (o *OpenSearchAccessor) search(ctx context.Context, query map[string]interface{}) ([]*Concept, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, apperrors.NewFatalError("ontology", "failed to encode query", err)
	}
	req := opensearchapi.SearchRequest{Index: []string{o.index}, Body: &buf}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return nil, apperrors.NewTransientDependencyError("ontology", "opensearch search failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewTransientDependencyError("ontology", fmt.Sprintf("opensearch search returned %s", res.Status()), nil)
	}
	var body struct {
		Hits struct {
			Hits []struct {
				Source conceptDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, apperrors.NewSchemaError("ontology", "malformed opensearch search response", err)
	}
	out := make([]*Concept, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		out = append(out, docToConcept(h.Source))
	}
	return out, nil
}

func docToConcept(d conceptDoc) *Concept {
	return &Concept{
		ID:         d.ID,
		PrefLabel:  d.PrefLabel,
		AltLabels:  d.AltLabels,
		ParentIDs:  d.ParentIDs,
		IsProperty: d.IsProperty,
		Branches:   d.Branches,
	}
}
