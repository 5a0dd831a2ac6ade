package embedindex

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/foliolab/enrich/internal/apperrors"
)

// OpenSearchIndex backs Index with an OpenSearch k-NN index, for
// concept-embedding sets too large to hold in process memory.
type OpenSearchIndex struct {
	client *opensearch.Client
	index  string
	field  string
	loaded bool
}

func NewOpenSearchIndex(url, index string) (*OpenSearchIndex, error) {
	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, apperrors.NewTransientDependencyError("embedindex", "failed to build opensearch client", err)
	}
	return &OpenSearchIndex{client: client, index: index, field: "embedding", loaded: true}, nil
}

func (o *OpenSearchIndex) Available() bool { return o.loaded }

func (o *OpenSearchIndex) Nearest(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	query := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"knn": map[string]interface{}{
				o.field: map[string]interface{}{
					"vector": vector,
					"k":      k,
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, apperrors.NewFatalError("embedindex", "failed to encode knn query", err)
	}
	req := opensearchapi.SearchRequest{Index: []string{o.index}, Body: &buf}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return nil, apperrors.NewTransientDependencyError("embedindex", "opensearch knn search failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewTransientDependencyError("embedindex", "opensearch knn search returned error status", nil)
	}
	var body struct {
		Hits struct {
			Hits []struct {
				ID    string  `json:"_id"`
				Score float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, apperrors.NewSchemaError("embedindex", "malformed opensearch knn response", err)
	}
	out := make([]Neighbor, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		out = append(out, Neighbor{ConceptID: h.ID, Score: h.Score})
	}
	return out, nil
}

// NearestIn restricts the k-NN query to the given candidate ids via a
// terms filter, used by the Reconciler's embedding triage.
func (o *OpenSearchIndex) NearestIn(ctx context.Context, vector []float32, candidateIDs []string, k int) ([]Neighbor, error) {
	query := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": map[string]interface{}{
					"terms": map[string]interface{}{"_id": candidateIDs},
				},
				"must": map[string]interface{}{
					"knn": map[string]interface{}{
						o.field: map[string]interface{}{
							"vector": vector,
							"k":      k,
						},
					},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, apperrors.NewFatalError("embedindex", "failed to encode knn query", err)
	}
	req := opensearchapi.SearchRequest{Index: []string{o.index}, Body: &buf}
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return nil, apperrors.NewTransientDependencyError("embedindex", "opensearch knn search failed", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewTransientDependencyError("embedindex", "opensearch knn search returned error status", nil)
	}
	var body struct {
		Hits struct {
			Hits []struct {
				ID    string  `json:"_id"`
				Score float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, apperrors.NewSchemaError("embedindex", "malformed opensearch knn response", err)
	}
	out := make([]Neighbor, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		out = append(out, Neighbor{ConceptID: h.ID, Score: h.Score})
	}
	return out, nil
}
