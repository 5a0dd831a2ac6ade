package ontology

import (
	"encoding/json"
	"os"

	"github.com/foliolab/enrich/internal/apperrors"
)

// conceptRecord is the on-disk shape of one concept in a FOLIO
// snapshot file.
type conceptRecord struct {
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

// LoadConceptsFromFile reads a JSON array of concepts from path, for
// bootstrapping a MemoryAccessor from an exported FOLIO snapshot. A
// missing file is not an error: callers fall back to an empty
// accessor and the Ruler degrades to matching nothing, consistent with
// the graceful degradation rules for an absent collaborator.
func LoadConceptsFromFile(path string) ([]*Concept, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewFatalError("ontology", "failed to read concepts file", err)
	}

	var records []conceptRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewSchemaError("ontology", "malformed concepts file", err)
	}

	concepts := make([]*Concept, 0, len(records))
	for _, r := range records {
		concepts = append(concepts, &Concept{
			ID:         r.ID,
			PrefLabel:  r.PrefLabel,
			AltLabels:  r.AltLabels,
			ParentIDs:  r.ParentIDs,
			IsProperty: r.IsProperty,
			Branches:   r.Branches,
			DomainIDs:  r.DomainIDs,
			RangeIDs:   r.RangeIDs,
			InverseID:  r.InverseID,
		})
	}
	return concepts, nil
}
