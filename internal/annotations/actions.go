// Package annotations implements the user-action API the HTTP routes
// wrap: promote, reject, restore, cascade_promote, bulk_reject, and
// lineage lookup. Every action mutates a ConceptMatch already present
// on a JobResult and appends exactly one lineage event recording what
// changed and why, per the append-only lineage contract in the data
// model.
package annotations

import (
	"fmt"
	"time"

	"github.com/foliolab/enrich/internal/apperrors"
	"github.com/foliolab/enrich/internal/model"
)

const stageUserAction = "user_action"

// findMatch returns a pointer into result.ConceptMatches for the given
// annotation id, or an input error if no such annotation exists on the
// job. Ontology lookup failures reject an annotation rather than drop
// it, so every id that ever existed on the job remains addressable.
func findMatch(result *model.JobResult, annotationID string) (*model.ConceptMatch, error) {
	for i := range result.ConceptMatches {
		if result.ConceptMatches[i].ID == annotationID {
			return &result.ConceptMatches[i], nil
		}
	}
	return nil, apperrors.NewInputError("annotations", "unknown annotation id: "+annotationID, nil)
}

func appendLineage(m *model.ConceptMatch, action string, before, after interface{}, reason string) {
	m.Lineage = append(m.Lineage, model.LineageEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Stage:     stageUserAction,
		Action:    action,
		Before:    before,
		After:     after,
		Reason:    reason,
	})
}

// promoteSnapshot is the before/after shape recorded on promote, so the
// lineage log carries enough to reconstruct which IRI was active.
type promoteSnapshot struct {
	ConceptID string  `json:"concept_id"`
	Label     string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Promote replaces an annotation's active concept with one of its
// backup candidates, demoting the previously active concept to the top
// of the backup list. Promoting the IRI that is already active is a
// no-op on the bound concept (idempotent, per the resurrection
// property) but still appends a lineage event.
func Promote(result *model.JobResult, annotationID, backupIRI string) (*model.ConceptMatch, error) {
	m, err := findMatch(result, annotationID)
	if err != nil {
		return nil, err
	}

	before := promoteSnapshot{ConceptID: m.ConceptID, Label: m.Label, Confidence: m.Confidence}

	if m.ConceptID == backupIRI {
		m.State = model.StateConfirmed
		appendLineage(m, "promote", before, before, "promote requested for already-active concept")
		return m, nil
	}

	idx := -1
	for i, bc := range m.BackupCandidates {
		if bc.ConceptID == backupIRI {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperrors.NewInputError("annotations", fmt.Sprintf("iri %q is not a backup candidate of annotation %q", backupIRI, annotationID), nil)
	}

	chosen := m.BackupCandidates[idx]
	demoted := model.BackupCandidate{ConceptID: m.ConceptID, Label: m.Label, Confidence: m.Confidence}

	newBackups := make([]model.BackupCandidate, 0, len(m.BackupCandidates))
	newBackups = append(newBackups, demoted)
	for i, bc := range m.BackupCandidates {
		if i == idx {
			continue
		}
		newBackups = append(newBackups, bc)
	}
	if len(newBackups) > model.BackupCandidateTopK {
		newBackups = newBackups[:model.BackupCandidateTopK]
	}

	m.ConceptID = chosen.ConceptID
	m.Label = chosen.Label
	m.PreferredLabel = chosen.Label
	m.Confidence = chosen.Confidence
	m.BackupCandidates = newBackups
	m.State = model.StateConfirmed
	m.RejectedReason = ""

	after := promoteSnapshot{ConceptID: m.ConceptID, Label: m.Label, Confidence: m.Confidence}
	appendLineage(m, "promote", before, after, "user promoted backup candidate to active")
	return m, nil
}

// Reject marks an annotation rejected with the given reason. Rejection
// never deletes the annotation; it only marks state, per the lifecycle
// rule that nothing is destroyed.
func Reject(result *model.JobResult, annotationID, reason string) (*model.ConceptMatch, error) {
	m, err := findMatch(result, annotationID)
	if err != nil {
		return nil, err
	}
	before := m.State
	m.State = model.StateRejected
	m.RejectedReason = reason
	appendLineage(m, "reject", before, model.StateRejected, reason)
	return m, nil
}

// Restore transitions a rejected annotation back to confirmed. The
// prior rejection stays in the lineage log; restore does not erase it,
// it only adds a new event on top.
func Restore(result *model.JobResult, annotationID string) (*model.ConceptMatch, error) {
	m, err := findMatch(result, annotationID)
	if err != nil {
		return nil, err
	}
	before := m.State
	m.State = model.StateConfirmed
	m.RejectedReason = ""
	appendLineage(m, "restore", before, model.StateConfirmed, "")
	return m, nil
}

// CascadePromote applies Promote(iri) to every annotation on the job
// that currently carries iri as a backup candidate, so a single
// disambiguation decision on one occurrence of a surface can be
// applied document-wide instead of occurrence by occurrence.
// Annotations already active at iri are left as a lineage-only no-op,
// consistent with Promote's own idempotence.
func CascadePromote(result *model.JobResult, iri string) ([]*model.ConceptMatch, error) {
	var touched []*model.ConceptMatch
	for i := range result.ConceptMatches {
		m := &result.ConceptMatches[i]
		if m.ConceptID == iri {
			if _, err := Promote(result, m.ID, iri); err != nil {
				return touched, err
			}
			touched = append(touched, m)
			continue
		}
		hasBackup := false
		for _, bc := range m.BackupCandidates {
			if bc.ConceptID == iri {
				hasBackup = true
				break
			}
		}
		if !hasBackup {
			continue
		}
		if _, err := Promote(result, m.ID, iri); err != nil {
			return touched, err
		}
		touched = append(touched, m)
	}
	return touched, nil
}

// BulkReject rejects every annotation on the job whose active concept
// is iri, e.g. when a reviewer decides a whole concept is a systematic
// false positive for this document.
func BulkReject(result *model.JobResult, iri string) ([]*model.ConceptMatch, error) {
	var touched []*model.ConceptMatch
	for i := range result.ConceptMatches {
		m := &result.ConceptMatches[i]
		if m.ConceptID != iri {
			continue
		}
		if _, err := Reject(result, m.ID, "bulk_reject"); err != nil {
			return touched, err
		}
		touched = append(touched, m)
	}
	return touched, nil
}

// Lineage returns the ordered lineage log for a single annotation.
func Lineage(result *model.JobResult, annotationID string) ([]model.LineageEntry, error) {
	m, err := findMatch(result, annotationID)
	if err != nil {
		return nil, err
	}
	return m.Lineage, nil
}
