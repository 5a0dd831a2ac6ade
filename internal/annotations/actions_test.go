package annotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/enrich/internal/model"
)

func newJobResult() *model.JobResult {
	return &model.JobResult{
		JobID: "job-1",
		ConceptMatches: []model.ConceptMatch{
			{
				ID:         "ann-1",
				ConceptID:  "iri:Actor",
				Label:      "Actor",
				Confidence: 0.6,
				State:      model.StatePreliminary,
				BackupCandidates: []model.BackupCandidate{
					{ConceptID: "iri:Document", Label: "Document", Confidence: 0.5},
				},
			},
			{
				ID:         "ann-2",
				ConceptID:  "iri:Actor",
				Label:      "Actor",
				Confidence: 0.7,
				State:      model.StatePreliminary,
				BackupCandidates: []model.BackupCandidate{
					{ConceptID: "iri:Document", Label: "Document", Confidence: 0.4},
				},
			},
		},
	}
}

func TestPromote_SwapsActiveAndDemotesPrior(t *testing.T) {
	result := newJobResult()

	m, err := Promote(result, "ann-1", "iri:Document")
	require.NoError(t, err)
	assert.Equal(t, "iri:Document", m.ConceptID)
	require.Len(t, m.BackupCandidates, 1)
	assert.Equal(t, "iri:Actor", m.BackupCandidates[0].ConceptID)
	assert.Equal(t, model.StateConfirmed, m.State)
	require.Len(t, m.Lineage, 1)
	assert.Equal(t, "promote", m.Lineage[0].Action)
}

func TestPromote_IdempotentOnRepeatedCalls(t *testing.T) {
	result := newJobResult()

	_, err := Promote(result, "ann-1", "iri:Document")
	require.NoError(t, err)
	m, err := Promote(result, "ann-1", "iri:Document")
	require.NoError(t, err)

	assert.Equal(t, "iri:Document", m.ConceptID)
	require.Len(t, m.Lineage, 2, "promote(X); promote(X) still appends an event each time, but the active iri stays at X")
}

func TestPromote_UnknownBackupRejected(t *testing.T) {
	result := newJobResult()
	_, err := Promote(result, "ann-1", "iri:NotACandidate")
	assert.Error(t, err)
}

func TestRejectThenRestore_RoundTripsState(t *testing.T) {
	result := newJobResult()

	m, err := Reject(result, "ann-1", "false_positive")
	require.NoError(t, err)
	assert.Equal(t, model.StateRejected, m.State)
	assert.Equal(t, "false_positive", m.RejectedReason)

	m, err = Restore(result, "ann-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateConfirmed, m.State)
	assert.Empty(t, m.RejectedReason)

	require.Len(t, m.Lineage, 2)
	assert.Equal(t, "reject", m.Lineage[0].Action)
	assert.Equal(t, "restore", m.Lineage[1].Action)
}

func TestRestoreThenReject_IsIdempotentAtRejected(t *testing.T) {
	result := newJobResult()

	_, err := Reject(result, "ann-1", "reason-a")
	require.NoError(t, err)
	_, err = Restore(result, "ann-1")
	require.NoError(t, err)
	m, err := Reject(result, "ann-1", "reason-b")
	require.NoError(t, err)

	assert.Equal(t, model.StateRejected, m.State)
	assert.Equal(t, "reason-b", m.RejectedReason)
}

func TestCascadePromote_AppliesToEveryMatchingBackup(t *testing.T) {
	result := newJobResult()

	touched, err := CascadePromote(result, "iri:Document")
	require.NoError(t, err)
	assert.Len(t, touched, 2)

	for _, m := range result.ConceptMatches {
		assert.Equal(t, "iri:Document", m.ConceptID)
	}
}

func TestBulkReject_RejectsEveryMatchForIRI(t *testing.T) {
	result := newJobResult()

	touched, err := BulkReject(result, "iri:Actor")
	require.NoError(t, err)
	assert.Len(t, touched, 2)

	for _, m := range result.ConceptMatches {
		assert.Equal(t, model.StateRejected, m.State)
		assert.Equal(t, "bulk_reject", m.RejectedReason)
	}
}

func TestLineage_ReturnsFullHistory(t *testing.T) {
	result := newJobResult()
	_, err := Reject(result, "ann-1", "r1")
	require.NoError(t, err)
	_, err = Restore(result, "ann-1")
	require.NoError(t, err)

	entries, err := Lineage(result, "ann-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestLineage_UnknownAnnotationErrors(t *testing.T) {
	result := newJobResult()
	_, err := Lineage(result, "does-not-exist")
	assert.Error(t, err)
}
