package jobstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/enrich/internal/apperrors"
	"github.com/foliolab/enrich/internal/model"
)

func TestStoreSaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	result := &model.JobResult{
		JobID:  "job-1",
		Status: model.JobStatusCompleted,
		ConceptMatches: []model.ConceptMatch{
			{ID: "m1", ConceptID: "c1", Lineage: []model.LineageEntry{{Stage: "ruler", Action: "propose"}}},
		},
	}

	require.NoError(t, store.Save(result))
	assert.True(t, store.Exists("job-1"))

	loaded, err := store.Load("job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", loaded.JobID)
	assert.Equal(t, model.JobStatusCompleted, loaded.Status)
	require.Len(t, loaded.ConceptMatches, 1)
	assert.Equal(t, "c1", loaded.ConceptMatches[0].ConceptID)
}

func TestStoreSave_WritesLineageLog(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	result := &model.JobResult{
		JobID: "job-2",
		ConceptMatches: []model.ConceptMatch{
			{ID: "m1", Lineage: []model.LineageEntry{{Stage: "resolver", Action: "composite_score"}}},
		},
	}
	require.NoError(t, store.Save(result))

	data, err := os.ReadFile(filepath.Join(dir, "job-2.lineage.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "composite_score")
}

func TestStoreLoad_UnknownJobReturnsInputError(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	_, err = store.Load("does-not-exist")
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindInput, appErr.Kind)
}

func TestStoreExists_FalseForMissingJob(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	assert.False(t, store.Exists("nope"))
}

func TestStorePruneRemovesOnlyExpiredJobs(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	old := &model.JobResult{JobID: "old-job", Status: model.JobStatusCompleted}
	fresh := &model.JobResult{JobID: "fresh-job", Status: model.JobStatusCompleted}
	require.NoError(t, store.Save(old))
	require.NoError(t, store.Save(fresh))

	// Age the old job's files past the retention cutoff.
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old-job.json"), past, past))

	removed, err := store.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, store.Exists("old-job"))
	assert.True(t, store.Exists("fresh-job"))
}
