// Package jobstore persists JobResults to the filesystem: the job
// document itself as JSON written via a temp-file-then-rename, and its
// lineage as an append-only, line-delimited JSON log.
package jobstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foliolab/enrich/internal/apperrors"
	"github.com/foliolab/enrich/internal/model"
)

// Store is a filesystem-backed JobResult store. Writes are atomic: the
// result is written to a temp file in the same directory, then
// renamed into place, so a reader never observes a partially written
// job document.
type Store struct {
	rootDir string
}

func New(rootDir string) (*Store, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, apperrors.NewFatalError("jobstore", "failed to create root dir", err)
	}
	return &Store{rootDir: rootDir}, nil
}

func (s *Store) jobPath(jobID string) string {
	return filepath.Join(s.rootDir, jobID+".json")
}

func (s *Store) lineagePath(jobID string) string {
	return filepath.Join(s.rootDir, jobID+".lineage.jsonl")
}

// Save writes result atomically: temp file, fsync, rename.
func (s *Store) Save(result *model.JobResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return apperrors.NewFatalError("jobstore", "failed to marshal job result", err)
	}

	tmp, err := os.CreateTemp(s.rootDir, result.JobID+".tmp-*")
	if err != nil {
		return apperrors.NewFatalError("jobstore", "failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewFatalError("jobstore", "failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.NewFatalError("jobstore", "failed to fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewFatalError("jobstore", "failed to close temp file", err)
	}

	if err := os.Rename(tmpPath, s.jobPath(result.JobID)); err != nil {
		return apperrors.NewFatalError("jobstore", "failed to rename into place", err)
	}

	return s.appendLineage(result)
}

// appendLineage writes every ConceptMatch's lineage as one
// line-delimited JSON record per match, appended to the job's lineage
// log. The log is append-only: a job is never rewritten in place, only
// added to, so the full history of how a match's confidence changed
// stays reconstructable.
func (s *Store) appendLineage(result *model.JobResult) error {
	f, err := os.OpenFile(s.lineagePath(result.JobID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.NewFatalError("jobstore", "failed to open lineage log", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, m := range result.ConceptMatches {
		record := struct {
			ConceptMatchID string               `json:"concept_match_id"`
			Lineage        []model.LineageEntry `json:"lineage"`
		}{ConceptMatchID: m.ID, Lineage: m.Lineage}
		if err := enc.Encode(record); err != nil {
			return apperrors.NewFatalError("jobstore", "failed to append lineage record", err)
		}
	}
	return nil
}

// Load reads a persisted JobResult by id.
func (s *Store) Load(jobID string) (*model.JobResult, error) {
	data, err := os.ReadFile(s.jobPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewInputError("jobstore", "unknown job id: "+jobID, nil)
		}
		return nil, apperrors.NewFatalError("jobstore", "failed to read job file", err)
	}
	var result model.JobResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, apperrors.NewSchemaError("jobstore", "malformed job file", err)
	}
	return &result, nil
}

// Exists reports whether a job with the given id has been persisted.
func (s *Store) Exists(jobID string) bool {
	_, err := os.Stat(s.jobPath(jobID))
	return err == nil
}

// Prune removes job documents (and their lineage logs) whose files
// have not been modified for longer than maxAge, enforcing the
// configured retention window. It returns the number of jobs removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return 0, apperrors.NewFatalError("jobstore", "failed to read root dir", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".lineage.jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		jobID := strings.TrimSuffix(name, ".json")
		if err := os.Remove(s.jobPath(jobID)); err != nil {
			continue
		}
		os.Remove(s.lineagePath(jobID))
		removed++
	}
	return removed, nil
}
