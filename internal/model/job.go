package model

import "time"

// JobStatus is the lifecycle state of a pipeline run.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	// JobStatusCompletedWithWarnings marks a job that finished but
	// degraded somewhere along the way; the specifics live in the
	// result's Errors and the Metadata's QualitySignals.
	JobStatusCompletedWithWarnings JobStatus = "completed_with_warnings"
	JobStatusFailed                JobStatus = "failed"
	JobStatusCancelled             JobStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithWarnings, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// QualitySignalKind closes the set of quality signals the Metadata
// Synthesizer may attach to a job, limited to the values the pipeline
// actually emits.
type QualitySignalKind string

const (
	QualitySignalLowConfidenceDensity QualitySignalKind = "low_confidence_density"
	QualitySignalSparseExtraction     QualitySignalKind = "sparse_extraction"
	QualitySignalDegradedCollaborator QualitySignalKind = "degraded_collaborator"
	QualitySignalConflictUnresolved   QualitySignalKind = "conflict_unresolved"
)

// QualitySignal is one observation the Metadata Synthesizer records
// about the reliability of a job's output.
type QualitySignal struct {
	Kind    QualitySignalKind `json:"kind"`
	Detail  string            `json:"detail,omitempty"`
}

// Metadata is the synthesized, document-level summary a job produces:
// the 37-field record the Metadata Synthesizer assembles from every
// upstream stage's output.
type Metadata struct {
	DocumentType     string          `json:"document_type"`
	DocumentTypeConf float64         `json:"document_type_confidence"`
	Jurisdiction     string          `json:"jurisdiction,omitempty"`
	CourtLevel       string          `json:"court_level,omitempty"`
	CaseCategory     string          `json:"case_category,omitempty"`
	AreaOfLaw        string          `json:"area_of_law,omitempty"`
	AreaOfLawConf    float64         `json:"area_of_law_confidence,omitempty"`
	CaseNumber       string          `json:"case_number,omitempty"`
	JudgeName        string          `json:"judge_name,omitempty"`
	Attorneys        []string        `json:"attorneys,omitempty"`
	Charges          []string        `json:"charges,omitempty"`
	Authorities      []string        `json:"authorities,omitempty"`
	PrimaryConcepts  []string        `json:"primary_concepts,omitempty"`
	PrimaryIndividuals []string      `json:"primary_individuals,omitempty"`
	// PartyRoles maps a party's name to its role in the case (e.g.
	// "plaintiff", "defendant", "attorney", "judge"); the no-LM path
	// records the generic "party" when no role keyword is found near
	// the mention — see Metadata Synthesizer.
	PartyRoles       map[string]string `json:"party_roles,omitempty"`
	ConceptCount     int             `json:"concept_count"`
	IndividualCount  int             `json:"individual_count"`
	PropertyCount    int             `json:"property_count"`
	TripleCount      int             `json:"triple_count"`
	AverageConfidence float64        `json:"average_confidence"`
	MinConfidence    float64         `json:"min_confidence"`
	LowConfidenceCount int           `json:"low_confidence_count"`
	UnresolvedConflictCount int      `json:"unresolved_conflict_count"`
	DegradedStages   []string        `json:"degraded_stages,omitempty"`
	QualitySignals   []QualitySignal `json:"quality_signals,omitempty"`
	SourceURI        string          `json:"source_uri,omitempty"`
	DocumentLength   int             `json:"document_length"`
	ChunkCount       int             `json:"chunk_count"`
	ProcessingDurationMS int64       `json:"processing_duration_ms"`
	Phase1DurationMS int64           `json:"phase1_duration_ms"`
	Phase2DurationMS int64           `json:"phase2_duration_ms"`
	Phase3DurationMS int64           `json:"phase3_duration_ms"`
	LMCallCount      int             `json:"lm_call_count"`
	LMProviderUsed   string          `json:"lm_provider_used,omitempty"`
	EmbeddingIndexUsed bool          `json:"embedding_index_used"`
	OntologyVersion  string          `json:"ontology_version,omitempty"`
	SynthesizedAt    time.Time       `json:"synthesized_at"`
}

// StageError is one failure recorded against a job, classified per the
// error taxonomy in apperrors so callers can distinguish retryable
// conditions from ones requiring operator attention.
type StageError struct {
	Stage     string `json:"stage"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// JobResult is the complete, persisted outcome of running the pipeline
// over one Document.
type JobResult struct {
	JobID               string               `json:"job_id"`
	Status              JobStatus            `json:"status"`
	TextHash            string               `json:"text_hash,omitempty"`
	Document            *Document            `json:"document,omitempty"`
	ConceptMatches      []ConceptMatch       `json:"concept_matches,omitempty"`
	Individuals         []Individual         `json:"individuals,omitempty"`
	PropertyAnnotations []PropertyAnnotation `json:"property_annotations,omitempty"`
	Triples             []Triple             `json:"triples,omitempty"`
	Metadata            *Metadata            `json:"metadata,omitempty"`
	Errors              []StageError         `json:"errors,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	StartedAt           *time.Time           `json:"started_at,omitempty"`
	FinishedAt          *time.Time           `json:"finished_at,omitempty"`
}
