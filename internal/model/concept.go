package model

// MatchType records which matching strategy produced a ConceptMatch,
// per the span-to-concept match taxonomy: a plain dictionary hit
// against a concept's preferred label carries the strongest prior;
// alt-label, semantic, LM and expanded-occurrence hits are
// progressively less direct.
type MatchType string

const (
	MatchTypePreferredLabel MatchType = "preferred_label"
	MatchTypeAltLabel       MatchType = "alt_label"
	MatchTypeSemantic       MatchType = "semantic"
	MatchTypeLLM            MatchType = "llm"
	MatchTypeExpanded       MatchType = "expanded"
)

// SourceKindTag names one of the stages that independently corroborated
// a match. A match's Sources field is a multiset (duplicates collapse,
// order of first appearance is kept) that only ever grows as a match
// passes through later stages — see AddSource.
type SourceKindTag string

const (
	SourceRuler       SourceKindTag = "ruler"
	SourceLLM         SourceKindTag = "llm"
	SourceSemantic    SourceKindTag = "semantic"
	SourceStringMatch SourceKindTag = "string_match"
)

// AnnotationState is the lifecycle state of a ConceptMatch. Only the
// user-action API (promote/reject/restore) transitions state away
// from Preliminary, except for the ontology-lookup failure path, which
// rejects an annotation outright with reason unresolved_iri.
type AnnotationState string

const (
	StatePreliminary AnnotationState = "preliminary"
	StateConfirmed   AnnotationState = "confirmed"
	StateRejected    AnnotationState = "rejected"
)

// LineageEntry is one append-only record of how a field on an
// annotation changed. Lineage is never rewritten in place; stages that
// revise a confidence or label append a new entry instead.
type LineageEntry struct {
	Timestamp string      `json:"timestamp"`
	Stage     string      `json:"stage"`
	Action    string      `json:"action"`
	Before    interface{} `json:"before,omitempty"`
	After     interface{} `json:"after,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// ConceptMatch binds a span of text to a FOLIO ontology concept. ID is
// stable across the stages that revise it (the Reconciler assigns it
// once at creation and nothing downstream regenerates it), so callers
// can track one match's history through Lineage.
type ConceptMatch struct {
	ID               string            `json:"id"`
	ConceptID        string            `json:"concept_id"`
	Label            string            `json:"label"`
	SurfaceText      string            `json:"surface_text,omitempty"`
	PreferredLabel   string            `json:"preferred_label,omitempty"`
	Span             Span              `json:"span"`
	Confidence       float64           `json:"confidence"`
	MatchType        MatchType         `json:"match_type"`
	Branches         []string          `json:"branches,omitempty"`
	BackupBranches   []string          `json:"backup_branches,omitempty"`
	BackupCandidates []BackupCandidate `json:"backup_candidates,omitempty"`
	Sources          []SourceKindTag   `json:"sources,omitempty"`
	State            AnnotationState   `json:"state,omitempty"`
	RejectedReason   string            `json:"rejected_reason,omitempty"`
	Lineage          []LineageEntry    `json:"lineage,omitempty"`
}

// AddSource folds src into the match's Sources multiset. Sources only
// ever grow (testable property: source monotonicity); re-adding a
// source already present is a no-op.
func (c *ConceptMatch) AddSource(src SourceKindTag) {
	for _, s := range c.Sources {
		if s == src {
			return
		}
	}
	c.Sources = append(c.Sources, src)
}

// MergeSources folds every element of other into c's Sources multiset.
func (c *ConceptMatch) MergeSources(other []SourceKindTag) {
	for _, s := range other {
		c.AddSource(s)
	}
}

// BackupCandidate is a runner-up concept for a ConceptMatch's span,
// kept so the Reranker and Branch Judge can reconsider a decision
// without re-querying the ontology. Candidates are deduplicated by
// ConceptID and capped at the top-k by Confidence.
type BackupCandidate struct {
	ConceptID  string  `json:"concept_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// BackupCandidateTopK is the number of backup candidates retained per
// ConceptMatch.
const BackupCandidateTopK = 5

// IndividualType closes the set of OWL-individual categories the
// Individual Extractor's rule-based submodules produce.
type IndividualType string

const (
	IndividualCitation   IndividualType = "citation"
	IndividualDate       IndividualType = "date"
	IndividualMoney      IndividualType = "money"
	IndividualPercent    IndividualType = "percent"
	IndividualDuration   IndividualType = "duration"
	IndividualAddress    IndividualType = "address"
	IndividualPhone      IndividualType = "phone"
	IndividualEmail      IndividualType = "email"
	IndividualURL        IndividualType = "url"
	IndividualStatute    IndividualType = "statute"
	IndividualCourt      IndividualType = "court"
	IndividualCaseNumber IndividualType = "case_number"
	IndividualOrg        IndividualType = "org"
	IndividualPerson     IndividualType = "person"
	IndividualGPE        IndividualType = "gpe"
)

// Individual is a named entity (a person, organization, date, citation,
// or other proper noun/ fact) extracted from the document text by the
// rule-based submodules, optionally linked to an ontology concept that
// classifies it.
type Individual struct {
	ID              string          `json:"id"`
	Type            IndividualType  `json:"type"`
	Name            string          `json:"name"`
	Span            Span            `json:"span"`
	NormalizedForm  string          `json:"normalized_form,omitempty"`
	ResolvedURL     string          `json:"resolved_url,omitempty"`
	Confidence      float64         `json:"confidence"`
	LinkedConceptID string          `json:"linked_concept_id,omitempty"`
	Sources         []SourceKindTag `json:"sources,omitempty"`
}

// AddSource folds src into the individual's Sources multiset.
func (ind *Individual) AddSource(src SourceKindTag) {
	for _, s := range ind.Sources {
		if s == src {
			return
		}
	}
	ind.Sources = append(ind.Sources, src)
}

// PropertyAnnotation records that the text at ValueSpan supplies a
// value for PropertyConceptID on the subject described at SubjectSpan,
// optionally bound to the domain/range concept instances on either
// side of it.
type PropertyAnnotation struct {
	ID                string          `json:"id"`
	SubjectSpan       Span            `json:"subject_span"`
	PropertyConceptID string          `json:"property_concept_id"`
	PreferredLabel    string          `json:"preferred_label,omitempty"`
	ValueSpan         Span            `json:"value_span"`
	DomainClasses     []string        `json:"domain_classes,omitempty"`
	RangeClasses      []string        `json:"range_classes,omitempty"`
	InverseConceptID  string          `json:"inverse_concept_id,omitempty"`
	LinkedSubjectID   string          `json:"linked_subject_id,omitempty"`
	LinkedObjectID    string          `json:"linked_object_id,omitempty"`
	Confidence        float64         `json:"confidence"`
	Sources           []SourceKindTag `json:"sources,omitempty"`
}

// AddSource folds src into the property annotation's Sources multiset.
func (p *PropertyAnnotation) AddSource(src SourceKindTag) {
	for _, s := range p.Sources {
		if s == src {
			return
		}
	}
	p.Sources = append(p.Sources, src)
}

// Triple is a subject-predicate-object relation extracted by the
// Dependency Relation Extractor, pointing at the ConceptMatch or
// Individual IDs that anchor each role.
type Triple struct {
	SubjectID     string  `json:"subject_id"`
	Predicate     string  `json:"predicate"`
	ObjectID      string  `json:"object_id"`
	EvidenceSpan  Span    `json:"evidence_span"`
	Confidence    float64 `json:"confidence"`
}
