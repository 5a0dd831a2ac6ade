// Package pipeline implements the three-phase orchestrator described
// in the concurrency and resource model: Phase 1 sequential
// ingest/normalize, Phase 2 concurrent proposal stages, Phase 3
// sequential reconciliation stages.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/foliolab/enrich/internal/apperrors"
	"github.com/foliolab/enrich/internal/dependency"
	"github.com/foliolab/enrich/internal/extract"
	"github.com/foliolab/enrich/internal/llm"
	"github.com/foliolab/enrich/internal/logging"
	"github.com/foliolab/enrich/internal/matching"
	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/normalize"
	"github.com/foliolab/enrich/internal/ontology"
	"github.com/foliolab/enrich/internal/reconcile"
	"github.com/foliolab/enrich/internal/stages"
)

// Timeouts bundles the soft/hard timeouts named in the concurrency and
// resource model.
type Timeouts struct {
	StageSoft time.Duration
	StageHard time.Duration
	JobHard   time.Duration
}

// Orchestrator wires every stage together and drives a single job
// through all three phases.
type Orchestrator struct {
	sources  map[model.SourceKind]normalize.Source
	accessor ontology.Accessor

	ruler           *matching.Ruler
	propertyMatcher *matching.PropertyMatcher
	expanderAutomaton *matching.Automaton
	expanderScale   float64

	proposer          *stages.Proposer
	individualExtractor *extract.Extractor
	docTypeClassifier *stages.DocTypeClassifier
	individualLinker  *stages.IndividualLinker
	propertyLinker    *stages.PropertyLinker
	metadataSynthesizer *stages.MetadataSynthesizer
	areaOfLawClassifier *stages.AreaOfLawClassifier

	reconciler  *reconcile.Reconciler
	resolver    *reconcile.Resolver
	reranker    *reconcile.Reranker
	branchJudge *reconcile.BranchJudge

	dependencyExtractor *dependency.Extractor

	lmChain *llm.Chain

	stageConcurrency int
	jobSemaphore     *semaphore.Weighted
	timeouts         Timeouts
	cpuPool          *WorkerPool
	bus              *EventBus

	log *logging.Logger
}

// Config bundles everything needed to construct an Orchestrator.
type Config struct {
	Sources             map[model.SourceKind]normalize.Source
	Accessor             ontology.Accessor
	Ruler                *matching.Ruler
	PropertyMatcher      *matching.PropertyMatcher
	ExpanderAutomaton    *matching.Automaton
	ExpanderScale        float64
	Proposer             *stages.Proposer
	IndividualExtractor  *extract.Extractor
	DocTypeClassifier    *stages.DocTypeClassifier
	DependencyExtractor  *dependency.Extractor
	LMChain              *llm.Chain
	StageConcurrency     int
	GlobalJobLimit       int
	Timeouts             Timeouts
	Resolver             *reconcile.Resolver
	Reconciler           *reconcile.Reconciler
	// EventBus, when set, receives progress events as the job moves
	// through its stages. A nil bus disables event publication.
	EventBus             *EventBus
}

func New(cfg Config) (*Orchestrator, error) {
	cpuPool, err := NewWorkerPool(cfg.StageConcurrency)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		sources:             cfg.Sources,
		accessor:            cfg.Accessor,
		ruler:               cfg.Ruler,
		propertyMatcher:     cfg.PropertyMatcher,
		expanderAutomaton:   cfg.ExpanderAutomaton,
		expanderScale:       cfg.ExpanderScale,
		proposer:            cfg.Proposer,
		individualExtractor: cfg.IndividualExtractor,
		docTypeClassifier:   cfg.DocTypeClassifier,
		individualLinker:    stages.NewIndividualLinker(),
		propertyLinker:      stages.NewPropertyLinker(),
		metadataSynthesizer: stages.NewMetadataSynthesizer(cfg.LMChain),
		areaOfLawClassifier: stages.NewAreaOfLawClassifier(cfg.LMChain),
		reconciler:          cfg.Reconciler,
		resolver:            cfg.Resolver,
		reranker:            reconcile.NewReranker(cfg.LMChain),
		branchJudge:         reconcile.NewBranchJudge(cfg.LMChain, cfg.Accessor),
		dependencyExtractor: cfg.DependencyExtractor,
		lmChain:             cfg.LMChain,
		stageConcurrency:    cfg.StageConcurrency,
		jobSemaphore:        semaphore.NewWeighted(int64(cfg.GlobalJobLimit)),
		timeouts:            cfg.Timeouts,
		cpuPool:             cpuPool,
		bus:                 cfg.EventBus,
		log:                 logging.New("ORCHESTRATOR"),
	}, nil
}

// Submission describes a document to enqueue. JobID, when set, becomes
// the result's id so event subscribers registered before Run observe
// the job's events; an empty JobID gets a fresh one.
type Submission struct {
	JobID        string
	Source       model.SourceKind
	URI          string
	ChunkOverlap int
	ChunkMaxSize int
}

// Run executes the full three-phase pipeline for one submission and
// returns the completed JobResult. It never returns an error for a
// failed stage; stage failures are recorded on the result's Errors
// field and degrade the job's output instead of aborting it, except
// for Phase 1 input errors and context cancellation, which do abort.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) (*model.JobResult, error) {
	if err := o.jobSemaphore.Acquire(ctx, 1); err != nil {
		return nil, apperrors.NewCancelledError("orchestrator", "failed to acquire job slot", err)
	}
	defer o.jobSemaphore.Release(1)

	ctx, cancel := context.WithTimeout(ctx, o.timeouts.JobHard)
	defer cancel()

	jobID := sub.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	defer o.bus.Close(jobID)

	now := time.Now()
	result := &model.JobResult{
		JobID:     jobID,
		Status:    model.JobStatusRunning,
		CreatedAt: now,
		StartedAt: &now,
	}

	var degraded []string
	lmCalls := 0

	// Phase 1: sequential ingest + normalize.
	phase1Start := time.Now()
	o.bus.Publish(jobID, Event{Stage: "ingest", Event: "stage.started"})
	doc, err := o.ingest(ctx, sub)
	if err != nil {
		result.Status = model.JobStatusFailed
		result.Errors = append(result.Errors, stageError("ingest", err))
		finish := time.Now()
		result.FinishedAt = &finish
		o.bus.Publish(jobID, Event{Stage: "ingest", Event: "job.failed"})
		return result, nil
	}
	result.Document = doc
	result.TextHash = textHash(doc.Text)
	phase1Duration := time.Since(phase1Start)
	o.bus.Publish(jobID, Event{Stage: "ingest", Event: "stage.completed"})

	// Phase 2: concurrent proposal stages.
	phase2Start := time.Now()
	o.bus.Publish(jobID, Event{Stage: "phase2", Event: "stage.started"})
	rulerMatches, propertyAnns, individuals, docType, phase2Errs, phase2Degraded := o.runPhase2(ctx, doc)
	result.Errors = append(result.Errors, phase2Errs...)
	degraded = append(degraded, phase2Degraded...)
	phase2Duration := time.Since(phase2Start)
	o.bus.Publish(jobID, Event{Stage: "phase2", Event: "stage.completed"})

	if ctx.Err() != nil {
		result.ConceptMatches = rulerMatches
		result.Individuals = individuals
		result.PropertyAnnotations = propertyAnns
		return o.finishCancelled(result)
	}

	// Phase 3: sequential reconciliation.
	phase3Start := time.Now()
	o.bus.Publish(jobID, Event{Stage: "phase3", Event: "stage.started"})
	finalMatches, finalProps, individuals, triples, phase3Degraded, phase3Calls := o.runPhase3(ctx, doc, rulerMatches, propertyAnns, individuals)
	degraded = append(degraded, phase3Degraded...)
	lmCalls += phase3Calls
	phase3Duration := time.Since(phase3Start)
	o.bus.Publish(jobID, Event{Stage: "phase3", Event: "stage.completed"})

	result.ConceptMatches = finalMatches
	result.Individuals = individuals
	result.PropertyAnnotations = finalProps
	result.Triples = triples

	if ctx.Err() != nil {
		return o.finishCancelled(result)
	}
	for i := range finalMatches {
		o.bus.Publish(jobID, Event{Stage: "expander", Event: "annotation.added", Payload: finalMatches[i]})
	}
	result.Status = model.JobStatusCompleted

	metadata, _, metadataLMCalls := o.metadataSynthesizer.Run(ctx, stages.SynthesisInput{
		Document:           doc,
		DocType:            docType,
		ConceptMatches:      finalMatches,
		Individuals:         individuals,
		PropertyCount:       len(finalProps),
		Triples:              triples,
		DegradedStages:      degraded,
		LMCallCount:          lmCalls,
		LMProviderUsed:       o.lmChain.Name(),
		EmbeddingIndexUsed:   false,
		OntologyVersion:      o.accessor.Version(),
		Phase1Duration:       phase1Duration,
		Phase2Duration:       phase2Duration,
		Phase3Duration:       phase3Duration,
	})
	result.Metadata = metadata
	lmCalls += metadataLMCalls

	// Post-pipeline: Area-of-Law classification and a Document-Type
	// quality cross-check, both run over the fully resolved concept
	// matches rather than raw text or Phase 2's hypotheses.
	areaResult, usedLM, areaDegraded := o.areaOfLawClassifier.Run(ctx, docType, finalMatches)
	if usedLM {
		lmCalls++
	}
	if result.Metadata != nil && areaResult != nil {
		result.Metadata.AreaOfLaw = string(areaResult.Area)
		result.Metadata.AreaOfLawConf = areaResult.Confidence
		result.Metadata.LMCallCount = lmCalls
		if areaDegraded {
			result.Metadata.DegradedStages = append(result.Metadata.DegradedStages, "area_of_law_classifier")
			result.Metadata.QualitySignals = append(result.Metadata.QualitySignals, model.QualitySignal{
				Kind:   model.QualitySignalDegradedCollaborator,
				Detail: "area_of_law_classifier",
			})
		}
	}

	if signal := stages.DocTypeQualityCrossCheck(docType, finalMatches); signal != nil && result.Metadata != nil {
		result.Metadata.QualitySignals = append(result.Metadata.QualitySignals, *signal)
	}

	if len(result.Errors) > 0 || len(degraded) > 0 {
		result.Status = model.JobStatusCompletedWithWarnings
	}

	finish := time.Now()
	result.FinishedAt = &finish
	o.bus.Publish(result.JobID, Event{Stage: "orchestrator", Event: "job.completed", Payload: string(result.Status)})
	return result, nil
}

// finishCancelled stamps a cancelled job, keeping whatever partial
// output the phases produced before the signal landed.
func (o *Orchestrator) finishCancelled(result *model.JobResult) (*model.JobResult, error) {
	result.Status = model.JobStatusCancelled
	finish := time.Now()
	result.FinishedAt = &finish
	o.bus.Publish(result.JobID, Event{Stage: "orchestrator", Event: "job.cancelled"})
	return result, nil
}

// textHash is the canonical content hash callers use to tie a JobResult
// back to the exact normalized text it was computed over.
func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (o *Orchestrator) ingest(ctx context.Context, sub Submission) (*model.Document, error) {
	src, ok := o.sources[sub.Source]
	if !ok {
		return nil, apperrors.NewInputError("ingest", fmt.Sprintf("no source configured for kind %q", sub.Source), nil)
	}
	raw, err := src.Fetch(ctx, sub.URI)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, apperrors.NewInputError("ingest", "document is empty", nil)
	}

	text := normalize.Text(raw)
	chunks := normalize.Chunk(text, sub.ChunkMaxSize, sub.ChunkOverlap)

	return &model.Document{
		ID:           uuid.NewString(),
		Source:       sub.Source,
		URI:          sub.URI,
		OriginalText: raw,
		Text:         text,
		Chunks:       chunks,
		Sentences:    normalize.Sentences(text),
		IngestedAt:   time.Now(),
	}, nil
}

func (o *Orchestrator) runPhase2(ctx context.Context, doc *model.Document) (
	[]model.ConceptMatch, []model.PropertyAnnotation, []model.Individual, *stages.DocTypeResult, []model.StageError, []string) {

	ctx, cancel := context.WithTimeout(ctx, o.timeouts.StageHard)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(o.stageConcurrency))

	var mu sync.Mutex
	var rulerMatches []model.ConceptMatch
	var proposerMatches []model.ConceptMatch
	var propertyAnns []model.PropertyAnnotation
	var individuals []model.Individual
	var docType *stages.DocTypeResult
	var errs []model.StageError
	var proposerDegraded bool

	g.Go(func() error {
		return o.cpuPool.Submit(func() error {
			rm := o.ruler.Run(doc.Text)
			pa := o.propertyMatcher.Run(doc.Text, rm)
			mu.Lock()
			rulerMatches = rm
			propertyAnns = pa
			mu.Unlock()
			return nil
		})
	})

	g.Go(func() error {
		dt, err := o.docTypeClassifier.Run(gctx, doc.Text)
		if err != nil {
			mu.Lock()
			errs = append(errs, stageError("doctype_classifier", err))
			mu.Unlock()
			return nil
		}
		docType = dt
		return nil
	})

	for _, chunk := range doc.Chunks {
		chunk := chunk
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			matches, err := o.proposer.Run(gctx, chunk)
			mu.Lock()
			if err != nil {
				errs = append(errs, stageError("concept_proposer", err))
				proposerDegraded = true
			} else {
				proposerMatches = append(proposerMatches, matches...)
			}
			mu.Unlock()

			inds, err := o.individualExtractor.Run(gctx, chunk)
			mu.Lock()
			if err != nil {
				errs = append(errs, stageError("individual_extractor", err))
			} else {
				individuals = append(individuals, inds...)
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	var phase2Degraded []string
	if proposerDegraded {
		phase2Degraded = append(phase2Degraded, "concept_proposer")
	}

	return append(rulerMatches, proposerMatches...), propertyAnns, individuals, docType, errs, phase2Degraded
}

func (o *Orchestrator) runPhase3(ctx context.Context, doc *model.Document, candidates []model.ConceptMatch,
	propertyAnns []model.PropertyAnnotation, individuals []model.Individual) (
	[]model.ConceptMatch, []model.PropertyAnnotation, []model.Individual, []model.Triple, []string, int) {

	ctx, cancel := context.WithTimeout(ctx, o.timeouts.StageHard)
	defer cancel()

	var degraded []string
	lmCalls := 0

	reconciled := o.reconciler.Run(ctx, candidates, doc.Text)
	resolved := o.resolver.Run(ctx, reconciled, doc.Text)

	final := make([]model.ConceptMatch, 0, len(resolved))
	for _, r := range resolved {
		r, err := o.reranker.Run(ctx, r, doc.Text, doc.Sentences)
		if err != nil {
			degraded = append(degraded, "reranker")
		} else {
			lmCalls++
		}

		var called bool
		r, called, err = o.branchJudge.Run(ctx, r, doc.Text, doc.Sentences)
		if err != nil {
			degraded = append(degraded, "branch_judge")
		} else if called {
			lmCalls++
		}

		final = append(final, r.ConceptMatch)
	}

	expander := matching.NewExpander(o.expanderAutomaton, o.expanderScale)
	var expanded []model.ConceptMatch
	if err := o.cpuPool.Submit(func() error {
		expanded = expander.Run(doc.Text, final)
		return nil
	}); err != nil {
		degraded = append(degraded, "expander")
		expanded = final
	}

	linkedIndividuals := o.individualLinker.Run(individuals, expanded)
	resolvedProps := o.propertyLinker.Run(propertyAnns, linkedIndividuals)
	finalProps := make([]model.PropertyAnnotation, 0, len(resolvedProps))
	for _, rp := range resolvedProps {
		finalProps = append(finalProps, rp.PropertyAnnotation)
	}

	entities := buildEntities(expanded, linkedIndividuals)
	propertyRefs := make([]dependency.PropertyRef, 0, len(finalProps))
	for _, p := range finalProps {
		propertyRefs = append(propertyRefs, dependency.PropertyRef{IRI: p.PropertyConceptID, Label: p.PreferredLabel})
	}
	var triples []model.Triple
	for _, chunk := range doc.Chunks {
		t, usedLM, err := o.dependencyExtractor.Run(ctx, chunk.Text, entities, propertyRefs)
		if err != nil {
			degraded = append(degraded, "dependency_extractor")
			continue
		}
		if usedLM {
			lmCalls++
		}
		triples = append(triples, t...)
	}

	sortOutputs(expanded, finalProps, linkedIndividuals, triples)
	return expanded, finalProps, linkedIndividuals, triples, degraded, lmCalls
}

// sortOutputs imposes the canonical (start, end, iri) ordering on every
// output collection so a fixed input and configuration yield
// byte-stable persisted artifacts regardless of Phase 2 completion
// order.
func sortOutputs(matches []model.ConceptMatch, props []model.PropertyAnnotation, individuals []model.Individual, triples []model.Triple) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Span.Start != matches[j].Span.Start {
			return matches[i].Span.Start < matches[j].Span.Start
		}
		if matches[i].Span.End != matches[j].Span.End {
			return matches[i].Span.End < matches[j].Span.End
		}
		return matches[i].ConceptID < matches[j].ConceptID
	})
	sort.SliceStable(props, func(i, j int) bool {
		if props[i].ValueSpan.Start != props[j].ValueSpan.Start {
			return props[i].ValueSpan.Start < props[j].ValueSpan.Start
		}
		if props[i].ValueSpan.End != props[j].ValueSpan.End {
			return props[i].ValueSpan.End < props[j].ValueSpan.End
		}
		return props[i].PropertyConceptID < props[j].PropertyConceptID
	})
	sort.SliceStable(individuals, func(i, j int) bool {
		if individuals[i].Span.Start != individuals[j].Span.Start {
			return individuals[i].Span.Start < individuals[j].Span.Start
		}
		if individuals[i].Span.End != individuals[j].Span.End {
			return individuals[i].Span.End < individuals[j].Span.End
		}
		return individuals[i].Type < individuals[j].Type
	})
	sort.SliceStable(triples, func(i, j int) bool {
		if triples[i].EvidenceSpan.Start != triples[j].EvidenceSpan.Start {
			return triples[i].EvidenceSpan.Start < triples[j].EvidenceSpan.Start
		}
		if triples[i].EvidenceSpan.End != triples[j].EvidenceSpan.End {
			return triples[i].EvidenceSpan.End < triples[j].EvidenceSpan.End
		}
		return triples[i].Predicate < triples[j].Predicate
	})
}

func buildEntities(matches []model.ConceptMatch, individuals []model.Individual) []dependency.Entity {
	entities := make([]dependency.Entity, 0, len(matches)+len(individuals))
	for _, m := range matches {
		entities = append(entities, dependency.Entity{ID: m.ID, Name: m.Label, Span: m.Span})
	}
	for _, ind := range individuals {
		entities = append(entities, dependency.Entity{ID: ind.ID, Name: ind.Name, Span: ind.Span})
	}
	return entities
}

func stageError(stage string, err error) model.StageError {
	if appErr, ok := apperrors.As(err); ok {
		return model.StageError{Stage: stage, Kind: string(appErr.Kind), Message: appErr.Error(), Retryable: appErr.Retryable()}
	}
	return model.StageError{Stage: stage, Kind: string(apperrors.KindFatal), Message: err.Error()}
}
