package httpapi

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/foliolab/enrich/internal/annotations"
	"github.com/foliolab/enrich/internal/jobstore"
	"github.com/foliolab/enrich/internal/logging"
	"github.com/foliolab/enrich/internal/model"
	"github.com/foliolab/enrich/internal/monitoring"
	"github.com/foliolab/enrich/internal/pipeline"
)

var validate = validator.New()

// Handlers implements the job lifecycle operations the submission API
// exposes: submit, status, result, cancel, plus a health check.
type Handlers struct {
	orchestrator *pipeline.Orchestrator
	store        *jobstore.Store
	collector    *monitoring.Collector
	bus          *pipeline.EventBus
	log          *logging.Logger

	chunkMaxSize int
	chunkOverlap int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	// jobLocks guards annotation mutations per job, per the concurrency
	// model's rule that a job's mutable state is protected by a single
	// per-job mutation lock rather than a global one.
	jobLocksMu sync.Mutex
	jobLocks   map[string]*sync.Mutex
}

func NewHandlers(orch *pipeline.Orchestrator, store *jobstore.Store, collector *monitoring.Collector, bus *pipeline.EventBus, chunkMaxSize, chunkOverlap int) *Handlers {
	return &Handlers{
		orchestrator: orch,
		store:        store,
		collector:    collector,
		bus:          bus,
		log:          logging.New("HTTPAPI"),
		chunkMaxSize: chunkMaxSize,
		chunkOverlap: chunkOverlap,
		cancels:      make(map[string]context.CancelFunc),
		jobLocks:     make(map[string]*sync.Mutex),
	}
}

func (h *Handlers) lockFor(jobID string) *sync.Mutex {
	h.jobLocksMu.Lock()
	defer h.jobLocksMu.Unlock()
	l, ok := h.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		h.jobLocks[jobID] = l
	}
	return l
}

// withAnnotationMutation loads the job, runs mutate under the job's
// mutation lock, persists the result, and writes the given data back on
// success. mutate returns the response payload to write on success.
func (h *Handlers) withAnnotationMutation(c *fiber.Ctx, jobID string, mutate func(result *model.JobResult) (interface{}, error)) error {
	lock := h.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	result, err := h.store.Load(jobID)
	if err != nil {
		return writeError(c, fiber.StatusNotFound, "not_found", "job not found", err.Error())
	}

	data, err := mutate(result)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_request", "annotation action failed", err.Error())
	}

	if err := h.store.Save(result); err != nil {
		return writeError(c, fiber.StatusInternalServerError, "storage_error", "failed to persist job result", err.Error())
	}

	return writeSuccess(c, fiber.StatusOK, data)
}

// PromoteRequest is the body of a promote action.
type PromoteRequest struct {
	BackupIRI string `json:"backup_iri" validate:"required"`
}

// Promote replaces an annotation's active concept with a backup
// candidate.
func (h *Handlers) Promote(c *fiber.Ctx) error {
	jobID, annotationID := c.Params("id"), c.Params("annotation_id")
	var req PromoteRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_request", "malformed request body", err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "request failed validation", err.Error())
	}
	return h.withAnnotationMutation(c, jobID, func(result *model.JobResult) (interface{}, error) {
		return annotations.Promote(result, annotationID, req.BackupIRI)
	})
}

// RejectRequest is the body of a reject action.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Reject marks an annotation rejected.
func (h *Handlers) Reject(c *fiber.Ctx) error {
	jobID, annotationID := c.Params("id"), c.Params("annotation_id")
	var req RejectRequest
	_ = c.BodyParser(&req)
	return h.withAnnotationMutation(c, jobID, func(result *model.JobResult) (interface{}, error) {
		return annotations.Reject(result, annotationID, req.Reason)
	})
}

// Restore transitions a rejected annotation back to confirmed.
func (h *Handlers) Restore(c *fiber.Ctx) error {
	jobID, annotationID := c.Params("id"), c.Params("annotation_id")
	return h.withAnnotationMutation(c, jobID, func(result *model.JobResult) (interface{}, error) {
		return annotations.Restore(result, annotationID)
	})
}

// CascadePromoteRequest is the body of a cascade_promote action.
type CascadePromoteRequest struct {
	IRI string `json:"iri" validate:"required"`
}

// CascadePromote applies a promote decision to every annotation on the
// job that carries iri as a backup candidate.
func (h *Handlers) CascadePromote(c *fiber.Ctx) error {
	jobID := c.Params("id")
	var req CascadePromoteRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_request", "malformed request body", err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "request failed validation", err.Error())
	}
	return h.withAnnotationMutation(c, jobID, func(result *model.JobResult) (interface{}, error) {
		return annotations.CascadePromote(result, req.IRI)
	})
}

// BulkRejectRequest is the body of a bulk_reject action.
type BulkRejectRequest struct {
	IRI string `json:"iri" validate:"required"`
}

// BulkReject rejects every annotation on the job bound to iri.
func (h *Handlers) BulkReject(c *fiber.Ctx) error {
	jobID := c.Params("id")
	var req BulkRejectRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_request", "malformed request body", err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "request failed validation", err.Error())
	}
	return h.withAnnotationMutation(c, jobID, func(result *model.JobResult) (interface{}, error) {
		return annotations.BulkReject(result, req.IRI)
	})
}

// Lineage returns the ordered lineage log for a single annotation.
func (h *Handlers) Lineage(c *fiber.Ctx) error {
	jobID, annotationID := c.Params("id"), c.Params("annotation_id")

	lock := h.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	result, err := h.store.Load(jobID)
	if err != nil {
		return writeError(c, fiber.StatusNotFound, "not_found", "job not found", err.Error())
	}
	entries, err := annotations.Lineage(result, annotationID)
	if err != nil {
		return writeError(c, fiber.StatusNotFound, "not_found", "unknown annotation id", err.Error())
	}
	return writeSuccess(c, fiber.StatusOK, entries)
}

// SubmitRequest is the body of a job submission.
type SubmitRequest struct {
	Source model.SourceKind `json:"source" validate:"required,oneof=inline s3 local"`
	URI    string           `json:"uri" validate:"required"`
}

// Submit accepts a new document and enqueues it, returning immediately
// with a queued JobResult while the pipeline runs in the background.
func (h *Handlers) Submit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_request", "malformed request body", err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "validation_error", "request failed validation", err.Error())
	}

	jobID := uuid.NewString()
	queued := &model.JobResult{JobID: jobID, Status: model.JobStatusQueued}
	if err := h.store.Save(queued); err != nil {
		return writeError(c, fiber.StatusInternalServerError, "storage_error", "failed to persist queued job", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.cancels[jobID] = cancel
	h.mu.Unlock()

	go h.runJob(ctx, jobID, req)

	return writeSuccess(c, fiber.StatusAccepted, queued)
}

func (h *Handlers) runJob(ctx context.Context, jobID string, req SubmitRequest) {
	defer func() {
		h.mu.Lock()
		delete(h.cancels, jobID)
		h.mu.Unlock()
	}()

	result, err := h.orchestrator.Run(ctx, pipeline.Submission{
		JobID:        jobID,
		Source:       req.Source,
		URI:          req.URI,
		ChunkMaxSize: h.chunkMaxSize,
		ChunkOverlap: h.chunkOverlap,
	})
	if err != nil {
		h.log.Errorf("job %s failed to run: %v", jobID, err)
		return
	}
	if err := h.store.Save(result); err != nil {
		h.log.Errorf("job %s failed to persist: %v", jobID, err)
	}
}

// Status returns the current JobResult without requiring it to have
// finished, so callers can poll Status while Running.
func (h *Handlers) Status(c *fiber.Ctx) error {
	jobID := c.Params("id")
	result, err := h.store.Load(jobID)
	if err != nil {
		return writeError(c, fiber.StatusNotFound, "not_found", "job not found", err.Error())
	}
	return writeSuccess(c, fiber.StatusOK, result)
}

// Result returns the completed JobResult. An unfinished job yields 409
// unless the caller passes ?partial=true, which returns whatever the
// pipeline has persisted so far.
func (h *Handlers) Result(c *fiber.Ctx) error {
	jobID := c.Params("id")
	result, err := h.store.Load(jobID)
	if err != nil {
		return writeError(c, fiber.StatusNotFound, "not_found", "job not found", err.Error())
	}
	if !result.Status.Terminal() && c.Query("partial") != "true" {
		return writeError(c, fiber.StatusConflict, "not_ready", "job has not finished")
	}
	return writeSuccess(c, fiber.StatusOK, result)
}

// Cancel stops a running job, if one is in flight, and persists a
// cancelled JobResult.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("id")

	h.mu.Lock()
	cancel, ok := h.cancels[jobID]
	h.mu.Unlock()
	if !ok {
		return writeError(c, fiber.StatusNotFound, "not_found", "no running job with that id")
	}
	cancel()

	result, err := h.store.Load(jobID)
	if err == nil {
		result.Status = model.JobStatusCancelled
		_ = h.store.Save(result)
	}
	return writeSuccess(c, fiber.StatusOK, fiber.Map{"job_id": jobID, "status": model.JobStatusCancelled})
}

// Health reports process and system load for operators and
// load balancers.
func (h *Handlers) Health(c *fiber.Ctx) error {
	load, err := h.collector.Sample(c.Context())
	if err != nil {
		return writeSuccess(c, fiber.StatusOK, fiber.Map{"status": "degraded", "error": err.Error()})
	}
	return writeSuccess(c, fiber.StatusOK, fiber.Map{"status": "ok", "system_load": load})
}
