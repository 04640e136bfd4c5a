package batch

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-issuance/internal/archive"
	"ms-issuance/internal/compositor"
	"ms-issuance/internal/config"
	"ms-issuance/internal/errs"
	"ms-issuance/internal/issuance"
	"ms-issuance/internal/logger"
	"ms-issuance/internal/models"
	"ms-issuance/internal/templates"
)

// Issuer runs the per-ticket pipeline. Implemented by issuance.Service.
type Issuer interface {
	IssueOne(ctx context.Context, req issuance.Request, base image.Image, anchor compositor.Anchor) (*issuance.Issued, error)
}

// JobStore persists batch job rows. Implemented by ledger.DB.
type JobStore interface {
	CreateJob(ctx context.Context, job models.BatchJob) error
	UpdateJob(ctx context.Context, job models.BatchJob) error
	GetJob(ctx context.Context, id string) (*models.BatchJob, error)
}

// TemplateSource resolves template references. Implemented by templates.Store.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
}

// JobPublisher announces terminal jobs on the bus.
type JobPublisher interface {
	PublishJobCompleted(job models.BatchJob) error
}

// Request is one bulk-issuance call.
type Request struct {
	EventID    string `json:"event_id"`
	TemplateID string `json:"template_id"`
	Quantity   int    `json:"quantity"`
	ChunkSize  int    `json:"chunk_size,omitempty"`
	NamePrefix string `json:"name_prefix,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	TicketType string `json:"ticket_type,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Scheduler accepts quantity requests, splits them into chunks and drives the
// per-ticket pipeline with a bounded worker pool. Progress is job-scoped and
// only ever moves forward.
type Scheduler struct {
	cfg       config.IssuanceConfig
	issuer    Issuer
	store     JobStore
	templates TemplateSource
	producer  JobPublisher
	cache     ProgressCache
	logger    *logger.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	mu      sync.Mutex
	record  models.BatchJob
	entries []archive.Entry
	archive []byte
	cancel  context.CancelFunc
	done    chan struct{}

	// persistMu serializes writes of progress snapshots to the store and
	// cache; persisted tracks how far the last written snapshot had
	// advanced so a slower worker can never write an older one on top.
	persistMu sync.Mutex
	persisted int
}

func NewScheduler(cfg config.IssuanceConfig, issuer Issuer, store JobStore, tpls TemplateSource) *Scheduler {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 25
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.MaxQuantity < 1 {
		cfg.MaxQuantity = 500
	}
	return &Scheduler{
		cfg:       cfg,
		issuer:    issuer,
		store:     store,
		templates: tpls,
		jobs:      make(map[string]*job),
	}
}

// WithProducer attaches an optional bus publisher for terminal jobs.
func (s *Scheduler) WithProducer(p JobPublisher) *Scheduler {
	s.producer = p
	return s
}

// WithProgressCache mirrors progress snapshots for cross-instance polling.
func (s *Scheduler) WithProgressCache(c ProgressCache) *Scheduler {
	s.cache = c
	return s
}

func (s *Scheduler) WithLogger(l *logger.Logger) *Scheduler {
	s.logger = l
	return s
}

// IssueBatch validates the request, loads and checks the template, creates
// the job row and starts processing. Small jobs run as one synchronous chunk;
// larger ones return immediately and are driven by the worker pool.
func (s *Scheduler) IssueBatch(ctx context.Context, req Request) (string, error) {
	if req.Quantity < 1 {
		return "", &errs.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if req.Quantity > s.cfg.MaxQuantity {
		return "", &errs.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("exceeds the per-job ceiling of %d", s.cfg.MaxQuantity),
		}
	}
	if req.TemplateID == "" {
		return "", &errs.ValidationError{Field: "template_id", Reason: "template is required"}
	}
	if req.EventID == "" {
		return "", &errs.ValidationError{Field: "event_id", Reason: "event is required"}
	}

	chunkSize := req.ChunkSize
	if chunkSize < 1 {
		chunkSize = s.cfg.ChunkSize
	}

	tpl, err := s.templates.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return "", err
	}

	// A broken template fails every ticket in the job, so it rejects the
	// whole request before any ticket row exists.
	base, anchor, err := templates.Load(tpl)
	if err != nil {
		return "", err
	}

	record := models.BatchJob{
		ID:                uuid.NewString(),
		EventID:           req.EventID,
		TemplateID:        req.TemplateID,
		SessionID:         req.SessionID,
		NamePrefix:        req.NamePrefix,
		RequestedQuantity: req.Quantity,
		ChunkSize:         chunkSize,
		Status:            models.JobStatusRunning,
		CreatedAt:         time.Now(),
	}
	if err := s.store.CreateJob(ctx, record); err != nil {
		return "", &errs.StorageError{Op: "create_job", Attempts: 1, Err: err}
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	j := &job{
		record: record,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.jobs[record.ID] = j
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.LogBatch("ACCEPTED", record.ID,
			fmt.Sprintf("quantity=%d chunk_size=%d event=%s", req.Quantity, chunkSize, req.EventID))
	}

	issueReq := issuance.Request{
		EventID:    req.EventID,
		TemplateID: req.TemplateID,
		JobID:      record.ID,
		TicketType: ticketTypeFor(req, tpl),
		Category:   req.Category,
		NamePrefix: req.NamePrefix,
	}

	// Chunking overhead is not worth it for small jobs; they run inline as
	// a single chunk and are terminal by the time the caller gets the id.
	if req.Quantity <= s.cfg.SyncThreshold {
		s.run(jobCtx, j, issueReq, base, anchor, []int{req.Quantity})
		return record.ID, nil
	}

	go s.run(jobCtx, j, issueReq, base, anchor, partition(req.Quantity, chunkSize))
	return record.ID, nil
}

func ticketTypeFor(req Request, tpl *models.Template) string {
	if req.TicketType != "" {
		return req.TicketType
	}
	return tpl.TicketType
}

// partition splits quantity into chunkSize-bounded pieces, last one shorter.
func partition(quantity, chunkSize int) []int {
	var chunks []int
	for quantity > 0 {
		n := chunkSize
		if quantity < n {
			n = quantity
		}
		chunks = append(chunks, n)
		quantity -= n
	}
	return chunks
}

func (s *Scheduler) run(ctx context.Context, j *job, req issuance.Request, base image.Image, anchor compositor.Anchor, chunks []int) {
	workers := s.cfg.Workers
	if workers > len(chunks) {
		workers = len(chunks)
	}

	work := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for size := range work {
				s.processChunk(ctx, j, req, base, anchor, size)
			}
		}()
	}

	// Cancellation is cooperative: once the job context is cancelled no new
	// chunk is dispatched, but in-flight chunks run to completion. A send
	// already blocked on a busy pool is abandoned too, not delivered late.
dispatch:
	for _, size := range chunks {
		select {
		case work <- size:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(work)
	wg.Wait()

	s.finalize(j)
}

// processChunk issues one chunk of tickets sequentially. A single ticket
// failing increments the failed count and the chunk moves on.
func (s *Scheduler) processChunk(ctx context.Context, j *job, req issuance.Request, base image.Image, anchor compositor.Anchor, size int) {
	var entries []archive.Entry
	failed := 0

	for i := 0; i < size; i++ {
		issued, err := s.issuer.IssueOne(ctx, req, base, anchor)
		if err != nil {
			failed++
			if s.logger != nil {
				s.logger.Warn("BATCH", fmt.Sprintf("[%s] ticket failed: %v", j.record.ID, err))
			}
			continue
		}
		entries = append(entries, archive.Entry{Code: issued.Ticket.Code, Document: issued.Document})
	}

	snapshot := j.applyChunk(entries, failed)
	s.persistProgress(j, snapshot)
}

// applyChunk advances the job counters under the job lock; observers can
// never see them move backward.
func (j *job) applyChunk(entries []archive.Entry, failed int) models.BatchJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entries...)
	j.record.CompletedCount += len(entries)
	j.record.FailedCount += failed
	return j.record
}

// persistProgress writes one snapshot to the store and cache. Writes are
// serialized per job and stale snapshots are dropped, so the persisted
// counters advance the same way the in-memory ones do: forward only.
func (s *Scheduler) persistProgress(j *job, snapshot models.BatchJob) {
	j.persistMu.Lock()
	defer j.persistMu.Unlock()

	progress := snapshot.CompletedCount + snapshot.FailedCount
	if progress < j.persisted {
		return
	}
	j.persisted = progress

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateJob(ctx, snapshot); err != nil && s.logger != nil {
		s.logger.Error("BATCH", fmt.Sprintf("[%s] failed to persist progress: %v", snapshot.ID, err))
	}
	if s.cache != nil {
		if err := s.cache.StoreProgress(ctx, snapshot); err != nil && s.logger != nil {
			s.logger.Warn("BATCH", fmt.Sprintf("[%s] failed to cache progress: %v", snapshot.ID, err))
		}
	}
}

func (s *Scheduler) finalize(j *job) {
	j.mu.Lock()
	if j.record.FailedCount == 0 && j.record.CompletedCount == j.record.RequestedQuantity {
		j.record.Status = models.JobStatusCompleted
	} else {
		j.record.Status = models.JobStatusCompletedWithFailures
	}
	j.record.FinishedAt = time.Now()

	data, err := archive.Package(j.entries)
	if err == nil {
		j.archive = data
	}
	snapshot := j.record
	entryCount := len(j.entries)
	j.mu.Unlock()

	if err != nil && s.logger != nil {
		s.logger.Error("ARCHIVE", fmt.Sprintf("[%s] failed to package archive: %v", snapshot.ID, err))
	}

	s.persistProgress(j, snapshot)

	if s.logger != nil {
		s.logger.LogBatch("FINISHED", snapshot.ID,
			fmt.Sprintf("status=%s completed=%d failed=%d", snapshot.Status, snapshot.CompletedCount, snapshot.FailedCount))
		s.logger.LogArchive(snapshot.ID, fmt.Sprintf("archive finalized with %d entries", entryCount))
	}

	if s.producer != nil {
		if err := s.producer.PublishJobCompleted(snapshot); err != nil && s.logger != nil {
			s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish job completion for %s: %v", snapshot.ID, err))
		}
	}

	j.cancel()
	close(j.done)
}

// Progress returns the current counters and status for a job. Jobs from a
// previous process are served from the store.
func (s *Scheduler) Progress(ctx context.Context, jobID string) (*models.BatchJob, error) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if ok {
		j.mu.Lock()
		snapshot := j.record
		j.mu.Unlock()
		return &snapshot, nil
	}

	record, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, &errs.StorageError{Op: "get_job", Attempts: 1, Err: err}
	}
	if record == nil {
		return nil, &errs.ValidationError{Field: "job_id", Reason: "job not found"}
	}
	return record, nil
}

// Archive returns the packaged download once the job is terminal.
func (s *Scheduler) Archive(ctx context.Context, jobID string) ([]byte, error) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, &errs.ValidationError{Field: "job_id", Reason: "job not found"}
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.record.Terminal() {
		return nil, &errs.ValidationError{Field: "job_id", Reason: "job is still running"}
	}
	if j.archive == nil {
		return nil, fmt.Errorf("archive for job %s was not packaged", jobID)
	}
	return j.archive, nil
}

// Cancel stops dispatching new chunks for a running job. In-flight chunks
// finish and their documents stay in the archive.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return &errs.ValidationError{Field: "job_id", Reason: "job not found"}
	}
	j.cancel()
	if s.logger != nil {
		s.logger.LogBatch("CANCELLED", jobID, "no new chunks will start")
	}
	return nil
}

// Wait blocks until the job reaches a terminal status.
func (s *Scheduler) Wait(jobID string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return &errs.ValidationError{Field: "job_id", Reason: "job not found"}
	}
	<-j.done
	return nil
}
