// Package processing runs the background job that walks an upload from
// pending to completed or failed.
package processing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/chat-upload-api/backend/internal/analyzer"
	"github.com/chat-upload-api/backend/internal/events"
	"github.com/chat-upload-api/backend/internal/metrics"
	"github.com/chat-upload-api/backend/internal/models"
	"github.com/chat-upload-api/backend/internal/parser"
	"github.com/chat-upload-api/backend/internal/storage"
	"github.com/labstack/gommon/log"
)

// ErrClosed is returned by Trigger after Shutdown.
var ErrClosed = errors.New("processing manager is shut down")

// errUploadGone stops a job whose upload was deleted mid-run.
var errUploadGone = errors.New("upload no longer exists")

// Store is the part of the record store the jobs need.
type Store interface {
	GetUpload(ctx context.Context, id, customerID string) (*models.Upload, error)
	UpdateStatus(ctx context.Context, id string, status models.UploadStatus, progress int) (bool, error)
	GetContent(ctx context.Context, id string) ([]byte, error)
	SaveResults(ctx context.Context, id string, results []models.ProcessingResult) error
}

// Options tune job execution.
type Options struct {
	MaxConcurrentJobs int
	ProgressInterval  time.Duration
	ProgressSteps     []int
}

// Job is one scheduled run for an upload.
type Job struct {
	UploadID   string
	CustomerID string
	FileType   string
	Filename   string
	QueuedAt   time.Time
}

// Manager schedules jobs on a bounded set of worker slots.
type Manager struct {
	store     Store
	parsers   *parser.Registry
	analyzers *analyzer.Registry
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	opts      Options

	slots  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]*Job
	closed bool
}

// Dependencies are the collaborators of a Manager.
type Dependencies struct {
	Store     Store
	Parsers   *parser.Registry
	Analyzers *analyzer.Registry
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

// NewManager creates a manager. Jobs start only through Trigger.
func NewManager(deps Dependencies, opts Options) *Manager {
	if opts.MaxConcurrentJobs < 1 {
		opts.MaxConcurrentJobs = 1
	}
	if opts.ProgressSteps == nil {
		opts.ProgressSteps = []int{25, 50, 75}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     deps.Store,
		parsers:   deps.Parsers,
		analyzers: deps.Analyzers,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
		slots:     make(chan struct{}, opts.MaxConcurrentJobs),
		ctx:       ctx,
		cancel:    cancel,
		active:    make(map[string]*Job),
	}
}

// Trigger schedules processing of an upload owned by customerID and returns
// without waiting. It reports false when the upload does not exist or
// belongs to someone else. Triggering an upload whose job is still queued or
// running is accepted without starting a second job.
func (m *Manager) Trigger(ctx context.Context, uploadID, customerID string) (bool, error) {
	upload, err := m.store.GetUpload(ctx, uploadID, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up upload %s: %w", uploadID, err)
	}

	job := &Job{
		UploadID:   upload.ID,
		CustomerID: upload.CustomerID,
		FileType:   upload.FileType,
		Filename:   upload.Filename,
		QueuedAt:   time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	if _, running := m.active[job.UploadID]; running {
		m.logger.Debugf("[Job %s] already scheduled, ignoring trigger", shortID(job.UploadID))
		return true, nil
	}
	m.active[job.UploadID] = job
	m.wg.Add(1)
	m.metrics.JobQueued()

	go m.runJob(job)

	return true, nil
}

// Active reports whether a job for uploadID is queued or running.
func (m *Manager) Active(uploadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[uploadID]
	return ok
}

// Wait blocks until every scheduled job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops accepting jobs, cancels running ones and waits for them
// until ctx expires. Jobs that never got a slot stay pending.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for processing jobs: %w", ctx.Err())
	}
}

func (m *Manager) runJob(job *Job) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.active, job.UploadID)
		m.mu.Unlock()
	}()

	select {
	case m.slots <- struct{}{}:
	case <-m.ctx.Done():
		m.metrics.JobAbandoned()
		m.logger.Infof("[Job %s] dropped before start: shutting down", shortID(job.UploadID))
		return
	}
	defer func() { <-m.slots }()

	m.metrics.JobStarted()
	m.processJob(job)
}

// processJob executes one job and records its outcome. Failures never
// escape: they end in status failed.
func (m *Manager) processJob(job *Job) {
	start := time.Now()
	outcome := string(models.StatusFailed)
	defer func() {
		m.metrics.JobFinished(outcome, job.FileType, time.Since(start))
	}()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("[Job %s] panic: %v\n%s", shortID(job.UploadID), r, debug.Stack())
			m.markJobError(job, fmt.Errorf("panic: %v", r))
		}
	}()

	m.logger.Infof("[Job %s] Starting processing: %s", shortID(job.UploadID), job.Filename)

	err := m.execute(job)
	switch {
	case err == nil:
		outcome = string(models.StatusCompleted)
		m.logger.Infof("[Job %s] Processing complete in %s", shortID(job.UploadID), time.Since(start).Round(time.Millisecond))
	case errors.Is(err, errUploadGone):
		outcome = "deleted"
		m.logger.Infof("[Job %s] Upload deleted during processing, stopping", shortID(job.UploadID))
	default:
		m.markJobError(job, err)
	}
}

func (m *Manager) execute(job *Job) error {
	ctx := m.ctx

	if err := m.updateJobStatus(job, models.StatusProcessing, 0); err != nil {
		return err
	}

	content, err := m.store.GetContent(ctx, job.UploadID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("upload content unavailable: %w", err)
	}
	if err != nil {
		return fmt.Errorf("reading upload content: %w", err)
	}

	for _, step := range m.opts.ProgressSteps {
		if err := m.pause(ctx); err != nil {
			return err
		}
		if err := m.updateJobStatus(job, models.StatusProcessing, step); err != nil {
			return err
		}
	}

	doc, err := m.parsers.Decode(job.FileType, content)
	if err != nil {
		return fmt.Errorf("decoding %s content: %w", job.FileType, err)
	}
	results, err := m.analyzers.Analyze(doc)
	if err != nil {
		return fmt.Errorf("analyzing %s content: %w", job.FileType, err)
	}

	if err := m.store.SaveResults(ctx, job.UploadID, results); err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	return m.updateJobStatus(job, models.StatusCompleted, 100)
}

// pause waits one progress interval or until shutdown.
func (m *Manager) pause(ctx context.Context) error {
	if m.opts.ProgressInterval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.opts.ProgressInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
}

// updateJobStatus writes the new state and publishes it. A missing record
// means the upload was deleted and stops the job.
func (m *Manager) updateJobStatus(job *Job, status models.UploadStatus, progress int) error {
	ok, err := m.store.UpdateStatus(m.ctx, job.UploadID, status, progress)
	if err != nil {
		return fmt.Errorf("updating status to %s: %w", status, err)
	}
	if !ok {
		return errUploadGone
	}

	if status == models.StatusCompleted || progress == 0 {
		m.publish(job, status, progress, nil)
	}
	m.logger.Debugf("[Job %s] %s %d%%", shortID(job.UploadID), status, progress)
	return nil
}

// markJobError records a failed run. The status write uses a fresh context so
// jobs interrupted by shutdown are still marked failed.
func (m *Manager) markJobError(job *Job, cause error) {
	m.logger.Errorf("[Job %s] Error: %v", shortID(job.UploadID), cause)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := m.store.UpdateStatus(ctx, job.UploadID, models.StatusFailed, 0)
	if err != nil {
		m.logger.Errorf("[Job %s] could not mark failed: %v", shortID(job.UploadID), err)
		return
	}
	if ok {
		m.publish(job, models.StatusFailed, 0, cause)
	}
}

func (m *Manager) publish(job *Job, status models.UploadStatus, progress int, cause error) {
	event := events.Event{
		Type:       string(status),
		UploadID:   job.UploadID,
		CustomerID: job.CustomerID,
		FileType:   job.FileType,
		Status:     string(status),
		Progress:   progress,
		At:         time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warnf("[Job %s] event %s not published: %v", shortID(job.UploadID), event.Type, err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
