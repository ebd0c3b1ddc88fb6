// Package worker runs uploads in the background with bounded concurrency and
// at most one queued or running job per profile.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/processor"
	"fjacquet/budget-csv/internal/report"
	"fjacquet/budget-csv/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrQueueFull is returned when the buffer of pending jobs is full.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueClosed is returned after Stop.
	ErrQueueClosed = errors.New("job queue is closed")
	// ErrUnknownJob is returned for an ID the queue does not know.
	ErrUnknownJob = errors.New("unknown job")
)

// Processor runs one upload.
type Processor interface {
	Process(ctx context.Context, req processor.Request) (*processor.Outcome, error)
}

// Submission is an upload handed to the queue.
type Submission struct {
	Profile   string
	Recipient string
	Source    string
	Data      []byte
}

// Job is a snapshot of a submitted upload.
type Job struct {
	ID          string         `json:"id"`
	Profile     string         `json:"profile"`
	Recipient   string         `json:"recipient,omitempty"`
	Source      string         `json:"source,omitempty"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
	Report      *report.Report `json:"-"`
	// CSV is the categorized file of a completed job.
	CSV []byte `json:"-"`
	// RowsProcessed is set for failed jobs: the rows categorized before the
	// run stopped.
	RowsProcessed int    `json:"rows_processed"`
	Error         string `json:"error,omitempty"`
}

// Finished reports whether the job reached a final state.
func (j Job) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

type entry struct {
	job  Job
	data []byte
	done chan struct{}
}

// Queue is an in-memory job queue served by a fixed pool of workers.
type Queue struct {
	proc        Processor
	logger      logging.Logger
	concurrency int
	retention   time.Duration
	now         func() time.Time

	jobs chan *entry

	mu      sync.Mutex
	entries map[string]*entry
	active  map[string]string // profile key to job ID
	closed  bool
	started bool
	group   *errgroup.Group
}

// Option customizes a Queue.
type Option func(*Queue)

// WithRetention sets how long finished jobs stay queryable.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) { q.retention = d }
}

// NewQueue creates a queue that runs up to concurrency jobs at once and
// buffers up to queueSize pending ones.
func NewQueue(proc Processor, concurrency, queueSize int, logger logging.Logger, opts ...Option) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	q := &Queue{
		proc:        proc,
		logger:      logger,
		concurrency: concurrency,
		retention:   time.Hour,
		now:         time.Now,
		jobs:        make(chan *entry, queueSize),
		entries:     make(map[string]*entry),
		active:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func profileKey(profile string) string {
	return strings.ToLower(strings.TrimSpace(profile))
}

// Submit queues an upload and returns its pending job. It fails with a
// BusyError when the profile already has a job queued or running, and with
// ErrQueueFull when the buffer is full.
func (q *Queue) Submit(sub Submission) (Job, error) {
	if err := store.ValidateProfileName(sub.Profile); err != nil {
		return Job{}, err
	}
	if len(sub.Data) == 0 {
		return Job{}, &apperrors.ValidationError{Field: "input", Reason: "no file provided"}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Job{}, ErrQueueClosed
	}
	q.pruneLocked()

	key := profileKey(sub.Profile)
	if id, busy := q.active[key]; busy {
		return Job{}, &apperrors.BusyError{Profile: sub.Profile, JobID: id}
	}

	e := &entry{
		job: Job{
			ID:        uuid.New().String(),
			Profile:   sub.Profile,
			Recipient: sub.Recipient,
			Source:    sub.Source,
			Status:    StatusPending,
			CreatedAt: q.now(),
		},
		data: sub.Data,
		done: make(chan struct{}),
	}

	select {
	case q.jobs <- e:
	default:
		return Job{}, ErrQueueFull
	}

	q.entries[e.job.ID] = e
	q.active[key] = e.job.ID

	q.logger.WithFields(
		logging.Field{Key: logging.FieldJobID, Value: e.job.ID},
		logging.Field{Key: logging.FieldProfile, Value: sub.Profile},
	).Info("Job queued")

	return e.job, nil
}

// Get returns a snapshot of the job.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

// Jobs returns snapshots of every known job, oldest first.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	out := make([]Job, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e.job)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Wait blocks until the job finishes or ctx is done.
func (q *Queue) Wait(ctx context.Context, id string) (Job, error) {
	q.mu.Lock()
	e, ok := q.entries[id]
	q.mu.Unlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}

	select {
	case <-e.done:
		job, _ := q.Get(id)
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Start launches the workers. Jobs run with a context derived from ctx.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.started {
		return fmt.Errorf("job queue already started")
	}
	q.started = true

	group, ctx := errgroup.WithContext(ctx)
	q.group = group
	for i := 0; i < q.concurrency; i++ {
		group.Go(func() error {
			q.work(ctx)
			return nil
		})
	}

	q.logger.WithField("workers", q.concurrency).Info("Job queue started")
	return nil
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(ctx, e)
		}
	}
}

func (q *Queue) run(ctx context.Context, e *entry) {
	q.mu.Lock()
	e.job.Status = StatusRunning
	e.job.StartedAt = q.now()
	job := e.job
	data := e.data
	q.mu.Unlock()

	log := q.logger.WithFields(
		logging.Field{Key: logging.FieldJobID, Value: job.ID},
		logging.Field{Key: logging.FieldProfile, Value: job.Profile},
	)
	log.Info("Job started")

	out, err := q.process(ctx, job, data)

	q.mu.Lock()
	e.data = nil
	e.job.CompletedAt = q.now()
	if out != nil {
		e.job.Report = out.Report
		if err == nil {
			e.job.CSV = out.CSV
		}
	}
	if err != nil {
		e.job.Status = StatusFailed
		e.job.Error = err.Error()
		if rows, ok := apperrors.RowsProcessed(err); ok {
			e.job.RowsProcessed = rows
		}
	} else {
		e.job.Status = StatusCompleted
		if out != nil && out.Report != nil {
			e.job.RowsProcessed = out.Report.Rows
		}
	}
	if q.active[profileKey(job.Profile)] == job.ID {
		delete(q.active, profileKey(job.Profile))
	}
	finished := e.job
	close(e.done)
	q.mu.Unlock()

	log = log.WithFields(
		logging.Field{Key: logging.FieldStatus, Value: string(finished.Status)},
		logging.Field{Key: logging.FieldCount, Value: finished.RowsProcessed},
		logging.Field{Key: logging.FieldDuration, Value: finished.CompletedAt.Sub(finished.StartedAt).String()},
	)
	if err != nil {
		log.WithError(err).Error("Job failed")
		return
	}
	log.Info("Job completed")
}

func (q *Queue) process(ctx context.Context, job Job, data []byte) (out *processor.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return q.proc.Process(ctx, processor.Request{
		Profile:   job.Profile,
		Recipient: job.Recipient,
		Source:    job.Source,
		Input:     bytes.NewReader(data),
	})
}

// pruneLocked drops finished jobs older than the retention period.
func (q *Queue) pruneLocked() {
	if q.retention <= 0 {
		return
	}
	cutoff := q.now().Add(-q.retention)
	for id, e := range q.entries {
		if e.job.Finished() && e.job.CompletedAt.Before(cutoff) {
			delete(q.entries, id)
		}
	}
}

// Stop refuses new jobs, lets the workers drain the pending ones and waits
// for them to exit or for ctx to be done.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	group := q.group
	q.mu.Unlock()

	if group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		q.logger.Info("Job queue stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
