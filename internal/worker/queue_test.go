package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/processor"
	"fjacquet/budget-csv/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor records what it was given. When gate is set every run
// blocks until gate is closed.
type fakeProcessor struct {
	gate  chan struct{}
	err   error
	panic bool

	mu     sync.Mutex
	inputs map[string]string
}

func (p *fakeProcessor) Process(ctx context.Context, req processor.Request) (*processor.Outcome, error) {
	data, _ := io.ReadAll(req.Input)
	p.mu.Lock()
	if p.inputs == nil {
		p.inputs = make(map[string]string)
	}
	p.inputs[req.Profile] = string(data)
	p.mu.Unlock()

	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.panic {
		panic("boom")
	}
	out := &processor.Outcome{Report: &report.Report{Profile: req.Profile, Rows: 7}}
	if p.err != nil {
		return out, p.err
	}
	return out, nil
}

func (p *fakeProcessor) input(profile string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputs[profile]
}

func startQueue(t *testing.T, proc Processor, concurrency, size int) *Queue {
	t.Helper()
	q := NewQueue(proc, concurrency, size, logging.NewMockLogger())
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func waitFor(t *testing.T, q *Queue, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := q.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func TestQueue_RunsJob(t *testing.T) {
	proc := &fakeProcessor{}
	q := startQueue(t, proc, 2, 4)

	job, err := q.Submit(Submission{Profile: "alice", Recipient: "a@example.com", Source: "march.csv", Data: []byte("csv")})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Len(t, job.ID, 36)

	done := waitFor(t, q, job.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 7, done.RowsProcessed)
	require.NotNil(t, done.Report)
	assert.False(t, done.StartedAt.IsZero())
	assert.False(t, done.CompletedAt.Before(done.StartedAt))
	assert.Equal(t, "csv", proc.input("alice"))
}

func TestQueue_OneJobPerProfile(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := startQueue(t, proc, 2, 4)

	first, err := q.Submit(Submission{Profile: "alice", Data: []byte("1")})
	require.NoError(t, err)

	_, err = q.Submit(Submission{Profile: "ALICE", Data: []byte("2")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBusy))
	var busy *apperrors.BusyError
	require.True(t, errors.As(err, &busy))
	assert.Equal(t, first.ID, busy.JobID)

	other, err := q.Submit(Submission{Profile: "bob", Data: []byte("3")})
	require.NoError(t, err, "other profiles are not blocked")

	close(proc.gate)
	waitFor(t, q, first.ID)
	waitFor(t, q, other.ID)

	again, err := q.Submit(Submission{Profile: "alice", Data: []byte("4")})
	require.NoError(t, err, "slot is released once the job finishes")
	waitFor(t, q, again.ID)
}

func TestQueue_Full(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := NewQueue(proc, 1, 1, nil)

	_, err := q.Submit(Submission{Profile: "alice", Data: []byte("1")})
	require.NoError(t, err)
	_, err = q.Submit(Submission{Profile: "bob", Data: []byte("2")})
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = q.Submit(Submission{Profile: "bob", Data: []byte("2")})
	assert.ErrorIs(t, err, ErrQueueFull, "a rejected job does not hold the profile slot")
}

func TestQueue_FailedJobKeepsRowCount(t *testing.T) {
	proc := &fakeProcessor{err: &apperrors.FatalIOError{Op: "deliver", RowsProcessed: 7, Err: errors.New("smtp down")}}
	q := startQueue(t, proc, 1, 1)

	job, err := q.Submit(Submission{Profile: "alice", Data: []byte("x")})
	require.NoError(t, err)

	done := waitFor(t, q, job.ID)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Equal(t, 7, done.RowsProcessed)
	assert.Contains(t, done.Error, "smtp down")
	assert.True(t, done.Finished())
}

func TestQueue_RecoversPanics(t *testing.T) {
	q := startQueue(t, &fakeProcessor{panic: true}, 1, 1)

	job, err := q.Submit(Submission{Profile: "alice", Data: []byte("x")})
	require.NoError(t, err)

	done := waitFor(t, q, job.ID)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.Error, "panicked")

	next, err := q.Submit(Submission{Profile: "alice", Data: []byte("y")})
	require.NoError(t, err)
	waitFor(t, q, next.ID)
}

func TestQueue_RejectsBadSubmissions(t *testing.T) {
	q := NewQueue(&fakeProcessor{}, 1, 1, nil)

	_, err := q.Submit(Submission{Profile: "../x", Data: []byte("x")})
	assert.ErrorIs(t, err, apperrors.ErrInvalid)
	_, err = q.Submit(Submission{Profile: "alice"})
	assert.ErrorIs(t, err, apperrors.ErrInvalid)

	_, ok := q.Get("missing")
	assert.False(t, ok)
	_, err = q.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestQueue_StopDrainsPending(t *testing.T) {
	proc := &fakeProcessor{}
	q := NewQueue(proc, 1, 4, nil)

	a, err := q.Submit(Submission{Profile: "alice", Data: []byte("a")})
	require.NoError(t, err)
	b, err := q.Submit(Submission{Profile: "bob", Data: []byte("b")})
	require.NoError(t, err)

	require.NoError(t, q.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	for _, id := range []string{a.ID, b.ID} {
		job, ok := q.Get(id)
		require.True(t, ok)
		assert.Equal(t, StatusCompleted, job.Status)
	}

	_, err = q.Submit(Submission{Profile: "carol", Data: []byte("c")})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background()), ErrQueueClosed)
	require.NoError(t, q.Stop(ctx), "stopping twice is harmless")
}

func TestQueue_WaitHonoursContext(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := startQueue(t, proc, 1, 1)
	defer close(proc.gate)

	job, err := q.Submit(Submission{Profile: "alice", Data: []byte("x")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Wait(ctx, job.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_PrunesFinishedJobs(t *testing.T) {
	q := startQueue(t, &fakeProcessor{}, 1, 2)
	now := time.Now()
	q.now = func() time.Time { return now }
	q.retention = time.Minute

	old, err := q.Submit(Submission{Profile: "alice", Data: []byte("x")})
	require.NoError(t, err)
	waitFor(t, q, old.ID)

	q.mu.Lock()
	now = now.Add(2 * time.Minute)
	q.mu.Unlock()

	fresh, err := q.Submit(Submission{Profile: "bob", Data: []byte("y")})
	require.NoError(t, err)

	_, ok := q.Get(old.ID)
	assert.False(t, ok)
	_, ok = q.Get(fresh.ID)
	assert.True(t, ok)
	waitFor(t, q, fresh.ID)
	assert.Len(t, q.Jobs(), 1)
}
