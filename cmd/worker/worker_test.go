package worker

import (
	"context"
	"errors"
	"testing"

	"fjacquet/budget-csv/internal/amqp"
	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	err    error
	result worker.Job
	subs   []worker.Submission
	waits  []string
	// waitCtxErr is the error of the context Wait was called with.
	waitCtxErr error
}

func (f *fakeSubmitter) Submit(sub worker.Submission) (worker.Job, error) {
	f.subs = append(f.subs, sub)
	if f.err != nil {
		return worker.Job{}, f.err
	}
	return worker.Job{ID: "job-1", Profile: sub.Profile, Status: worker.StatusPending}, nil
}

func (f *fakeSubmitter) Wait(ctx context.Context, id string) (worker.Job, error) {
	f.waits = append(f.waits, id)
	f.waitCtxErr = ctx.Err()
	return f.result, nil
}

func TestNewHandler(t *testing.T) {
	msg := amqp.NewUploadMessage("alice", "alice@example.com", "march.csv", []byte("Date,Description\n"))
	completed := worker.Job{ID: "job-1", Status: worker.StatusCompleted, RowsProcessed: 3}
	failed := worker.Job{ID: "job-1", Status: worker.StatusFailed, RowsProcessed: 2, Error: "error saving learned rules"}

	tests := []struct {
		name       string
		submitErr  error
		result     worker.Job
		wantWait   bool
		wantErr    string
		retryLater bool
		busy       bool
	}{
		{name: "completed", result: completed, wantWait: true},
		{name: "job failed", result: failed, wantWait: true, wantErr: "failed after 2 rows"},
		{name: "queue full", submitErr: worker.ErrQueueFull, wantErr: "full", retryLater: true},
		{name: "profile busy", submitErr: &apperrors.BusyError{Profile: "alice", JobID: "job-0"}, wantErr: "in progress", busy: true},
		{name: "queue closed", submitErr: worker.ErrQueueClosed, wantErr: "closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{err: tt.submitErr, result: tt.result}
			err := NewHandler(sub, logging.NewNopLogger())(context.Background(), msg)

			require.Len(t, sub.subs, 1)
			assert.Equal(t, "alice", sub.subs[0].Profile)
			assert.Equal(t, "alice@example.com", sub.subs[0].Recipient)
			assert.Equal(t, "march.csv", sub.subs[0].Source)
			assert.Equal(t, msg.Data, sub.subs[0].Data)
			if tt.wantWait {
				assert.Equal(t, []string{"job-1"}, sub.waits)
			} else {
				assert.Empty(t, sub.waits)
			}

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.retryLater, errors.Is(err, amqp.ErrRetryLater))
			assert.Equal(t, tt.busy, errors.Is(err, apperrors.ErrBusy))
		})
	}
}

func TestNewHandler_WaitsThroughShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sub := &fakeSubmitter{result: worker.Job{ID: "job-1", Status: worker.StatusCompleted}}

	err := NewHandler(sub, logging.NewNopLogger())(ctx, amqp.NewUploadMessage("alice", "", "march.csv", []byte("x")))
	require.NoError(t, err)
	assert.NoError(t, sub.waitCtxErr)
}
