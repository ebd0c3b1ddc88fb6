// Package worker implements the long running command serving queued uploads.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/internal/amqp"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/worker"

	"github.com/spf13/cobra"
)

var shutdownTimeout time.Duration

// Cmd represents the worker command
var Cmd = &cobra.Command{
	Use:   "worker",
	Short: "Categorize uploads queued with the enqueue command",
	Long: `Consume uploads from the AMQP queue and run them in the background, at
most one at a time per profile. An upload is acknowledged once its job has
finished. Stops on SIGINT or SIGTERM after the running jobs have finished.`,
	Args: cobra.NoArgs,
	RunE: workerFunc,
}

func init() {
	Cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 2*time.Minute, "How long to wait for running jobs on shutdown")
}

// Submitter accepts uploads and reports when they are done.
type Submitter interface {
	Submit(sub worker.Submission) (worker.Job, error)
	Wait(ctx context.Context, id string) (worker.Job, error)
}

// NewHandler runs upload messages as queued jobs and returns once the job has
// finished. A full queue asks for redelivery; a busy profile is redelivered by
// the consumer too. A failed job is not retried.
func NewHandler(q Submitter, logger logging.Logger) amqp.Handler {
	return func(ctx context.Context, msg *amqp.UploadMessage) error {
		job, err := q.Submit(worker.Submission{
			Profile:   msg.Profile,
			Recipient: msg.Recipient,
			Source:    msg.Filename,
			Data:      msg.Data,
		})
		if errors.Is(err, worker.ErrQueueFull) {
			return fmt.Errorf("%w: %v", amqp.ErrRetryLater, err)
		}
		if err != nil {
			return err
		}
		log := logger.WithField(logging.FieldJobID, job.ID)
		log.Debug("Upload message queued")

		// An accepted job runs to completion even during shutdown.
		done, err := q.Wait(context.WithoutCancel(ctx), job.ID)
		if err != nil {
			return err
		}
		if done.Status == worker.StatusFailed {
			return fmt.Errorf("job %s failed after %d rows: %s", done.ID, done.RowsProcessed, done.Error)
		}
		log.WithField(logging.FieldStatus, done.Status).Debug("Upload message processed")
		return nil
	}
}

func workerFunc(cmd *cobra.Command, args []string) error {
	logger := root.GetLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	amqpCfg := root.GetConfig().Worker.AMQP
	if amqpCfg.URL == "" {
		return fmt.Errorf("worker.amqp.url (or AMQP_URL) is required to run a worker")
	}

	appContainer, err := root.GetContainer(ctx)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(amqpCfg.URL, amqpCfg.Exchange, amqpCfg.Queue, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.SetPrefetch(root.GetConfig().Worker.Concurrency); err != nil {
		return err
	}

	// Jobs keep running after a signal until Stop drains them.
	queue := appContainer.NewQueue()
	if err := queue.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	consumeErr := client.ConsumeUploads(ctx, NewHandler(queue, logger))

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := queue.Stop(stopCtx); err != nil {
		logger.WithError(err).Warn("Job queue did not stop cleanly")
	}

	if errors.Is(consumeErr, context.Canceled) {
		return nil
	}
	return consumeErr
}
