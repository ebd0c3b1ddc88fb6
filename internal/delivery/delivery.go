// Package delivery hands categorized CSV files to their destination: an
// email recipient, a local directory or a cloud storage bucket.
package delivery

import (
	"context"
	"fmt"
	"time"

	"fjacquet/budget-csv/internal/dateutils"
	"fjacquet/budget-csv/internal/logging"

	"github.com/avast/retry-go"
)

// Delivery is one categorized file ready to be sent.
type Delivery struct {
	Profile   string
	Recipient string
	Filename  string
	CSV       []byte
	// Summary is a human readable report included where the sink allows it.
	Summary string
}

// Sink delivers categorized files.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) error
	Name() string
}

// Filename names the output of a run: "{profile}_{timestamp}.csv".
func Filename(profile string, at time.Time) string {
	return fmt.Sprintf("%s_%s.csv", profile, dateutils.FormatTimestamp(at))
}

// RetryPolicy bounds how often a sink retries a failed send.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// DefaultRetryPolicy is used when a sink is built without one.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 2 * time.Second}

func (p RetryPolicy) do(ctx context.Context, logger logging.Logger, sink string, fn func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.WithError(err).WithFields(
				logging.Field{Key: logging.FieldSink, Value: sink},
				logging.Field{Key: "attempt", Value: n + 1},
			).Warn("Delivery attempt failed")
		}),
	)
}

// NopSink discards deliveries.
type NopSink struct{}

func (NopSink) Deliver(context.Context, Delivery) error { return nil }
func (NopSink) Name() string                            { return "none" }
