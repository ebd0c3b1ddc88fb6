package categorizer

import (
	"context"
	"fmt"
	"time"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/logging"
)

// DefaultTimeout bounds a single fallback call when none is configured.
const DefaultTimeout = 15 * time.Second

// Result is the outcome of one fallback classification. When Resolved is
// false the description is unresolved; Err is set if that happened because
// the provider failed rather than because nothing fitted.
type Result struct {
	Category string
	Resolved bool
	Err      error
}

// FallbackClassifier asks an AIClient for a category, never returning an
// error to the caller: failures, timeouts and unusable replies all become
// an unresolved Result.
type FallbackClassifier struct {
	client  AIClient
	timeout time.Duration
	logger  logging.Logger
}

// NewFallbackClassifier creates a classifier. A nil client yields a
// classifier that resolves nothing.
func NewFallbackClassifier(client AIClient, timeout time.Duration, logger logging.Logger) *FallbackClassifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FallbackClassifier{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Enabled reports whether a provider is configured.
func (f *FallbackClassifier) Enabled() bool {
	return f.client != nil
}

// Classify picks one of known for description.
func (f *FallbackClassifier) Classify(ctx context.Context, description string, known []string) Result {
	if f.client == nil || len(known) == 0 {
		f.logger.WithFields(
			logging.Field{Key: logging.FieldDescription, Value: description},
			logging.Field{Key: "known_categories", Value: len(known)},
		).Debug("AI fallback skipped")
		return Result{}
	}

	start := time.Now()
	reply, err := f.call(ctx, description, known)
	log := f.logger.WithFields(
		logging.Field{Key: logging.FieldProvider, Value: f.client.Name()},
		logging.Field{Key: logging.FieldDescription, Value: description},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()},
	)

	if err != nil {
		cerr := &apperrors.ClassifierError{
			Provider:    f.client.Name(),
			Description: description,
			Err:         err,
		}
		log.WithError(err).Warn("AI categorization failed")
		return Result{Err: cerr}
	}

	category, ok := ParseReply(reply, known)
	if !ok {
		log.WithField("reply", reply).Debug("AI returned no usable category")
		return Result{}
	}

	log.WithField(logging.FieldCategory, category).Debug("Transaction categorized using AI")
	return Result{Category: category, Resolved: true}
}

// call runs the provider under the timeout. The select guards against
// clients that do not honour context cancellation.
func (f *FallbackClassifier) call(ctx context.Context, description string, known []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		text, err := f.client.Categorize(ctx, description, known)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
