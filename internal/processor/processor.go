// Package processor runs one upload end to end: clean the rows, categorize
// them against the profile's rules, persist what was learned, summarize the
// budget and hand the categorized CSV to a delivery sink.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/budget"
	"fjacquet/budget-csv/internal/cleaner"
	"fjacquet/budget-csv/internal/common"
	"fjacquet/budget-csv/internal/delivery"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"
	"fjacquet/budget-csv/internal/pipeline"
	"fjacquet/budget-csv/internal/report"
	"fjacquet/budget-csv/internal/rules"
	"fjacquet/budget-csv/internal/store"
)

// Store is the part of store.Store a run needs.
type Store interface {
	EnsureProfile(ctx context.Context, name string) error
	ListRules(ctx context.Context, profile string) ([]models.Rule, error)
	ListCategories(ctx context.Context, profile string) ([]models.Category, error)
	SaveLearnedRules(ctx context.Context, profile string, rules []models.Rule) error
}

// Request is one uploaded file to process.
type Request struct {
	Profile string
	// Recipient is handed to the sink; it may be empty for sinks that do
	// not need one.
	Recipient string
	// Source names the upload in logs and reports.
	Source string
	Input  io.Reader
}

// Outcome is what a run produced. On a fatal error it still describes the
// rows handled before the failure.
type Outcome struct {
	Report       *report.Report
	Transactions []models.Transaction
	NewRules     []models.Rule
	// CSV is the categorized file; nil when the run failed before encoding.
	CSV []byte
	// Delivered is false when no sink is configured or delivery failed.
	Delivered bool
}

// Processor runs uploads.
type Processor struct {
	store     Store
	cleaner   *cleaner.Cleaner
	pipeline  *pipeline.Pipeline
	sink      delivery.Sink
	logger    logging.Logger
	delimiter rune
	now       func() time.Time
}

// Option customizes a Processor.
type Option func(*Processor)

// WithClock replaces time.Now for output file names and reports.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithOutputDelimiter sets the delimiter of the categorized CSV.
func WithOutputDelimiter(delimiter rune) Option {
	return func(p *Processor) { p.delimiter = delimiter }
}

// New creates a Processor. A nil sink skips delivery.
func New(st Store, c *cleaner.Cleaner, pl *pipeline.Pipeline, sink delivery.Sink, logger logging.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Processor{
		store:     st,
		cleaner:   c,
		pipeline:  pl,
		sink:      sink,
		logger:    logger,
		delimiter: ',',
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs req. Row-level problems only show up in the report; the
// returned error is a ValidationError for a bad request or a FatalIOError
// when the run had to stop, in which case nothing was delivered.
func (p *Processor) Process(ctx context.Context, req Request) (*Outcome, error) {
	start := p.now()
	log := p.logger.WithFields(
		logging.Field{Key: logging.FieldProfile, Value: req.Profile},
		logging.Field{Key: logging.FieldInputFile, Value: req.Source},
	)

	if err := store.ValidateProfileName(req.Profile); err != nil {
		return nil, err
	}
	if req.Input == nil {
		return nil, &apperrors.ValidationError{Field: "input", Reason: "no file provided"}
	}

	log.Info("Processing upload")

	if err := p.store.EnsureProfile(ctx, req.Profile); err != nil {
		return nil, &apperrors.FatalIOError{Op: "load profile", Err: err}
	}
	storedRules, err := p.store.ListRules(ctx, req.Profile)
	if err != nil {
		return nil, &apperrors.FatalIOError{Op: "load rules", Err: err}
	}
	categories, err := p.store.ListCategories(ctx, req.Profile)
	if err != nil {
		return nil, &apperrors.FatalIOError{Op: "load categories", Err: err}
	}

	cleaned, err := p.cleaner.Read(req.Input)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Report: &report.Report{
		Profile:     req.Profile,
		Source:      req.Source,
		GeneratedAt: start,
		Skipped:     cleaned.Skipped,
		Ignored:     cleaned.Ignored,
		SkipReasons: errorStrings(cleaned.Errors),
	}}

	index := rules.NewIndex(storedRules)
	result, err := p.pipeline.Run(ctx, cleaned.Transactions, index, models.CategoryNames(categories))
	if result != nil {
		out.Transactions = result.Transactions
		out.NewRules = result.NewRules
		out.Report.Rows = len(result.Transactions)
		out.Report.Stats = result.Stats
	}
	if err != nil {
		log.WithError(err).Error("Categorization aborted")
		return out, err
	}
	result.Stats.LogSummary(p.logger, req.Profile)

	if len(result.NewRules) > 0 {
		if err := p.store.SaveLearnedRules(ctx, req.Profile, result.NewRules); err != nil {
			log.WithError(err).Error("Failed to persist learned rules")
			return out, &apperrors.FatalIOError{Op: "save learned rules", RowsProcessed: out.Report.Rows, Err: err}
		}
		log.WithField(logging.FieldCount, len(result.NewRules)).Info("Persisted learned rules")
	}

	out.Report.Budget = budget.Summarize(result.Transactions, categories)

	out.CSV, err = common.EncodeCategorized(cleaned.Header, result.Transactions, p.delimiter, p.logger)
	if err != nil {
		return out, &apperrors.FatalIOError{Op: "encode output", RowsProcessed: out.Report.Rows, Err: err}
	}
	out.Report.Filename = delivery.Filename(req.Profile, start)

	if p.sink != nil {
		d := delivery.Delivery{
			Profile:   req.Profile,
			Recipient: req.Recipient,
			Filename:  out.Report.Filename,
			CSV:       out.CSV,
			Summary:   report.Text(out.Report),
		}
		if err := p.sink.Deliver(ctx, d); err != nil {
			log.WithError(err).WithField(logging.FieldSink, p.sink.Name()).Error("Delivery failed")
			return out, &apperrors.FatalIOError{Op: "deliver", RowsProcessed: out.Report.Rows, Err: err}
		}
		out.Delivered = true
	}

	log.WithFields(
		logging.Field{Key: logging.FieldCount, Value: out.Report.Rows},
		logging.Field{Key: logging.FieldFilename, Value: out.Report.Filename},
		logging.Field{Key: logging.FieldDuration, Value: p.now().Sub(start).String()},
	).Info("Upload processed")

	return out, nil
}

// Summarize builds the budget report of an already categorized file read
// from r: its Category column is taken as is and nothing is learned or
// delivered. Rows without a category count as uncategorized.
func (p *Processor) Summarize(ctx context.Context, profile string, r io.Reader) (*report.Report, error) {
	if err := store.ValidateProfileName(profile); err != nil {
		return nil, err
	}
	categories, err := p.store.ListCategories(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("error loading categories: %w", err)
	}

	cleaned, err := p.cleaner.Read(r)
	if err != nil {
		return nil, err
	}

	_, col := common.CategorizedHeader(cleaned.Header)
	txs := make([]models.Transaction, len(cleaned.Transactions))
	for i, tx := range cleaned.Transactions {
		if col < len(tx.Record) {
			tx.Category = strings.TrimSpace(tx.Record[col])
		}
		txs[i] = tx
	}

	rep := &report.Report{
		Profile:     profile,
		GeneratedAt: p.now(),
		Rows:        len(txs),
		Skipped:     cleaned.Skipped,
		Ignored:     cleaned.Ignored,
		SkipReasons: errorStrings(cleaned.Errors),
		Budget:      budget.Summarize(txs, categories),
	}
	for _, tx := range txs {
		if tx.Category == models.CategoryNeedsCategory {
			rep.Stats.Unresolved++
		}
	}
	rep.Stats.Total = len(txs)
	return rep, nil
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

// IsFatal reports whether err stopped a run.
func IsFatal(err error) bool {
	return errors.Is(err, apperrors.ErrFatalIO)
}
