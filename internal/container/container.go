// Package container provides dependency injection for the budget-csv application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"
	"unicode/utf8"

	"fjacquet/budget-csv/internal/categorizer"
	"fjacquet/budget-csv/internal/cleaner"
	"fjacquet/budget-csv/internal/config"
	"fjacquet/budget-csv/internal/delivery"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/pipeline"
	"fjacquet/budget-csv/internal/processor"
	"fjacquet/budget-csv/internal/store"
	"fjacquet/budget-csv/internal/store/postgres"
	"fjacquet/budget-csv/internal/store/sqlite"
	"fjacquet/budget-csv/internal/worker"

	"cloud.google.com/go/storage"
)

// Container holds all application dependencies and provides methods to access them.
// It acts as the central registry for dependency injection, ensuring that all
// components receive their required dependencies through constructors.
//
// Container is immutable after creation; dependencies are only reachable
// through getter methods.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	store      store.Store
	aiClient   categorizer.AIClient
	classifier *categorizer.FallbackClassifier
	cleaner    *cleaner.Cleaner
	pipeline   *pipeline.Pipeline
	sink       delivery.Sink
	processor  *processor.Processor

	closers []io.Closer
}

// NewContainer creates and wires all application dependencies.
// This is the main entry point for dependency injection in the application.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	return NewContainerWithLogger(ctx, cfg, config.ConfigureLoggingFromConfig(cfg))
}

// NewContainerWithLogger is NewContainer with an explicit logger.
func NewContainerWithLogger(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Container{logger: logger, config: cfg}

	st, err := NewStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	c.store = st
	c.closers = append(c.closers, st)

	aiClient, err := NewAIClient(ctx, cfg.AI, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.aiClient = aiClient
	if closer, ok := aiClient.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}

	sink, closer, err := NewSink(ctx, cfg.Delivery, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.sink = sink
	if closer != nil {
		c.closers = append(c.closers, closer)
	}

	delimiter := delimiterRune(cfg.CSV.Delimiter)
	c.cleaner = cleaner.NewCleaner(cleaner.Options{
		Columns: cleaner.Columns{
			Date:        cfg.CSV.Columns.Date,
			Description: cfg.CSV.Columns.Description,
			Debit:       cfg.CSV.Columns.Debit,
			Credit:      cfg.CSV.Columns.Credit,
			Amount:      cfg.CSV.Columns.Amount,
		},
		Delimiter:      delimiter,
		Encoding:       cfg.CSV.Encoding,
		IncludeCredits: cfg.CSV.IncludeCredits,
	}, logger)

	c.classifier = categorizer.NewFallbackClassifier(aiClient, cfg.AI.Timeout(), logger)
	c.pipeline = pipeline.New(c.classifier, logger)
	c.processor = processor.New(c.store, c.cleaner, c.pipeline, c.sink, logger,
		processor.WithOutputDelimiter(delimiter))

	logger.Info("Container initialized successfully",
		logging.Field{Key: logging.FieldBackend, Value: cfg.Store.Backend},
		logging.Field{Key: logging.FieldProvider, Value: cfg.AI.Provider},
		logging.Field{Key: logging.FieldSink, Value: sink.Name()})

	return c, nil
}

func delimiterRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// NewStore opens the configured store backend.
func NewStore(ctx context.Context, cfg config.StoreConfig, logger logging.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendFile:
		s, err := store.NewFileStore(cfg.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("error opening file store: %w", err)
		}
		return s, nil
	case config.BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.DataDir, "budget.db")
		}
		s, err := sqlite.Open(ctx, path, logger)
		if err != nil {
			return nil, fmt.Errorf("error opening sqlite store: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.MaxConns, logger)
		if err != nil {
			return nil, fmt.Errorf("error opening postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// NewAIClient creates the configured fallback provider. It returns nil
// when AI categorization is disabled.
func NewAIClient(ctx context.Context, cfg config.AIConfig, logger logging.Logger) (categorizer.AIClient, error) {
	switch cfg.Provider {
	case config.ProviderNone, "":
		logger.Info("AI categorization disabled")
		return nil, nil
	case config.ProviderGemini:
		client, err := categorizer.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating Gemini client: %w", err)
		}
		logger.Info("AI categorization enabled", logging.Field{Key: logging.FieldProvider, Value: client.Name()})
		return client, nil
	case config.ProviderVertex:
		client, err := categorizer.NewVertexClient(ctx, cfg.Project, cfg.Location, cfg.Model, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating Vertex AI client: %w", err)
		}
		logger.Info("AI categorization enabled", logging.Field{Key: logging.FieldProvider, Value: client.Name()})
		return client, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.Provider)
	}
}

// NewSink creates the configured delivery sink and, when the sink holds a
// connection, the closer releasing it.
func NewSink(ctx context.Context, cfg config.DeliveryConfig, logger logging.Logger) (delivery.Sink, io.Closer, error) {
	policy := delivery.RetryPolicy{
		Attempts: uint(max(cfg.RetryAttempts, 1)),
		Delay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}

	switch cfg.Kind {
	case config.DeliveryNone, "":
		return delivery.NopSink{}, nil, nil
	case config.DeliveryDir:
		return delivery.NewDirSink(cfg.OutputDir, logger), nil, nil
	case config.DeliverySMTP:
		return delivery.NewSMTPSink(delivery.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, policy, logger), nil, nil
	case config.DeliveryGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating storage client: %w", err)
		}
		return delivery.NewGCSSink(client, cfg.GCS.Bucket, cfg.GCS.Prefix, policy, logger), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown delivery kind: %s", cfg.Kind)
	}
}

// NewQueue creates a job queue running uploads through the container's
// processor.
func (c *Container) NewQueue() *worker.Queue {
	return worker.NewQueue(c.processor, c.config.Worker.Concurrency, c.config.Worker.QueueSize, c.logger)
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetStore returns the profile, rule and category store.
func (c *Container) GetStore() store.Store {
	return c.store
}

// GetAIClient returns the container's AI client instance.
// Returns nil if AI is not enabled.
func (c *Container) GetAIClient() categorizer.AIClient {
	return c.aiClient
}

func (c *Container) GetCleaner() *cleaner.Cleaner {
	return c.cleaner
}

func (c *Container) GetPipeline() *pipeline.Pipeline {
	return c.pipeline
}

// GetSink returns the delivery sink.
func (c *Container) GetSink() delivery.Sink {
	return c.sink
}

// GetProcessor returns the processor running uploads end to end.
func (c *Container) GetProcessor() *processor.Processor {
	return c.processor
}

// Close releases the store, the AI client and the sink connections.
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	c.logger.Debug("Container closed")
	return firstErr
}
