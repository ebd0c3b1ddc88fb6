package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"fjacquet/budget-csv/internal/logging"

	"cloud.google.com/go/storage"
)

// ObjectWriterFactory opens a writer for an object in a bucket.
type ObjectWriterFactory func(ctx context.Context, bucket, object string) io.WriteCloser

// GCSSink archives deliveries in a Cloud Storage bucket under
// <prefix><profile>/<filename>.
type GCSSink struct {
	bucket    string
	prefix    string
	newWriter ObjectWriterFactory
	retry     RetryPolicy
	logger    logging.Logger
}

// NewGCSSink creates a GCSSink using client.
func NewGCSSink(client *storage.Client, bucket, prefix string, policy RetryPolicy, logger logging.Logger) *GCSSink {
	return newGCSSink(func(ctx context.Context, bucket, object string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = "text/csv"
		return w
	}, bucket, prefix, policy, logger)
}

func newGCSSink(factory ObjectWriterFactory, bucket, prefix string, policy RetryPolicy, logger logging.Logger) *GCSSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GCSSink{bucket: bucket, prefix: prefix, newWriter: factory, retry: policy, logger: logger}
}

func (s *GCSSink) Name() string { return "gcs" }

// ObjectName returns where d is stored in the bucket.
func (s *GCSSink) ObjectName(d Delivery) string {
	return s.prefix + path.Join(d.Profile, path.Base(d.Filename))
}

// Deliver uploads d.CSV.
func (s *GCSSink) Deliver(ctx context.Context, d Delivery) error {
	object := s.ObjectName(d)
	err := s.retry.do(ctx, s.logger, s.Name(), func() error {
		w := s.newWriter(ctx, s.bucket, object)
		if _, err := io.Copy(w, bytes.NewReader(d.CSV)); err != nil {
			_ = w.Close()
			return fmt.Errorf("copy file to GCS writer: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("finalize upload: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error uploading gs://%s/%s: %w", s.bucket, object, err)
	}

	s.logger.WithFields(
		logging.Field{Key: logging.FieldProfile, Value: d.Profile},
		logging.Field{Key: logging.FieldOutputFile, Value: "gs://" + s.bucket + "/" + object},
	).Info("Categorized file uploaded")
	return nil
}
