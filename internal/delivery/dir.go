package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"
)

// DirSink writes deliveries into a local directory.
type DirSink struct {
	dir    string
	logger logging.Logger
}

// NewDirSink creates a DirSink writing to dir.
func NewDirSink(dir string, logger logging.Logger) *DirSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DirSink{dir: dir, logger: logger}
}

func (s *DirSink) Name() string { return "dir" }

// Deliver writes d.CSV to <dir>/<filename>.
func (s *DirSink) Deliver(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, models.PermissionDirectory); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(d.Filename))
	if err := os.WriteFile(path, d.CSV, models.PermissionReportFile); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}

	s.logger.WithFields(
		logging.Field{Key: logging.FieldProfile, Value: d.Profile},
		logging.Field{Key: logging.FieldOutputFile, Value: path},
	).Info("Categorized file written")
	return nil
}
