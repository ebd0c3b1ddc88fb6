// Package common provides the CSV output shared by the CLI and the worker.
package common

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"

	"github.com/gocarina/gocsv"
)

// CategorizedHeader returns header with the Category column appended, and
// the index that column has. An existing Category column is reused.
func CategorizedHeader(header []string) ([]string, int) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), models.ColumnCategory) {
			out := make([]string, len(header))
			copy(out, header)
			return out, i
		}
	}
	out := make([]string, len(header), len(header)+1)
	copy(out, header)
	return append(out, models.ColumnCategory), len(header)
}

// WriteCategorized writes the source header plus a Category column, then one
// row per transaction with its original fields and category. Fields beyond
// the header are dropped.
func WriteCategorized(w io.Writer, header []string, transactions []models.Transaction, delimiter rune, logger logging.Logger) error {
	if delimiter == 0 {
		delimiter = ','
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = delimiter
	writer := gocsv.NewSafeCSVWriter(csvWriter)

	outHeader, categoryCol := CategorizedHeader(header)
	if err := writer.Write(outHeader); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}

	for _, tx := range transactions {
		if len(tx.Record) > len(header) {
			logger.WithFields(
				logging.Field{Key: logging.FieldRow, Value: tx.Row},
				logging.Field{Key: logging.FieldCount, Value: len(tx.Record) - len(header)},
			).Debug("Dropping fields beyond the header")
		}
		record := make([]string, len(outHeader))
		copy(record, tx.Record)
		record[categoryCol] = tx.Category
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("error writing CSV row %d: %w", tx.Row, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// EncodeCategorized renders WriteCategorized into memory.
func EncodeCategorized(header []string, transactions []models.Transaction, delimiter rune, logger logging.Logger) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCategorized(&buf, header, transactions, delimiter, logger); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), models.PermissionDirectory); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, models.PermissionReportFile); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}
