// Package common contains shared functionality for command handlers
package common

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/report"
	"fjacquet/budget-csv/internal/validation"
)

// ReadInput reads a whole input file; "-" reads standard input.
func ReadInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("an input file is required (--input)")
	}
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("error reading standard input: %w", err)
		}
		return data, nil
	}
	if err := validation.IsValidInputFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- CLI tool requires user-provided file paths
	if err != nil {
		return nil, fmt.Errorf("error reading input file: %w", err)
	}
	return data, nil
}

// PrintReport renders rep in format to w.
func PrintReport(w io.Writer, rep *report.Report, format string, logger logging.Logger) error {
	out, err := report.NewReportGenerator(logger).GenerateReport(rep, format)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// NewTable returns a tabwriter for the list commands.
func NewTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
