// Package validation checks command line arguments before any work starts.
package validation

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"fjacquet/budget-csv/internal/report"
)

// IsValidInputFile checks that path names an existing regular file.
func IsValidInputFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error checking input file %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("input %s is not a regular file", path)
	}
	return nil
}

// IsValidOutputFormat checks if the given report format is supported.
func IsValidOutputFormat(format string) error {
	if format == "" || slices.Contains(report.Formats, strings.ToLower(format)) {
		return nil
	}
	return fmt.Errorf("unsupported output format: %s. Supported formats are %s", format, strings.Join(report.Formats, ", "))
}
