// Package report renders the outcome of a categorization run.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"fjacquet/budget-csv/internal/budget"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

// Supported formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Formats lists every supported format.
var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatCSV}

// Report describes a finished run.
type Report struct {
	Profile     string
	Source      string
	Filename    string
	GeneratedAt time.Time
	// Rows is the number of categorized transactions.
	Rows    int
	Skipped int
	Ignored int
	// SkipReasons holds one message per skipped row.
	SkipReasons []string
	Stats       models.CategorizationStats
	Budget      budget.Summary
}

// budgetRow is one rendered budget line. Amounts are fixed two-decimal
// strings so every format prints them the same way.
type budgetRow struct {
	Category  string `json:"category" yaml:"category" csv:"category"`
	Spent     string `json:"spent" yaml:"spent" csv:"spent"`
	Budget    string `json:"budget" yaml:"budget" csv:"budget"`
	Remaining string `json:"remaining" yaml:"remaining" csv:"remaining"`
	Count     int    `json:"count" yaml:"count" csv:"count"`
}

type document struct {
	Profile     string                     `json:"profile" yaml:"profile"`
	Source      string                     `json:"source,omitempty" yaml:"source,omitempty"`
	Filename    string                     `json:"filename,omitempty" yaml:"filename,omitempty"`
	GeneratedAt string                     `json:"generated_at" yaml:"generated_at"`
	Rows        int                        `json:"rows" yaml:"rows"`
	Skipped     int                        `json:"skipped" yaml:"skipped"`
	Ignored     int                        `json:"ignored" yaml:"ignored"`
	SkipReasons []string                   `json:"skip_reasons,omitempty" yaml:"skip_reasons,omitempty"`
	Stats       models.CategorizationStats `json:"categorization" yaml:"categorization"`
	Budget      []budgetRow                `json:"budget" yaml:"budget"`
	Totals      budgetRow                  `json:"totals" yaml:"totals"`
}

func rowsOf(s budget.Summary) []budgetRow {
	rows := make([]budgetRow, 0, len(s.Lines))
	for _, l := range s.Lines {
		rows = append(rows, budgetRow{
			Category:  l.Category,
			Spent:     models.FormatAmount(l.Spent),
			Budget:    models.FormatAmount(l.Budget),
			Remaining: models.FormatAmount(l.Remaining),
			Count:     l.Count,
		})
	}
	return rows
}

func totalsOf(s budget.Summary) budgetRow {
	return budgetRow{
		Category:  "TOTAL",
		Spent:     models.FormatAmount(s.TotalSpent),
		Budget:    models.FormatAmount(s.TotalBudget),
		Remaining: models.FormatAmount(s.TotalRemaining),
		Count:     s.Transactions,
	}
}

func (r *Report) document() document {
	return document{
		Profile:     r.Profile,
		Source:      r.Source,
		Filename:    r.Filename,
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
		Rows:        r.Rows,
		Skipped:     r.Skipped,
		Ignored:     r.Ignored,
		SkipReasons: r.SkipReasons,
		Stats:       r.Stats,
		Budget:      rowsOf(r.Budget),
		Totals:      totalsOf(r.Budget),
	}
}

// ReportGenerator renders reports in the supported formats.
type ReportGenerator struct {
	logger logging.Logger
}

// NewReportGenerator creates a new instance of ReportGenerator.
func NewReportGenerator(logger logging.Logger) *ReportGenerator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ReportGenerator{logger: logger}
}

// GenerateReport renders report in format (text, json, yaml or csv). The
// csv format holds only the budget lines and totals.
func (g *ReportGenerator) GenerateReport(report *Report, format string) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("cannot render nil report")
	}
	switch strings.ToLower(format) {
	case FormatText, "":
		return []byte(Text(report)), nil
	case FormatJSON:
		data, err := json.MarshalIndent(report.document(), "", "  ")
		if err != nil {
			g.logger.WithError(err).Error("Failed to marshal JSON report")
			return nil, fmt.Errorf("failed to marshal JSON report: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(report.document())
		if err != nil {
			g.logger.WithError(err).Error("Failed to marshal YAML report")
			return nil, fmt.Errorf("failed to marshal YAML report: %w", err)
		}
		return data, nil
	case FormatCSV:
		rows := append(rowsOf(report.Budget), totalsOf(report.Budget))
		data, err := gocsv.MarshalBytes(&rows)
		if err != nil {
			g.logger.WithError(err).Error("Failed to marshal CSV report")
			return nil, fmt.Errorf("failed to marshal CSV report: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// Text renders the plain text summary printed by the CLI and included in
// delivery emails.
func Text(r *Report) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Profile: %s\n", r.Profile)
	if r.Filename != "" {
		fmt.Fprintf(&buf, "File: %s\n", r.Filename)
	}
	fmt.Fprintf(&buf, "Transactions: %d categorized, %d skipped, %d ignored\n", r.Rows, r.Skipped, r.Ignored)
	fmt.Fprintf(&buf, "Categorized by rule: %d, by AI: %d, needing a category: %d (%d classifier errors)\n",
		r.Stats.ByRule, r.Stats.ByFallback, r.Stats.Unresolved, r.Stats.ClassifierErrors)
	fmt.Fprintf(&buf, "Rules learned: %d\n\n", r.Stats.LearnedRules)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Category\tSpent\tBudget\tRemaining\tCount\t")
	for _, row := range append(rowsOf(r.Budget), totalsOf(r.Budget)) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t\n", row.Category, row.Spent, row.Budget, row.Remaining, row.Count)
	}
	_ = tw.Flush()

	if over := r.Budget.OverBudget(); len(over) > 0 {
		names := make([]string, 0, len(over))
		for _, l := range over {
			names = append(names, l.Category)
		}
		fmt.Fprintf(&buf, "\nOver budget: %s\n", strings.Join(names, ", "))
	}
	return buf.String()
}
