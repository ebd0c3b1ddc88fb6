package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"fjacquet/budget-csv/internal/budget"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport() *Report {
	txs := []models.Transaction{
		{Category: "Coffee", Amount: decimal.RequireFromString("-45.50")},
		{Category: "Groceries", Amount: decimal.RequireFromString("-120")},
		{Category: models.CategoryNeedsCategory, Amount: decimal.RequireFromString("-9.99")},
	}
	categories := []models.Category{
		models.NewCategory("Groceries", decimal.NewFromInt(400)),
		models.NewCategory("Coffee", decimal.NewFromInt(30)),
	}
	return &Report{
		Profile:     "alice",
		Filename:    "alice_20240314T093000.csv",
		GeneratedAt: time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
		Rows:        3,
		Skipped:     1,
		SkipReasons: []string{"row 4: failed to parse date='x': unable to parse date: x"},
		Stats:       models.CategorizationStats{Total: 3, ByRule: 1, ByFallback: 1, Unresolved: 1, LearnedRules: 2},
		Budget:      budget.Summarize(txs, categories),
	}
}

func TestGenerateReport_Text(t *testing.T) {
	out, err := NewReportGenerator(logging.NewMockLogger()).GenerateReport(sampleReport(), "text")
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "Profile: alice")
	assert.Contains(t, text, "3 categorized, 1 skipped, 0 ignored")
	assert.Contains(t, text, "needing a category: 1")
	assert.Contains(t, text, "Over budget: Coffee")
	assert.Regexp(t, `Groceries\s+120\.00\s+400\.00\s+280\.00\s+1`, text)
	assert.Regexp(t, `TOTAL\s+175\.49\s+430\.00\s+254\.51\s+3`, text)
}

func TestGenerateReport_JSON(t *testing.T) {
	out, err := NewReportGenerator(nil).GenerateReport(sampleReport(), "JSON")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "alice", doc["profile"])
	assert.Equal(t, "2024-03-14T09:30:00Z", doc["generated_at"])
	budgetRows := doc["budget"].([]any)
	require.Len(t, budgetRows, 3)
	first := budgetRows[0].(map[string]any)
	assert.Equal(t, "Groceries", first["category"])
	assert.Equal(t, "120.00", first["spent"])
	stats := doc["categorization"].(map[string]any)
	assert.Equal(t, float64(2), stats["learned_rules"])
}

func TestGenerateReport_YAML(t *testing.T) {
	out, err := NewReportGenerator(nil).GenerateReport(sampleReport(), "yaml")
	require.NoError(t, err)

	var doc struct {
		Profile string `yaml:"profile"`
		Totals  struct {
			Spent string `yaml:"spent"`
		} `yaml:"totals"`
		SkipReasons []string `yaml:"skip_reasons"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, "alice", doc.Profile)
	assert.Equal(t, "175.49", doc.Totals.Spent)
	assert.Len(t, doc.SkipReasons, 1)
}

func TestGenerateReport_CSV(t *testing.T) {
	out, err := NewReportGenerator(nil).GenerateReport(sampleReport(), "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "category,spent,budget,remaining,count", lines[0])
	assert.Equal(t, "Coffee,45.50,30.00,-15.50,1", lines[2])
	assert.Equal(t, "TOTAL,175.49,430.00,254.51,3", lines[4])
}

func TestGenerateReport_Errors(t *testing.T) {
	g := NewReportGenerator(nil)

	_, err := g.GenerateReport(sampleReport(), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported report format: xml")

	_, err = g.GenerateReport(nil, "json")
	require.Error(t, err)
}

func TestText_EmptyRun(t *testing.T) {
	text := Text(&Report{Profile: "bob"})
	assert.Contains(t, text, "0 categorized, 0 skipped, 0 ignored")
	assert.Regexp(t, `TOTAL\s+0\.00\s+0\.00\s+0\.00\s+0`, text)
	assert.NotContains(t, text, "Over budget")
}
