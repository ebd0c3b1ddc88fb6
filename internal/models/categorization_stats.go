package models

import (
	"fjacquet/budget-csv/internal/logging"
)

// CategorizationStats tracks how each transaction of a run got its category.
type CategorizationStats struct {
	Total      int `json:"total" yaml:"total"`
	ByRule     int `json:"by_rule" yaml:"by_rule"`
	ByFallback int `json:"by_fallback" yaml:"by_fallback"`
	Unresolved int `json:"unresolved" yaml:"unresolved"`
	// ClassifierErrors counts fallback calls that failed or timed out.
	// Every such row is also counted in Unresolved.
	ClassifierErrors int `json:"classifier_errors" yaml:"classifier_errors"`
	LearnedRules     int `json:"learned_rules" yaml:"learned_rules"`
}

// LogSummary logs a summary of categorization statistics
func (cs CategorizationStats) LogSummary(logger logging.Logger, profile string) {
	if logger == nil {
		return
	}

	logger.Info("Categorization summary",
		logging.Field{Key: logging.FieldProfile, Value: profile},
		logging.Field{Key: "total_transactions", Value: cs.Total},
		logging.Field{Key: "by_rule", Value: cs.ByRule},
		logging.Field{Key: "by_fallback", Value: cs.ByFallback},
		logging.Field{Key: "unresolved", Value: cs.Unresolved},
		logging.Field{Key: "classifier_errors", Value: cs.ClassifierErrors},
		logging.Field{Key: "learned_rules", Value: cs.LearnedRules},
		logging.Field{Key: "resolved_rate", Value: cs.ResolvedRate()},
	)
}

// ResolvedRate is the percentage of transactions that received a real category.
func (cs CategorizationStats) ResolvedRate() float64 {
	if cs.Total == 0 {
		return 0.0
	}
	return float64(cs.ByRule+cs.ByFallback) / float64(cs.Total) * 100.0
}
