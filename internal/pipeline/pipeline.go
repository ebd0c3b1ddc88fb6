// Package pipeline assigns a category to every cleaned transaction of a run.
//
// Each row is first matched against the profile's rule index. Rows without a
// matching rule go to the fallback classifier; its answer, or the
// NEEDS CATEGORY placeholder when it has none, is learned as a new rule so
// that later rows with the same keyword are matched deterministically.
package pipeline

import (
	"context"
	"strings"
	"unicode"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/categorizer"
	"fjacquet/budget-csv/internal/logging"
	"fjacquet/budget-csv/internal/models"
	"fjacquet/budget-csv/internal/rules"
)

// Classifier resolves a description to one of the known categories.
type Classifier interface {
	Classify(ctx context.Context, description string, known []string) categorizer.Result
}

// Result is the outcome of a run.
type Result struct {
	// Transactions are the categorized rows, in input order.
	Transactions []models.Transaction
	// NewRules are the rules learned during the run, in the order they were
	// learned, ready for a single batched save.
	NewRules []models.Rule
	Stats    models.CategorizationStats
}

// Pipeline categorizes transactions.
type Pipeline struct {
	fallback Classifier
	logger   logging.Logger
}

// New creates a Pipeline. A nil fallback leaves every unmatched row
// unresolved.
func New(fallback Classifier, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{fallback: fallback, logger: logger}
}

// Run categorizes txs in order against index, which is updated in place
// with every learned rule. known lists the profile's category names offered
// to the fallback classifier.
//
// A failing classifier only degrades the affected row. Run returns an error
// only when ctx is done; the error is a FatalIOError carrying the number of
// rows categorized so far, and Result holds those rows.
func (p *Pipeline) Run(ctx context.Context, txs []models.Transaction, index *rules.Index, known []string) (*Result, error) {
	result := &Result{Transactions: make([]models.Transaction, 0, len(txs))}
	learned := make(map[string]int)

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return result, &apperrors.FatalIOError{Op: "categorize", RowsProcessed: len(result.Transactions), Err: err}
		}

		tx = p.categorize(ctx, tx, index, known, result, learned)
		if err := ctx.Err(); err != nil {
			return result, &apperrors.FatalIOError{Op: "categorize", RowsProcessed: len(result.Transactions), Err: err}
		}
		result.Transactions = append(result.Transactions, tx)
	}

	result.Stats.Total = len(result.Transactions)
	result.Stats.LearnedRules = len(result.NewRules)
	return result, nil
}

func (p *Pipeline) categorize(ctx context.Context, tx models.Transaction, index *rules.Index, known []string, result *Result, learned map[string]int) models.Transaction {
	log := p.logger.WithFields(
		logging.Field{Key: logging.FieldRow, Value: tx.Row},
		logging.Field{Key: logging.FieldDescription, Value: tx.Description},
	)

	if rule, ok := index.Match(tx.Keyword, tx.Description); ok {
		tx.Category = rule.Category
		result.Stats.ByRule++
		log.WithFields(
			logging.Field{Key: logging.FieldKeyword, Value: rule.Keyword},
			logging.Field{Key: logging.FieldCategory, Value: rule.Category},
		).Debug("Transaction matched rule")
		return tx
	}

	var res categorizer.Result
	if p.fallback != nil {
		res = p.fallback.Classify(ctx, tx.Description, known)
	}

	if res.Resolved {
		tx.Category = res.Category
		result.Stats.ByFallback++
	} else {
		tx.Category = models.CategoryNeedsCategory
		result.Stats.Unresolved++
		if res.Err != nil {
			result.Stats.ClassifierErrors++
		}
	}

	p.learn(tx, index, result, learned, log)
	return tx
}

// learn records a rule mapping the transaction's keyword to its category.
// A match key without any letter, such as "-" left over from "7-11", would
// match unrelated descriptions, so the whole description is learned instead.
func (p *Pipeline) learn(tx models.Transaction, index *rules.Index, result *Result, learned map[string]int, log logging.Logger) {
	keyword := tx.Keyword
	if !strings.ContainsFunc(keyword, unicode.IsLetter) {
		keyword = models.NormalizeKeyword(tx.Description)
	}
	if keyword == "" {
		return
	}

	rule, _, err := index.Upsert(keyword, tx.Category)
	if err != nil {
		log.WithError(err).Warn("Failed to learn rule")
		return
	}

	if i, seen := learned[rule.Keyword]; seen {
		result.NewRules[i] = rule
	} else {
		learned[rule.Keyword] = len(result.NewRules)
		result.NewRules = append(result.NewRules, rule)
	}

	log.WithFields(
		logging.Field{Key: logging.FieldKeyword, Value: rule.Keyword},
		logging.Field{Key: logging.FieldCategory, Value: rule.Category},
	).Debug("Learned rule")
}
