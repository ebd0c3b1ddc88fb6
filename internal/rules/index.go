// Package rules holds the in-memory keyword index used to categorize
// descriptions deterministically.
package rules

import (
	"strings"
	"sync"

	"fjacquet/budget-csv/internal/apperrors"
	"fjacquet/budget-csv/internal/models"
)

// Index maps upper-cased keywords to categories. Matching is a substring
// test and the first rule in insertion order wins.
//
// Index is safe for concurrent use, but a categorization run relies on
// processing rows sequentially so later rows observe rules learned from
// earlier ones.
type Index struct {
	mu    sync.RWMutex
	rules []models.Rule
	pos   map[string]int
}

// NewIndex builds an index from rules in their stored order. Empty and
// duplicate keywords are dropped, keeping the first occurrence.
func NewIndex(rules []models.Rule) *Index {
	idx := &Index{
		rules: make([]models.Rule, 0, len(rules)),
		pos:   make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		r = models.NewRule(r.Keyword, r.Category)
		if r.Keyword == "" {
			continue
		}
		if _, exists := idx.pos[r.Keyword]; exists {
			continue
		}
		idx.pos[r.Keyword] = len(idx.rules)
		idx.rules = append(idx.rules, r)
	}
	return idx
}

// Match returns the first rule whose keyword occurs in any of texts,
// compared case-insensitively.
func (idx *Index) Match(texts ...string) (models.Rule, bool) {
	upper := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.ToUpper(t); t != "" {
			upper = append(upper, t)
		}
	}
	if len(upper) == 0 {
		return models.Rule{}, false
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for _, r := range idx.rules {
		for _, t := range upper {
			if strings.Contains(t, r.Keyword) {
				return r, true
			}
		}
	}
	return models.Rule{}, false
}

// Lookup returns the rule stored under exactly keyword.
func (idx *Index) Lookup(keyword string) (models.Rule, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i, ok := idx.pos[models.NormalizeKeyword(keyword)]
	if !ok {
		return models.Rule{}, false
	}
	return idx.rules[i], true
}

// Add appends a rule. It fails with a ConflictError when the keyword is
// already present and leaves the index unchanged.
func (idx *Index) Add(keyword, category string) (models.Rule, error) {
	r := models.NewRule(keyword, category)
	if r.Keyword == "" {
		return models.Rule{}, &apperrors.ValidationError{Field: "keyword", Reason: "must not be empty"}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.pos[r.Keyword]; exists {
		return models.Rule{}, &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
	}
	idx.pos[r.Keyword] = len(idx.rules)
	idx.rules = append(idx.rules, r)
	return r, nil
}

// Upsert adds the rule or, when the keyword exists, replaces its category
// in place. It reports whether a new rule was created.
func (idx *Index) Upsert(keyword, category string) (models.Rule, bool, error) {
	r := models.NewRule(keyword, category)
	if r.Keyword == "" {
		return models.Rule{}, false, &apperrors.ValidationError{Field: "keyword", Reason: "must not be empty"}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if i, exists := idx.pos[r.Keyword]; exists {
		idx.rules[i].Category = r.Category
		return idx.rules[i], false, nil
	}
	idx.pos[r.Keyword] = len(idx.rules)
	idx.rules = append(idx.rules, r)
	return r, true, nil
}

// Remove deletes the rule for keyword.
func (idx *Index) Remove(keyword string) error {
	key := models.NormalizeKeyword(keyword)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	i, ok := idx.pos[key]
	if !ok {
		return &apperrors.NotFoundError{Entity: "rule", Key: key}
	}
	idx.rules = append(idx.rules[:i], idx.rules[i+1:]...)
	delete(idx.pos, key)
	for j := i; j < len(idx.rules); j++ {
		idx.pos[idx.rules[j].Keyword] = j
	}
	return nil
}

// Rename changes the keyword and category of an existing rule, keeping its
// position. Renaming onto another rule's keyword is a conflict.
func (idx *Index) Rename(keyword, newKeyword, newCategory string) (models.Rule, error) {
	key := models.NormalizeKeyword(keyword)
	r := models.NewRule(newKeyword, newCategory)
	if r.Keyword == "" {
		return models.Rule{}, &apperrors.ValidationError{Field: "keyword", Reason: "must not be empty"}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	i, ok := idx.pos[key]
	if !ok {
		return models.Rule{}, &apperrors.NotFoundError{Entity: "rule", Key: key}
	}
	if j, taken := idx.pos[r.Keyword]; taken && j != i {
		return models.Rule{}, &apperrors.ConflictError{Entity: "rule", Key: r.Keyword}
	}
	delete(idx.pos, key)
	idx.rules[i] = r
	idx.pos[r.Keyword] = i
	return r, nil
}

// Rules returns a copy of the rules in insertion order.
func (idx *Index) Rules() []models.Rule {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]models.Rule, len(idx.rules))
	copy(out, idx.rules)
	return out
}

// Len returns the number of rules.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rules)
}
