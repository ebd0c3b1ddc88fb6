// Package categorizer contains the AI fallback used when no keyword rule
// matches a description, and the provider clients backing it.
package categorizer

import (
	"context"
	"errors"
)

// AIClient is an external model able to pick a category for a description.
type AIClient interface {
	// Categorize asks the model to choose among categories for description
	// and returns the model's raw reply text.
	Categorize(ctx context.Context, description string, categories []string) (string, error)

	// Name identifies the provider in logs and errors.
	Name() string
}

var errEmptyResponse = errors.New("empty response from model")
