package categorizer

import (
	"context"
	"fmt"
	"strings"

	"fjacquet/budget-csv/internal/logging"

	vertexai "google.golang.org/genai"
)

// VertexClient implements AIClient against Gemini models served by Vertex
// AI. Credentials come from Application Default Credentials.
type VertexClient struct {
	client    *vertexai.Client
	modelName string
	logger    logging.Logger
}

// NewVertexClient creates a Vertex AI backed client for project/location.
func NewVertexClient(ctx context.Context, project, location, modelName string, logger logging.Logger) (*VertexClient, error) {
	client, err := vertexai.NewClient(ctx, &vertexai.ClientConfig{
		Backend:     vertexai.BackendVertexAI,
		Project:     project,
		Location:    location,
		HTTPOptions: vertexai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}
	return &VertexClient{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (c *VertexClient) Name() string {
	return "vertex"
}

// Categorize sends the categorization prompt and returns the reply text.
func (c *VertexClient) Categorize(ctx context.Context, description string, categories []string) (string, error) {
	c.logger.WithFields(
		logging.Field{Key: logging.FieldOperation, Value: "vertex_categorization"},
		logging.Field{Key: "model", Value: c.modelName},
		logging.Field{Key: logging.FieldDescription, Value: description},
	).Debug("Calling Vertex AI")

	temperature := float32(0)
	resp, err := c.client.Models.GenerateContent(ctx, c.modelName,
		vertexai.Text(BuildPrompt(description, categories)),
		&vertexai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errEmptyResponse
	}
	return text, nil
}
