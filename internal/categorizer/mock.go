package categorizer

import (
	"context"
	"strings"
	"sync"
)

// MockAIClient is a scriptable AIClient for tests.
type MockAIClient struct {
	// Replies maps an upper-cased description to the reply returned for it.
	Replies map[string]string
	// DefaultReply is returned for descriptions missing from Replies.
	DefaultReply string
	// Err, when set, is returned by every call.
	Err error
	// Block makes calls wait until the context is done.
	Block bool

	mu    sync.Mutex
	calls []string
}

func (m *MockAIClient) Name() string { return "mock" }

func (m *MockAIClient) Categorize(ctx context.Context, description string, categories []string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, description)
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.Err != nil {
		return "", m.Err
	}
	if reply, ok := m.Replies[strings.ToUpper(strings.TrimSpace(description))]; ok {
		return reply, nil
	}
	return m.DefaultReply, nil
}

// Calls returns the descriptions the client was asked about, in order.
func (m *MockAIClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
