package llm

import (
	"context"
)

// MockReasoner is a configurable mock for testing reasoner-driven components.
// Set CompleteFunc to control behavior in tests.
type MockReasoner struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns an empty completion and nil error.
	CompleteFunc func(ctx context.Context, prompt string, temperature float64) (*Completion, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification.
	CompleteCalls int
	Prompts       []string
}

// NewMockReasoner creates a new mock with sensible defaults.
func NewMockReasoner() *MockReasoner {
	return &MockReasoner{ModelName: "mock-model"}
}

// Complete implements Reasoner.
func (m *MockReasoner) Complete(ctx context.Context, prompt string, temperature float64) (*Completion, error) {
	m.CompleteCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, temperature)
	}
	return &Completion{}, nil
}

// Model implements Reasoner.
func (m *MockReasoner) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Reset clears call tracking.
func (m *MockReasoner) Reset() {
	m.CompleteCalls = 0
	m.Prompts = nil
}

// ScriptedReasoner returns a mock whose Complete calls return the given
// responses in order, repeating the last one when exhausted.
func ScriptedReasoner(responses ...string) *MockReasoner {
	m := NewMockReasoner()
	i := 0
	m.CompleteFunc = func(ctx context.Context, prompt string, temperature float64) (*Completion, error) {
		if len(responses) == 0 {
			return &Completion{}, nil
		}
		if i >= len(responses) {
			i = len(responses) - 1
		}
		resp := responses[i]
		i++
		return &Completion{Content: resp}, nil
	}
	return m
}
