// Package llm provides clients for hosted completion endpoints.
package llm

import (
	"context"
)

// Completion is the raw result of a single reasoner call.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Reasoner is the single call primitive shared by every component that talks
// to the completion endpoint. Use this interface for dependency injection to
// enable mocking in tests.
type Reasoner interface {
	// Complete sends one prompt and returns the raw text response.
	Complete(ctx context.Context, prompt string, temperature float64) (*Completion, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure implementations satisfy Reasoner at compile time.
var (
	_ Reasoner = (*Client)(nil)
	_ Reasoner = (*AnthropicClient)(nil)
	_ Reasoner = (*MockReasoner)(nil)
)
