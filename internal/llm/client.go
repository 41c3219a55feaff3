// Package llm abstracts chat completion with tool calling behind a
// provider-neutral client. Gemini is the primary backend; an
// OpenAI-compatible backend is available for hosted alternatives.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/tools"
)

// Role marks who produced a transcript turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ToolCall is a model request to invoke one tool. ID is set by backends
// that correlate calls to results (OpenAI); Gemini leaves it empty.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult carries one executed tool's output back to the model.
// CallID must echo the ToolCall.ID when the backend set one.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Turn is one transcript entry. A model turn carries Text and/or Calls;
// a user turn carries Text or Results.
type Turn struct {
	Role    Role
	Text    string
	Calls   []ToolCall
	Results []ToolResult
}

// Request is one completion over a full transcript.
type Request struct {
	System string
	Turns  []Turn
	Tools  []tools.Definition
}

// Response is the model's reply: final text, tool calls, or both.
type Response struct {
	Text  string
	Calls []ToolCall
}

// Client is a chat-completion backend with tool calling.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// ErrEmptyResponse means the backend returned no usable candidate.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// ProviderError wraps a backend failure with the provider name so callers
// can log which service misbehaved.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewClient constructs the backend named by provider ("gemini" or
// "openai").
func NewClient(ctx context.Context, provider, apiKey, model string) (Client, error) {
	switch provider {
	case "", "gemini":
		return NewGeminiClient(ctx, apiKey, model)
	case "openai":
		return NewOpenAIClient(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
