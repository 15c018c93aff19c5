// Package llm is the boundary to the language-model completion service.
//
// Callers build a Request of role-tagged messages and receive generated text,
// optionally constrained by a declared JSON schema or augmented with tool calls.
// Any transport or provider failure surfaces as a *GenerationError, which
// matches ErrGenerationFailed.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Role tags a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // assistant turns that requested tools
	ToolCallID string     // tool turns answering a call
}

// System builds a system turn.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user turn.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// ToolCall is a model request to invoke a named tool with JSON arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec declares a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Schema declares a structured output format.
type Schema struct {
	Name       string
	Definition json.RawMessage
	Strict     bool
}

// Request is a single completion call.
type Request struct {
	Model       string
	Messages    []Message
	Schema      *Schema
	Tools       []ToolSpec
	Temperature float32
	MaxTokens   int
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response carries the generated text or the tool calls the model asked for.
type Response struct {
	Model     string
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Completer generates text for a conversation. Implementations must be safe
// for concurrent use; every research worker shares one.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
	// Stream delivers content chunks to onChunk as they arrive and returns the
	// concatenated result, identical to what Complete would have returned.
	Stream(ctx context.Context, req Request, onChunk func(chunk string)) (Response, error)
}

// ErrGenerationFailed is matched by every completion failure.
var ErrGenerationFailed = errors.New("generation failed")

// GenerationError attaches the underlying cause to a failed completion.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (model %s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

func generationError(model string, err error) error {
	return &GenerationError{Model: model, Err: err}
}
