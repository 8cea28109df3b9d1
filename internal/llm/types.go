package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one entry of the completion history, OpenAI-compatible so
// both providers can map it onto their wire formats.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a structured request from the model to invoke a named function.
// ID is the correlation key that ties the eventual result back to the call.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition is the schema advertised to the model for one callable tool.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// CompletionRequest is the provider-agnostic completion input.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	ToolChoice  string
	Temperature float64
	MaxTokens   int
}

// Completion is one full model turn: either assistant text, tool-call
// requests, or both.
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// StreamDelta is one incremental fragment of a streaming completion.
// ToolCalls fragments are partial: arguments arrive across several deltas and
// are stitched together by Index.
type StreamDelta struct {
	Content      string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

type ToolCallDelta struct {
	Index     int
	ID        string
	Type      string
	Name      string
	Arguments string
}

// StreamFrame is one event of the outbound stream protocol. Field names are
// depended on by UI clients and must stay stable.
type StreamFrame struct {
	Type         string     `json:"type,omitempty"`
	Content      string     `json:"content,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID   string     `json:"tool_call_id,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

const (
	FrameToolCalls  = "tool_calls"
	FrameToolResult = "tool_result"

	// FrameReplace tells the client to discard everything streamed so far for
	// this turn and show Content instead.
	FrameReplace = "replace"
)

// Provider is the capability set the orchestrator needs from a model vendor.
// CompleteStream invokes onDelta for every fragment as it arrives and returns
// the fully accumulated completion once the stream ends.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	CompleteStream(ctx context.Context, req CompletionRequest, onDelta func(StreamDelta)) (*Completion, error)
}

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
