package llm

import (
	"context"
	"encoding/json"
)

// Tool is an explicitly registered callable. The schema handed to the model
// comes from these static descriptors, never from reflection, so the whole
// tool surface is auditable in one place.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Handler     func(ctx context.Context, args json.RawMessage) (string, error)
}

func (t Tool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

// ToolResult is the terminal outcome of one ToolCall, success or error.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}
