package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

// ErrProtocolViolation marks a malformed model turn: duplicate tool-call ids
// or an arguments payload that is not structured data. Fatal to the turn.
var ErrProtocolViolation = errors.New("tool call protocol violation")

const DefaultMaxTurns = 5

// ToolRunner drives the multi-turn tool-calling loop: ask the model, execute
// any requested tools, feed the results back, and stop when the model answers
// with plain text or the turn ceiling is hit.
type ToolRunner struct {
	provider Provider
	tools    map[string]Tool
	defs     []ToolDefinition
	maxTurns int
	log      *logger.Logger
}

func NewToolRunner(provider Provider, tools []Tool, maxTurns int, log *logger.Logger) *ToolRunner {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	byName := make(map[string]Tool, len(tools))
	defs := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
		defs = append(defs, t.Definition())
	}
	return &ToolRunner{
		provider: provider,
		tools:    byName,
		defs:     defs,
		maxTurns: maxTurns,
		log:      log.With("component", "tool_runner"),
	}
}

// RunResult is the outcome of one full user turn through the loop.
type RunResult struct {
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
	Turns       int
}

func (r *ToolRunner) Run(ctx context.Context, req CompletionRequest) (*RunResult, error) {
	return r.run(ctx, req, nil)
}

// RunStream is the incremental variant. Text deltas are forwarded through
// emit as they arrive; tool-call accumulation happens silently and surfaces
// as tool_calls / tool_result frames. The returned content is the full
// accumulated text, which is what gets persisted.
func (r *ToolRunner) RunStream(ctx context.Context, req CompletionRequest, emit func(StreamFrame)) (*RunResult, error) {
	if emit == nil {
		return nil, errors.New("tool runner: nil emit callback")
	}
	return r.run(ctx, req, emit)
}

func (r *ToolRunner) run(ctx context.Context, req CompletionRequest, emit func(StreamFrame)) (*RunResult, error) {
	msgs := append([]ChatMessage(nil), req.Messages...)
	result := &RunResult{}

	for turn := 0; turn < r.maxTurns; turn++ {
		result.Turns = turn + 1

		turnReq := req
		turnReq.Messages = msgs
		turnReq.Tools = r.defs
		if turnReq.ToolChoice == "" && len(r.defs) > 0 {
			turnReq.ToolChoice = "auto"
		}

		comp, err := r.complete(ctx, turnReq, emit)
		if err != nil {
			if errors.Is(err, context.Canceled) && comp != nil {
				// Client went away mid-stream: whatever accumulated is the
				// final content. Tool-result closure for prior turns already
				// happened below, so state is consistent.
				result.Content += comp.Content
				r.log.Warn("completion cancelled, keeping partial content", "turns", result.Turns)
				return result, nil
			}
			return nil, fmt.Errorf("completion turn %d: %w", turn+1, err)
		}

		if comp.Content != "" {
			result.Content += comp.Content
		}

		if len(comp.ToolCalls) == 0 {
			if emit != nil {
				reason := comp.FinishReason
				if reason == "" {
					reason = "stop"
				}
				emit(StreamFrame{FinishReason: reason})
			}
			return result, nil
		}

		if err := validateToolCalls(comp.ToolCalls); err != nil {
			r.log.Error("malformed tool calls from model", "error", err, "turn", turn+1)
			return nil, err
		}

		if emit != nil {
			emit(StreamFrame{Type: FrameToolCalls, ToolCalls: comp.ToolCalls})
		}

		msgs = append(msgs, ChatMessage{
			Role:      RoleAssistant,
			Content:   comp.Content,
			ToolCalls: comp.ToolCalls,
		})

		for _, call := range comp.ToolCalls {
			res := r.execute(ctx, call)
			result.ToolCalls = append(result.ToolCalls, call)
			result.ToolResults = append(result.ToolResults, res)
			msgs = append(msgs, ChatMessage{
				Role:       RoleTool,
				Content:    res.Content,
				ToolCallID: res.ToolCallID,
				Name:       res.Name,
			})
			if emit != nil {
				emit(StreamFrame{Type: FrameToolResult, ToolCallID: res.ToolCallID, Content: res.Content})
			}
		}
	}

	// Turn ceiling. Safety valve, not an error: the last content we have is
	// the answer.
	r.log.Warn("tool loop hit turn ceiling", "max_turns", r.maxTurns)
	if emit != nil {
		emit(StreamFrame{FinishReason: "length"})
	}
	return result, nil
}

func (r *ToolRunner) complete(ctx context.Context, req CompletionRequest, emit func(StreamFrame)) (*Completion, error) {
	if emit == nil {
		return r.provider.Complete(ctx, req)
	}
	return r.provider.CompleteStream(ctx, req, func(d StreamDelta) {
		if d.Content != "" {
			emit(StreamFrame{Content: d.Content})
		}
	})
}

// execute resolves and runs one tool call. Failures never escape: an unknown
// name or a handler error becomes an error-shaped result so sibling calls in
// the same turn still run.
func (r *ToolRunner) execute(ctx context.Context, call ToolCall) ToolResult {
	name := call.Function.Name
	res := ToolResult{ToolCallID: call.ID, Name: name}

	tool, ok := r.tools[name]
	if !ok {
		r.log.Warn("model requested unregistered tool", "tool", name)
		res.Content = errorPayload(fmt.Sprintf("unknown tool: %s", name))
		res.IsError = true
		return res
	}

	args := json.RawMessage(call.Function.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := tool.Handler(ctx, args)
	if err != nil {
		r.log.Warn("tool execution failed", "tool", name, "error", err)
		res.Content = errorPayload(err.Error())
		res.IsError = true
		return res
	}
	res.Content = out
	return res
}

func validateToolCalls(calls []ToolCall) error {
	seen := make(map[string]struct{}, len(calls))
	for _, c := range calls {
		if c.ID == "" {
			return fmt.Errorf("%w: tool call without id", ErrProtocolViolation)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate tool call id %q", ErrProtocolViolation, c.ID)
		}
		seen[c.ID] = struct{}{}
		if args := c.Function.Arguments; args != "" && !json.Valid([]byte(args)) {
			return fmt.Errorf("%w: unparseable arguments for tool call %q", ErrProtocolViolation, c.ID)
		}
	}
	return nil
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
