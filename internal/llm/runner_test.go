package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hiuminee/carebot-backend/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

// scriptedProvider replays completions in order and records the message
// transcript of every call.
type scriptedProvider struct {
	completions []*Completion
	requests    []CompletionRequest
}

func (p *scriptedProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	p.requests = append(p.requests, req)
	if len(p.requests) > len(p.completions) {
		return nil, errors.New("no scripted completion")
	}
	return p.completions[len(p.requests)-1], nil
}

func (p *scriptedProvider) CompleteStream(ctx context.Context, req CompletionRequest, onDelta func(StreamDelta)) (*Completion, error) {
	comp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if comp.Content != "" {
		onDelta(StreamDelta{Content: comp.Content})
	}
	return comp, nil
}

func weatherTool() Tool {
	return Tool{
		Name:        "get_weather",
		Description: "Fetch the weather information for a given location.",
		Parameters:  json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "sunny", nil
		},
	}
}

func failingTool(name string) Tool {
	return Tool{
		Name:       name,
		Parameters: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "", errors.New("boom")
		},
	}
}

func toolCall(id, name, args string) ToolCall {
	return ToolCall{ID: id, Type: "function", Function: FunctionCall{Name: name, Arguments: args}}
}

func TestRunToolCallThenText(t *testing.T) {
	provider := &scriptedProvider{completions: []*Completion{
		{ToolCalls: []ToolCall{toolCall("call_1", "get_weather", `{"location":"Hà Nội"}`)}},
		{Content: "Trời nắng ở Hà Nội.", FinishReason: "stop"},
	}}
	runner := NewToolRunner(provider, []Tool{weatherTool()}, 0, newTestLogger(t))

	res, err := runner.Run(context.Background(), CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "thời tiết Hà Nội?"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Content != "Trời nắng ở Hà Nội." {
		t.Fatalf("content=%q", res.Content)
	}
	if len(res.ToolCalls) != 1 || len(res.ToolResults) != 1 {
		t.Fatalf("tool calls=%d results=%d, want 1/1", len(res.ToolCalls), len(res.ToolResults))
	}
	if res.ToolResults[0].ToolCallID != res.ToolCalls[0].ID {
		t.Fatalf("result id %q != call id %q", res.ToolResults[0].ToolCallID, res.ToolCalls[0].ID)
	}
	if res.ToolResults[0].Content != "sunny" {
		t.Fatalf("result content=%q", res.ToolResults[0].Content)
	}

	// The second call must carry the assistant tool-call message and a
	// correlated tool result before any new completion.
	second := provider.requests[1].Messages
	var sawAssistant, sawResult bool
	for _, m := range second {
		if m.Role == RoleAssistant && len(m.ToolCalls) == 1 {
			sawAssistant = true
		}
		if m.Role == RoleTool && m.ToolCallID == "call_1" && m.Content == "sunny" {
			sawResult = true
		}
	}
	if !sawAssistant || !sawResult {
		t.Fatalf("follow-up transcript missing tool exchange: assistant=%v result=%v", sawAssistant, sawResult)
	}
}

func TestRunSiblingFailureDoesNotAbortTurn(t *testing.T) {
	provider := &scriptedProvider{completions: []*Completion{
		{ToolCalls: []ToolCall{
			toolCall("call_1", "broken", `{}`),
			toolCall("call_2", "get_weather", `{}`),
			toolCall("call_3", "no_such_tool", `{}`),
		}},
		{Content: "xong", FinishReason: "stop"},
	}}
	runner := NewToolRunner(provider, []Tool{weatherTool(), failingTool("broken")}, 0, newTestLogger(t))

	res, err := runner.Run(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.ToolResults) != 3 {
		t.Fatalf("results=%d, want 3", len(res.ToolResults))
	}
	if !res.ToolResults[0].IsError || !strings.Contains(res.ToolResults[0].Content, "boom") {
		t.Fatalf("handler error not error-shaped: %+v", res.ToolResults[0])
	}
	if res.ToolResults[1].IsError || res.ToolResults[1].Content != "sunny" {
		t.Fatalf("sibling call did not run cleanly: %+v", res.ToolResults[1])
	}
	if !res.ToolResults[2].IsError || !strings.Contains(res.ToolResults[2].Content, "unknown tool") {
		t.Fatalf("unknown tool not error-shaped: %+v", res.ToolResults[2])
	}
}

func TestRunTurnCeilingReturnsLastContent(t *testing.T) {
	loop := &Completion{
		Content:   "suy nghĩ... ",
		ToolCalls: []ToolCall{toolCall("call_x", "get_weather", `{}`)},
	}
	provider := &scriptedProvider{completions: []*Completion{loop, loop}}
	runner := NewToolRunner(provider, []Tool{weatherTool()}, 2, newTestLogger(t))

	res, err := runner.Run(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("ceiling must not be an error, got %v", err)
	}
	if res.Turns != 2 {
		t.Fatalf("turns=%d, want 2", res.Turns)
	}
	if res.Content == "" {
		t.Fatalf("expected accumulated content at ceiling")
	}
	if len(provider.requests) != 2 {
		t.Fatalf("provider calls=%d, want 2", len(provider.requests))
	}
}

func TestRunDuplicateToolCallIDIsProtocolViolation(t *testing.T) {
	provider := &scriptedProvider{completions: []*Completion{
		{ToolCalls: []ToolCall{
			toolCall("call_1", "get_weather", `{}`),
			toolCall("call_1", "get_weather", `{}`),
		}},
	}}
	runner := NewToolRunner(provider, []Tool{weatherTool()}, 0, newTestLogger(t))

	_, err := runner.Run(context.Background(), CompletionRequest{})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("err=%v, want ErrProtocolViolation", err)
	}
}

func TestRunInvalidArgumentsIsProtocolViolation(t *testing.T) {
	provider := &scriptedProvider{completions: []*Completion{
		{ToolCalls: []ToolCall{toolCall("call_1", "get_weather", `{not json`)}},
	}}
	runner := NewToolRunner(provider, []Tool{weatherTool()}, 0, newTestLogger(t))

	_, err := runner.Run(context.Background(), CompletionRequest{})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("err=%v, want ErrProtocolViolation", err)
	}
}

func TestRunStreamFrameSequence(t *testing.T) {
	provider := &scriptedProvider{completions: []*Completion{
		{ToolCalls: []ToolCall{toolCall("call_1", "get_weather", `{}`)}},
		{Content: "Trời nắng.", FinishReason: "stop"},
	}}
	runner := NewToolRunner(provider, []Tool{weatherTool()}, 0, newTestLogger(t))

	var frames []StreamFrame
	res, err := runner.RunStream(context.Background(), CompletionRequest{}, func(f StreamFrame) {
		frames = append(frames, f)
	})
	if err != nil {
		t.Fatalf("RunStream: %v", err)
	}
	if res.Content != "Trời nắng." {
		t.Fatalf("content=%q", res.Content)
	}

	wantTypes := []string{FrameToolCalls, FrameToolResult, "content", "finish"}
	gotTypes := make([]string, 0, len(frames))
	for _, f := range frames {
		switch {
		case f.Type != "":
			gotTypes = append(gotTypes, f.Type)
		case f.FinishReason != "":
			gotTypes = append(gotTypes, "finish")
		default:
			gotTypes = append(gotTypes, "content")
		}
	}
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("frames=%v, want shape %v", gotTypes, wantTypes)
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Fatalf("frame[%d]=%q, want %q (all: %v)", i, gotTypes[i], wantTypes[i], gotTypes)
		}
	}

	if frames[1].ToolCallID != "call_1" || frames[1].Content != "sunny" {
		t.Fatalf("tool result frame=%+v", frames[1])
	}
	if frames[len(frames)-1].FinishReason != "stop" {
		t.Fatalf("finish frame=%+v", frames[len(frames)-1])
	}
}
