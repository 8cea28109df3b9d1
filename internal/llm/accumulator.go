package llm

import "strings"

// StreamAccumulator folds streaming deltas into a full Completion. Tool-call
// fragments are keyed by delta index; an id or name on a later fragment fills
// the slot opened by an earlier one, and argument text concatenates in arrival
// order. The accumulator is request-scoped and not safe for concurrent use.
type StreamAccumulator struct {
	content      strings.Builder
	calls        []*ToolCall
	finishReason string
}

func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

func (a *StreamAccumulator) Add(d StreamDelta) {
	if d.Content != "" {
		a.content.WriteString(d.Content)
	}
	for _, tc := range d.ToolCalls {
		a.addToolCallDelta(tc)
	}
	if d.FinishReason != "" {
		a.finishReason = d.FinishReason
	}
}

func (a *StreamAccumulator) addToolCallDelta(d ToolCallDelta) {
	for len(a.calls) <= d.Index {
		a.calls = append(a.calls, &ToolCall{Type: "function"})
	}
	call := a.calls[d.Index]
	if d.ID != "" {
		call.ID = d.ID
	}
	if d.Type != "" {
		call.Type = d.Type
	}
	if d.Name != "" {
		call.Function.Name = d.Name
	}
	call.Function.Arguments += d.Arguments
}

func (a *StreamAccumulator) Completion() *Completion {
	out := &Completion{
		Content:      a.content.String(),
		FinishReason: a.finishReason,
	}
	for _, c := range a.calls {
		out.ToolCalls = append(out.ToolCalls, *c)
	}
	return out
}
