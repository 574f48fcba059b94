// Package stream turns a provider's raw chunk channel into a sequence of
// snapshots and response events a scheduler can reason about, instead of
// every caller re-deriving "is this tool call done yet" from chunk
// ordering by hand.
package stream

import (
	"encoding/json"

	"github.com/coreturn/coreturn/internal/log"
	"github.com/coreturn/coreturn/internal/message"
)

// ThinkingSnapshot accumulates a model's reasoning content across deltas.
type ThinkingSnapshot struct {
	Content    string
	Signature  string
	IsComplete bool
}

func (t *ThinkingSnapshot) append(delta string) {
	t.Content += delta
}

func (t *ThinkingSnapshot) complete(signature string) {
	t.Signature = signature
	t.IsComplete = true
}

// ToolCallSnapshot accumulates one tool call's id/name/arguments across
// deltas. Arguments is the raw, possibly-incomplete JSON text; only once
// IsComplete is true is it guaranteed to parse.
type ToolCallSnapshot struct {
	ID         string
	Name       string
	Arguments  string
	IsComplete bool
}

func (t *ToolCallSnapshot) appendArguments(delta string) {
	t.Arguments += delta
}

func (t *ToolCallSnapshot) complete(arguments string) {
	if arguments != "" {
		t.Arguments = arguments
	}
	t.IsComplete = true
}

// parsedArguments returns the arguments as a validated json.RawMessage.
// Empty arguments yield an empty object, and malformed model output is
// logged and also degrades to an empty object rather than panicking.
func (t *ToolCallSnapshot) parsedArguments() json.RawMessage {
	if t.Arguments == "" {
		return json.RawMessage("{}")
	}
	var probe any
	if err := json.Unmarshal([]byte(t.Arguments), &probe); err != nil {
		log.Logger().Sugar().Debugw("tool call arguments did not parse as JSON, defaulting to empty object",
			"tool", t.Name, "id", t.ID, "error", err)
		return json.RawMessage("{}")
	}
	return json.RawMessage(t.Arguments)
}

func (t *ToolCallSnapshot) toToolCall() message.ToolCall {
	args := t.parsedArguments()
	return message.ToolCall{ID: t.ID, Name: t.Name, Input: string(args)}
}

// FinishReason mirrors the provider-reported reason a turn's generation
// stopped, normalized across backends.
type FinishReason string

const (
	FinishEndTurn   FinishReason = "end_turn"
	FinishToolUse   FinishReason = "tool_use"
	FinishMaxTokens FinishReason = "max_tokens"
	FinishError     FinishReason = "error"
)

// StreamSnapshot is the full, as-of-now state of one in-flight (or just
// completed) assistant turn. Aggregator emits a new snapshot on every
// chunk in Streaming mode, and exactly one final snapshot in
// AggregatedOnly mode.
type StreamSnapshot struct {
	ID           string
	Model        string
	Text         string
	Thinking     *ThinkingSnapshot
	ToolCalls    []ToolCallSnapshot
	FinishReason FinishReason
	Usage        message.Usage
	IsComplete   bool
}

func (s *StreamSnapshot) HasText() bool     { return s.Text != "" }
func (s *StreamSnapshot) HasThinking() bool { return s.Thinking != nil && s.Thinking.Content != "" }
func (s *StreamSnapshot) HasToolCalls() bool { return len(s.ToolCalls) > 0 }

// CompletedToolCalls returns only the tool call snapshots whose argument
// accumulation has finished.
func (s *StreamSnapshot) CompletedToolCalls() []ToolCallSnapshot {
	var out []ToolCallSnapshot
	for _, tc := range s.ToolCalls {
		if tc.IsComplete {
			out = append(out, tc)
		}
	}
	return out
}

// PendingToolCalls returns the tool call snapshots still accumulating
// argument text.
func (s *StreamSnapshot) PendingToolCalls() []ToolCallSnapshot {
	var out []ToolCallSnapshot
	for _, tc := range s.ToolCalls {
		if !tc.IsComplete {
			out = append(out, tc)
		}
	}
	return out
}

// ToToolCalls converts every completed tool call snapshot into a
// message.ToolCall. Incomplete snapshots are never surfaced — a tool
// must never be dispatched with partial arguments.
func (s *StreamSnapshot) ToToolCalls() []message.ToolCall {
	completed := s.CompletedToolCalls()
	out := make([]message.ToolCall, len(completed))
	for i, tc := range completed {
		out[i] = tc.toToolCall()
	}
	return out
}

// ToCompletionResponse flattens a completed snapshot into the
// CompletionResponse shape the rest of the codebase (core, agent) already
// consumes.
func (s *StreamSnapshot) ToCompletionResponse() message.CompletionResponse {
	thinking := ""
	if s.Thinking != nil {
		thinking = s.Thinking.Content
	}
	return message.CompletionResponse{
		Content:    s.Text,
		Thinking:   thinking,
		ToolCalls:  s.ToToolCalls(),
		StopReason: string(s.FinishReason),
		Usage:      s.Usage,
	}
}
