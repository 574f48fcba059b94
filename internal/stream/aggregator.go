package stream

import (
	"context"

	"github.com/coreturn/coreturn/internal/message"
)

// Mode selects how an Aggregator surfaces progress to its caller.
type Mode int

const (
	// AggregatedOnly absorbs every chunk silently and emits a single
	// ResponseEvent once the turn finishes — the shape a subagent or a
	// non-interactive driver wants.
	AggregatedOnly Mode = iota
	// Streaming emits a ResponseEvent after every text/thinking delta in
	// addition to the final one, for a live-updating UI.
	Streaming
)

// ResponseEventType tags the kind of event the Aggregator emits.
type ResponseEventType string

const (
	EventTextDelta     ResponseEventType = "text_delta"
	EventThinkingDelta ResponseEventType = "thinking_delta"
	EventToolCallBegin ResponseEventType = "tool_call_begin"
	EventToolCallDelta ResponseEventType = "tool_call_delta"
	EventToolCallEnd   ResponseEventType = "tool_call_end"
	EventCompleted     ResponseEventType = "completed"
	EventFailed        ResponseEventType = "failed"
)

// ResponseEvent is one item in the ordered sequence an Aggregator emits.
// Snapshot is always the full, as-of-now StreamSnapshot, even for delta
// events — consumers that only care about the end state can ignore every
// event but the last.
type ResponseEvent struct {
	Type     ResponseEventType
	Delta    string
	ToolID   string
	Snapshot StreamSnapshot
	Err      error
}

// Aggregator folds a provider's raw message.StreamChunk channel into an
// ordered ResponseEvent sequence plus a running StreamSnapshot, absorbing
// every chunk type (text/thinking/tool_start/tool_input/done/error) the
// same way regardless of mode, and only varying what it emits.
type Aggregator struct {
	mode Mode
}

// New returns an Aggregator running in the given mode.
func New(mode Mode) *Aggregator {
	return &Aggregator{mode: mode}
}

// Run drains chunks from in and returns a channel of ResponseEvents. The
// returned channel is closed once in is closed and the final event (a
// EventCompleted or EventFailed one) has been emitted. Run never blocks
// the caller's goroutine scheduling beyond reading from in — all folding
// happens inline as chunks arrive.
func (a *Aggregator) Run(ctx context.Context, in <-chan message.StreamChunk) <-chan ResponseEvent {
	out := make(chan ResponseEvent)

	go func() {
		defer close(out)

		snap := StreamSnapshot{}
		byID := map[string]int{} // tool call id -> index in snap.ToolCalls
		var order []string       // preserves tool_use arrival order

		emit := func(ev ResponseEvent) {
			ev.Snapshot = snap
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		for chunk := range in {
			switch chunk.Type {
			case message.ChunkTypeText:
				snap.Text += chunk.Text
				if a.mode == Streaming {
					emit(ResponseEvent{Type: EventTextDelta, Delta: chunk.Text})
				}

			case message.ChunkTypeThinking:
				if snap.Thinking == nil {
					snap.Thinking = &ThinkingSnapshot{}
				}
				snap.Thinking.append(chunk.Text)
				if a.mode == Streaming {
					emit(ResponseEvent{Type: EventThinkingDelta, Delta: chunk.Text})
				}

			case message.ChunkTypeToolStart:
				idx, ok := byID[chunk.ToolID]
				if !ok {
					idx = len(snap.ToolCalls)
					snap.ToolCalls = append(snap.ToolCalls, ToolCallSnapshot{ID: chunk.ToolID, Name: chunk.ToolName})
					byID[chunk.ToolID] = idx
					order = append(order, chunk.ToolID)
				}
				if a.mode == Streaming {
					emit(ResponseEvent{Type: EventToolCallBegin, ToolID: chunk.ToolID})
				}

			case message.ChunkTypeToolInput:
				idx, ok := byID[chunk.ToolID]
				if !ok {
					idx = len(snap.ToolCalls)
					snap.ToolCalls = append(snap.ToolCalls, ToolCallSnapshot{ID: chunk.ToolID, Name: chunk.ToolName})
					byID[chunk.ToolID] = idx
					order = append(order, chunk.ToolID)
				}
				snap.ToolCalls[idx].appendArguments(chunk.Text)
				if a.mode == Streaming {
					emit(ResponseEvent{Type: EventToolCallDelta, ToolID: chunk.ToolID, Delta: chunk.Text})
				}

			case message.ChunkTypeDone:
				for _, id := range order {
					idx := byID[id]
					snap.ToolCalls[idx].complete("")
					if a.mode == Streaming {
						emit(ResponseEvent{Type: EventToolCallEnd, ToolID: id})
					}
				}
				if snap.Thinking != nil {
					snap.Thinking.complete(snap.Thinking.Signature)
				}
				if chunk.Response != nil {
					snap.FinishReason = FinishReason(chunk.Response.StopReason)
					snap.Usage = chunk.Response.Usage
					if chunk.Response.Content != "" && snap.Text == "" {
						snap.Text = chunk.Response.Content
					}
					if len(chunk.Response.ToolCalls) > 0 && len(snap.ToolCalls) == 0 {
						// Caller handed over fully-formed tool calls on the done
						// chunk instead of streaming tool_start/tool_input deltas.
						for _, tc := range chunk.Response.ToolCalls {
							snap.ToolCalls = append(snap.ToolCalls, ToolCallSnapshot{
								ID: tc.ID, Name: tc.Name, Arguments: tc.Input, IsComplete: true,
							})
						}
					}
				}
				if snap.FinishReason == "" {
					if snap.HasToolCalls() {
						snap.FinishReason = FinishToolUse
					} else {
						snap.FinishReason = FinishEndTurn
					}
				}
				snap.IsComplete = true
				emit(ResponseEvent{Type: EventCompleted})
				return

			case message.ChunkTypeError:
				snap.FinishReason = FinishError
				emit(ResponseEvent{Type: EventFailed, Err: chunk.Error})
				return
			}
		}

		// Channel closed without a done/error chunk: treat as a silent
		// completion rather than hanging the caller.
		if !snap.IsComplete {
			snap.IsComplete = true
			if snap.FinishReason == "" {
				snap.FinishReason = FinishEndTurn
			}
			emit(ResponseEvent{Type: EventCompleted})
		}
	}()

	return out
}

// Collect drains an Aggregator's event channel and returns only the
// final snapshot, for callers that don't care about intermediate
// progress (AggregatedOnly callers, and Streaming callers that just want
// the end state alongside their own live rendering).
func Collect(ctx context.Context, events <-chan ResponseEvent) (StreamSnapshot, error) {
	var last StreamSnapshot
	for ev := range events {
		last = ev.Snapshot
		if ev.Type == EventFailed {
			return last, ev.Err
		}
	}
	return last, nil
}
