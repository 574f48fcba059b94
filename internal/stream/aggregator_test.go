package stream

import (
	"context"
	"testing"

	"github.com/coreturn/coreturn/internal/message"
)

func chunks(cs ...message.StreamChunk) <-chan message.StreamChunk {
	ch := make(chan message.StreamChunk, len(cs))
	for _, c := range cs {
		ch <- c
	}
	close(ch)
	return ch
}

func TestAggregatorAggregatedOnlyEmitsOneEvent(t *testing.T) {
	in := chunks(
		message.StreamChunk{Type: message.ChunkTypeText, Text: "hello "},
		message.StreamChunk{Type: message.ChunkTypeText, Text: "world"},
		message.StreamChunk{Type: message.ChunkTypeDone, Response: &message.CompletionResponse{StopReason: "end_turn"}},
	)

	agg := New(AggregatedOnly)
	events := agg.Run(context.Background(), in)

	var got []ResponseEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 event in AggregatedOnly mode, got %d", len(got))
	}
	if got[0].Snapshot.Text != "hello world" {
		t.Errorf("expected accumulated text %q, got %q", "hello world", got[0].Snapshot.Text)
	}
}

func TestAggregatorStreamingEmitsDeltas(t *testing.T) {
	in := chunks(
		message.StreamChunk{Type: message.ChunkTypeText, Text: "hi"},
		message.StreamChunk{Type: message.ChunkTypeDone, Response: &message.CompletionResponse{StopReason: "end_turn"}},
	)

	agg := New(Streaming)
	events := agg.Run(context.Background(), in)

	var types []ResponseEventType
	for ev := range events {
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != EventTextDelta || types[1] != EventCompleted {
		t.Fatalf("unexpected event sequence: %v", types)
	}
}

func TestAggregatorOnlyExposesCompletedToolCalls(t *testing.T) {
	in := chunks(
		message.StreamChunk{Type: message.ChunkTypeToolStart, ToolID: "tc1", ToolName: "Bash"},
		message.StreamChunk{Type: message.ChunkTypeToolInput, ToolID: "tc1", Text: `{"command":"ls"}`},
		message.StreamChunk{Type: message.ChunkTypeDone, Response: &message.CompletionResponse{StopReason: "tool_use"}},
	)

	agg := New(AggregatedOnly)
	snap, err := Collect(context.Background(), agg.Run(context.Background(), in))
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	calls := snap.ToToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 completed tool call, got %d", len(calls))
	}
	if calls[0].Input != `{"command":"ls"}` {
		t.Errorf("unexpected tool call input: %q", calls[0].Input)
	}
}

func TestAggregatorMalformedToolArgumentsDoNotPanic(t *testing.T) {
	in := chunks(
		message.StreamChunk{Type: message.ChunkTypeToolStart, ToolID: "tc1", ToolName: "Bash"},
		message.StreamChunk{Type: message.ChunkTypeToolInput, ToolID: "tc1", Text: `{not json`},
		message.StreamChunk{Type: message.ChunkTypeDone, Response: &message.CompletionResponse{StopReason: "tool_use"}},
	)

	agg := New(AggregatedOnly)
	snap, err := Collect(context.Background(), agg.Run(context.Background(), in))
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	calls := snap.ToToolCalls()
	if len(calls) != 1 || calls[0].Input != "{}" {
		t.Fatalf("expected malformed arguments to degrade to {}, got %+v", calls)
	}
}

func TestAggregatorPropagatesError(t *testing.T) {
	in := chunks(
		message.StreamChunk{Type: message.ChunkTypeText, Text: "partial"},
		message.StreamChunk{Type: message.ChunkTypeError, Error: errBoom},
	)

	agg := New(Streaming)
	_, err := Collect(context.Background(), agg.Run(context.Background(), in))
	if err != errBoom {
		t.Fatalf("expected errBoom, got %v", err)
	}
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
