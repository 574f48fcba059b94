package history

import (
	"testing"

	"github.com/coreturn/coreturn/internal/message"
)

func TestRecordBatchReordersTextBeforeToolUse(t *testing.T) {
	h := New()
	toolUse := message.AssistantMessage("", "", []message.ToolCall{{ID: "tc1", Name: "Bash"}})
	text := message.AssistantMessage("I'll check the files", "", nil)

	tracked := h.RecordBatch("turn-1", Source{Kind: SourceAssistant}, []message.Message{toolUse, text})

	if len(tracked) != 2 {
		t.Fatalf("expected 2 tracked messages, got %d", len(tracked))
	}
	if len(tracked[0].Message.ToolCalls) != 0 {
		t.Errorf("expected text message first, got %+v", tracked[0].Message)
	}
	if len(tracked[1].Message.ToolCalls) != 1 {
		t.Errorf("expected tool_use message second, got %+v", tracked[1].Message)
	}
}

func TestPairingsFindsOrphanedToolUse(t *testing.T) {
	h := New()
	h.Append("turn-1", Source{Kind: SourceAssistant}, message.AssistantMessage("", "", []message.ToolCall{
		{ID: "tc1", Name: "Bash"},
	}))

	orphans := h.Pairings()
	if len(orphans) != 1 || orphans[0].CallID != "tc1" {
		t.Fatalf("expected one orphan for tc1, got %+v", orphans)
	}

	h.Append("turn-1", Source{Kind: SourceTool, CallID: "tc1"}, message.ToolResultMessage(message.ToolResult{
		ToolCallID: "tc1", Content: "ok",
	}))

	if orphans := h.Pairings(); len(orphans) != 0 {
		t.Fatalf("expected no orphans after result, got %+v", orphans)
	}
}

func TestSynthesizeCancelledResultsClosesOrphans(t *testing.T) {
	h := New()
	h.Append("turn-1", Source{Kind: SourceAssistant}, message.AssistantMessage("", "", []message.ToolCall{
		{ID: "tc1", Name: "Bash"},
	}))

	synth := h.SynthesizeCancelledResults("turn-1")
	if len(synth) != 1 {
		t.Fatalf("expected 1 synthesized result, got %d", len(synth))
	}
	if !synth[0].Message.ToolResult.IsError {
		t.Error("expected synthesized result to be an error")
	}
	if orphans := h.Pairings(); len(orphans) != 0 {
		t.Fatalf("expected no orphans after synthesis, got %+v", orphans)
	}
}

func TestLastSafeCutIndexAvoidsSplittingPairs(t *testing.T) {
	h := New()
	h.Append("turn-1", Source{Kind: SourceUser}, message.UserMessage("hi", nil))
	h.Append("turn-1", Source{Kind: SourceAssistant}, message.AssistantMessage("", "", []message.ToolCall{
		{ID: "tc1", Name: "Bash"},
	}))
	h.Append("turn-1", Source{Kind: SourceTool, CallID: "tc1"}, message.ToolResultMessage(message.ToolResult{
		ToolCallID: "tc1", Content: "ok",
	}))
	h.Append("turn-2", Source{Kind: SourceUser}, message.UserMessage("more", nil))

	// Desired cut at index 1 (right after the tool_use, before its
	// result) must not be honored: it would split the pair.
	cut := h.LastSafeCutIndex(1)
	if cut != 0 {
		t.Errorf("expected cut to fall back to 0, got %d", cut)
	}
}

func TestCompactTombstonesPrefixAndAppendsSummary(t *testing.T) {
	h := New()
	h.Append("turn-1", Source{Kind: SourceUser}, message.UserMessage("hi", nil))
	h.Append("turn-1", Source{Kind: SourceAssistant}, message.AssistantMessage("hello", "", nil))

	summary, err := h.Compact("turn-2", "user said hi, assistant replied hello", 1)
	if err != nil {
		t.Fatalf("Compact returned error: %v", err)
	}
	if summary.ReplacedCount != 2 {
		t.Errorf("expected 2 replaced entries, got %d", summary.ReplacedCount)
	}

	live := h.Snapshot()
	if len(live) != 1 {
		t.Fatalf("expected 1 live entry after compaction, got %d", len(live))
	}
	if live[0].Source.Kind != SourceCompactionSummary {
		t.Errorf("expected remaining entry to be the compaction summary, got %+v", live[0].Source)
	}
}
