package core

import (
	"context"
	"testing"

	"github.com/coreturn/coreturn/internal/message"
)

func TestSchedulerRunTurnEndsOnNoToolCalls(t *testing.T) {
	loop := newTestLoop(&mockProvider{responses: []message.CompletionResponse{
		{Content: "hello there", StopReason: "end_turn"},
	}})
	sched := NewScheduler(loop, nil)

	result, err := sched.RunTurn(context.Background(), UserInput{Text: "hi"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	if result.StopReason != "end_turn" {
		t.Errorf("expected end_turn, got %q", result.StopReason)
	}
	if len(sched.History().Snapshot()) != 2 {
		t.Errorf("expected 2 tracked messages (user + assistant), got %d", len(sched.History().Snapshot()))
	}
}

func TestSchedulerMailboxDrainsAfterTurn(t *testing.T) {
	loop := newTestLoop(&mockProvider{responses: []message.CompletionResponse{
		{Content: "working on it", StopReason: "end_turn"},
	}})
	sched := NewScheduler(loop, nil)
	sched.Submit(UserInput{Text: "also do this"})

	_, err := sched.RunTurn(context.Background(), UserInput{Text: "start"})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}

	snap := sched.History().Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 tracked messages (user, assistant, mailbox followup), got %d", len(snap))
	}
	if snap[2].Message.Content != "also do this" {
		t.Errorf("expected mailbox message last, got %+v", snap[2].Message)
	}
}

func TestSchedulerPreCancelledTurnReturnsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := newTestLoop(&mockProvider{responses: []message.CompletionResponse{
		{Content: "", ToolCalls: []message.ToolCall{{ID: "tc1", Name: "Bash", Input: `{}`}}, StopReason: "tool_use"},
	}})
	sched := NewScheduler(loop, nil)

	result, err := sched.RunTurn(ctx, UserInput{Text: "hi"})
	if err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
	if result.StopReason != "cancelled" {
		t.Errorf("expected cancelled stop reason, got %q", result.StopReason)
	}
}
