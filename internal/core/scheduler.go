package core

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coreturn/coreturn/internal/config"
	"github.com/coreturn/coreturn/internal/history"
	"github.com/coreturn/coreturn/internal/message"
)

const maxConcurrentTools = 4

// UserInput is one item accepted into a Scheduler's pending-input
// mailbox while a turn is in flight.
type UserInput struct {
	Text   string
	Images []message.ImageData
}

// Scheduler drives a Loop against a tracked History instead of a bare
// message slice, adding the three things a synchronous Loop.Run doesn't
// have: a pending-input mailbox so input submitted mid-turn is queued
// rather than dropped or raced in, a cancellation point that leaves the
// history consistent (no dangling tool_use), and bounded concurrent
// dispatch of read-only tool calls.
type Scheduler struct {
	loop    *Loop
	history *history.History

	mu      sync.Mutex
	mailbox []UserInput
	turnID  string
	turnN   int

	cancel context.CancelFunc
}

// NewScheduler wraps loop with mailbox/cancellation/history-aware turn
// handling. hist may be shared with a session recorder.
func NewScheduler(loop *Loop, hist *history.History) *Scheduler {
	if hist == nil {
		hist = history.New()
	}
	return &Scheduler{loop: loop, history: hist}
}

// Submit enqueues user input for the next turn boundary. If no turn is
// in flight, the scheduler should be driven by calling RunTurn directly;
// Submit exists for callers that want to accept input while a turn is
// still streaming without racing the in-flight request.
func (s *Scheduler) Submit(input UserInput) {
	s.mu.Lock()
	s.mailbox = append(s.mailbox, input)
	s.mu.Unlock()
}

// drainMailbox returns every pending input in submission order and
// clears the mailbox. Called only at a turn boundary, never mid-stream —
// this is the strict reorder rule: input submitted during a turn is
// always appended after that turn's own messages, never interleaved
// into its history.
func (s *Scheduler) drainMailbox() []UserInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.mailbox
	s.mailbox = nil
	return drained
}

// Cancel interrupts the in-flight turn, if any; it does nothing when no
// turn is running. The in-flight RunTurn call observes the cancellation,
// synthesizes tool_result entries for any tool_use left unanswered, and
// returns a "cancelled" stop reason.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// History exposes the scheduler's tracked history for inspection
// (session persistence, compaction policy, tests).
func (s *Scheduler) History() *history.History {
	return s.history
}

// RunTurn drives one full turn — stream, tool dispatch (serialized for
// mutating tools, pooled for read-only ones), history update — and
// drains the mailbox into the *next* turn's opening user messages before
// returning.
func (s *Scheduler) RunTurn(ctx context.Context, input UserInput) (*Result, error) {
	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.turnN++
	s.turnID = fmt.Sprintf("turn-%d", s.turnN)
	s.cancel = cancel
	turnID := s.turnID
	s.mu.Unlock()
	defer cancel()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	if input.Text != "" || len(input.Images) > 0 {
		userMsg := message.UserMessage(input.Text, input.Images)
		s.history.Append(turnID, history.Source{Kind: history.SourceUser}, userMsg)
	}
	s.loop.SetMessages(s.history.Messages())

	resp, err := Collect(turnCtx, s.loop.Stream(turnCtx))
	if err != nil {
		if turnCtx.Err() != nil {
			s.history.SynthesizeCancelledResults(turnID)
			return &Result{StopReason: "cancelled", Turns: s.turnN}, turnCtx.Err()
		}
		return nil, err
	}

	assistantMsg := message.AssistantMessage(resp.Content, resp.Thinking, resp.ToolCalls)
	s.history.RecordBatch(turnID, history.Source{Kind: history.SourceAssistant}, []message.Message{assistantMsg})

	if len(resp.ToolCalls) == 0 {
		s.appendMailboxAsFollowup(turnID)
		return &Result{Content: resp.Content, StopReason: "end_turn", Turns: s.turnN, Messages: s.history.Messages()}, nil
	}

	allowed, blocked := s.loop.FilterToolCalls(turnCtx, resp.ToolCalls)
	for _, br := range blocked {
		s.recordToolResult(turnID, br)
	}

	results, err := s.dispatchTools(turnCtx, allowed)
	if err != nil && turnCtx.Err() != nil {
		s.history.SynthesizeCancelledResults(turnID)
		return &Result{StopReason: "cancelled", Turns: s.turnN}, turnCtx.Err()
	}
	for _, r := range results {
		s.recordToolResult(turnID, r)
	}

	s.appendMailboxAsFollowup(turnID)
	return &Result{Content: resp.Content, StopReason: "tool_use", Turns: s.turnN, Messages: s.history.Messages()}, nil
}

// appendMailboxAsFollowup drains any input queued during the turn and
// records it as the opening of the next turn's history, honoring the
// reorder rule: it is appended strictly after everything from turnID.
func (s *Scheduler) appendMailboxAsFollowup(turnID string) {
	for _, in := range s.drainMailbox() {
		s.history.Append(turnID+"+mailbox", history.Source{Kind: history.SourceUser}, message.UserMessage(in.Text, in.Images))
	}
}

func (s *Scheduler) recordToolResult(turnID string, result message.ToolResult) {
	s.history.Append(turnID, history.Source{Kind: history.SourceTool, CallID: result.ToolCallID}, message.ToolResultMessage(result))
}

// dispatchTools runs mutating tool calls one at a time, in order, but
// pools every run of consecutive read-only calls through a bounded
// errgroup so independent reads (Read/Glob/Grep/WebFetch) don't pay for
// each other's latency serially.
func (s *Scheduler) dispatchTools(ctx context.Context, calls []message.ToolCall) ([]message.ToolResult, error) {
	results := make([]message.ToolResult, len(calls))

	i := 0
	for i < len(calls) {
		if !config.IsReadOnlyTool(calls[i].Name) {
			if ctx.Err() != nil {
				return results[:i], ctx.Err()
			}
			r := s.loop.ExecTool(ctx, calls[i])
			results[i] = *r
			i++
			continue
		}

		j := i
		for j < len(calls) && config.IsReadOnlyTool(calls[j].Name) {
			j++
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrentTools)
		batch := calls[i:j]
		batchResults := make([]message.ToolResult, len(batch))
		for k, tc := range batch {
			k, tc := k, tc
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r := s.loop.ExecTool(gctx, tc)
				batchResults[k] = *r
				return nil
			})
		}
		if err := g.Wait(); err != nil && ctx.Err() != nil {
			return results[:i], ctx.Err()
		}
		copy(results[i:j], batchResults)
		i = j
	}

	return results, nil
}
