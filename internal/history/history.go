// Package history tracks the ordered, append-only record of messages that
// make up a session: every message the user sent, every assistant turn,
// every tool result, and every subagent contribution, each stamped with
// provenance so a turn can be replayed, compacted, or partially tombstoned
// without losing the ability to explain where a message came from.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coreturn/coreturn/internal/message"
)

// SourceKind tags the provenance of a TrackedMessage. It is a closed sum
// type: every message was produced by exactly one of these paths.
type SourceKind string

const (
	SourceUser              SourceKind = "user"
	SourceAssistant         SourceKind = "assistant"
	SourceSystem            SourceKind = "system"
	SourceTool              SourceKind = "tool"
	SourceSubagent          SourceKind = "subagent"
	SourceCompactionSummary SourceKind = "compaction_summary"
)

// Source identifies where a TrackedMessage came from. RequestID is set
// for SourceAssistant (the provider request that produced it), CallID
// for SourceTool (the tool_use id it answers), AgentID for SourceSubagent
// (the subagent run that emitted it).
type Source struct {
	Kind      SourceKind
	RequestID string
	CallID    string
	AgentID   string
}

// TrackedMessage is one entry in a session's history: a message plus the
// bookkeeping needed to reorder, tombstone, and replay it.
type TrackedMessage struct {
	ID         string
	TurnID     string
	CreatedAt  time.Time
	Source     Source
	Tombstoned bool
	Message    message.Message
}

// Orphan describes a tool_use block with no matching tool_result,
// surfaced by Pairings so the scheduler can synthesize one.
type Orphan struct {
	CallID    string
	ToolName  string
	MessageID string
}

// History is the append-only, mutex-guarded record backing a session.
// Nothing is ever removed from Entries; Compact tombstones a prefix and
// appends a summary in its place instead of truncating.
type History struct {
	mu      sync.Mutex
	entries []TrackedMessage
}

// New returns an empty History.
func New() *History {
	return &History{}
}

// Append records a single message under the given turn and source,
// returning the TrackedMessage it created.
func (h *History) Append(turnID string, src Source, msg message.Message) TrackedMessage {
	tm := TrackedMessage{
		ID:        uuid.NewString(),
		TurnID:    turnID,
		CreatedAt: time.Now(),
		Source:    src,
		Message:   msg,
	}
	h.mu.Lock()
	h.entries = append(h.entries, tm)
	h.mu.Unlock()
	return tm
}

// RecordBatch appends a batch of messages produced together (typically
// one assistant turn's text/thinking message plus any tool_use messages
// it triggered), enforcing the reorder invariant: within a batch, an
// assistant message carrying only text/thinking is moved ahead of any
// tool_use-carrying message from the same turn, so a reader always sees
// the model's prose before the calls it made to produce more of it.
func (h *History) RecordBatch(turnID string, src Source, msgs []message.Message) []TrackedMessage {
	textFirst := make([]message.Message, 0, len(msgs))
	toolUse := make([]message.Message, 0, len(msgs))
	for _, m := range msgs {
		if len(m.ToolCalls) > 0 {
			toolUse = append(toolUse, m)
		} else {
			textFirst = append(textFirst, m)
		}
	}
	ordered := append(textFirst, toolUse...)

	tracked := make([]TrackedMessage, 0, len(ordered))
	h.mu.Lock()
	for _, m := range ordered {
		tm := TrackedMessage{
			ID:        uuid.NewString(),
			TurnID:    turnID,
			CreatedAt: time.Now(),
			Source:    src,
			Message:   m,
		}
		h.entries = append(h.entries, tm)
		tracked = append(tracked, tm)
	}
	h.mu.Unlock()
	return tracked
}

// Snapshot returns a copy of the live (non-tombstoned) entries in order.
func (h *History) Snapshot() []TrackedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TrackedMessage, 0, len(h.entries))
	for _, e := range h.entries {
		if !e.Tombstoned {
			out = append(out, e)
		}
	}
	return out
}

// Messages returns the flat message.Message slice a provider call needs,
// in the same order as Snapshot.
func (h *History) Messages() []message.Message {
	snap := h.Snapshot()
	out := make([]message.Message, len(snap))
	for i, tm := range snap {
		out[i] = tm.Message
	}
	return out
}

// Pairings walks the live history and returns every tool_use block with
// no later tool_result referencing its call id — the invariant the
// scheduler must restore before starting a new turn.
func (h *History) Pairings() []Orphan {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending := map[string]Orphan{}
	for _, e := range h.entries {
		if e.Tombstoned {
			continue
		}
		for _, tc := range e.Message.ToolCalls {
			pending[tc.ID] = Orphan{CallID: tc.ID, ToolName: tc.Name, MessageID: e.ID}
		}
		if e.Message.ToolResult != nil {
			delete(pending, e.Message.ToolResult.ToolCallID)
		}
	}

	out := make([]Orphan, 0, len(pending))
	for _, o := range pending {
		out = append(out, o)
	}
	return out
}

// SynthesizeCancelledResults appends a synthetic, error tool_result for
// every orphaned tool_use left by a cancelled turn, so the next turn
// never sees a dangling call. Returns the tracked messages it created.
func (h *History) SynthesizeCancelledResults(turnID string) []TrackedMessage {
	orphans := h.Pairings()
	if len(orphans) == 0 {
		return nil
	}
	out := make([]TrackedMessage, 0, len(orphans))
	for _, o := range orphans {
		result := message.ToolResultMessage(message.ToolResult{
			ToolCallID: o.CallID,
			ToolName:   o.ToolName,
			Content:    "cancelled: turn was interrupted before this tool call completed",
			IsError:    true,
		})
		out = append(out, h.Append(turnID, Source{Kind: SourceSystem}, result))
	}
	return out
}

// CompactionSummary is returned by Compact describing what it replaced.
type CompactionSummary struct {
	ReplacedCount int
	Summary       string
	Message       TrackedMessage
}

// Compact tombstones every live entry up to (and including) cutIndex and
// appends one SourceCompactionSummary message carrying summary in its
// place. Callers are expected to have already chosen cutIndex such that
// it never splits a tool_use/tool_result pair (see
// LastSafeCutIndex).
func (h *History) Compact(turnID string, summary string, cutIndex int) (CompactionSummary, error) {
	h.mu.Lock()
	if cutIndex < 0 || cutIndex >= len(h.entries) {
		h.mu.Unlock()
		return CompactionSummary{}, fmt.Errorf("history: cut index %d out of range (%d entries)", cutIndex, len(h.entries))
	}
	replaced := 0
	for i := 0; i <= cutIndex; i++ {
		if !h.entries[i].Tombstoned {
			h.entries[i].Tombstoned = true
			replaced++
		}
	}
	h.mu.Unlock()

	tm := h.Append(turnID, Source{Kind: SourceCompactionSummary}, message.Message{
		Role:    message.RoleUser,
		Content: summary,
	})
	return CompactionSummary{ReplacedCount: replaced, Summary: summary, Message: tm}, nil
}

// LastSafeCutIndex returns the largest index <= desired such that cutting
// the live history there never separates a tool_use block from its
// tool_result: it walks backward from desired until every tool_use in
// [0, idx] is answered within [0, idx] too. It returns -1 if no such index
// exists.
func (h *History) LastSafeCutIndex(desired int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if desired < 0 {
		return -1
	}
	if desired >= len(h.entries) {
		desired = len(h.entries) - 1
	}

	for idx := desired; idx >= 0; idx-- {
		if h.cutIsSafeLocked(idx) {
			return idx
		}
	}
	return -1
}

func (h *History) cutIsSafeLocked(idx int) bool {
	opened := map[string]bool{}
	for i := 0; i <= idx; i++ {
		e := h.entries[i]
		for _, tc := range e.Message.ToolCalls {
			opened[tc.ID] = true
		}
		if e.Message.ToolResult != nil {
			delete(opened, e.Message.ToolResult.ToolCallID)
		}
	}
	return len(opened) == 0
}
