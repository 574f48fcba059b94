// Package message defines the canonical message types and utilities used across the codebase.
// All packages import from here to avoid circular dependencies.
package message

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Message represents a chat message exchanged between user and assistant.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content,omitempty"`
	Images     []ImageData `json:"images,omitempty"`
	Thinking   string      `json:"thinking,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ImageData represents image data for multimodal messages.
type ImageData struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
	FileName  string `json:"file_name"`
	Size      int    `json:"size"`
}

// ToolCallKind tags the payload variant carried by a ToolCall, mirroring
// the function/local_shell/custom/mcp split models use to distinguish
// built-in function calls from shell execution and MCP-routed calls.
type ToolCallKind string

const (
	ToolCallFunction   ToolCallKind = "function"
	ToolCallLocalShell ToolCallKind = "local_shell"
	ToolCallCustom     ToolCallKind = "custom"
	ToolCallMCP        ToolCallKind = "mcp"
)

// ToolCall represents a tool call from the model. Input carries the raw
// JSON arguments for Function/Custom/MCP calls; Command/Cwd/Env/Timeout
// are populated only for Kind == ToolCallLocalShell.
type ToolCall struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Input   string       `json:"input"`
	Kind    ToolCallKind `json:"kind,omitempty"`
	Command []string     `json:"command,omitempty"`
	Cwd     string       `json:"cwd,omitempty"`
	Env     []string     `json:"env,omitempty"`
	Timeout int          `json:"timeout_seconds,omitempty"`
	Server  string       `json:"server,omitempty"` // MCP server name, Kind == ToolCallMCP
}

// EffectiveKind returns Kind, defaulting to ToolCallFunction for calls
// built before the kind tag existed.
func (tc ToolCall) EffectiveKind() ToolCallKind {
	if tc.Kind == "" {
		return ToolCallFunction
	}
	return tc.Kind
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name,omitempty"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// UserMessage creates a user message with optional images.
func UserMessage(text string, images []ImageData) Message {
	return Message{
		Role:    RoleUser,
		Content: text,
		Images:  images,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(text, thinking string, calls []ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   text,
		Thinking:  thinking,
		ToolCalls: calls,
	}
}

// ErrorResult creates an error ToolResult for a tool call.
func ErrorResult(tc ToolCall, content string) *ToolResult {
	return &ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    content,
		IsError:    true,
	}
}

// ToolResultMessage creates a tool result message.
func ToolResultMessage(result ToolResult) Message {
	return Message{
		Role:       RoleUser,
		ToolResult: &result,
	}
}

// ParseToolInput deserializes JSON tool input into a params map.
func ParseToolInput(input string) (map[string]any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return nil, err
	}
	return params, nil
}

// BuildConversationText converts messages to text for summarization. It
// walks each message as its tagged-union ContentBlock decomposition
// rather than switching on the flat fields directly, so a block kind
// added to ToBlocks automatically shows up here too.
func BuildConversationText(msgs []Message) string {
	var sb strings.Builder
	sb.WriteString("Please summarize this coding conversation:\n\n")

	for _, msg := range msgs {
		label := "User"
		if msg.Role == RoleAssistant {
			label = "Assistant"
		}

		for _, b := range msg.ToBlocks() {
			switch b.Type {
			case BlockText:
				fmt.Fprintf(&sb, "%s: %s\n\n", label, b.Text)
			case BlockThinking:
				fmt.Fprintf(&sb, "%s (thinking): %s\n\n", label, b.Thinking)
			case BlockImage:
				fmt.Fprintf(&sb, "[Image attached]\n\n")
			case BlockToolUse:
				fmt.Fprintf(&sb, "[Tool Call: %s]\n", b.ToolName)
			case BlockToolResult:
				content := b.ToolResultContent
				if len(content) > 500 {
					content = content[:500] + "...[truncated]"
				}
				fmt.Fprintf(&sb, "[Tool Result: %s]\n%s\n\n", b.ToolName, content)
			}
		}
	}

	return sb.String()
}

// NeedsCompaction checks if token usage exceeds the threshold percentage of the input limit.
func NeedsCompaction(inputTokens, inputLimit int) bool {
	if inputLimit == 0 || inputTokens == 0 {
		return false
	}
	return float64(inputTokens)/float64(inputLimit)*100 >= 95
}

// CompletionResponse represents a completion response from an LLM provider.
type CompletionResponse struct {
	Content    string     `json:"content,omitempty"`
	Thinking   string     `json:"thinking,omitempty"` // Reasoning content for thinking models
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"` // "end_turn", "tool_use", "max_tokens"
	Usage      Usage      `json:"usage"`
}

// Usage contains token usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChunkType represents the type of a stream chunk.
type ChunkType string

const (
	ChunkTypeText      ChunkType = "text"
	ChunkTypeThinking  ChunkType = "thinking"
	ChunkTypeToolStart ChunkType = "tool_start"
	ChunkTypeToolInput ChunkType = "tool_input"
	ChunkTypeDone      ChunkType = "done"
	ChunkTypeError     ChunkType = "error"
)

// StreamChunk represents a chunk in a streaming response.
type StreamChunk struct {
	Type     ChunkType
	Text     string              // For text chunks
	ToolID   string              // For tool_start chunks
	ToolName string              // For tool_start chunks
	Response *CompletionResponse // For done chunks
	Error    error               // For error chunks
}

// BlockType tags the variant carried by a ContentBlock. A Message is a
// closed sum of these five kinds, never an open-ended map.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
)

// ContentBlock is the tagged-union element of a message's content, used
// wherever history and stream code need to walk a message's parts
// without re-deriving them from the flat Message fields.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockThinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// BlockToolUse
	ToolUseID string `json:"tool_use_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	Input     string `json:"input,omitempty"`

	// BlockToolResult (ToolUseID doubles as the referenced call id)
	ToolResultContent string `json:"tool_result_content,omitempty"`
	IsError           bool   `json:"is_error,omitempty"`

	// BlockImage
	Image *ImageData `json:"image,omitempty"`
}

// ToBlocks decomposes a flat Message into its tagged-union content
// blocks, in the order a model turn would have emitted them: thinking,
// then text, then one tool_use block per call, or a single tool_result
// block for a tool-result message.
func (m Message) ToBlocks() []ContentBlock {
	var blocks []ContentBlock
	if m.Thinking != "" {
		blocks = append(blocks, ContentBlock{Type: BlockThinking, Thinking: m.Thinking})
	}
	if m.Content != "" {
		blocks = append(blocks, ContentBlock{Type: BlockText, Text: m.Content})
	}
	for _, img := range m.Images {
		img := img
		blocks = append(blocks, ContentBlock{Type: BlockImage, Image: &img})
	}
	for _, tc := range m.ToolCalls {
		blocks = append(blocks, ContentBlock{
			Type:      BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Name,
			Input:     tc.Input,
		})
	}
	if m.ToolResult != nil {
		blocks = append(blocks, ContentBlock{
			Type:              BlockToolResult,
			ToolUseID:         m.ToolResult.ToolCallID,
			ToolName:          m.ToolResult.ToolName,
			ToolResultContent: m.ToolResult.Content,
			IsError:           m.ToolResult.IsError,
		})
	}
	return blocks
}

// FromBlocks reassembles a Message from a role and an ordered block
// slice, the inverse of ToBlocks. Only the first tool_result block is
// honored, matching Message's single-ToolResult shape.
func FromBlocks(role Role, blocks []ContentBlock) Message {
	m := Message{Role: role}
	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			m.Content += b.Text
		case BlockThinking:
			m.Thinking += b.Thinking
		case BlockImage:
			if b.Image != nil {
				m.Images = append(m.Images, *b.Image)
			}
		case BlockToolUse:
			m.ToolCalls = append(m.ToolCalls, ToolCall{ID: b.ToolUseID, Name: b.ToolName, Input: b.Input})
		case BlockToolResult:
			if m.ToolResult == nil {
				m.ToolResult = &ToolResult{
					ToolCallID: b.ToolUseID,
					ToolName:   b.ToolName,
					Content:    b.ToolResultContent,
					IsError:    b.IsError,
				}
			}
		}
	}
	return m
}
