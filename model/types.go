// Package model defines the content-block conversation model the agent core
// is built against (§3 of the design) and the Client adapter that translates
// it to and from a concrete transport. Only one concrete transport is
// provided — Anthropic's Messages API — per the single-provider,
// whole-response scope the core commits to.
package model

import "encoding/json"

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates the four kinds of content block a Message can carry.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is a single content element within a Message. Only the fields
// relevant to Type are populated; the rest are zero.
type Block struct {
	Type BlockType

	// text / thinking
	Text string

	// thinking only: the provider's opaque signature over the thinking
	// text. The Anthropic Messages API requires this to be replayed
	// verbatim alongside the thinking block when the assistant turn that
	// produced it is sent back with a tool_use block.
	Signature string

	// tool_use
	ID    string
	Name  string
	Input json.RawMessage

	// tool_result
	ToolUseID string
	Content   string
	IsError   bool
}

// Text builds a text content block.
func Text(s string) Block { return Block{Type: BlockText, Text: s} }

// Thinking builds a thinking content block carrying the provider signature
// that must accompany it on replay.
func Thinking(s, signature string) Block {
	return Block{Type: BlockThinking, Text: s, Signature: signature}
}

// ToolUse builds a tool-use content block.
func ToolUse(id, name string, input json.RawMessage) Block {
	return Block{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResult builds a tool-result content block referencing a prior tool-use id.
func ToolResult(toolUseID, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message is a role plus an ordered sequence of content blocks.
type Message struct {
	Role   Role
	Blocks []Block
}

// UserText is a convenience constructor for a single-text-block user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{Text(text)}}
}

// TextContent concatenates every text block in the message, in order.
func (m Message) TextContent() string {
	var out string
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns every tool_use block in the message, in emission order.
func (m Message) ToolUses() []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolDef describes one callable tool: its name, model-visible description,
// and a JSON-schema-shaped input descriptor.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// StopReason values returned by the transport. StopReasonToolUse is the only
// one the turn loop treats specially — anything else ends the turn.
const (
	StopReasonToolUse   = "tool_use"
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTokens = "max_tokens"
	StopReasonStopSeq   = "stop_sequence"
)

// Usage reports token accounting for one request, when the transport supplies it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is one model turn: the blocks it produced, why it stopped, and
// usage accounting.
type Response struct {
	Blocks     []Block
	StopReason string
	Usage      Usage
}

// Message renders the response as an assistant Message for appending to a Conversation.
func (r *Response) Message() Message {
	return Message{Role: RoleAssistant, Blocks: r.Blocks}
}

// Request is everything a Client.Send call needs: the resolved model id,
// system prompt, full conversation, tool registry, output cap, and the
// thinking budget (0 disables extended thinking).
type Request struct {
	Model          string
	System         string
	Messages       []Message
	Tools          []ToolDef
	MaxTokens      int
	ThinkingBudget int
}
