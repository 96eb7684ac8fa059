// Package ui implements the terminal presentation layer: the Sink contract
// the agent core depends on, and a concrete terminal implementation built on
// glamour for markdown rendering and raw-mode keyboard reads for Esc-to-
// interrupt.
package ui

// Sink is the abstract presentation surface the agent core depends on. The
// core never inspects sink state and makes no assumption about which
// goroutine renders — implementations that are not internally thread-safe
// must marshal calls themselves.
type Sink interface {
	// Write emits free, unstyled text.
	Write(text string)
	// WritePrimary, WriteAccent, WriteError and WriteDebug emit styled text
	// in the sink's corresponding register.
	WritePrimary(text string)
	WriteAccent(text string)
	WriteError(text string)
	WriteDebug(text string)
	// Newline emits a single line break.
	Newline()
	// Clear resets the display, where the implementation supports it.
	Clear()

	// Thinking renders an extended-thinking block and how long it took.
	Thinking(content string, durationSeconds float64)
	// Response renders a final assistant markdown response.
	Response(markdownText string)
	// ToolCall announces a tool invocation before it runs.
	ToolCall(name string, input string)
	// ToolResult announces a tool's result, truncated for display at maxLen.
	ToolResult(output string, maxLen int)
	// Interrupted announces that the current turn was cancelled by the user.
	Interrupted()
	// Status renders a transient status line; spinning requests an animated
	// indicator where the implementation supports one.
	Status(message string, spinning bool)
}
