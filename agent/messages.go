package agent

import "github.com/corewright/pilot/model"

// MessageHistory returns the accumulated conversation, oldest first.
func (a *Agent) MessageHistory() []model.Message {
	return a.Conversation()
}

// MessageCount returns the number of messages in the conversation.
func (a *Agent) MessageCount() int {
	return len(a.conversation)
}
