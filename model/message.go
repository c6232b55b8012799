package model

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. System messages carry background context for the model and
// are never shown in the UI.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents one turn unit in the conversation transcript.
//
// Timestamp is unix milliseconds so snapshots order and key messages without
// caring about wall-clock formatting. Display marks whether the message is
// rendered; Display=false messages (background context) still belong to the
// logical transcript sent to the model.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Display   bool   `json:"display"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role, content string, display bool) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Display:   display,
	}
}

// VisibleMessages returns the Display=true subsequence in original order.
func VisibleMessages(messages []Message) []Message {
	visible := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Display {
			visible = append(visible, msg)
		}
	}
	return visible
}
