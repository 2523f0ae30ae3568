// Package session holds the in-memory conversation owned by one chat
// session. Nothing is persisted across restarts.
package session

import (
	"time"

	"github.com/rcliao/teeny-mcp/pkg/message"
)

// Conversation is an append-only ordered sequence of messages.
// A message's position never changes once appended.
type Conversation struct {
	messages []message.Message
	created  time.Time
	updated  time.Time
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{created: now, updated: now}
}

// Append adds messages to the end of the conversation, preserving their order.
func (c *Conversation) Append(msgs ...message.Message) {
	if len(msgs) == 0 {
		return
	}
	c.messages = append(c.messages, msgs...)
	c.updated = time.Now()
}

// Messages returns a snapshot of the conversation. Callers may keep or
// modify the returned slice without affecting the conversation.
func (c *Conversation) Messages() []message.Message {
	out := make([]message.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// At returns the message at position i.
func (c *Conversation) At(i int) (message.Message, bool) {
	if i < 0 || i >= len(c.messages) {
		return message.Message{}, false
	}
	return c.messages[i], true
}

// Len returns how many messages the conversation holds.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Created returns when the conversation was started.
func (c *Conversation) Created() time.Time { return c.created }

// Updated returns when a message was last appended.
func (c *Conversation) Updated() time.Time { return c.updated }
