package domain

import "time"

type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string // owner of the tasks/events the message refers to
	Content   string
	Timestamp time.Time
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Agent   string // specialist that produced the reply
	Format  string // text | markdown
}

// Sender identifies who produced a conversation message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// ConversationMessage is one entry of a user's append-only conversation history.
type ConversationMessage struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
