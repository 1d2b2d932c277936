// Package session keeps the append-only message log of chat conversations.
package session

import (
	"time"
)

// ErrorCode defines error types for session operations
type ErrorCode string

const (
	// ErrNotFound represents an unknown session id
	ErrNotFound ErrorCode = "SessionNotFound"
	// ErrClosed represents an append to a session that has ended
	ErrClosed ErrorCode = "SessionClosed"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Sender identifies who wrote a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Kind tells the UI how to present a message
type Kind string

const (
	KindPlain      Kind = "plain"
	KindQuickReply Kind = "quick-reply"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// WelcomeText is the first bot message of every session.
const WelcomeText = "Hello! Welcome to ShopHub. How can I assist you today?"

// Link is a page suggestion attached to a bot message.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Message is a single entry of a conversation. Messages are never changed
// after they are appended.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"content"`
	Links     []Link    `json:"links,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a conversation between a visitor and the assistant.
type Session struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"userId,omitempty"`
	Messages    []Message `json:"messages"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Active reports whether messages can still be appended
func (s Session) Active() bool {
	return s.Status == StatusActive
}

// Stats are totals across every session of a store.
type Stats struct {
	Sessions int `json:"sessions"`
	Active   int `json:"active"`
	Closed   int `json:"closed"`
	Messages int `json:"messages"`
}

func (s Session) clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		m.Links = append([]Link(nil), m.Links...)
		out.Messages[i] = m
	}
	return out
}
