// Package chat manages a single conversational thread against a pluggable
// response provider, with local persistence and client-enforced rate
// limiting.
package chat

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one committed conversation turn. IDs are ULIDs: time-ordered
// strings that double as render keys and ordering tie-breakers.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(sender Sender, text string, now time.Time) Message {
	return Message{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Text:      text,
		Sender:    sender,
		Timestamp: now,
	}
}
