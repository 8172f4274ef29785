package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message within a match conversation.
type Message struct {
	ID          uuid.UUID
	MatchID     uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	SenderName  string
	Body        string
	IsRead      bool
	CreatedAt   time.Time
}

// Conversation summarizes a message thread for the inbox list.
type Conversation struct {
	MatchID         uuid.UUID
	PartnerID       uuid.UUID
	PartnerName     string
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int
}
