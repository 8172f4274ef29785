package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
)

// Errors
var (
	ErrConversationNotFound = errors.New("conversation not found")
)

// MessageStore manages chat messages between matched users.
type MessageStore interface {
	// ListConversations returns the user's inbox: one entry per match
	// thread with the latest message and unread count, most recent first.
	ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error)

	// ListMessages returns a thread's messages in chronological order.
	// Returns ErrConversationNotFound when the user is not a participant.
	ListMessages(ctx context.Context, matchID, userID uuid.UUID) ([]*models.Message, error)

	// Send appends a message to a thread the sender participates in.
	Send(ctx context.Context, matchID, senderID uuid.UUID, body string) (*models.Message, error)

	// MarkRead marks all of the user's unread messages in a thread as read.
	MarkRead(ctx context.Context, matchID, userID uuid.UUID) (int, error)
}
