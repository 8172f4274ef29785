package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

// MessageStore implements store.MessageStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type MessageStore struct {
	mu sync.RWMutex

	messages map[uuid.UUID][]*models.Message // match_id -> messages, append order
	users    *UserStore
	matches  *MatchStore // resolves thread participants by match ID
}

// NewMessageStore creates a new in-memory message store. The match store
// resolves thread participants the way the Postgres implementation joins
// the matches table.
func NewMessageStore(users *UserStore, matches *MatchStore) *MessageStore {
	return &MessageStore{
		messages: make(map[uuid.UUID][]*models.Message),
		users:    users,
		matches:  matches,
	}
}

// ListConversations returns the user's inbox, most recent thread first.
func (s *MessageStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conversations []*models.Conversation
	for matchID, thread := range s.messages {
		if len(thread) == 0 {
			continue
		}

		var partnerID uuid.UUID
		participant := false
		unread := 0
		for _, message := range thread {
			switch userID {
			case message.SenderID:
				participant = true
				partnerID = message.RecipientID
			case message.RecipientID:
				participant = true
				partnerID = message.SenderID
				if !message.IsRead {
					unread++
				}
			}
		}
		if !participant {
			continue
		}

		latest := thread[len(thread)-1]
		conversation := &models.Conversation{
			MatchID:         matchID,
			PartnerID:       partnerID,
			LastMessage:     latest.Body,
			LastMessageTime: latest.CreatedAt,
			UnreadCount:     unread,
		}
		if partner, err := s.users.GetByID(ctx, partnerID); err == nil {
			conversation.PartnerName = partner.Username
		}
		conversations = append(conversations, conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
	})
	return conversations, nil
}

// ListMessages returns a thread's messages in chronological order.
func (s *MessageStore) ListMessages(ctx context.Context, matchID, userID uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, _, err := s.resolveParticipants(matchID, userID); err != nil {
		return nil, err
	}

	thread := s.messages[matchID]
	result := make([]*models.Message, 0, len(thread))
	for _, message := range thread {
		clone := *message
		if sender, err := s.users.GetByID(ctx, message.SenderID); err == nil {
			clone.SenderName = sender.Username
		}
		result = append(result, &clone)
	}
	return result, nil
}

// Send appends a message to a thread the sender participates in.
func (s *MessageStore) Send(ctx context.Context, matchID, senderID uuid.UUID, body string) (*models.Message, error) {
	_, recipientID, err := s.resolveParticipants(matchID, senderID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(matchID, senderID, recipientID, body)
}

// MarkRead marks all of the user's unread messages in a thread as read.
func (s *MessageStore) MarkRead(ctx context.Context, matchID, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, message := range s.messages[matchID] {
		if message.RecipientID == userID && !message.IsRead {
			message.IsRead = true
			count++
		}
	}
	return count, nil
}

func (s *MessageStore) appendLocked(matchID, senderID, recipientID uuid.UUID, body string) (*models.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:          id,
		MatchID:     matchID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   time.Now(),
	}
	s.messages[matchID] = append(s.messages[matchID], message)

	clone := *message
	return &clone, nil
}

// resolveParticipants looks up the match row and returns the user and the
// other participant. Non-participants get ErrConversationNotFound.
func (s *MessageStore) resolveParticipants(matchID, userID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	a, b, ok := s.matches.participants(matchID)
	if !ok {
		return uuid.Nil, uuid.Nil, store.ErrConversationNotFound
	}

	switch userID {
	case a:
		return a, b, nil
	case b:
		return b, a, nil
	default:
		return uuid.Nil, uuid.Nil, store.ErrConversationNotFound
	}
}
