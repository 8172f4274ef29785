package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

// MessageStore implements store.MessageStore using PostgreSQL.
type MessageStore struct {
	pool *pgxpool.Pool
}

// NewMessageStore creates a new PostgreSQL-backed message store.
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{
		pool: pool,
	}
}

// ListConversations returns the user's inbox: one entry per match thread
// with the latest message and unread count, most recent first.
func (s *MessageStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	query := `
		SELECT DISTINCT ON (m.match_id)
			m.match_id,
			CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END AS partner_id,
			u.username,
			m.message,
			m.created_at,
			(
				SELECT COUNT(*) FROM messages
				WHERE match_id = m.match_id AND recipient_id = $1 AND is_read = FALSE
			) AS unread
		FROM messages m
		JOIN users u ON u.id = CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END
		WHERE m.sender_id = $1 OR m.recipient_id = $1
		ORDER BY m.match_id, m.created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to query conversations: %w", err))
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		err := rows.Scan(
			&c.MatchID,
			&c.PartnerID,
			&c.PartnerName,
			&c.LastMessage,
			&c.LastMessageTime,
			&c.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to read conversations: %w", err))
	}

	// DISTINCT ON orders by match_id; the inbox wants newest thread first.
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
	})

	return conversations, nil
}

// ListMessages returns a thread's messages in chronological order.
func (s *MessageStore) ListMessages(ctx context.Context, matchID, userID uuid.UUID) ([]*models.Message, error) {
	if err := s.requireParticipant(ctx, matchID, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT m.id, m.match_id, m.sender_id, m.recipient_id, u.username, m.message, m.is_read, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.match_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to query messages: %w", err))
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var m models.Message
		err := rows.Scan(
			&m.ID,
			&m.MatchID,
			&m.SenderID,
			&m.RecipientID,
			&m.SenderName,
			&m.Body,
			&m.IsRead,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to read messages: %w", err))
	}

	return messages, nil
}

// Send appends a message to a thread the sender participates in. The
// recipient is the other side of the match row identified by matchID.
func (s *MessageStore) Send(ctx context.Context, matchID, senderID uuid.UUID, body string) (*models.Message, error) {
	query := `SELECT user_id, matched_user_id FROM matches WHERE id = $1`

	var a, b uuid.UUID
	err := s.pool.QueryRow(ctx, query, matchID).Scan(&a, &b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrConversationNotFound
		}
		return nil, mapPostgresError(fmt.Errorf("failed to resolve match: %w", err))
	}

	var recipientID uuid.UUID
	switch senderID {
	case a:
		recipientID = b
	case b:
		recipientID = a
	default:
		return nil, store.ErrConversationNotFound
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	msg := &models.Message{
		ID:          id,
		MatchID:     matchID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   time.Now(),
	}

	insert := `
		INSERT INTO messages (id, match_id, sender_id, recipient_id, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`

	_, err = s.pool.Exec(ctx, insert, msg.ID, msg.MatchID, msg.SenderID, msg.RecipientID, msg.Body, msg.CreatedAt)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to send message: %w", err))
	}

	return msg, nil
}

// MarkRead marks all of the user's unread messages in a thread as read.
func (s *MessageStore) MarkRead(ctx context.Context, matchID, userID uuid.UUID) (int, error) {
	query := `
		UPDATE messages
		SET is_read = TRUE
		WHERE match_id = $1 AND recipient_id = $2 AND is_read = FALSE
	`

	result, err := s.pool.Exec(ctx, query, matchID, userID)
	if err != nil {
		return 0, mapPostgresError(fmt.Errorf("failed to mark messages read: %w", err))
	}

	return int(result.RowsAffected()), nil
}

// requireParticipant verifies the user is on one side of the match.
func (s *MessageStore) requireParticipant(ctx context.Context, matchID, userID uuid.UUID) error {
	query := `
		SELECT 1 FROM matches
		WHERE id = $1 AND (user_id = $2 OR matched_user_id = $2)
	`

	var one int
	err := s.pool.QueryRow(ctx, query, matchID, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrConversationNotFound
		}
		return mapPostgresError(fmt.Errorf("failed to check participation: %w", err))
	}

	return nil
}
