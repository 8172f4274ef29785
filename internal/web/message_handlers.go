package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/loveconnect/loveconnect/internal/auth"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

type conversationsPage struct {
	Conversations []*models.Conversation
}

type threadPage struct {
	MatchID  uuid.UUID
	Messages []*models.Message
}

// Conversations renders the inbox.
func (h *Handlers) Conversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	conversations, err := h.messages.ListConversations(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load conversations")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render(w, "messages.html", pageData{
		Title:     "Messages",
		Session:   session,
		CSRFToken: session.CSRFToken,
		Data:      conversationsPage{Conversations: conversations},
	})
}

// Thread renders a conversation and marks its unread messages as read.
func (h *Handlers) Thread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	messages, err := h.messages.ListMessages(ctx, matchID, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error().Err(err).Msg("Failed to load thread")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if _, err := h.messages.MarkRead(ctx, matchID, session.UserID); err != nil {
		log.Error().Err(err).Msg("Failed to mark thread read")
	}

	h.render(w, "thread.html", pageData{
		Title:     "Conversation",
		Session:   session,
		CSRFToken: session.CSRFToken,
		Data:      threadPage{MatchID: matchID, Messages: messages},
	})
}

// SendMessage appends a message to a thread the sender participates in.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	body := strings.TrimSpace(r.PostFormValue("body"))
	if body == "" || len(body) > maxMessageLen {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if _, err := h.messages.Send(ctx, matchID, session.UserID, body); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error().Err(err).Msg("Failed to send message")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/messages/"+matchID.String(), http.StatusFound)
}
