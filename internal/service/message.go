package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/repository"
)

// PostMessage persists a message and emits it. A reply reference that does not
// resolve to a message of the same session is dropped rather than rejected.
func (s *Service) PostMessage(ctx context.Context, sessionID, content string, sender domain.SenderType, replyToID string) (*domain.MessageView, error) {
	if !sender.Valid() {
		return nil, domain.ErrInvalidSenderType
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxMessageLength {
		return nil, domain.ErrContentTooLong
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var replyTarget *domain.ChatMessage
	replyToID = strings.TrimSpace(replyToID)
	if replyToID != "" {
		target, err := s.store.GetMessage(ctx, replyToID)
		if err != nil {
			return nil, fmt.Errorf("failed to get reply target: %w", err)
		}
		if target == nil || target.SessionID != sessionID {
			log.Printf("WARN: dropping reply reference %s on message in session %s", replyToID, sessionID)
			replyToID = ""
		} else {
			replyTarget = target
		}
	}

	msg := domain.ChatMessage{
		MessageID:  s.newID("msg_"),
		SessionID:  sessionID,
		Content:    content,
		SenderType: sender,
		ReplyToID:  replyToID,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateMessage(ctx, &msg); err != nil {
		if session, lookupErr := s.store.GetSession(ctx, sessionID); lookupErr == nil && session == nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if err := s.store.TouchSessionLastMessage(ctx, sessionID, msg.CreatedAt); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		log.Printf("WARN: failed to touch session %s: %v", sessionID, err)
	}

	view := domain.NewMessageView(msg, replyTarget)
	s.stream.EmitMessage(view)
	return &view, nil
}

// SoftDeleteMessage flags a message as deleted. Deleting an already deleted
// message succeeds without emitting anything.
func (s *Service) SoftDeleteMessage(ctx context.Context, messageID string) (*domain.MessageView, error) {
	changed, err := s.store.SoftDeleteMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete message: %w", err)
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg == nil {
		return nil, domain.ErrMessageNotFound
	}

	view := domain.NewMessageView(*msg, s.resolveReply(ctx, *msg))
	if changed {
		s.stream.EmitMessageUpdate(view)
	}
	return &view, nil
}

// ListMessages returns a page of a session's history, oldest first, with reply
// previews resolved and the seen flag derived from the session's timestamps.
func (s *Service) ListMessages(ctx context.Context, sessionID string, limit int, before string) (*domain.ListMessagesResponse, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	limit = store.NormalizeLimit(limit)
	messages, err := s.store.ListMessages(ctx, sessionID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	hasMore := false
	if len(messages) == limit {
		older, err := s.store.ListMessages(ctx, sessionID, 1, messages[0].MessageID)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages: %w", err)
		}
		hasMore = len(older) > 0
	}

	var replyIDs []string
	for _, msg := range messages {
		if msg.ReplyToID != "" {
			replyIDs = append(replyIDs, msg.ReplyToID)
		}
	}
	targets, err := s.store.GetMessagesByIDs(ctx, replyIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get reply targets: %w", err)
	}

	views := make([]domain.MessageView, 0, len(messages))
	for _, msg := range messages {
		var target *domain.ChatMessage
		if t, ok := targets[msg.ReplyToID]; ok {
			target = &t
		}
		view := domain.NewMessageView(msg, target)
		seen := domain.IsSeen(msg, *session)
		view.Seen = &seen
		views = append(views, view)
	}

	return &domain.ListMessagesResponse{Session: *session, Messages: views, HasMore: hasMore}, nil
}
