package service

import (
	"context"
	"log"

	"github.com/xiaot623/livechat/internal/domain"
)

// publishSessionUpdate re-reads the session and emits session_update with the stored row.
func (s *Service) publishSessionUpdate(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	s.stream.EmitSessionUpdate(*session)
	return session, nil
}

// resolveReply loads the reply target of msg, or nil when there is none or it is gone.
func (s *Service) resolveReply(ctx context.Context, msg domain.ChatMessage) *domain.ChatMessage {
	if msg.ReplyToID == "" {
		return nil
	}
	target, err := s.store.GetMessage(ctx, msg.ReplyToID)
	if err != nil {
		log.Printf("WARN: failed to load reply target %s of %s: %v", msg.ReplyToID, msg.MessageID, err)
		return nil
	}
	return target
}
