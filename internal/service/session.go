package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/xiaot623/livechat/internal/domain"
)

// CreateOrGetSession returns the session owned by guestID, creating it on first
// contact. created reports whether this call created it.
func (s *Service) CreateOrGetSession(ctx context.Context, guestID, guestName string) (*domain.ChatSession, bool, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return nil, false, domain.ErrGuestIDRequired
	}

	existing, err := s.store.GetSessionByGuestID(ctx, guestID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	now := s.now()
	session, created, err := s.store.CreateSessionIfAbsent(ctx, &domain.ChatSession{
		SessionID:     s.newID(""),
		GuestID:       guestID,
		GuestName:     strings.TrimSpace(guestName),
		LastMessageAt: now,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	if created {
		log.Printf("Chat session created: %s (guest %s)", session.SessionID, guestID)
		s.stream.EmitSessionUpdate(*session)
	}
	return session, created, nil
}

// GetSession returns a session or ErrSessionNotFound.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// ListSessions lists sessions for the admin console with their newest message.
func (s *Service) ListSessions(ctx context.Context, limit int, activeOnly bool) ([]domain.SessionSummary, error) {
	summaries, err := s.store.ListSessions(ctx, limit, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for i := range summaries {
		last, err := s.store.GetLastMessage(ctx, summaries[i].SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get last message: %w", err)
		}
		if last == nil {
			continue
		}
		view := domain.NewMessageView(*last, s.resolveReply(ctx, *last))
		summaries[i].LastMessage = &view
	}
	return summaries, nil
}

// UpdateSession renames the guest or toggles the active flag.
func (s *Service) UpdateSession(ctx context.Context, sessionID string, req domain.UpdateSessionRequest) (*domain.ChatSession, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	name := req.GuestName
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
	}
	if err := s.store.UpdateSessionProfile(ctx, sessionID, name, req.IsActive, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return s.publishSessionUpdate(ctx, sessionID)
}

// UpdateSeen records that party viewed the session now.
func (s *Service) UpdateSeen(ctx context.Context, sessionID string, party domain.SenderType) (*domain.ChatSession, error) {
	if !party.Valid() {
		return nil, domain.ErrInvalidSenderType
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSessionSeen(ctx, sessionID, party, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update seen: %w", err)
	}
	return s.publishSessionUpdate(ctx, sessionID)
}

// SetTyping relays a typing signal. Nothing is persisted and no debouncing is applied.
func (s *Service) SetTyping(ctx context.Context, sessionID string, party domain.SenderType, isTyping bool) error {
	if !party.Valid() {
		return domain.ErrInvalidSenderType
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}
	s.stream.EmitTyping(domain.TypingSignal{SessionID: sessionID, SenderType: party, IsTyping: isTyping})
	return nil
}

// DeleteSession hard-removes a session with its messages. session_removed is
// emitted only by the call that actually removed the row, so a retried
// deletion reports removed=false and emits nothing.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	removed, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	if !removed {
		return false, nil
	}
	log.Printf("Chat session deleted: %s", sessionID)
	s.stream.EmitSessionRemoved(sessionID)
	return true, nil
}
