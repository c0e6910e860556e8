package domain

import "time"

const replySnippetRunes = 120

// ChatMessage is a single message in a chat session. Only IsDeleted is ever mutated.
type ChatMessage struct {
	MessageID  string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Content    string     `json:"content"`
	SenderType SenderType `json:"sender_type"`
	ReplyToID  string     `json:"reply_to_id,omitempty"`
	IsDeleted  bool       `json:"is_deleted"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Redacted returns a copy safe to hand to either party: deleted messages lose their content.
func (m ChatMessage) Redacted() ChatMessage {
	if m.IsDeleted {
		m.Content = ""
	}
	return m
}

// ReplyPreview is the quoted snippet rendered above a reply.
type ReplyPreview struct {
	MessageID  string     `json:"id"`
	Content    string     `json:"content"`
	SenderType SenderType `json:"sender_type,omitempty"`
	IsDeleted  bool       `json:"is_deleted"`
}

// NewReplyPreview resolves a reply target. A missing or soft-deleted target
// resolves to the placeholder rather than an error.
func NewReplyPreview(targetID string, target *ChatMessage) *ReplyPreview {
	if targetID == "" {
		return nil
	}
	if target == nil || target.IsDeleted {
		preview := &ReplyPreview{MessageID: targetID, Content: DeletedMessagePlaceholder, IsDeleted: true}
		if target != nil {
			preview.SenderType = target.SenderType
		}
		return preview
	}
	return &ReplyPreview{
		MessageID:  target.MessageID,
		Content:    snippet(target.Content),
		SenderType: target.SenderType,
	}
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= replySnippetRunes {
		return content
	}
	return string(runes[:replySnippetRunes]) + "…"
}

// MessageView is the wire shape of a message for both the guest widget and the admin console.
type MessageView struct {
	ChatMessage
	ReplyTo *ReplyPreview `json:"reply_to,omitempty"`
	Seen    *bool         `json:"seen,omitempty"`
}

// NewMessageView redacts msg and attaches its resolved reply preview.
func NewMessageView(msg ChatMessage, replyTarget *ChatMessage) MessageView {
	return MessageView{
		ChatMessage: msg.Redacted(),
		ReplyTo:     NewReplyPreview(msg.ReplyToID, replyTarget),
	}
}

// IsSeen reports whether the party opposite to the sender has viewed the
// session at or after the message was created.
func IsSeen(msg ChatMessage, session ChatSession) bool {
	other := SenderTypeAdmin
	if msg.SenderType == SenderTypeAdmin {
		other = SenderTypeGuest
	}
	seenAt := session.LastSeenBy(other)
	if seenAt == nil {
		return false
	}
	return !seenAt.Before(msg.CreatedAt)
}
