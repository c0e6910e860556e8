package domain

// CreateSessionRequest opens (or reopens) the chat session for a guest.
type CreateSessionRequest struct {
	GuestID   string `json:"guest_id" validate:"required,max=128"`
	GuestName string `json:"guest_name,omitempty" validate:"max=128"`
}

// UpdateSessionRequest renames the guest or toggles the active flag.
type UpdateSessionRequest struct {
	GuestName *string `json:"guest_name,omitempty" validate:"omitempty,max=128"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// PostMessageRequest sends a message into a session.
type PostMessageRequest struct {
	Content    string `json:"content"`
	SenderType string `json:"sender_type" validate:"required,oneof=guest admin"`
	ReplyToID  string `json:"reply_to_id,omitempty"`
}

// SeenRequest marks a session as viewed by one party.
type SeenRequest struct {
	SenderType string `json:"sender_type" validate:"required,oneof=guest admin"`
}

// TypingRequest relays a typing signal.
type TypingRequest struct {
	SenderType string `json:"sender_type" validate:"required,oneof=guest admin"`
	IsTyping   bool   `json:"is_typing"`
}

// NotifyRequest creates an administrative notification. Only trusted internal callers send it.
type NotifyRequest struct {
	Type  string `json:"type" validate:"required,oneof=comment contact application"`
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty" validate:"omitempty,max=2048"`
}

// ListMessagesResponse is the message history page of a session.
type ListMessagesResponse struct {
	Session  ChatSession   `json:"session"`
	Messages []MessageView `json:"messages"`
	HasMore  bool          `json:"has_more"`
}
