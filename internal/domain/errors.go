package domain

import "errors"

var (
	// ErrSessionNotFound indicates the chat session does not exist.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrMessageNotFound indicates the chat message does not exist.
	ErrMessageNotFound = errors.New("chat message not found")
	// ErrNotificationNotFound indicates the notification does not exist.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrGuestIDRequired indicates a session lookup without a guest identifier.
	ErrGuestIDRequired = errors.New("guest_id is required")
	// ErrEmptyContent indicates a message with blank content.
	ErrEmptyContent = errors.New("message content is required")
	// ErrContentTooLong indicates a message over the configured length limit.
	ErrContentTooLong = errors.New("message content is too long")
	// ErrInvalidSenderType indicates a sender type other than guest or admin.
	ErrInvalidSenderType = errors.New("sender_type must be guest or admin")
	// ErrInvalidNotificationType indicates an unknown notification type tag.
	ErrInvalidNotificationType = errors.New("notification type must be comment, contact or application")
	// ErrTitleRequired indicates a notification without a title.
	ErrTitleRequired = errors.New("notification title is required")
	// ErrForbidden indicates the caller role may not perform the operation.
	ErrForbidden = errors.New("operation not permitted for caller")
)
