package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsSeenBoundaryEquality(t *testing.T) {
	created := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	msg := ChatMessage{MessageID: "m1", SenderType: SenderTypeGuest, CreatedAt: created}

	session := ChatSession{}
	assert.False(t, IsSeen(msg, session), "nil last-seen is never seen")

	before := created.Add(-time.Nanosecond)
	session.AdminLastSeenAt = &before
	assert.False(t, IsSeen(msg, session))

	equal := created
	session.AdminLastSeenAt = &equal
	assert.True(t, IsSeen(msg, session))

	after := created.Add(time.Second)
	session.AdminLastSeenAt = &after
	assert.True(t, IsSeen(msg, session))
}

func TestIsSeenUsesOppositeParty(t *testing.T) {
	created := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	later := created.Add(time.Minute)

	adminMsg := ChatMessage{SenderType: SenderTypeAdmin, CreatedAt: created}
	session := ChatSession{AdminLastSeenAt: &later}
	assert.False(t, IsSeen(adminMsg, session), "admin's own last-seen does not mark admin messages seen")

	session.GuestLastSeenAt = &later
	assert.True(t, IsSeen(adminMsg, session))
}

func TestNewReplyPreview(t *testing.T) {
	assert.Nil(t, NewReplyPreview("", nil))

	missing := NewReplyPreview("gone", nil)
	assert.Equal(t, "gone", missing.MessageID)
	assert.Equal(t, DeletedMessagePlaceholder, missing.Content)
	assert.True(t, missing.IsDeleted)

	deleted := &ChatMessage{MessageID: "m1", Content: "secret", SenderType: SenderTypeGuest, IsDeleted: true}
	preview := NewReplyPreview("m1", deleted)
	assert.Equal(t, DeletedMessagePlaceholder, preview.Content)
	assert.Equal(t, SenderTypeGuest, preview.SenderType)

	long := &ChatMessage{MessageID: "m2", Content: strings.Repeat("á", 200), SenderType: SenderTypeAdmin}
	preview = NewReplyPreview("m2", long)
	assert.False(t, preview.IsDeleted)
	assert.Equal(t, replySnippetRunes+1, len([]rune(preview.Content)))
}

func TestNewMessageViewRedactsDeletedContent(t *testing.T) {
	msg := ChatMessage{MessageID: "m1", Content: "hello", IsDeleted: true}
	view := NewMessageView(msg, nil)
	assert.Empty(t, view.Content)
	assert.True(t, view.IsDeleted)
	assert.Nil(t, view.ReplyTo)
}

func TestParseSenderType(t *testing.T) {
	got, err := ParseSenderType(" Guest ")
	assert.NoError(t, err)
	assert.Equal(t, SenderTypeGuest, got)

	_, err = ParseSenderType("robot")
	assert.ErrorIs(t, err, ErrInvalidSenderType)
}
