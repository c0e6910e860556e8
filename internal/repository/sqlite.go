package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/livechat/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// withForeignKeys turns on foreign key enforcement for every pooled connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			guest_id TEXT NOT NULL UNIQUE,
			guest_name TEXT,
			last_message_at DATETIME NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			admin_last_seen_at DATETIME,
			guest_last_seen_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_last_message ON chat_sessions(last_message_at)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			content TEXT NOT NULL,
			sender_type TEXT NOT NULL,
			reply_to_id TEXT,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES chat_sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			notification_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			link TEXT,
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(is_read, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sessionColumns = `session_id, guest_id, guest_name, last_message_at, is_active, admin_last_seen_at, guest_last_seen_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner, extra ...interface{}) (*domain.ChatSession, error) {
	var session domain.ChatSession
	var guestName sql.NullString
	var adminSeen, guestSeen sql.NullTime
	dest := []interface{}{
		&session.SessionID, &session.GuestID, &guestName, &session.LastMessageAt, &session.IsActive,
		&adminSeen, &guestSeen, &session.CreatedAt, &session.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	session.GuestName = guestName.String
	if adminSeen.Valid {
		t := adminSeen.Time.UTC()
		session.AdminLastSeenAt = &t
	}
	if guestSeen.Valid {
		t := guestSeen.Time.UTC()
		session.GuestLastSeenAt = &t
	}
	session.LastMessageAt = session.LastMessageAt.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return &session, nil
}

// CreateSessionIfAbsent inserts the session unless the guest already owns one,
// and returns the canonical row either way.
func (s *SQLiteStore) CreateSessionIfAbsent(ctx context.Context, session *domain.ChatSession) (*domain.ChatSession, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guest_id) DO NOTHING`,
		session.SessionID, session.GuestID, nullString(session.GuestName), session.LastMessageAt.UTC(), session.IsActive,
		nullTime(session.AdminLastSeenAt), nullTime(session.GuestLastSeenAt), session.CreatedAt.UTC(), session.UpdatedAt.UTC())
	if err != nil {
		return nil, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	existing, err := s.GetSessionByGuestID(ctx, session.GuestID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("session for guest %s vanished after insert", session.GuestID)
	}
	return existing, affected == 1, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return session, err
}

// GetSessionByGuestID retrieves the session owned by a guest identifier.
func (s *SQLiteStore) GetSessionByGuestID(ctx context.Context, guestID string) (*domain.ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE guest_id = ?`, guestID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return session, err
}

// ListSessions lists sessions by most recent activity, with the count of guest
// messages the admins have not seen yet.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int, activeOnly bool) ([]domain.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + `,
		(SELECT COUNT(*) FROM chat_messages m
			WHERE m.session_id = chat_sessions.session_id
			AND m.sender_type = ?
			AND m.is_deleted = 0
			AND (chat_sessions.admin_last_seen_at IS NULL OR m.created_at > chat_sessions.admin_last_seen_at)) AS unread
		FROM chat_sessions`
	args := []interface{}{domain.SenderTypeGuest}
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY last_message_at DESC, rowid DESC LIMIT ?`
	args = append(args, NormalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []domain.SessionSummary{}
	for rows.Next() {
		var unread int
		session, err := scanSession(rows, &unread)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.SessionSummary{ChatSession: *session, UnreadCount: unread})
	}
	return summaries, rows.Err()
}

// TouchSessionLastMessage records the time of the newest message in a session.
// It returns domain.ErrSessionNotFound when the session no longer exists.
func (s *SQLiteStore) TouchSessionLastMessage(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_message_at = ?, updated_at = ? WHERE session_id = ?`,
		at.UTC(), at.UTC(), sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// UpdateSessionSeen sets the last-seen timestamp of one party.
func (s *SQLiteStore) UpdateSessionSeen(ctx context.Context, sessionID string, party domain.SenderType, at time.Time) error {
	column := "guest_last_seen_at"
	if party == domain.SenderTypeAdmin {
		column = "admin_last_seen_at"
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET `+column+` = ?, updated_at = ? WHERE session_id = ?`,
		at.UTC(), at.UTC(), sessionID)
	return err
}

// UpdateSessionProfile updates the guest name and/or active flag. Nil fields are left untouched.
func (s *SQLiteStore) UpdateSessionProfile(ctx context.Context, sessionID string, guestName *string, active *bool, at time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{at.UTC()}
	if guestName != nil {
		sets = append(sets, "guest_name = ?")
		args = append(args, nullString(*guestName))
	}
	if active != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *active)
	}
	args = append(args, sessionID)
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET `+strings.Join(sets, ", ")+` WHERE session_id = ?`, args...)
	return err
}

// DeleteSession removes a session and all of its messages. It reports whether
// a session row was actually removed by this call.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

const messageColumns = `message_id, session_id, content, sender_type, reply_to_id, is_deleted, created_at`

func scanMessage(row rowScanner) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	var replyTo sql.NullString
	if err := row.Scan(&msg.MessageID, &msg.SessionID, &msg.Content, &msg.SenderType, &replyTo, &msg.IsDeleted, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.ReplyToID = replyTo.String
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}

// CreateMessage creates a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		message.MessageID, message.SessionID, message.Content, message.SenderType,
		nullString(message.ReplyToID), message.IsDeleted, message.CreatedAt.UTC())
	return err
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE message_id = ?`, messageID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// GetMessagesByIDs retrieves a set of messages keyed by ID. Unknown IDs are absent from the map.
func (s *SQLiteStore) GetMessagesByIDs(ctx context.Context, messageIDs []string) (map[string]domain.ChatMessage, error) {
	found := make(map[string]domain.ChatMessage, len(messageIDs))
	if len(messageIDs) == 0 {
		return found, nil
	}

	placeholders := make([]string, len(messageIDs))
	args := make([]interface{}, len(messageIDs))
	for i, id := range messageIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE message_id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		found[msg.MessageID] = *msg
	}
	return found, rows.Err()
}

// GetLastMessage retrieves the newest message of a session.
func (s *SQLiteStore) GetLastMessage(ctx context.Context, sessionID string) (*domain.ChatMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		sessionID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// ListMessages retrieves the newest messages of a session, oldest first.
// A non-empty before restricts the page to messages older than that message.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE session_id = ?`
	args := []interface{}{sessionID}

	if before != "" {
		query += ` AND (created_at, rowid) < (SELECT created_at, rowid FROM chat_messages WHERE message_id = ?)`
		args = append(args, before)
	}

	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, NormalizeLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.ChatMessage{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SoftDeleteMessage flags a message as deleted. It reports whether the flag changed.
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, messageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_messages SET is_deleted = 1 WHERE message_id = ? AND is_deleted = 0`, messageID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const notificationColumns = `notification_id, type, title, body, link, is_read, created_at`

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	var link sql.NullString
	if err := row.Scan(&n.NotificationID, &n.Type, &n.Title, &n.Body, &link, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Link = link.String
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

// CreateNotification creates a new notification.
func (s *SQLiteStore) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		notification.NotificationID, notification.Type, notification.Title, notification.Body,
		nullString(notification.Link), notification.IsRead, notification.CreatedAt.UTC())
	return err
}

// GetNotification retrieves a notification by ID.
func (s *SQLiteStore) GetNotification(ctx context.Context, notificationID string) (*domain.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE notification_id = ?`, notificationID)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// ListNotifications lists notifications newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, limit int, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications`
	if unreadOnly {
		query += ` WHERE is_read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// CountUnreadNotifications counts notifications not yet read.
func (s *SQLiteStore) CountUnreadNotifications(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE is_read = 0`).Scan(&count)
	return count, err
}

// MarkNotificationRead flips the read flag. It reports whether the flag changed.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, notificationID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE notification_id = ? AND is_read = 0`, notificationID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkAllNotificationsRead marks every unread notification as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE is_read = 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
