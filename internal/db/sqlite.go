package db

import (
	"database/sql"

	"github.com/museworks/muse/internal/models"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);`

// Database is the persistence gateway for conversations and messages.
//
// Its methods never return errors: store failures are logged and absorbed
// into safe defaults (nil, empty slice, false) so callers don't have to
// distinguish "unreachable" from "nothing there". Connection acquisition is
// scoped per statement by database/sql, so every operation is independently
// atomic from the caller's point of view.
type Database struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(dbPath string, logger *zap.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Cascade from conversations to messages relies on this pragma.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db, logger: logger}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// CreateConversation inserts a conversation with a server-assigned creation
// timestamp and returns it, or nil if the store rejected the write.
func (d *Database) CreateConversation(name string) *models.Conversation {
	query := `
        INSERT INTO conversations (name, created_at)
        VALUES (?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	conv := &models.Conversation{Name: name}
	if err := d.db.QueryRow(query, name).Scan(&conv.ID, &conv.CreatedAt); err != nil {
		d.logger.Error("failed to create conversation",
			zap.Error(err),
			zap.String("name", name))
		return nil
	}
	return conv
}

// ListConversations returns all conversations, most recent first. An empty
// store or a store failure both yield an empty slice.
func (d *Database) ListConversations() []models.Conversation {
	query := `
        SELECT id, name, created_at
        FROM conversations
        ORDER BY created_at DESC, id DESC`

	rows, err := d.db.Query(query)
	if err != nil {
		d.logger.Error("failed to list conversations", zap.Error(err))
		return []models.Conversation{}
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Name, &conv.CreatedAt); err != nil {
			d.logger.Error("failed to scan conversation", zap.Error(err))
			return []models.Conversation{}
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		d.logger.Error("failed to iterate conversations", zap.Error(err))
		return []models.Conversation{}
	}
	return conversations
}

// DeleteConversation removes the conversation and, in the same transaction,
// every message referencing it. Reports whether a conversation row was
// actually deleted, so a missing id comes back false.
func (d *Database) DeleteConversation(id int64) bool {
	tx, err := d.db.Begin()
	if err != nil {
		d.logger.Error("failed to begin delete transaction",
			zap.Error(err),
			zap.Int64("conversationID", id))
		return false
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		d.logger.Error("failed to delete messages",
			zap.Error(err),
			zap.Int64("conversationID", id))
		return false
	}

	result, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		d.logger.Error("failed to delete conversation",
			zap.Error(err),
			zap.Int64("conversationID", id))
		return false
	}

	affected, err := result.RowsAffected()
	if err != nil {
		d.logger.Error("failed to read delete result",
			zap.Error(err),
			zap.Int64("conversationID", id))
		return false
	}

	if err := tx.Commit(); err != nil {
		d.logger.Error("failed to commit delete",
			zap.Error(err),
			zap.Int64("conversationID", id))
		return false
	}

	if affected == 0 {
		d.logger.Warn("delete targeted unknown conversation", zap.Int64("conversationID", id))
		return false
	}
	return true
}

// AddMessage appends a message with a server-assigned timestamp. Role must be
// user or assistant and content must be non-empty; invalid input or a store
// failure both come back false.
func (d *Database) AddMessage(conversationID int64, role, content string) bool {
	if !models.ValidRole(role) {
		d.logger.Warn("rejected message with invalid role",
			zap.String("role", role),
			zap.Int64("conversationID", conversationID))
		return false
	}
	if content == "" {
		d.logger.Warn("rejected empty message", zap.Int64("conversationID", conversationID))
		return false
	}

	// Verify the conversation exists; the FK alone won't catch it when a
	// caller races a delete, and the insert must not orphan a message.
	var exists int
	err := d.db.QueryRow("SELECT 1 FROM conversations WHERE id = ?", conversationID).Scan(&exists)
	if err == sql.ErrNoRows {
		d.logger.Warn("rejected message for unknown conversation",
			zap.Int64("conversationID", conversationID))
		return false
	}
	if err != nil {
		d.logger.Error("failed to check conversation",
			zap.Error(err),
			zap.Int64("conversationID", conversationID))
		return false
	}

	query := `
        INSERT INTO messages (conversation_id, role, content, created_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)`

	if _, err := d.db.Exec(query, conversationID, role, content); err != nil {
		d.logger.Error("failed to save message",
			zap.Error(err),
			zap.Int64("conversationID", conversationID),
			zap.String("role", role))
		return false
	}
	return true
}

// ListMessages returns the conversation's messages in chronological order.
// Unknown conversation ids and store failures both yield an empty slice.
func (d *Database) ListMessages(conversationID int64) []models.Message {
	query := `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, id ASC`

	rows, err := d.db.Query(query, conversationID)
	if err != nil {
		d.logger.Error("failed to list messages",
			zap.Error(err),
			zap.Int64("conversationID", conversationID))
		return []models.Message{}
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			d.logger.Error("failed to scan message", zap.Error(err))
			return []models.Message{}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		d.logger.Error("failed to iterate messages",
			zap.Error(err),
			zap.Int64("conversationID", conversationID))
		return []models.Message{}
	}
	return messages
}
