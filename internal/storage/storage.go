// Package storage is the local cache: the signed-in professional's auth
// token and a snapshot of the chat list for offline rendering.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prochat/internal/errors"
	"prochat/internal/models"
	"prochat/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db        *sql.DB
	encryptor *encryptor
}

// New opens (creating if needed) the cache database at path.
func New(path string) (*Storage, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping storage: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Storage{db: db, encryptor: enc}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveCredentials stores the active user and their auth token, replacing any
// previous pair. The token is encrypted at rest when a store secret is set.
func (s *Storage) SaveCredentials(ctx context.Context, userID, authToken string) error {
	token, err := s.encryptor.Encrypt(authToken)
	if err != nil {
		return errors.NewStorageError("encrypt credentials", err)
	}

	query := `
		INSERT INTO credentials (id, user_id, auth_token, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			auth_token = excluded.auth_token,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, userID, token, time.Now().UnixMilli()); err != nil {
		return errors.NewStorageError("save credentials", err)
	}
	return nil
}

// GetCredentials returns the stored user id and auth token. A missing row
// yields empty strings, not an error.
func (s *Storage) GetCredentials(ctx context.Context) (userID, authToken string, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, auth_token FROM credentials WHERE id = 1`)

	var token string
	if err := row.Scan(&userID, &token); err != nil {
		if err == sql.ErrNoRows {
			return "", "", nil
		}
		return "", "", errors.NewStorageError("get credentials", err)
	}

	authToken, err = s.encryptor.Decrypt(token)
	if err != nil {
		return "", "", errors.NewStorageError("decrypt credentials", err)
	}
	return userID, authToken, nil
}

// ClearCredentials removes the stored pair (sign-out).
func (s *Storage) ClearCredentials(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1`); err != nil {
		return errors.NewStorageError("clear credentials", err)
	}
	return nil
}

// UpsertChatSummary caches one inbox row.
func (s *Storage) UpsertChatSummary(ctx context.Context, summary models.ChatSummary) error {
	query := `
		INSERT INTO chat_cache (chat_id, client_id, client_name, service_id, service_title, last_message_at, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			client_id = excluded.client_id,
			client_name = excluded.client_name,
			service_id = excluded.service_id,
			service_title = excluded.service_title,
			last_message_at = excluded.last_message_at,
			unread_count = excluded.unread_count,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		summary.ChatID, summary.ClientID, summary.ClientName,
		summary.ServiceID, summary.ServiceTitle,
		summary.LastMessageAt, summary.UnreadCount, time.Now().UnixMilli(),
	)
	if err != nil {
		return errors.NewStorageError("upsert chat summary", err)
	}
	return nil
}

// ListChatSummaries returns cached inbox rows, most recently active first.
func (s *Storage) ListChatSummaries(ctx context.Context) ([]models.ChatSummary, error) {
	query := `
		SELECT chat_id, client_id, client_name, service_id, service_title, last_message_at, unread_count
		FROM chat_cache
		ORDER BY last_message_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("list chat summaries", err)
	}
	defer rows.Close()

	var summaries []models.ChatSummary
	for rows.Next() {
		var summary models.ChatSummary
		var clientName, serviceID, serviceTitle sql.NullString
		if err := rows.Scan(&summary.ChatID, &summary.ClientID, &clientName, &serviceID, &serviceTitle, &summary.LastMessageAt, &summary.UnreadCount); err != nil {
			return nil, errors.NewStorageError("scan chat summary", err)
		}
		summary.ClientName = clientName.String
		summary.ServiceID = serviceID.String
		summary.ServiceTitle = serviceTitle.String
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterate chat summaries", err)
	}
	return summaries, nil
}

// DeleteChatSummary drops one cached row. Idempotent.
func (s *Storage) DeleteChatSummary(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_cache WHERE chat_id = ?`, chatID); err != nil {
		return errors.NewStorageError("delete chat summary", err)
	}
	return nil
}
