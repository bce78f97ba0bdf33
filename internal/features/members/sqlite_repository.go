package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"serotonyl.ru/respekt-bot/internal/common"
)

// SQLiteRepository — Repository на встроенной SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES (?, NULLIF(?, ''), ?, NULLIF(?, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET username = excluded.username,
		    first_name = excluded.first_name,
		    last_name = excluded.last_name,
		    updated_at = CURRENT_TIMESTAMP
		WHERE users.username IS NOT excluded.username
		   OR users.first_name IS NOT excluded.first_name
		   OR users.last_name IS NOT excluded.last_name
	`
	if _, err := r.db.ExecContext(ctx, query, u.UserID, u.Username, u.FirstName, u.LastName); err != nil {
		return fmt.Errorf("ошибка создания/обновления пользователя: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertChat(ctx context.Context, c *Chat) error {
	query := `
		INSERT INTO chats (chat_id, title)
		VALUES (?, ?)
		ON CONFLICT (chat_id) DO UPDATE
		SET title = excluded.title, updated_at = CURRENT_TIMESTAMP
		WHERE chats.title IS NOT excluded.title
	`
	if _, err := r.db.ExecContext(ctx, query, c.ChatID, c.Title); err != nil {
		return fmt.Errorf("ошибка создания/обновления чата: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, userID int64) (*User, error) {
	return r.scanUser(ctx, fmt.Sprintf("user_id=%d", userID), `
		SELECT user_id, COALESCE(username, ''), first_name, COALESCE(last_name, '')
		FROM users WHERE user_id = ?
	`, userID)
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanUser(ctx, "username="+username, `
		SELECT user_id, COALESCE(username, ''), first_name, COALESCE(last_name, '')
		FROM users
		WHERE username = ? COLLATE NOCASE
		ORDER BY updated_at DESC
		LIMIT 1
	`, username)
}

func (r *SQLiteRepository) scanUser(ctx context.Context, key, query string, arg any) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, common.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователя (%s): %w", key, err)
	}
	return &u, nil
}

func (r *SQLiteRepository) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chat_id, COALESCE(title, '') FROM chats ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса чатов: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ChatID, &c.Title); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
