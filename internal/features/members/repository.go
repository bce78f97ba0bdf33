// Package members — repository.go отвечает за таблицы users и chats.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/respekt-bot/internal/common"
)

// Repository — хранилище пользователей и чатов.
type Repository interface {
	UpsertUser(ctx context.Context, u *User) error
	UpsertChat(ctx context.Context, c *Chat) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListChats(ctx context.Context) ([]Chat, error)
}

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertUser создаёт пользователя или обновляет имя/username.
// Строка переписывается только если что-то действительно поменялось.
func (r *PostgresRepository) UpsertUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
		WHERE users.username IS DISTINCT FROM EXCLUDED.username
		   OR users.first_name IS DISTINCT FROM EXCLUDED.first_name
		   OR users.last_name IS DISTINCT FROM EXCLUDED.last_name
	`
	if _, err := r.db.Exec(ctx, query, u.UserID, u.Username, u.FirstName, u.LastName); err != nil {
		return fmt.Errorf("ошибка создания/обновления пользователя: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpsertChat(ctx context.Context, c *Chat) error {
	query := `
		INSERT INTO chats (chat_id, title)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE
		SET title = EXCLUDED.title, updated_at = NOW()
		WHERE chats.title IS DISTINCT FROM EXCLUDED.title
	`
	if _, err := r.db.Exec(ctx, query, c.ChatID, c.Title); err != nil {
		return fmt.Errorf("ошибка создания/обновления чата: %w", err)
	}
	return nil
}

// GetUser: если не найден — ошибка с common.ErrUserNotFound
func (r *PostgresRepository) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT user_id, COALESCE(username, ''), first_name, COALESCE(last_name, '')
		FROM users WHERE user_id = $1
	`
	var u User
	err := r.db.QueryRow(ctx, query, userID).Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения пользователя (user_id=%d): %w", userID, err)
	}
	return &u, nil
}

// GetUserByUsername ищет без учёта регистра; при совпадении берёт последнего обновлённого.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT user_id, COALESCE(username, ''), first_name, COALESCE(last_name, '')
		FROM users
		WHERE LOWER(username) = LOWER($1)
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var u User
	err := r.db.QueryRow(ctx, query, username).Scan(&u.UserID, &u.Username, &u.FirstName, &u.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("username=%s: %w", username, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения пользователя (username=%s): %w", username, err)
	}
	return &u, nil
}

func (r *PostgresRepository) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := r.db.Query(ctx, `SELECT chat_id, COALESCE(title, '') FROM chats ORDER BY chat_id`)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}
