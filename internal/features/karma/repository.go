// Package karma — repository.go реализует Store поверх PostgreSQL (pgxpool).
package karma

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/respekt-bot/internal/db/postgres"
)

// PostgresStore работает с таблицами messages, votes и user_in_chat.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore создаёт хранилище респекта на PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithTx выполняет fn в транзакции БД.
func (r *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// pgTx — Tx поверх pgx.Tx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) UpsertMessage(ctx context.Context, m Message) error {
	query := `
		INSERT INTO messages (chat_id, message_id, author_user_id, message_text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, message_id) DO UPDATE
		SET message_text = EXCLUDED.message_text, updated_at = NOW()
	`
	if _, err := t.tx.Exec(ctx, query, m.ChatID, m.MessageID, m.AuthorUserID, m.Text); err != nil {
		return fmt.Errorf("ошибка сохранения сообщения %d/%d: %w", m.ChatID, m.MessageID, err)
	}
	return nil
}

func (t *pgTx) GetMessage(ctx context.Context, chatID ChatID, messageID MessageID) (*Message, error) {
	query := `
		SELECT chat_id, message_id, author_user_id, message_text
		FROM messages WHERE chat_id = $1 AND message_id = $2
	`
	var m Message
	err := t.tx.QueryRow(ctx, query, chatID, messageID).Scan(&m.ChatID, &m.MessageID, &m.AuthorUserID, &m.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сообщения %d/%d: %w", chatID, messageID, err)
	}
	return &m, nil
}

// GetCurrentVote сначала берёт advisory-блокировку на пару (голосующий, сообщение):
// строки голоса может ещё не быть, и FOR UPDATE её бы не заблокировал.
// Блокировка держится до конца транзакции.
func (t *pgTx) GetCurrentVote(ctx context.Context, voterID UserID, chatID ChatID, target MessageID) (VoteValue, bool, error) {
	key := fmt.Sprintf("vote:%d:%d:%d", voterID, chatID, target)
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return 0, false, fmt.Errorf("ошибка блокировки голоса: %w", err)
	}

	query := `
		SELECT vote FROM votes
		WHERE voter_user_id = $1 AND chat_id = $2 AND target_message_id = $3
	`
	var v int16
	err := t.tx.QueryRow(ctx, query, voterID, chatID, target).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения голоса: %w", err)
	}
	return VoteValue(v), true, nil
}

func (t *pgTx) SetVote(ctx context.Context, v Vote) error {
	query := `
		INSERT INTO votes (voter_user_id, chat_id, target_message_id, reply_message_id, vote)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (voter_user_id, chat_id, target_message_id) DO UPDATE
		SET vote = EXCLUDED.vote, reply_message_id = EXCLUDED.reply_message_id, updated_at = NOW()
	`
	if _, err := t.tx.Exec(ctx, query, v.VoterID, v.ChatID, v.TargetMessageID, v.ReplyMessageID, int16(v.Value)); err != nil {
		return fmt.Errorf("ошибка записи голоса: %w", err)
	}
	return nil
}

func (t *pgTx) AdjustKarma(ctx context.Context, userID UserID, chatID ChatID, delta int64) (int64, error) {
	query := `
		INSERT INTO user_in_chat (user_id, chat_id, respekt)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chat_id) DO UPDATE
		SET respekt = user_in_chat.respekt + EXCLUDED.respekt, updated_at = NOW()
		RETURNING respekt
	`
	var respekt int64
	if err := t.tx.QueryRow(ctx, query, userID, chatID, delta).Scan(&respekt); err != nil {
		return 0, fmt.Errorf("ошибка изменения респекта: %w", err)
	}
	return respekt, nil
}

// QueryVoteCounts группирует живые голоса по значению.
func (r *PostgresStore) QueryVoteCounts(ctx context.Context, userID UserID, chatID ChatID, dir Direction) ([]VoteCountRow, error) {
	query := `
		SELECT vote, COUNT(*) FROM votes
		WHERE voter_user_id = $1 AND chat_id = $2
		GROUP BY vote ORDER BY vote ASC
	`
	if dir == Received {
		query = `
			SELECT v.vote, COUNT(*) FROM votes v
			JOIN messages m ON m.chat_id = v.chat_id AND m.message_id = v.target_message_id
			WHERE m.author_user_id = $1 AND v.chat_id = $2
			GROUP BY v.vote ORDER BY v.vote ASC
		`
	}
	rows, err := r.db.Query(ctx, query, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта голосов (%s): %w", dir, err)
	}
	defer rows.Close()

	var out []VoteCountRow
	for rows.Next() {
		var v int16
		var row VoteCountRow
		if err := rows.Scan(&v, &row.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		row.Value = VoteValue(v)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

func (r *PostgresStore) GetRespekt(ctx context.Context, userID UserID, chatID ChatID) (int64, bool, error) {
	query := `SELECT respekt FROM user_in_chat WHERE user_id = $1 AND chat_id = $2`
	var respekt int64
	err := r.db.QueryRow(ctx, query, userID, chatID).Scan(&respekt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения респекта: %w", err)
	}
	return respekt, true, nil
}

func (r *PostgresStore) Leaderboard(ctx context.Context, chatID ChatID, limit int) ([]Balance, error) {
	query := `
		SELECT uic.user_id, uic.chat_id, uic.respekt,
		       COALESCE(u.username, ''), COALESCE(u.first_name, '')
		FROM user_in_chat uic
		LEFT JOIN users u ON u.user_id = uic.user_id
		WHERE uic.chat_id = $1
		ORDER BY uic.respekt DESC, uic.user_id ASC
		LIMIT $2
	`
	// LIMIT NULL в PostgreSQL — без ограничения
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.db.Query(ctx, query, chatID, lim)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения топа: %w", err)
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.UserID, &b.ChatID, &b.Respekt, &b.Username, &b.FirstName); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

func (r *PostgresStore) ChatInfo(ctx context.Context, chatID ChatID) (ChatInfo, error) {
	info := ChatInfo{ChatID: chatID}
	query := `
		SELECT
			(SELECT COUNT(*) FROM votes WHERE chat_id = $1),
			(SELECT COUNT(*) FROM user_in_chat WHERE chat_id = $1)
	`
	if err := r.db.QueryRow(ctx, query, chatID).Scan(&info.VoteCount, &info.UsersWithRespekt); err != nil {
		return info, fmt.Errorf("ошибка получения статистики чата: %w", err)
	}
	return info, nil
}

// Reconcile блокирует таблицу votes на запись (SHARE), чтобы голоса не менялись
// во время пересчёта, и приводит балансы к сумме живых голосов.
func (r *PostgresStore) Reconcile(ctx context.Context, chatID ChatID) ([]Drift, error) {
	var drifts []Drift
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "LOCK TABLE votes IN SHARE MODE"); err != nil {
			return fmt.Errorf("ошибка блокировки votes: %w", err)
		}

		expected, err := collectSums(ctx, tx, `
			SELECT m.author_user_id, SUM(v.vote)::BIGINT FROM votes v
			JOIN messages m ON m.chat_id = v.chat_id AND m.message_id = v.target_message_id
			WHERE v.chat_id = $1
			GROUP BY m.author_user_id
		`, chatID)
		if err != nil {
			return err
		}
		stored, err := collectSums(ctx, tx, `
			SELECT user_id, respekt FROM user_in_chat WHERE chat_id = $1
		`, chatID)
		if err != nil {
			return err
		}

		drifts = diffRespekt(stored, expected)
		for _, d := range drifts {
			_, err := tx.Exec(ctx, `
				INSERT INTO user_in_chat (user_id, chat_id, respekt)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, chat_id) DO UPDATE
				SET respekt = EXCLUDED.respekt, updated_at = NOW()
			`, d.UserID, chatID, d.Expected)
			if err != nil {
				return fmt.Errorf("ошибка исправления респекта user_id=%d: %w", d.UserID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drifts, nil
}

func collectSums(ctx context.Context, tx pgx.Tx, query string, chatID ChatID) (map[UserID]int64, error) {
	rows, err := tx.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса сумм: %w", err)
	}
	defer rows.Close()

	out := make(map[UserID]int64)
	for rows.Next() {
		var userID UserID
		var sum int64
		if err := rows.Scan(&userID, &sum); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out[userID] = sum
	}
	return out, rows.Err()
}
