package karma

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"serotonyl.ru/respekt-bot/internal/db/sqlite"
)

// SQLiteStore — Store на встроенной SQLite.
// Транзакции открываются как BEGIN IMMEDIATE на единственном соединении,
// поэтому транзакции голосов не пересекаются.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore создаёт хранилище респекта на SQLite.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (r *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return sqlite.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&sqliteTx{q: tx})
	})
}

type sqliteTx struct {
	q sqlite.TxQuerier
}

func (t *sqliteTx) UpsertMessage(ctx context.Context, m Message) error {
	query := `
		INSERT INTO messages (chat_id, message_id, author_user_id, message_text)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id, message_id) DO UPDATE
		SET message_text = excluded.message_text, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := t.q.ExecContext(ctx, query, m.ChatID, m.MessageID, m.AuthorUserID, m.Text); err != nil {
		return fmt.Errorf("ошибка сохранения сообщения %d/%d: %w", m.ChatID, m.MessageID, err)
	}
	return nil
}

func (t *sqliteTx) GetMessage(ctx context.Context, chatID ChatID, messageID MessageID) (*Message, error) {
	query := `
		SELECT chat_id, message_id, author_user_id, message_text
		FROM messages WHERE chat_id = ? AND message_id = ?
	`
	var m Message
	err := t.q.QueryRowContext(ctx, query, chatID, messageID).Scan(&m.ChatID, &m.MessageID, &m.AuthorUserID, &m.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сообщения %d/%d: %w", chatID, messageID, err)
	}
	return &m, nil
}

func (t *sqliteTx) GetCurrentVote(ctx context.Context, voterID UserID, chatID ChatID, target MessageID) (VoteValue, bool, error) {
	query := `
		SELECT vote FROM votes
		WHERE voter_user_id = ? AND chat_id = ? AND target_message_id = ?
	`
	var v int
	err := t.q.QueryRowContext(ctx, query, voterID, chatID, target).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения голоса: %w", err)
	}
	return VoteValue(v), true, nil
}

func (t *sqliteTx) SetVote(ctx context.Context, v Vote) error {
	query := `
		INSERT INTO votes (voter_user_id, chat_id, target_message_id, reply_message_id, vote)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (voter_user_id, chat_id, target_message_id) DO UPDATE
		SET vote = excluded.vote, reply_message_id = excluded.reply_message_id,
		    updated_at = CURRENT_TIMESTAMP
	`
	if _, err := t.q.ExecContext(ctx, query, v.VoterID, v.ChatID, v.TargetMessageID, v.ReplyMessageID, int(v.Value)); err != nil {
		return fmt.Errorf("ошибка записи голоса: %w", err)
	}
	return nil
}

func (t *sqliteTx) AdjustKarma(ctx context.Context, userID UserID, chatID ChatID, delta int64) (int64, error) {
	query := `
		INSERT INTO user_in_chat (user_id, chat_id, respekt)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, chat_id) DO UPDATE
		SET respekt = user_in_chat.respekt + excluded.respekt, updated_at = CURRENT_TIMESTAMP
		RETURNING respekt
	`
	var respekt int64
	if err := t.q.QueryRowContext(ctx, query, userID, chatID, delta).Scan(&respekt); err != nil {
		return 0, fmt.Errorf("ошибка изменения респекта: %w", err)
	}
	return respekt, nil
}

func (r *SQLiteStore) QueryVoteCounts(ctx context.Context, userID UserID, chatID ChatID, dir Direction) ([]VoteCountRow, error) {
	query := `
		SELECT vote, COUNT(*) FROM votes
		WHERE voter_user_id = ? AND chat_id = ?
		GROUP BY vote ORDER BY vote ASC
	`
	if dir == Received {
		query = `
			SELECT v.vote, COUNT(*) FROM votes v
			JOIN messages m ON m.chat_id = v.chat_id AND m.message_id = v.target_message_id
			WHERE m.author_user_id = ? AND v.chat_id = ?
			GROUP BY v.vote ORDER BY v.vote ASC
		`
	}
	rows, err := r.db.QueryContext(ctx, query, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта голосов (%s): %w", dir, err)
	}
	defer rows.Close()

	var out []VoteCountRow
	for rows.Next() {
		var v int
		var row VoteCountRow
		if err := rows.Scan(&v, &row.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		row.Value = VoteValue(v)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteStore) GetRespekt(ctx context.Context, userID UserID, chatID ChatID) (int64, bool, error) {
	var respekt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT respekt FROM user_in_chat WHERE user_id = ? AND chat_id = ?`, userID, chatID,
	).Scan(&respekt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ошибка чтения респекта: %w", err)
	}
	return respekt, true, nil
}

func (r *SQLiteStore) Leaderboard(ctx context.Context, chatID ChatID, limit int) ([]Balance, error) {
	// LIMIT -1 в SQLite — без ограничения
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT uic.user_id, uic.chat_id, uic.respekt,
		       COALESCE(u.username, ''), COALESCE(u.first_name, '')
		FROM user_in_chat uic
		LEFT JOIN users u ON u.user_id = uic.user_id
		WHERE uic.chat_id = ?
		ORDER BY uic.respekt DESC, uic.user_id ASC
		LIMIT ?
	`, chatID, limit)
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
	return out, rows.Err()
}

func (r *SQLiteStore) ChatInfo(ctx context.Context, chatID ChatID) (ChatInfo, error) {
	info := ChatInfo{ChatID: chatID}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM votes WHERE chat_id = ?),
			(SELECT COUNT(*) FROM user_in_chat WHERE chat_id = ?)
	`, chatID, chatID).Scan(&info.VoteCount, &info.UsersWithRespekt)
	if err != nil {
		return info, fmt.Errorf("ошибка получения статистики чата: %w", err)
	}
	return info, nil
}

func (r *SQLiteStore) Reconcile(ctx context.Context, chatID ChatID) ([]Drift, error) {
	var drifts []Drift
	err := sqlite.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		expected, err := sqliteSums(ctx, tx, `
			SELECT m.author_user_id, SUM(v.vote) FROM votes v
			JOIN messages m ON m.chat_id = v.chat_id AND m.message_id = v.target_message_id
			WHERE v.chat_id = ?
			GROUP BY m.author_user_id
		`, chatID)
		if err != nil {
			return err
		}
		stored, err := sqliteSums(ctx, tx, `SELECT user_id, respekt FROM user_in_chat WHERE chat_id = ?`, chatID)
		if err != nil {
			return err
		}

		drifts = diffRespekt(stored, expected)
		for _, d := range drifts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_in_chat (user_id, chat_id, respekt)
				VALUES (?, ?, ?)
				ON CONFLICT (user_id, chat_id) DO UPDATE
				SET respekt = excluded.respekt, updated_at = CURRENT_TIMESTAMP
			`, d.UserID, chatID, d.Expected); err != nil {
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

func sqliteSums(ctx context.Context, q sqlite.TxQuerier, query string, chatID ChatID) (map[UserID]int64, error) {
	rows, err := q.QueryContext(ctx, query, chatID)
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
