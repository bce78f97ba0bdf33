// Package karma — store.go описывает контракт хранилища, на который опирается леджер.
// Реализации: PostgresStore (repository.go) и SQLiteStore (sqlite_repository.go).
package karma

import (
	"context"
	"errors"
	"sort"
)

// ErrMessageNotFound возвращается Tx.GetMessage, если сообщения нет в базе.
var ErrMessageNotFound = errors.New("сообщение не найдено")

// Tx — операции внутри одной атомарной транзакции голоса.
// Реализация обязана изолировать транзакцию от параллельных транзакций,
// трогающих ту же пару (голосующий, сообщение).
type Tx interface {
	// UpsertMessage создаёт сообщение или перезаписывает его текст по (chat_id, message_id).
	UpsertMessage(ctx context.Context, m Message) error
	// GetMessage возвращает сохранённое сообщение или ErrMessageNotFound.
	GetMessage(ctx context.Context, chatID ChatID, messageID MessageID) (*Message, error)
	// GetCurrentVote возвращает текущий голос; ok=false, если голоса нет.
	GetCurrentVote(ctx context.Context, voterID UserID, chatID ChatID, target MessageID) (value VoteValue, ok bool, err error)
	// SetVote создаёт или перезаписывает голос.
	SetVote(ctx context.Context, v Vote) error
	// AdjustKarma атомарно прибавляет delta к балансу (нет строки — считается 0)
	// и возвращает новый баланс.
	AdjustKarma(ctx context.Context, userID UserID, chatID ChatID, delta int64) (int64, error)
}

// Store — хранилище голосов и балансов.
type Store interface {
	// WithTx выполняет fn атомарно: ошибка из fn откатывает все изменения.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// QueryVoteCounts возвращает не больше одной строки на значение голоса,
	// отсортированные по значению по возрастанию (-1 раньше +1).
	// Отсутствующие значения не возвращаются строками с нулём.
	QueryVoteCounts(ctx context.Context, userID UserID, chatID ChatID, dir Direction) ([]VoteCountRow, error)

	// GetRespekt возвращает баланс; ok=false, если строки ещё нет.
	GetRespekt(ctx context.Context, userID UserID, chatID ChatID) (respekt int64, ok bool, err error)
	// Leaderboard возвращает балансы чата по убыванию; limit<=0 — все.
	Leaderboard(ctx context.Context, chatID ChatID, limit int) ([]Balance, error)
	// ChatInfo возвращает число голосов в чате и число пользователей с балансом.
	ChatInfo(ctx context.Context, chatID ChatID) (ChatInfo, error)
	// Reconcile пересчитывает балансы чата из живых голосов и чинит расхождения
	// одной транзакцией. Возвращает исправленные строки.
	Reconcile(ctx context.Context, chatID ChatID) ([]Drift, error)
}

// diffRespekt сравнивает сохранённые балансы с суммами живых голосов.
// Пользователь без строки баланса считается с нулём, без голосов — ожидается 0.
// Результат отсортирован по UserID.
func diffRespekt(stored, expected map[UserID]int64) []Drift {
	var out []Drift
	for userID, want := range expected {
		if have := stored[userID]; have != want {
			out = append(out, Drift{UserID: userID, Stored: have, Expected: want})
		}
	}
	for userID, have := range stored {
		if _, ok := expected[userID]; !ok && have != 0 {
			out = append(out, Drift{UserID: userID, Stored: have, Expected: 0})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
