// Package karma реализует систему респекта: голоса +1/-1 ответом на сообщение
// и баланс респекта на пару (пользователь, чат).
// models.go описывает идентификаторы, голоса и структуры для чтения статистики.
package karma

import "strconv"

// UserID — Telegram user ID.
type UserID int64

// ChatID — Telegram chat ID.
type ChatID int64

// MessageID — ID сообщения. В Telegram уникален только внутри чата,
// поэтому сообщение всегда адресуется парой (ChatID, MessageID).
type MessageID int64

// VoteValue — знак голоса.
type VoteValue int

const (
	Downvote VoteValue = -1
	Upvote   VoteValue = 1
)

// Valid сообщает, является ли значение допустимым голосом.
func (v VoteValue) Valid() bool {
	return v == Upvote || v == Downvote
}

// Message — сообщение чата. Повторное сохранение с тем же ID перезаписывает текст.
type Message struct {
	MessageID    MessageID `db:"message_id"`
	ChatID       ChatID    `db:"chat_id"`
	AuthorUserID UserID    `db:"author_user_id"` // 0 — автор неизвестен
	Text         string    `db:"message_text"`
}

// Vote — текущий голос пользователя за сообщение.
// На пару (голосующий, сообщение) хранится не больше одного голоса.
type Vote struct {
	VoterID         UserID    `db:"voter_user_id"`
	ChatID          ChatID    `db:"chat_id"`
	TargetMessageID MessageID `db:"target_message_id"`
	ReplyMessageID  MessageID `db:"reply_message_id"`
	Value           VoteValue `db:"vote"`
}

// Direction — сторона голоса в запросе статистики.
type Direction int

const (
	// Given — голоса, которые пользователь отдал.
	Given Direction = iota
	// Received — голоса, полученные сообщениями пользователя.
	Received
)

func (d Direction) String() string {
	if d == Given {
		return "given"
	}
	return "received"
}

// VoteCountRow — одна строка сгруппированного запроса: значение голоса и количество.
type VoteCountRow struct {
	Value VoteValue
	Count int64
}

// VoteCounts — раскодированные счётчики голосов.
type VoteCounts struct {
	Positive int64
	Negative int64
}

// Total возвращает общее число голосов.
func (c VoteCounts) Total() int64 { return c.Positive + c.Negative }

// Net возвращает разницу положительных и отрицательных голосов.
func (c VoteCounts) Net() int64 { return c.Positive - c.Negative }

// Balance — респект пользователя в чате (строка таблицы user_in_chat).
type Balance struct {
	UserID    UserID
	ChatID    ChatID
	Respekt   int64
	Username  string
	FirstName string
}

// DisplayName возвращает @username или имя.
func (b Balance) DisplayName() string {
	if b.Username != "" {
		return "@" + b.Username
	}
	if b.FirstName != "" {
		return b.FirstName
	}
	return "id" + strconv.FormatInt(int64(b.UserID), 10)
}

// UserStats — сводка по пользователю в чате.
type UserStats struct {
	UserID   UserID
	ChatID   ChatID
	Respekt  int64
	Given    VoteCounts
	Received VoteCounts
}

// ChatInfo — сводка по чату.
type ChatInfo struct {
	ChatID           ChatID
	VoteCount        int64
	UsersWithRespekt int64
}

// Drift — расхождение сохранённого баланса с суммой живых голосов.
type Drift struct {
	UserID   UserID
	Stored   int64
	Expected int64
}
