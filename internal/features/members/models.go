// Package members хранит, кого бот видел: пользователей и чаты.
// Респект сам по себе от этих таблиц не зависит, они нужны для имён в топе,
// поиска по @username и рассылки дайджеста по чатам.
package members

// User — пользователь Telegram в таблице users.
type User struct {
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"` // без @, может быть пустым
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

// Chat — групповой чат, в котором бот видел сообщения.
type Chat struct {
	ChatID int64  `db:"chat_id"`
	Title  string `db:"title"`
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
