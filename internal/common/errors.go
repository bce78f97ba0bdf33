// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import (
	"errors"
	"fmt"
)

// Ошибки респекта (голоса)
var (
	// ErrInvalidVoteValue — голос вне {+1, -1}
	ErrInvalidVoteValue = errors.New("голос должен быть +1 или -1")
	// ErrTargetNotFound — у сообщения, на которое отвечают, нет известного автора
	ErrTargetNotFound = errors.New("сообщение, за которое голосуют, не найдено")
	// ErrSelfVote — попытка проголосовать за своё сообщение
	ErrSelfVote = errors.New("нельзя давать респект самому себе")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессии нет или она истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)

// StorageError оборачивает любую ошибку хранилища, всплывшую из транзакции голоса.
// Транзакция при этом откатывается целиком, вызов можно повторить.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ошибка хранилища (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError сообщает, есть ли в цепочке err ошибка хранилища.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
