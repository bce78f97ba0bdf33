// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, работа с временем.
package common

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// pluralForm выбирает одну из трёх форм слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralForm(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeVotes возвращает правильную форму слова «голос» для числа n.
//
// Примеры:
//
//	PluralizeVotes(1)  → "голос"
//	PluralizeVotes(3)  → "голоса"
//	PluralizeVotes(11) → "голосов"
func PluralizeVotes(n int64) string {
	return pluralForm(n, "голос", "голоса", "голосов")
}

// PluralizeUsers возвращает правильную форму слова «участник».
func PluralizeUsers(n int64) string {
	return pluralForm(n, "участник", "участника", "участников")
}

// FormatVotes форматирует количество голосов: "5 голосов".
func FormatVotes(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizeVotes(n))
}

// LoadLocation загружает часовой пояс по имени.
// Если не удалось (нет tzdata в контейнере) — используем UTC+3 вручную.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("tz", name).Warn("Не удалось загрузить часовой пояс, используем UTC+3")
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}
