// Package admin реализует админ-команды в личке с парольной аутентификацией.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

const (
	sessionTTL        = 24 * time.Hour
	attemptWindow     = 1 * time.Hour
	maxFailedAttempts = 3
)

// AdminSession — активная сессия администратора.
type AdminSession struct {
	UserID          int64
	SessionToken    string
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
	LastActivity    time.Time
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	UserID      int64
	AttemptTime time.Time
	Success     bool
}
