// Package admin — repository.go хранит сессии и попытки входа в памяти процесса.
// После рестарта бота админу нужно залогиниться заново.
package admin

import (
	"sync"
	"time"
)

// Repository хранит сессии и попытки входа.
type Repository struct {
	mu       sync.Mutex
	sessions map[int64]*AdminSession
	attempts map[int64][]LoginAttempt
	now      func() time.Time
}

// NewRepository создаёт репозиторий.
func NewRepository() *Repository {
	return &Repository{
		sessions: make(map[int64]*AdminSession),
		attempts: make(map[int64][]LoginAttempt),
		now:      time.Now,
	}
}

// CreateSession заменяет сессию пользователя новой.
func (r *Repository) CreateSession(session *AdminSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	session.AuthenticatedAt = now
	session.LastActivity = now
	r.sessions[session.UserID] = session
}

// GetActiveSession возвращает неистёкшую сессию или nil.
func (r *Repository) GetActiveSession(userID int64) *AdminSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	if !r.now().Before(s.ExpiresAt) {
		delete(r.sessions, userID)
		return nil
	}
	return s
}

// DeactivateSession удаляет сессию.
func (r *Repository) DeactivateSession(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// UpdateActivity обновляет время последней активности.
func (r *Repository) UpdateActivity(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		s.LastActivity = r.now()
	}
}

// LogAttempt записывает попытку входа и выбрасывает попытки старше окна.
// Счётчик живёт в памяти: рестарт обнуляет блокировку (см. DESIGN.md).
func (r *Repository) LogAttempt(userID int64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.attempts[userID] = append(r.recentLocked(userID, now), LoginAttempt{
		UserID:      userID,
		AttemptTime: now,
		Success:     success,
	})
}

// GetRecentFailures возвращает количество неудачных попыток за последний час.
func (r *Repository) GetRecentFailures(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.recentLocked(userID, r.now()) {
		if !a.Success {
			count++
		}
	}
	return count
}

func (r *Repository) recentLocked(userID int64, now time.Time) []LoginAttempt {
	cutoff := now.Add(-attemptWindow)
	var recent []LoginAttempt
	for _, a := range r.attempts[userID] {
		if a.AttemptTime.After(cutoff) {
			recent = append(recent, a)
		}
	}
	return recent
}
