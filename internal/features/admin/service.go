// Package admin — service.go содержит логику аутентификации и админ-действий.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/respekt-bot/internal/common"
	"serotonyl.ru/respekt-bot/internal/config"
	"serotonyl.ru/respekt-bot/internal/features/karma"
)

// Reconciler пересчитывает балансы чата (karma.Service).
type Reconciler interface {
	Reconcile(ctx context.Context, chatID karma.ChatID) ([]karma.Drift, error)
}

// Service управляет админ-сессиями.
type Service struct {
	repo       *Repository
	reconciler Reconciler
	cfg        *config.Config
}

// NewService создаёт сервис админки.
func NewService(repo *Repository, reconciler Reconciler, cfg *config.Config) *Service {
	return &Service{repo: repo, reconciler: reconciler, cfg: cfg}
}

// Login проверяет пароль администратора с использованием Argon2id.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(userID int64, password string) error {
	if !s.cfg.IsAdmin(userID) {
		return common.ErrNotAdmin
	}
	if s.repo.GetRecentFailures(userID) >= maxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.cfg.AdminPasswordHash)
	s.repo.LogAttempt(userID, match)
	if !match {
		log.WithField("user_id", userID).Warn("Неудачная попытка входа в админку")
		return common.ErrWrongPassword
	}

	s.repo.CreateSession(&AdminSession{
		UserID:       userID,
		SessionToken: uuid.NewString(),
		ExpiresAt:    s.repo.now().Add(sessionTTL),
	})
	log.WithField("user_id", userID).Info("Админ авторизован")
	return nil
}

// Logout завершает сессию.
func (s *Service) Logout(userID int64) {
	s.repo.DeactivateSession(userID)
}

// RequireSession проверяет права и живую сессию, продлевая активность.
func (s *Service) RequireSession(userID int64) error {
	if !s.cfg.IsAdmin(userID) {
		return common.ErrNotAdmin
	}
	if s.repo.GetActiveSession(userID) == nil {
		return common.ErrSessionExpired
	}
	s.repo.UpdateActivity(userID)
	return nil
}

// Recount пересчитывает респект чата из голосов.
func (s *Service) Recount(ctx context.Context, userID int64, chatID int64) ([]karma.Drift, error) {
	if err := s.RequireSession(userID); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"admin_id": userID,
		"chat_id":  chatID,
	}).Info("Запущен пересчёт респекта")
	return s.reconciler.Reconcile(ctx, karma.ChatID(chatID))
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
