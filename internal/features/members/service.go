// Package members — service.go содержит бизнес-логику учёта пользователей и чатов.
// Бот вызывает EnsureUser/EnsureChat на каждое сообщение, чтобы имена в топе
// и поиск по @username не отставали от Telegram.
package members

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Service управляет пользователями и чатами.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис участников.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureUser создаёт пользователя или обновляет его имя/username.
func (s *Service) EnsureUser(ctx context.Context, userID int64, username, firstName, lastName string) error {
	err := s.repo.UpsertUser(ctx, &User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}
	return nil
}

// EnsureChat запоминает чат, чтобы планировщик знал, куда слать дайджест.
func (s *Service) EnsureChat(ctx context.Context, chatID int64, title string) error {
	if err := s.repo.UpsertChat(ctx, &Chat{ChatID: chatID, Title: title}); err != nil {
		return fmt.Errorf("ошибка регистрации чата: %w", err)
	}
	return nil
}

// HandleNewMember регистрирует вступившего в чат пользователя.
func (s *Service) HandleNewMember(ctx context.Context, userID int64, username, firstName, lastName string) error {
	if err := s.EnsureUser(ctx, userID, username, firstName, lastName); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"username": username,
	}).Info("Новый участник зарегистрирован")
	return nil
}

// GetByUserID возвращает пользователя по Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetUser(ctx, userID)
}

// GetByUsername возвращает пользователя по @username (с @ или без).
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetUserByUsername(ctx, strings.TrimPrefix(username, "@"))
}

// ListChats возвращает все известные чаты.
func (s *Service) ListChats(ctx context.Context) ([]Chat, error) {
	return s.repo.ListChats(ctx)
}
