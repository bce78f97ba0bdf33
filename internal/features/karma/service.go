// Package karma — service.go содержит бизнес-логику респекта:
// голосование через леджер и чтение статистики.
package karma

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/config"
)

// Service управляет системой респекта.
type Service struct {
	ledger *Ledger
	store  Store
	cfg    *config.Config
}

// NewService создаёт сервис респекта.
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{
		ledger: NewLedger(store, cfg.KarmaAllowSelfVote),
		store:  store,
		cfg:    cfg,
	}
}

// Vote применяет голос и возвращает дельту и новый баланс автора.
// Баланс читается отдельно после транзакции и нужен только для ответа в чат.
func (s *Service) Vote(ctx context.Context, voterID UserID, target, reply Message, value VoteValue) (int64, int64, error) {
	delta, err := s.ledger.ApplyVote(ctx, voterID, target, reply, value)
	if err != nil {
		return 0, 0, err
	}
	if delta == 0 || target.AuthorUserID == 0 {
		return delta, 0, nil
	}
	respekt, err := s.GetRespekt(ctx, target.AuthorUserID, target.ChatID)
	if err != nil {
		// Голос уже записан — баланс просто не покажем
		log.WithError(err).Warn("Не удалось прочитать респект после голоса")
		return delta, 0, nil
	}
	return delta, respekt, nil
}

// GetRespekt возвращает респект пользователя в чате (0, если голосов ещё не было).
func (s *Service) GetRespekt(ctx context.Context, userID UserID, chatID ChatID) (int64, error) {
	respekt, _, err := s.store.GetRespekt(ctx, userID, chatID)
	return respekt, err
}

// GetUserStats собирает респект и голоса, отданные и полученные пользователем в чате.
func (s *Service) GetUserStats(ctx context.Context, userID UserID, chatID ChatID) (*UserStats, error) {
	respekt, err := s.GetRespekt(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	given, err := s.countVotes(ctx, userID, chatID, Given)
	if err != nil {
		return nil, err
	}
	received, err := s.countVotes(ctx, userID, chatID, Received)
	if err != nil {
		return nil, err
	}
	return &UserStats{
		UserID:   userID,
		ChatID:   chatID,
		Respekt:  respekt,
		Given:    given,
		Received: received,
	}, nil
}

func (s *Service) countVotes(ctx context.Context, userID UserID, chatID ChatID, dir Direction) (VoteCounts, error) {
	rows, err := s.store.QueryVoteCounts(ctx, userID, chatID, dir)
	if err != nil {
		return VoteCounts{}, fmt.Errorf("голоса (%s): %w", dir, err)
	}
	if len(rows) > 2 {
		log.WithFields(log.Fields{
			"user_id":   userID,
			"chat_id":   chatID,
			"direction": dir,
			"rows":      len(rows),
		}).Warn("Запрос голосов вернул больше двух групп, показываем нули")
	}
	return DecodeVoteCounts(rows), nil
}

// GetLeaderboard возвращает топ чата размером KARMA_LEADERBOARD_SIZE.
func (s *Service) GetLeaderboard(ctx context.Context, chatID ChatID) ([]Balance, error) {
	return s.store.Leaderboard(ctx, chatID, s.cfg.KarmaLeaderboardSize)
}

// GetChatInfo возвращает сводку по чату.
func (s *Service) GetChatInfo(ctx context.Context, chatID ChatID) (ChatInfo, error) {
	return s.store.ChatInfo(ctx, chatID)
}

// Reconcile пересчитывает балансы чата из голосов и чинит расхождения.
func (s *Service) Reconcile(ctx context.Context, chatID ChatID) ([]Drift, error) {
	drifts, err := s.store.Reconcile(ctx, chatID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"chat_id": chatID,
		"fixed":   len(drifts),
	}).Info("Пересчёт респекта завершён")
	return drifts, nil
}
