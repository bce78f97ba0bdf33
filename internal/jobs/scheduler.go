// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает рассылку дайджеста: топ респекта в каждый известный чат.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/common"
	"serotonyl.ru/respekt-bot/internal/config"
	"serotonyl.ru/respekt-bot/internal/features/karma"
	"serotonyl.ru/respekt-bot/internal/features/members"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron          *cron.Cron
	cfg           *config.Config
	karmaService  *karma.Service
	memberService *members.Service
	sendFunc      func(chatID int64, text string)
}

// NewScheduler создаёт планировщик в часовом поясе APP_TIMEZONE.
func NewScheduler(
	cfg *config.Config,
	karmaService *karma.Service,
	memberService *members.Service,
	sendFunc func(chatID int64, text string),
) *Scheduler {
	loc := common.LoadLocation(cfg.AppTimezone)
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(loc)),
		cfg:           cfg,
		karmaService:  karmaService,
		memberService: memberService,
		sendFunc:      sendFunc,
	}
}

// Start запускает задачи. Пустой KARMA_DIGEST_CRON отключает дайджест.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.KarmaDigestCron != "" && s.cfg.FeatureKarmaEnabled {
		_, err := s.cron.AddFunc(s.cfg.KarmaDigestCron, func() {
			log.Info("[CRON] Рассылка дайджеста респекта")
			if err := s.RunDigest(ctx); err != nil {
				log.WithError(err).Error("[CRON] Ошибка дайджеста")
			}
		})
		if err != nil {
			return fmt.Errorf("некорректный KARMA_DIGEST_CRON %q: %w", s.cfg.KarmaDigestCron, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"tz":     s.cfg.AppTimezone,
		"digest": s.cfg.KarmaDigestCron,
	}).Info("Планировщик задач запущен")
	return nil
}

// RunDigest отправляет топ в каждый разрешённый чат, где он не пустой.
// Ошибка одного чата не останавливает рассылку по остальным.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	chats, err := s.memberService.ListChats(ctx)
	if err != nil {
		return err
	}

	sent := 0
	for _, chat := range chats {
		if !s.cfg.IsChatAllowed(chat.ChatID) {
			continue
		}
		top, err := s.karmaService.GetLeaderboard(ctx, karma.ChatID(chat.ChatID))
		if err != nil {
			log.WithError(err).WithField("chat_id", chat.ChatID).Warn("[CRON] Не удалось получить топ")
			continue
		}
		if len(top) == 0 {
			continue
		}
		s.sendFunc(chat.ChatID, "📅 Итоги недели\n"+karma.FormatLeaderboard(top))
		sent++
	}

	log.WithField("chats", sent).Info("[CRON] Дайджест разослан")
	return nil
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
