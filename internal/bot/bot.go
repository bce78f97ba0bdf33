// Package bot содержит главный модуль бота — запуск polling, фильтры и маршрутизацию.
// bot.go принимает апдейты, распознаёт голоса и команды и отдаёт их обработчикам.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/bot/filters"
	"serotonyl.ru/respekt-bot/internal/bot/middleware"
	"serotonyl.ru/respekt-bot/internal/common"
	"serotonyl.ru/respekt-bot/internal/config"
	"serotonyl.ru/respekt-bot/internal/features/admin"
	"serotonyl.ru/respekt-bot/internal/features/karma"
	"serotonyl.ru/respekt-bot/internal/features/members"
)

const helpText = `⭐ Респект-бот
Ответь на сообщение «+», «+1», «👍» или «спасибо», чтобы дать автору респект, «-» или «👎» — чтобы забрать.
Повторный голос не считается, противоположный — заменяет прежний.

Команды (префикс !, . или /):
!респект — твой респект в этом чате
!стата [@user] — голоса отданные и полученные
!топ — топ чата
!чат — статистика чата`

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	memberService *members.Service
	memberHandler *members.Handler
	karmaHandler  *karma.Handler
	adminHandler  *admin.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	// обработчики, которые ещё работают; Start ждёт их перед выходом
	handlers sync.WaitGroup
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	memberService *members.Service,
	memberHandler *members.Handler,
	karmaHandler *karma.Handler,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:           api,
		cfg:           cfg,
		chatFilter:    chatFilter,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		memberService: memberService,
		memberHandler: memberHandler,
		karmaHandler:  karmaHandler,
		adminHandler:  adminHandler,
		parser:        NewCommandParser(api.Self.UserName),
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	// Начатые обработчики доводим до конца и после отмены ctx:
	// база закрывается только после выхода из Start
	handlerCtx := context.WithoutCancel(ctx)
	defer b.rateLimiter.Close()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.drain()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.drain()
				return
			}
			b.spawn(func() { b.handleUpdate(handlerCtx, update) })
		}
	}
}

// spawn запускает fn в горутине, соблюдая лимит параллелизма.
func (b *Bot) spawn(fn func()) {
	b.inflight <- struct{}{}
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		defer func() { <-b.inflight }()
		fn()
	}()
}

// drain ждёт завершения всех запущенных обработчиков.
func (b *Bot) drain() {
	b.handlers.Wait()
	log.Debug("Все обработчики апдейтов завершены")
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	logger := log.WithFields(log.Fields{
		"trace_id":  uuid.NewString(),
		"update_id": update.UpdateID,
	})
	defer middleware.RecoverFromPanic(logger)

	message := update.Message
	if message == nil {
		return
	}

	if !b.chatFilter.CheckAccess(logger, message) {
		return
	}
	b.ensureIdentity(ctx, logger, message)

	if len(message.NewChatMembers) > 0 {
		b.memberHandler.HandleNewChatMembers(ctx, message.NewChatMembers)
		return
	}
	if message.Text == "" {
		return
	}

	middleware.LogMessage(logger, message)

	chatID := message.Chat.ID
	userID := message.From.ID

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if isCommand {
		logger.WithFields(log.Fields{"cmd": cmd, "args": len(args)}).Debug("parsed command")
		if !b.allow(logger, userID) {
			return
		}
		if message.Chat.IsPrivate() {
			b.routePrivateCommand(ctx, chatID, userID, cmd, args)
		} else {
			b.routeCommand(ctx, message, cmd, args)
		}
		return
	}

	// Голос ответом на сообщение
	if b.cfg.FeatureKarmaEnabled && !message.Chat.IsPrivate() && message.ReplyToMessage != nil {
		if value, ok := karma.ParseVote(message.Text); ok {
			if !b.allow(logger, userID) {
				return
			}
			b.karmaHandler.HandleVote(ctx, message, value)
		}
	}
}

// ensureIdentity запоминает автора, автора сообщения-цели и сам чат.
// Ошибки только логируем: голосование от этих таблиц не зависит.
func (b *Bot) ensureIdentity(ctx context.Context, logger *log.Entry, message *tgbotapi.Message) {
	users := []*tgbotapi.User{message.From}
	if message.ReplyToMessage != nil {
		users = append(users, message.ReplyToMessage.From)
	}
	for _, u := range users {
		if u == nil || u.IsBot {
			continue
		}
		if err := b.memberService.EnsureUser(ctx, u.ID, u.UserName, u.FirstName, u.LastName); err != nil {
			logger.WithError(err).WithField("user_id", u.ID).Warn("EnsureUser failed")
		}
	}
	if message.Chat != nil && !message.Chat.IsPrivate() {
		if err := b.memberService.EnsureChat(ctx, message.Chat.ID, message.Chat.Title); err != nil {
			logger.WithError(err).WithField("chat_id", message.Chat.ID).Warn("EnsureChat failed")
		}
	}
}

func (b *Bot) allow(logger *log.Entry, userID int64) bool {
	if b.rateLimiter.Allow(userID) {
		return true
	}
	logger.WithField("user_id", userID).Debug("rate limited")
	return false
}

// routePrivateCommand — команды в личке: админка и справка.
func (b *Bot) routePrivateCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) {
	if b.adminHandler.HandleCommand(ctx, chatID, userID, cmd, args) {
		return
	}
	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(chatID, helpText)
	default:
		b.sendMessage(chatID, "Респект считается в группах. Добавь меня в чат и напиши там !помощь")
	}
}

// routeCommand маршрутизирует групповую команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd string, args []string) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(chatID, helpText)

	case "login", "recount", "logout":
		b.sendMessage(chatID, "🔐 Админ-команды работают только в личке")
	}

	if !b.cfg.FeatureKarmaEnabled {
		return
	}

	switch cmd {
	case "respekt", "респект", "карма":
		b.karmaHandler.HandleRespekt(ctx, chatID, userID)

	case "stats", "стата":
		b.handleStats(ctx, message, args)

	case "top", "топ":
		b.karmaHandler.HandleTop(ctx, chatID)

	case "chatinfo", "чат":
		b.karmaHandler.HandleChatInfo(ctx, chatID)
	}
}

// handleStats: !стата @user, !стата ответом на сообщение или своя статистика.
func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message, args []string) {
	chatID := message.Chat.ID

	if len(args) > 0 && strings.HasPrefix(args[0], "@") {
		u, err := b.memberService.GetByUsername(ctx, args[0])
		if errors.Is(err, common.ErrUserNotFound) {
			b.sendMessage(chatID, "❌ Пользователь "+args[0]+" мне не встречался")
			return
		}
		if err != nil {
			log.WithError(err).Error("Ошибка поиска пользователя")
			b.sendMessage(chatID, "❌ Ошибка поиска пользователя")
			return
		}
		b.karmaHandler.HandleStats(ctx, chatID, u.UserID, u.DisplayName())
		return
	}

	subject := message.From
	if reply := message.ReplyToMessage; reply != nil && reply.From != nil && !reply.From.IsBot {
		subject = reply.From
	}
	b.karmaHandler.HandleStats(ctx, chatID, subject.ID, displayName(subject))
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendMessageToChat отправляет сообщение в чат (для планировщика).
func (b *Bot) SendMessageToChat(chatID int64, text string) {
	b.sendMessage(chatID, text)
}
