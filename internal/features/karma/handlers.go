// Package karma — handlers.go обрабатывает голоса ответом и команды !респект, !стата, !топ.
package karma

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/common"
)

// Sender — часть tgbotapi.BotAPI, нужная обработчикам.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler обрабатывает события респекта.
type Handler struct {
	service *Service
	bot     Sender
}

// NewHandler создаёт обработчик респекта.
func NewHandler(service *Service, bot Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleVote применяет голос из ответа message на message.ReplyToMessage.
// Повторный голос и голос за себя молча игнорируются.
func (h *Handler) HandleVote(ctx context.Context, message *tgbotapi.Message, value VoteValue) {
	replyTo := message.ReplyToMessage
	if replyTo == nil || replyTo.From == nil || message.From == nil {
		return
	}
	if replyTo.From.IsBot {
		return
	}

	chatID := ChatID(message.Chat.ID)
	target := Message{
		MessageID:    MessageID(replyTo.MessageID),
		ChatID:       chatID,
		AuthorUserID: UserID(replyTo.From.ID),
		Text:         messageText(replyTo),
	}
	reply := Message{
		MessageID:    MessageID(message.MessageID),
		ChatID:       chatID,
		AuthorUserID: UserID(message.From.ID),
		Text:         message.Text,
	}

	delta, respekt, err := h.service.Vote(ctx, UserID(message.From.ID), target, reply, value)
	logger := log.WithFields(log.Fields{
		"chat_id": chatID,
		"voter":   message.From.ID,
		"author":  replyTo.From.ID,
	})
	switch {
	case errors.Is(err, common.ErrSelfVote), errors.Is(err, common.ErrTargetNotFound):
		logger.WithError(err).Debug("Голос не принят")
		return
	case err != nil:
		logger.WithError(err).Error("Ошибка применения голоса")
		return
	case delta == 0:
		logger.Debug("Повторный голос, ничего не меняем")
		return
	}

	name := replyTo.From.FirstName
	if replyTo.From.UserName != "" {
		name = "@" + replyTo.From.UserName
	}
	icon := "⭐"
	if delta < 0 {
		icon = "👎"
	}
	h.sendMessage(int64(chatID), fmt.Sprintf("%s Респект %s: %s (итого %s)",
		icon, name, common.FormatSigned(delta), common.FormatNumber(respekt)))
}

// HandleRespekt — команда !респект. Показывает свой респект в этом чате.
func (h *Handler) HandleRespekt(ctx context.Context, chatID, userID int64) {
	respekt, err := h.service.GetRespekt(ctx, UserID(userID), ChatID(chatID))
	if err != nil {
		log.WithError(err).Error("Ошибка получения респекта")
		h.sendMessage(chatID, "❌ Ошибка получения респекта")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("⭐ Твой респект: %s", common.FormatNumber(respekt)))
}

// HandleStats — команда !стата [@user].
func (h *Handler) HandleStats(ctx context.Context, chatID, userID int64, displayName string) {
	stats, err := h.service.GetUserStats(ctx, UserID(userID), ChatID(chatID))
	if err != nil {
		log.WithError(err).Error("Ошибка получения статистики")
		h.sendMessage(chatID, "❌ Ошибка получения статистики")
		return
	}
	h.sendMessage(chatID, FormatStats(displayName, stats))
}

// HandleTop — команда !топ.
func (h *Handler) HandleTop(ctx context.Context, chatID int64) {
	balances, err := h.service.GetLeaderboard(ctx, ChatID(chatID))
	if err != nil {
		log.WithError(err).Error("Ошибка получения топа")
		h.sendMessage(chatID, "❌ Ошибка получения топа")
		return
	}
	h.sendMessage(chatID, FormatLeaderboard(balances))
}

// HandleChatInfo — команда !чат.
func (h *Handler) HandleChatInfo(ctx context.Context, chatID int64) {
	info, err := h.service.GetChatInfo(ctx, ChatID(chatID))
	if err != nil {
		log.WithError(err).Error("Ошибка получения статистики чата")
		h.sendMessage(chatID, "❌ Ошибка получения статистики чата")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("📊 В чате %s, респект есть у %d %s",
		common.FormatVotes(info.VoteCount), info.UsersWithRespekt, common.PluralizeUsers(info.UsersWithRespekt)))
}

// FormatStats форматирует статистику пользователя.
func FormatStats(displayName string, s *UserStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 %s\n", displayName)
	fmt.Fprintf(&b, "Респект: %s\n", common.FormatNumber(s.Respekt))
	fmt.Fprintf(&b, "Отдано: 👍 %d / 👎 %d (всего %s, итог %s)\n",
		s.Given.Positive, s.Given.Negative, common.FormatVotes(s.Given.Total()), common.FormatSigned(s.Given.Net()))
	fmt.Fprintf(&b, "Получено: 👍 %d / 👎 %d (всего %s)",
		s.Received.Positive, s.Received.Negative, common.FormatVotes(s.Received.Total()))
	return b.String()
}

// FormatLeaderboard форматирует топ чата.
func FormatLeaderboard(balances []Balance) string {
	if len(balances) == 0 {
		return "🏆 Пока никто не получил респекта"
	}
	lines := lo.Map(balances, func(b Balance, i int) string {
		return fmt.Sprintf("%d. %s — %s", i+1, b.DisplayName(), common.FormatNumber(b.Respekt))
	})
	return "🏆 Топ респекта:\n" + strings.Join(lines, "\n")
}

func messageText(m *tgbotapi.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
