// Package admin — handlers.go обрабатывает админ-команды в личных сообщениях:
// /login <пароль>, /recount <chat_id>, /logout.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/common"
)

// maxDriftLines — сколько исправлений показывать в ответе на /recount.
const maxDriftLines = 20

// Sender — часть tgbotapi.BotAPI, нужная обработчику.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	bot     Sender
}

// NewHandler создаёт обработчик админ-команд.
func NewHandler(service *Service, bot Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleCommand выполняет админ-команду из лички. Возвращает false,
// если команда не админская и её надо маршрутизировать дальше.
func (h *Handler) HandleCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) bool {
	switch cmd {
	case "login":
		h.handleLogin(chatID, userID, strings.Join(args, " "))
	case "logout":
		h.service.Logout(userID)
		h.sendMessage(chatID, "👋 Сессия завершена")
	case "recount":
		h.handleRecount(ctx, chatID, userID, args)
	default:
		return false
	}
	return true
}

func (h *Handler) handleLogin(chatID, userID int64, password string) {
	if password == "" {
		h.sendMessage(chatID, "🔐 Использование: /login <пароль>")
		return
	}
	if err := h.service.Login(userID, password); err != nil {
		h.sendMessage(chatID, "❌ "+err.Error())
		return
	}
	h.sendMessage(chatID, "✅ Аутентификация успешна! Доступно: /recount <chat_id>, /logout")
}

func (h *Handler) handleRecount(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) != 1 {
		h.sendMessage(chatID, "Использование: /recount <chat_id>")
		return
	}
	targetChat, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendMessage(chatID, "❌ chat_id должен быть числом")
		return
	}

	drifts, err := h.service.Recount(ctx, userID, targetChat)
	switch {
	case errors.Is(err, common.ErrNotAdmin), errors.Is(err, common.ErrSessionExpired):
		h.sendMessage(chatID, "❌ "+err.Error())
		return
	case err != nil:
		log.WithError(err).WithField("chat_id", targetChat).Error("Ошибка пересчёта респекта")
		h.sendMessage(chatID, "❌ Ошибка пересчёта, подробности в логах")
		return
	}

	if len(drifts) == 0 {
		h.sendMessage(chatID, fmt.Sprintf("✅ Чат %d: расхождений нет", targetChat))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🛠 Чат %d: исправлено %d\n", targetChat, len(drifts))
	for i, d := range drifts {
		if i == maxDriftLines {
			fmt.Fprintf(&sb, "… и ещё %d", len(drifts)-maxDriftLines)
			break
		}
		fmt.Fprintf(&sb, "user %d: %d → %d\n", d.UserID, d.Stored, d.Expected)
	}
	h.sendMessage(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
