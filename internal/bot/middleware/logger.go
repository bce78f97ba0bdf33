// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const maxLoggedRunes = 50

// Команды, аргументы которых нельзя писать в лог.
var secretCommands = map[string]bool{
	"login": true,
}

// LogMessage логирует входящее сообщение в logger апдейта (с trace_id).
// Текст обрезается до 50 символов, аргументы секретных команд скрываются.
func LogMessage(logger *log.Entry, message *tgbotapi.Message) {
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	text := []rune(redactSecrets(message.Text))
	if len(text) > maxLoggedRunes {
		text = append(text[:maxLoggedRunes], []rune("...")...)
	}

	fields := log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.UserName,
		"text":     string(text),
	}
	if message.ReplyToMessage != nil {
		fields["reply_to"] = message.ReplyToMessage.MessageID
	}
	logger.WithFields(fields).Debug("Входящее сообщение")
}

// redactSecrets заменяет аргументы /login и подобных команд на ***.
func redactSecrets(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !strings.ContainsRune("!./", rune(trimmed[0])) {
		return text
	}
	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return text
	}
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	if !secretCommands[name] {
		return text
	}
	if len(fields) == 1 {
		return trimmed
	}
	return trimmed[:1] + fields[0] + " ***"
}
