// Package filters решает, обрабатывать ли сообщение вообще.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/config"
)

// ChatFilter пропускает личку и группы из ALLOWED_CHAT_IDS (пустой список — любые группы).
// Каналы и сообщения без автора отбрасываются.
type ChatFilter struct {
	cfg *config.Config
}

func NewChatFilter(cfg *config.Config) *ChatFilter {
	return &ChatFilter{cfg: cfg}
}

func (f *ChatFilter) CheckAccess(logger *log.Entry, message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		logger.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil || message.From.IsBot {
		logger.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("deny: no human author (service/channel message?)")
		return false
	}

	logger = logger.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	switch {
	case message.Chat.IsPrivate():
		logger.Debug("allow: private")
		return true
	case message.Chat.IsGroup() || message.Chat.IsSuperGroup():
		if f.cfg.IsChatAllowed(message.Chat.ID) {
			logger.Debug("allow: group")
			return true
		}
		logger.Debug("deny: group not in ALLOWED_CHAT_IDS")
		return false
	default:
		logger.Debug("deny: unsupported chat type")
		return false
	}
}
