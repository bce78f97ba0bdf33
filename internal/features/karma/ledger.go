// Package karma — ledger.go применяет голоса к балансу респекта.
package karma

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/common"
)

// Ledger хранит текущий голос на пару (голосующий, сообщение)
// и поддерживает баланс автора сообщения равным сумме живых голосов.
type Ledger struct {
	store         Store
	allowSelfVote bool
}

// NewLedger создаёт леджер поверх хранилища.
func NewLedger(store Store, allowSelfVote bool) *Ledger {
	return &Ledger{store: store, allowSelfVote: allowSelfVote}
}

// VoteDelta решает, на сколько изменить баланс автора:
//
//	голоса не было        → next
//	тот же голос          → 0 (повтор)
//	противоположный голос → 2*next (снять старый и добавить новый)
func VoteDelta(existing VoteValue, hasExisting bool, next VoteValue) int64 {
	if !hasExisting {
		return int64(next)
	}
	if existing == next {
		return 0
	}
	return 2 * int64(next)
}

// ApplyVote применяет голос voterID за сообщение target, оставленный ответом reply.
//
// Оба сообщения сохраняются всегда (upsert), даже если голос — повтор.
// Голос и баланс меняются в одной транзакции хранилища, так что при ошибке
// не остаётся ни того, ни другого. Возвращает применённую дельту: 0, ±1 или ±2.
//
// Если автор target неизвестен (AuthorUserID == 0), он берётся из сохранённого
// сообщения; не нашли — common.ErrTargetNotFound.
func (l *Ledger) ApplyVote(ctx context.Context, voterID UserID, target, reply Message, value VoteValue) (int64, error) {
	if !value.Valid() {
		return 0, common.ErrInvalidVoteValue
	}
	if target.ChatID == 0 || target.MessageID == 0 {
		return 0, common.ErrTargetNotFound
	}
	if target.AuthorUserID == voterID && !l.allowSelfVote {
		return 0, common.ErrSelfVote
	}

	// Ответ живёт в том же чате, его автор и есть голосующий
	reply.ChatID = target.ChatID
	reply.AuthorUserID = voterID

	var delta int64
	err := l.store.WithTx(ctx, func(tx Tx) error {
		if target.AuthorUserID == 0 {
			stored, err := tx.GetMessage(ctx, target.ChatID, target.MessageID)
			if errors.Is(err, ErrMessageNotFound) {
				return common.ErrTargetNotFound
			}
			if err != nil {
				return err
			}
			target.AuthorUserID = stored.AuthorUserID
			if target.Text == "" {
				target.Text = stored.Text
			}
			if target.AuthorUserID == voterID && !l.allowSelfVote {
				return common.ErrSelfVote
			}
		}

		if err := tx.UpsertMessage(ctx, target); err != nil {
			return err
		}
		if err := tx.UpsertMessage(ctx, reply); err != nil {
			return err
		}

		existing, ok, err := tx.GetCurrentVote(ctx, voterID, target.ChatID, target.MessageID)
		if err != nil {
			return err
		}

		delta = VoteDelta(existing, ok, value)
		if delta == 0 {
			return nil
		}

		if err := tx.SetVote(ctx, Vote{
			VoterID:         voterID,
			ChatID:          target.ChatID,
			TargetMessageID: target.MessageID,
			ReplyMessageID:  reply.MessageID,
			Value:           value,
		}); err != nil {
			return err
		}
		_, err = tx.AdjustKarma(ctx, target.AuthorUserID, target.ChatID, delta)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrTargetNotFound) || errors.Is(err, common.ErrSelfVote) {
			return 0, err
		}
		return 0, &common.StorageError{Op: "apply vote", Err: err}
	}

	log.WithFields(log.Fields{
		"voter":   voterID,
		"author":  target.AuthorUserID,
		"chat_id": target.ChatID,
		"message": target.MessageID,
		"vote":    value,
		"delta":   delta,
	}).Debug("Голос применён")

	return delta, nil
}
