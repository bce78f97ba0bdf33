package karma

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"serotonyl.ru/respekt-bot/internal/common"
	"serotonyl.ru/respekt-bot/internal/db/sqlite"
)

const testChat ChatID = -100500

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "respekt.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func target(id MessageID, author UserID) Message {
	return Message{MessageID: id, ChatID: testChat, AuthorUserID: author, Text: "сообщение"}
}

func reply(id MessageID) Message {
	return Message{MessageID: id, Text: "+"}
}

func respektOf(t *testing.T, s *SQLiteStore, userID UserID) int64 {
	t.Helper()
	respekt, _, err := s.GetRespekt(context.Background(), userID, testChat)
	if err != nil {
		t.Fatalf("get respekt: %v", err)
	}
	return respekt
}

func countRows(t *testing.T, s *SQLiteStore, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func TestVoteDelta(t *testing.T) {
	tests := []struct {
		existing VoteValue
		has      bool
		next     VoteValue
		want     int64
	}{
		{0, false, Upvote, 1},
		{0, false, Downvote, -1},
		{Upvote, true, Upvote, 0},
		{Downvote, true, Downvote, 0},
		{Upvote, true, Downvote, -2},
		{Downvote, true, Upvote, 2},
	}
	for _, tt := range tests {
		if got := VoteDelta(tt.existing, tt.has, tt.next); got != tt.want {
			t.Errorf("VoteDelta(%d, %v, %d) = %d, want %d", tt.existing, tt.has, tt.next, got, tt.want)
		}
	}
}

func TestApplyVoteNoDoubleCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)

	delta, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(11), Upvote)
	if err != nil || delta != 1 {
		t.Fatalf("first vote: delta=%d err=%v", delta, err)
	}
	delta, err = ledger.ApplyVote(ctx, 1, target(10, 2), reply(12), Upvote)
	if err != nil || delta != 0 {
		t.Fatalf("repeat vote: delta=%d err=%v", delta, err)
	}
	if got := respektOf(t, store, 2); got != 1 {
		t.Fatalf("respekt = %d, want 1", got)
	}
	if n := countRows(t, store, "SELECT COUNT(*) FROM votes"); n != 1 {
		t.Fatalf("votes = %d, want 1", n)
	}
}

func TestApplyVoteReversal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)

	if _, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(11), Upvote); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	delta, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(12), Downvote)
	if err != nil || delta != -2 {
		t.Fatalf("reversal: delta=%d err=%v", delta, err)
	}
	if got := respektOf(t, store, 2); got != -1 {
		t.Fatalf("respekt = %d, want -1", got)
	}

	var current VoteValue
	var ok bool
	err = store.WithTx(ctx, func(tx Tx) error {
		var err error
		current, ok, err = tx.GetCurrentVote(ctx, 1, testChat, 10)
		return err
	})
	if err != nil || !ok || current != Downvote {
		t.Fatalf("current vote = (%d, %v, %v), want -1", current, ok, err)
	}

	var replyID int64
	if err := store.db.QueryRow("SELECT reply_message_id FROM votes").Scan(&replyID); err != nil {
		t.Fatalf("read reply id: %v", err)
	}
	if replyID != 12 {
		t.Fatalf("reply_message_id = %d, want 12", replyID)
	}
}

func TestApplyVoteBalanceMatchesLiveVotes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)
	rng := rand.New(rand.NewSource(42))

	authors := []UserID{100, 200, 300}
	nextReply := MessageID(1000)
	for i := 0; i < 300; i++ {
		voter := UserID(1 + rng.Intn(5))
		msg := MessageID(1 + rng.Intn(6))
		author := authors[int(msg)%len(authors)]
		value := Upvote
		if rng.Intn(2) == 0 {
			value = Downvote
		}
		nextReply++
		if _, err := ledger.ApplyVote(ctx, voter, target(msg, author), reply(nextReply), value); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	for _, author := range authors {
		var sum int64
		err := store.db.QueryRow(`
			SELECT COALESCE(SUM(v.vote), 0) FROM votes v
			JOIN messages m ON m.chat_id = v.chat_id AND m.message_id = v.target_message_id
			WHERE m.author_user_id = ? AND v.chat_id = ?
		`, author, testChat).Scan(&sum)
		if err != nil {
			t.Fatalf("sum votes: %v", err)
		}
		if got := respektOf(t, store, author); got != sum {
			t.Fatalf("author %d: respekt %d, live votes %d", author, got, sum)
		}
	}

	drifts, err := store.Reconcile(ctx, testChat)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("unexpected drift: %+v", drifts)
	}
}

func TestApplyVoteUpsertsMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)

	first := target(10, 2)
	first.Text = "старый текст"
	if _, err := ledger.ApplyVote(ctx, 1, first, reply(11), Upvote); err != nil {
		t.Fatalf("vote: %v", err)
	}
	edited := target(10, 2)
	edited.Text = "новый текст"
	if _, err := ledger.ApplyVote(ctx, 3, edited, reply(12), Upvote); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if n := countRows(t, store, "SELECT COUNT(*) FROM messages WHERE chat_id = ? AND message_id = 10", testChat); n != 1 {
		t.Fatalf("messages for target = %d, want 1", n)
	}
	var text string
	if err := store.db.QueryRow("SELECT message_text FROM messages WHERE message_id = 10").Scan(&text); err != nil {
		t.Fatalf("read text: %v", err)
	}
	if text != "новый текст" {
		t.Fatalf("text = %q", text)
	}

	// Ответ сохраняется с автором-голосующим
	var author int64
	if err := store.db.QueryRow("SELECT author_user_id FROM messages WHERE message_id = 12").Scan(&author); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if author != 3 {
		t.Fatalf("reply author = %d, want 3", author)
	}
}

func TestApplyVoteSameIDInDifferentChats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)

	if _, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(11), Upvote); err != nil {
		t.Fatalf("vote: %v", err)
	}
	other := Message{MessageID: 10, ChatID: testChat - 1, AuthorUserID: 5}
	delta, err := ledger.ApplyVote(ctx, 1, other, reply(11), Upvote)
	if err != nil || delta != 1 {
		t.Fatalf("vote in other chat: delta=%d err=%v", delta, err)
	}
	if got := respektOf(t, store, 2); got != 1 {
		t.Fatalf("respekt in first chat = %d", got)
	}
}

func TestApplyVoteRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)

	if _, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(11), 0); !errors.Is(err, common.ErrInvalidVoteValue) {
		t.Fatalf("vote 0: %v", err)
	}
	if _, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(11), 2); !errors.Is(err, common.ErrInvalidVoteValue) {
		t.Fatalf("vote 2: %v", err)
	}
	if _, err := ledger.ApplyVote(ctx, 1, target(0, 2), reply(11), Upvote); !errors.Is(err, common.ErrTargetNotFound) {
		t.Fatalf("message id 0: %v", err)
	}
	// Автор неизвестен и сообщения нет в базе
	if _, err := ledger.ApplyVote(ctx, 1, target(10, 0), reply(11), Upvote); !errors.Is(err, common.ErrTargetNotFound) {
		t.Fatalf("unknown author: %v", err)
	}
	if n := countRows(t, store, "SELECT COUNT(*) FROM messages"); n != 0 {
		t.Fatalf("rejected votes stored %d messages", n)
	}
}

func TestApplyVoteResolvesAuthorFromStoredMessage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)

	if _, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(11), Upvote); err != nil {
		t.Fatalf("vote: %v", err)
	}
	delta, err := ledger.ApplyVote(ctx, 3, target(10, 0), reply(12), Downvote)
	if err != nil || delta != -1 {
		t.Fatalf("vote with unknown author: delta=%d err=%v", delta, err)
	}
	if got := respektOf(t, store, 2); got != 0 {
		t.Fatalf("respekt = %d, want 0", got)
	}
	// Автор сохранённого сообщения — сам голосующий
	if _, err := ledger.ApplyVote(ctx, 2, target(10, 0), reply(13), Upvote); !errors.Is(err, common.ErrSelfVote) {
		t.Fatalf("self vote via stored author: %v", err)
	}
}

func TestApplyVoteSelfVote(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	strict := NewLedger(store, false)
	if _, err := strict.ApplyVote(ctx, 2, target(10, 2), reply(11), Upvote); !errors.Is(err, common.ErrSelfVote) {
		t.Fatalf("expected ErrSelfVote, got %v", err)
	}
	if got := respektOf(t, store, 2); got != 0 {
		t.Fatalf("respekt after rejected self vote = %d", got)
	}

	lenient := NewLedger(store, true)
	delta, err := lenient.ApplyVote(ctx, 2, target(10, 2), reply(11), Upvote)
	if err != nil || delta != 1 {
		t.Fatalf("allowed self vote: delta=%d err=%v", delta, err)
	}
}

func TestApplyVoteConcurrentSamePair(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(store, false)

	const workers = 16
	deltas := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			deltas[i], errs[i] = ledger.ApplyVote(ctx, 1, target(10, 2), reply(MessageID(100+i)), Upvote)
		}(i)
	}
	wg.Wait()

	var applied int
	for i := range deltas {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if deltas[i] != 0 {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("applied %d votes, want 1", applied)
	}
	if got := respektOf(t, store, 2); got != 1 {
		t.Fatalf("respekt = %d, want 1", got)
	}
}

// checkConcurrentReversals гоняет раунды параллельных голосов разного знака
// от одних и тех же голосующих за одно сообщение и после каждого раунда
// сверяет баланс автора с суммой живых голосов. liveSum считает сумму напрямую в базе.
func checkConcurrentReversals(t *testing.T, store Store, chatID ChatID, liveSum func() int64) {
	t.Helper()
	ctx := context.Background()
	ledger := NewLedger(store, false)

	const (
		rounds  = 20
		workers = 8
		author  = UserID(2)
	)
	voters := []UserID{1, 3, 4}
	msg := Message{MessageID: 10, ChatID: chatID, AuthorUserID: author, Text: "сообщение"}
	nextReply := MessageID(1000)

	for round := 0; round < rounds; round++ {
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			// У каждого голосующего в раунде есть голоса обоих знаков
			k := round + i
			voter := voters[k%len(voters)]
			value := Upvote
			if k%2 == 1 {
				value = Downvote
			}
			nextReply++
			wg.Add(1)
			go func(i int, voter UserID, value VoteValue, replyID MessageID) {
				defer wg.Done()
				_, errs[i] = ledger.ApplyVote(ctx, voter, msg, Message{MessageID: replyID, Text: "±"}, value)
			}(i, voter, value, nextReply)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("round %d worker %d: %v", round, i, err)
			}
		}
		respekt, _, err := store.GetRespekt(ctx, author, chatID)
		if err != nil {
			t.Fatalf("round %d: get respekt: %v", round, err)
		}
		if want := liveSum(); respekt != want {
			t.Fatalf("round %d: respekt %d, live votes %d", round, respekt, want)
		}
		drifts, err := store.Reconcile(ctx, chatID)
		if err != nil {
			t.Fatalf("round %d: reconcile: %v", round, err)
		}
		if len(drifts) != 0 {
			t.Fatalf("round %d: drift after concurrent votes: %+v", round, drifts)
		}
	}
}

func TestApplyVoteConcurrentReversals(t *testing.T) {
	store := newTestStore(t)
	checkConcurrentReversals(t, store, testChat, func() int64 {
		var sum int64
		err := store.db.QueryRow(
			"SELECT COALESCE(SUM(vote), 0) FROM votes WHERE chat_id = ? AND target_message_id = 10",
			testChat,
		).Scan(&sum)
		if err != nil {
			t.Fatalf("sum votes: %v", err)
		}
		return sum
	})
}

// failingStore ломает AdjustKarma после того, как голос уже записан в транзакции.
type failingStore struct {
	*SQLiteStore
}

type failingTx struct {
	Tx
}

var errAdjust = errors.New("диск кончился")

func (s failingStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.SQLiteStore.WithTx(ctx, func(tx Tx) error {
		return fn(failingTx{Tx: tx})
	})
}

func (failingTx) AdjustKarma(context.Context, UserID, ChatID, int64) (int64, error) {
	return 0, errAdjust
}

func TestApplyVoteStorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := NewLedger(failingStore{store}, false)

	_, err := ledger.ApplyVote(ctx, 1, target(10, 2), reply(11), Upvote)
	if !common.IsStorageError(err) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if !errors.Is(err, errAdjust) {
		t.Fatalf("StorageError lost cause: %v", err)
	}
	for _, table := range []string{"messages", "votes", "user_in_chat"} {
		if n := countRows(t, store, "SELECT COUNT(*) FROM "+table); n != 0 {
			t.Fatalf("%s has %d rows after failed vote", table, n)
		}
	}

	// Повтор на исправном хранилище проходит как первый голос
	delta, err := NewLedger(store, false).ApplyVote(ctx, 1, target(10, 2), reply(11), Upvote)
	if err != nil || delta != 1 {
		t.Fatalf("retry: delta=%d err=%v", delta, err)
	}
}
