package karma

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/respekt-bot/internal/db/postgres"
)

// newPostgresStore подключается к TEST_DATABASE_URL и возвращает хранилище
// и свежий chat_id: чужие данные в базе не трогаем, за собой чистим.
func newPostgresStore(t *testing.T) (*PostgresStore, ChatID) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	chatID := ChatID(-time.Now().UnixNano())
	t.Cleanup(func() {
		for _, q := range []string{
			"DELETE FROM votes WHERE chat_id = $1",
			"DELETE FROM messages WHERE chat_id = $1",
			"DELETE FROM user_in_chat WHERE chat_id = $1",
		} {
			if _, err := pool.Exec(context.Background(), q, chatID); err != nil {
				t.Errorf("cleanup %q: %v", q, err)
			}
		}
	})
	return NewPostgresStore(pool), chatID
}

func TestPostgresConcurrentReversals(t *testing.T) {
	store, chatID := newPostgresStore(t)
	checkConcurrentReversals(t, store, chatID, func() int64 {
		var sum int64
		err := store.db.QueryRow(context.Background(),
			"SELECT COALESCE(SUM(vote), 0)::BIGINT FROM votes WHERE chat_id = $1 AND target_message_id = 10",
			chatID,
		).Scan(&sum)
		if err != nil {
			t.Fatalf("sum votes: %v", err)
		}
		return sum
	})
}

func TestPostgresLeaderboardAndReconcile(t *testing.T) {
	ctx := context.Background()
	store, chatID := newPostgresStore(t)
	ledger := NewLedger(store, false)

	votes := []struct {
		voter  UserID
		msg    MessageID
		author UserID
		value  VoteValue
	}{
		{1, 10, 2, Upvote},
		{3, 10, 2, Upvote},
		{4, 10, 2, Downvote},
		{1, 20, 3, Downvote},
		{2, 30, 1, Upvote},
		{1, 10, 2, Downvote},
	}
	for i, v := range votes {
		msg := Message{MessageID: v.msg, ChatID: chatID, AuthorUserID: v.author, Text: "сообщение"}
		if _, err := ledger.ApplyVote(ctx, v.voter, msg, Message{MessageID: MessageID(100 + i), Text: "+"}, v.value); err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
	}

	// limit 0 — без ограничения
	top, err := store.Leaderboard(ctx, chatID, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	got := make([]UserID, 0, len(top))
	for _, b := range top {
		got = append(got, b.UserID)
	}
	if want := []UserID{1, 2, 3}; len(got) != len(want) || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("leaderboard order = %v, want %v", got, want)
	}
	if top[1].Respekt != -1 {
		t.Fatalf("respekt of user 2 = %d, want -1", top[1].Respekt)
	}

	limited, err := store.Leaderboard(ctx, chatID, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("limited leaderboard: %d rows, %v", len(limited), err)
	}

	if _, err := store.db.Exec(ctx, "UPDATE user_in_chat SET respekt = 99 WHERE user_id = 2 AND chat_id = $1", chatID); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}
	drifts, err := store.Reconcile(ctx, chatID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(drifts) != 1 || drifts[0] != (Drift{UserID: 2, Stored: 99, Expected: -1}) {
		t.Fatalf("drifts = %+v", drifts)
	}
	again, err := store.Reconcile(ctx, chatID)
	if err != nil || len(again) != 0 {
		t.Fatalf("second reconcile: %+v, %v", again, err)
	}
}
