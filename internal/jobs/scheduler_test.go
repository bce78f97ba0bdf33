package jobs

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"serotonyl.ru/respekt-bot/internal/config"
	"serotonyl.ru/respekt-bot/internal/db/sqlite"
	"serotonyl.ru/respekt-bot/internal/features/karma"
	"serotonyl.ru/respekt-bot/internal/features/members"
)

func TestRunDigest(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{
		AllowedChatIDs:       []int64{-1, -2},
		KarmaLeaderboardSize: 5,
		AppTimezone:          "UTC",
	}
	karmaService := karma.NewService(karma.NewSQLiteStore(db), cfg)
	memberService := members.NewService(members.NewSQLiteRepository(db))

	// -1: есть голоса, -2: пустой, -3: не в списке разрешённых
	for _, id := range []int64{-1, -2, -3} {
		if err := memberService.EnsureChat(ctx, id, "чат"); err != nil {
			t.Fatalf("ensure chat: %v", err)
		}
	}
	for _, chatID := range []karma.ChatID{-1, -3} {
		target := karma.Message{MessageID: 10, ChatID: chatID, AuthorUserID: 2}
		if _, _, err := karmaService.Vote(ctx, 1, target, karma.Message{MessageID: 11}, karma.Upvote); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}

	sent := map[int64]string{}
	s := NewScheduler(cfg, karmaService, memberService, func(chatID int64, text string) {
		sent[chatID] = text
	})
	if err := s.RunDigest(ctx); err != nil {
		t.Fatalf("digest: %v", err)
	}

	if len(sent) != 1 {
		t.Fatalf("digest sent to %d chats, want 1: %v", len(sent), sent)
	}
	if !strings.Contains(sent[-1], "1. id2 — 1") {
		t.Fatalf("digest text = %q", sent[-1])
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	cfg := &config.Config{KarmaDigestCron: "когда-нибудь", FeatureKarmaEnabled: true, AppTimezone: "UTC"}
	s := NewScheduler(cfg, nil, nil, func(int64, string) {})
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}
