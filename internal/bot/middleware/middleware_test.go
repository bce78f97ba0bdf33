package middleware

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()
	rl.now = func() time.Time { return now }

	if !rl.Allow(1) || !rl.Allow(1) {
		t.Fatal("first two actions must pass")
	}
	if rl.Allow(1) {
		t.Fatal("third action in window must be limited")
	}
	if !rl.Allow(2) {
		t.Fatal("other user must not be limited")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow(1) {
		t.Fatal("action after window must pass")
	}
}

func TestRecoverFromPanicLogsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	entry := logger.WithField("trace_id", "abc")

	func() {
		defer RecoverFromPanic(entry)
		panic("бум")
	}()

	out := buf.String()
	if !strings.Contains(out, "trace_id=abc") || !strings.Contains(out, "бум") {
		t.Fatalf("unexpected log: %s", out)
	}
}

func TestLogMessageTruncatesByRunes(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetLevel(log.DebugLevel)
	logger.SetFormatter(&log.JSONFormatter{})

	LogMessage(logger.WithField("trace_id", "t"), &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: -1},
		Text: strings.Repeat("я", 60),
	})

	if !strings.Contains(buf.String(), strings.Repeat("я", 50)+"...") {
		t.Fatalf("unexpected log: %s", buf.String())
	}
}

func TestLogMessageHidesLoginPassword(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetLevel(log.DebugLevel)

	for _, text := range []string{"/login hunter2-secret", "  !LOGIN@respekt_bot hunter2-secret ", ".login hunter2-secret x"} {
		LogMessage(logger.WithField("trace_id", "t"), &tgbotapi.Message{
			From: &tgbotapi.User{ID: 1},
			Chat: &tgbotapi.Chat{ID: 1, Type: "private"},
			Text: text,
		})
	}

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password written to log: %s", out)
	}
	if strings.Count(out, "***") != 3 {
		t.Fatalf("login not logged in redacted form: %s", out)
	}
}

func TestRedactSecretsKeepsOrdinaryText(t *testing.T) {
	for _, text := range []string{"+", "!топ", "/recount -100", "логин пароль", ""} {
		if got := redactSecrets(text); got != text {
			t.Errorf("redactSecrets(%q) = %q", text, got)
		}
	}
}
