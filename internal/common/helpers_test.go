package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestPluralizeVotes(t *testing.T) {
	cases := map[int64]string{
		0:   "голосов",
		1:   "голос",
		2:   "голоса",
		4:   "голоса",
		5:   "голосов",
		11:  "голосов",
		12:  "голосов",
		21:  "голос",
		22:  "голоса",
		111: "голосов",
		-3:  "голоса",
	}
	for n, want := range cases {
		if got := PluralizeVotes(n); got != want {
			t.Fatalf("PluralizeVotes(%d) = %q, want %q", n, got, want)
		}
	}
	if got := FormatVotes(5); got != "5 голосов" {
		t.Fatalf("FormatVotes(5) = %q", got)
	}
	if got := PluralizeUsers(3); got != "участника" {
		t.Fatalf("PluralizeUsers(3) = %q", got)
	}
}

func TestFormatSignedAndNumber(t *testing.T) {
	if got := FormatSigned(2); got != "+2" {
		t.Fatalf("FormatSigned(2) = %q", got)
	}
	if got := FormatSigned(-1); got != "-1" {
		t.Fatalf("FormatSigned(-1) = %q", got)
	}
	if got := FormatSigned(0); got != "0" {
		t.Fatalf("FormatSigned(0) = %q", got)
	}
	if got := FormatNumber(2350); got != "2 350" {
		t.Fatalf("FormatNumber(2350) = %q", got)
	}
	if got := FormatNumber(-1000005); got != "-1 000 005" {
		t.Fatalf("FormatNumber(-1000005) = %q", got)
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("apply: %w", &StorageError{Op: "set vote", Err: base})
	if !IsStorageError(err) {
		t.Fatalf("expected storage error in chain")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if IsStorageError(ErrSelfVote) {
		t.Fatalf("sentinel must not be a storage error")
	}
}
