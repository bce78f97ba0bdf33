// Package karma — detector.go определяет, является ли ответ голосом.
package karma

import "strings"

var voteWords = map[string]VoteValue{
	"+":       Upvote,
	"+1":      Upvote,
	"👍":       Upvote,
	"спасибо": Upvote,
	"-":       Downvote,
	"-1":      Downvote,
	"👎":       Downvote,
}

// ParseVote распознаёт голос в тексте ответа.
// Регистр не важен, пунктуация в конце допускается («Спасибо!» — это +1).
func ParseVote(text string) (VoteValue, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if v, ok := voteWords[cleaned]; ok {
		return v, true
	}
	cleaned = strings.TrimSpace(strings.TrimRight(cleaned, "!.,;:)"))
	v, ok := voteWords[cleaned]
	return v, ok
}
