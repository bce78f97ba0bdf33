package karma

import "testing"

func TestDecodeVoteCounts(t *testing.T) {
	tests := []struct {
		name string
		rows []VoteCountRow
		want VoteCounts
	}{
		{"пусто", nil, VoteCounts{}},
		{"только плюсы", []VoteCountRow{{Value: Upvote, Count: 3}}, VoteCounts{Positive: 3}},
		{"только минусы", []VoteCountRow{{Value: Downvote, Count: 2}}, VoteCounts{Negative: 2}},
		{"обе группы", []VoteCountRow{{Value: Downvote, Count: 4}, {Value: Upvote, Count: 7}}, VoteCounts{Positive: 7, Negative: 4}},
		{"больше двух строк", []VoteCountRow{{Value: Downvote, Count: 1}, {Value: Upvote, Count: 1}, {Value: Upvote, Count: 1}}, VoteCounts{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeVoteCounts(tt.rows); got != tt.want {
				t.Fatalf("DecodeVoteCounts(%v) = %+v, want %+v", tt.rows, got, tt.want)
			}
		})
	}
}

func TestVoteCountsTotals(t *testing.T) {
	c := VoteCounts{Positive: 5, Negative: 2}
	if c.Total() != 7 || c.Net() != 3 {
		t.Fatalf("unexpected totals: total=%d net=%d", c.Total(), c.Net())
	}
}
