package karma

// DecodeVoteCounts раскодирует сгруппированный результат запроса голосов.
//
// Контракт входа (см. Store.QueryVoteCounts): не больше одной строки на значение,
// по возрастанию значения, так что -1 всегда идёт раньше +1.
//
//	0 строк → (0, 0)
//	1 строка → +1: (count, 0); -1: (0, count)
//	2 строки → первая отрицательная, вторая положительная
//
// Больше двух строк — нарушение контракта, возвращается (0, 0).
// Функция никогда не падает: это путь для отображения, голосование он не блокирует.
func DecodeVoteCounts(rows []VoteCountRow) VoteCounts {
	switch len(rows) {
	case 0:
		return VoteCounts{}
	case 1:
		if rows[0].Value == Upvote {
			return VoteCounts{Positive: rows[0].Count}
		}
		return VoteCounts{Negative: rows[0].Count}
	case 2:
		return VoteCounts{Positive: rows[1].Count, Negative: rows[0].Count}
	default:
		return VoteCounts{}
	}
}
