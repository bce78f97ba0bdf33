// Package common — pluralize.go содержит вспомогательные функции
// для форматирования чисел со знаком и разделителями.
package common

import "fmt"

// FormatSigned создаёт строку вида "+2" или "-1".
// Ноль выводится без знака.
//
// Примеры:
//
//	FormatSigned(2)  → "+2"
//	FormatSigned(-1) → "-1"
//	FormatSigned(0)  → "0"
func FormatSigned(n int64) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
