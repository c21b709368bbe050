package statemachine

import "fmt"

const (
	MinSequenceYear = 1
	MaxSequenceYear = 9999
	MaxSequence     = 9999
)

// FormatSequenceID renders {PREFIX}-{YYYY}-{NNNN}. The counter value stays the
// source of truth; this string is display only.
func FormatSequenceID(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, seq)
}

func ValidSequenceYear(year int) bool {
	return year >= MinSequenceYear && year <= MaxSequenceYear
}
