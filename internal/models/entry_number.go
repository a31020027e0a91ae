package models

import (
	"fmt"
	"strconv"
)

// FormatEntryNumber renders seq zero-padded to width, e.g. (1, 6, "") ->
// "000001" and (7, 3, "JE-") -> "JE-007".
func FormatEntryNumber(seq int64, width int, prefix string) string {
	return fmt.Sprintf("%s%0*d", prefix, width, seq)
}

// ParseEntryNumber extracts the sequence from the trailing run of digits of
// an entry number, so any prefix is ignored even when it contains digits.
// "000042", "JE-042" and "JE1-042" all parse to 42.
func ParseEntryNumber(s string) (int64, error) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	digits := s[i:]
	if digits == "" {
		return 0, fmt.Errorf("entry number %q has no trailing digits", s)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry number %q: %w", s, err)
	}
	return n, nil
}
