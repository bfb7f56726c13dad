package core

import "errors"

// MaxColumnIndex is the highest addressable column ("ZZ"). Anything past
// two letters is rejected on purpose: a mapping that far right is almost
// certainly a typo.
const MaxColumnIndex = 701

var (
	ErrInvalidColumnFormat = errors.New("invalid column format")
	ErrColumnOutOfRange    = errors.New("column out of range")
)

// ValidateColumn checks that raw is a well-formed column reference in A..ZZ.
// Three or more uppercase letters are reported as out of range rather than
// malformed, so the caller can tell "AAA" apart from "a1".
func ValidateColumn(raw string) error {
	if len(raw) > 2 && isUpperAlpha(raw) {
		return ErrColumnOutOfRange
	}
	if len(raw) < 1 || len(raw) > 2 || !isUpperAlpha(raw) {
		return ErrInvalidColumnFormat
	}
	if ColumnToIndex(raw) > MaxColumnIndex {
		return ErrColumnOutOfRange
	}
	return nil
}

// ColumnToIndex converts a validated column reference to its zero-based
// index: A=0 .. Z=25, AA=26 .. ZZ=701. This is bijective base-26 column
// numbering, not plain base-26: the first letter of a pair counts from 1.
func ColumnToIndex(letters string) int {
	if len(letters) == 1 {
		return int(letters[0] - 'A')
	}
	first := int(letters[0]-'A') + 1
	second := int(letters[1] - 'A')
	return first*26 + second
}

// ColumnFromIndex is the inverse of ColumnToIndex for indices in [0, MaxColumnIndex].
func ColumnFromIndex(index int) string {
	if index < 26 {
		return string(rune('A' + index))
	}
	first := byte('A' + index/26 - 1)
	second := byte('A' + index%26)
	return string([]byte{first, second})
}

func isUpperAlpha(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
