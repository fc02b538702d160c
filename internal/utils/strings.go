package utils

import (
	"strings"
)

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FoldKey is the case- and whitespace-insensitive form of s, for map keys.
func FoldKey(s string) string {
	return strings.ToLower(NormalizeSpace(s))
}

// NormalizeSeat uppercases a seat code and drops inner spaces ("a 12" -> "A12").
func NormalizeSeat(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}
