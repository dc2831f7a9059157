// Package metrics computes local measurements: size features of user input
// and token usage totals over a session.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features are size measures of a piece of text.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures measures s. Words split on Unicode whitespace; an empty
// string has zero lines, otherwise lines is one plus the newline count.
func CountFeatures(s string) Features {
	f := Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
	}
	if s != "" {
		f.Lines = 1 + strings.Count(s, "\n")
	}
	return f
}
