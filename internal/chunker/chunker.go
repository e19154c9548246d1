// Package chunker splits document text into bounded segments for embedding.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
)

// Default sizes, in characters.
const (
	DefaultMaxChars = 1500
	DefaultOverlap  = 200
)

// Boundaries tried from the end of a window, most meaningful first.
// cut is the offset from the match position where the chunk ends.
var boundaries = []struct {
	sep []rune
	cut int
}{
	{sep: []rune("\n\n"), cut: 2},
	{sep: []rune(". "), cut: 2},
	{sep: []rune(" "), cut: 0},
}

// Split walks text once and returns segments of at most maxChars characters.
//
// overlap is the radius, counted back from the end of each window, in which a
// paragraph, sentence or word boundary is searched for. No content is repeated
// between adjacent segments. When no boundary is found the window is cut as is.
func Split(text string, maxChars, overlap int) []string {
	if text == "" {
		return []string{}
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars - 1
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/maxChars+1)
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		window := runes[start:end]
		for _, b := range boundaries {
			if i := lastIndex(window, b.sep, maxChars-overlap); i >= 0 {
				end = start + i + b.cut
				break
			}
		}

		chunks = append(chunks, string(runes[start:end]))
		start = end
	}
	return chunks
}

// lastIndex returns the last position >= from at which sep lies entirely inside window.
func lastIndex(window, sep []rune, from int) int {
	for i := len(window) - len(sep); i >= from; i-- {
		if i <= 0 {
			// a cut at the very start of a window would not advance
			return -1
		}
		match := true
		for j, r := range sep {
			if window[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Hash returns the hex SHA-256 digest of text. Identical text always yields the
// same digest regardless of where it came from.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
