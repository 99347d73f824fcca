package playback

import (
	"strings"
	"unicode/utf8"
)

const (
	// ChunkSize is the number of words per utterance. Speed and voice
	// changes take effect within one chunk.
	ChunkSize = 50

	windowBefore    = 2000
	windowLookahead = 500
	fallbackWindow  = 2000

	titleMax     = 60
	titleCut     = 57
	defaultTitle = "Listening Session"
)

// Words splits text on any whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

// chunkEnd returns the exclusive end of the chunk starting at cursor.
func chunkEnd(cursor, total int) int {
	return min(cursor+ChunkSize, total)
}

// quizWindow selects the words already heard before cursor, up to
// windowBefore characters, plus up to windowLookahead characters after it.
// Lengths count the joining spaces. When nothing fits, the first
// fallbackWindow characters of text are used.
func quizWindow(words []string, cursor int, text string) string {
	cursor = max(0, min(cursor, len(words)))

	lo, used := cursor, 0
	for lo > 0 {
		n := utf8.RuneCountInString(words[lo-1]) + 1
		if used+n > windowBefore {
			break
		}
		used += n
		lo--
	}

	hi, ahead := cursor, 0
	for hi < len(words) {
		n := utf8.RuneCountInString(words[hi]) + 1
		if ahead+n > windowLookahead {
			break
		}
		ahead += n
		hi++
	}

	if lo == hi {
		return truncateRunes(strings.TrimSpace(text), fallbackWindow)
	}
	return strings.Join(words[lo:hi], " ")
}

// DeriveTitle uses the first line of text, shortened to 57 characters plus
// an ellipsis when it exceeds 60.
func DeriveTitle(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(first) > titleMax {
		return truncateRunes(first, titleCut) + "..."
	}
	return first
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
