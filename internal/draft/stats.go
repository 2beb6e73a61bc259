package draft

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/skyboj/obsidian-ai-blogger/internal/models"
)

// WordsPerMinute is the reading speed used for reading-time estimates.
const WordsPerMinute = 200

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime returns whole minutes, rounded up, and the display text.
func ReadingTime(words int) (int, string) {
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes == 1 {
		return 1, "1 minute"
	}
	return minutes, fmt.Sprintf("%d minutes", minutes)
}

// Measure computes the text metrics of body.
func Measure(body string) models.Stats {
	words := CountWords(body)
	minutes, text := ReadingTime(words)
	return models.Stats{
		Words:           words,
		Characters:      utf8.RuneCountInString(body),
		ReadingMinutes:  minutes,
		ReadingTimeText: text,
	}
}

func preview(body string, n int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	r := []rune(body)
	return strings.TrimSpace(string(r[:n])) + "..."
}
