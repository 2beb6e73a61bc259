package images

import (
	"fmt"
	"strings"
)

type category struct {
	markers  []string
	keywords []string
}

// Categories are checked in order; the first match wins.
var categories = []category{
	{
		markers:  []string{"технолог", "искусственный интеллект", "technolog", "artificial intelligence", "ai"},
		keywords: []string{"technology", "artificial intelligence", "innovation"},
	},
	{
		markers:  []string{"здоров", "медицин", "health", "medic"},
		keywords: []string{"health", "medical", "wellness"},
	},
	{
		markers:  []string{"бизнес", "финанс", "business", "financ"},
		keywords: []string{"business", "finance", "success"},
	},
	{
		markers:  []string{"образован", "обучен", "educat", "learning"},
		keywords: []string{"education", "learning", "study"},
	},
	{
		markers:  []string{"природ", "экологи", "nature", "ecolog"},
		keywords: []string{"nature", "environment", "ecology"},
	},
}

var fallbackKeywords = []string{"concept", "abstract", "modern"}

// SearchKeywords returns the topic followed by three category keywords.
func SearchKeywords(topic string) []string {
	out := []string{topic}
	lower := strings.ToLower(topic)
	for _, c := range categories {
		for _, m := range c.markers {
			if containsMarker(lower, m) {
				return append(out, c.keywords...)
			}
		}
	}
	return append(out, fallbackKeywords...)
}

// containsMarker matches short latin markers as whole words so "ai" does not
// hit "said" or "maintain".
func containsMarker(s, marker string) bool {
	if len(marker) > 2 {
		return strings.Contains(s, marker)
	}
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if f == marker {
			return true
		}
	}
	return false
}

// normalizeKeywords drops blank entries.
func normalizeKeywords(kw []string) []string {
	out := make([]string, 0, len(kw))
	for _, k := range kw {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func validateQuery(q Query) ([]string, error) {
	kw := normalizeKeywords(q.Keywords)
	if len(kw) == 0 {
		return nil, fmt.Errorf("images: no keywords")
	}
	if q.Limit < 0 || q.Limit > 50 {
		return nil, fmt.Errorf("images: limit %d out of range 1..50", q.Limit)
	}
	return kw, nil
}
