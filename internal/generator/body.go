package generator

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const descriptionLength = 160

var (
	htmlBlockRe = regexp.MustCompile(`(?i)<(p|h[1-6]|ul|ol|div|article|section|blockquote)[\s>]`)
	fenceRe     = regexp.MustCompile("(?s)^```(?:markdown|md)?\\s*\n(.*?)\n```\\s*$")
	linkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe  = regexp.MustCompile("[*_`]+")
)

// NormalizeBody turns provider output into a Markdown body: a wrapping code
// fence is removed and HTML is converted to Markdown.
func NormalizeBody(text string) (string, error) {
	body := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if htmlBlockRe.MatchString(body) {
		md, err := htmltomarkdown.ConvertString(body)
		if err != nil {
			return "", fmt.Errorf("generator: convert html: %w", err)
		}
		body = strings.TrimSpace(md)
	}
	if body == "" {
		return "", fmt.Errorf("generator: empty article body")
	}
	return body + "\n", nil
}

// Describe returns the first prose paragraph of body, stripped of inline
// markup and cut to a meta-description length.
func Describe(body string) string {
	for _, para := range strings.Split(body, "\n\n") {
		p := strings.TrimSpace(para)
		if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "!") ||
			strings.HasPrefix(p, "-") || strings.HasPrefix(p, ">") || strings.HasPrefix(p, "```") {
			continue
		}
		p = strings.Join(strings.Fields(p), " ")
		p = linkRe.ReplaceAllString(p, "$1")
		p = emphasisRe.ReplaceAllString(p, "")
		r := []rune(p)
		if len(r) <= descriptionLength {
			return p
		}
		cut := string(r[:descriptionLength])
		if i := strings.LastIndex(cut, " "); i > descriptionLength/2 {
			cut = cut[:i]
		}
		return strings.TrimRight(cut, " ,.;:") + "..."
	}
	return ""
}
