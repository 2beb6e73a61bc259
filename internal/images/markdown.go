package images

import (
	"fmt"
	"strings"
)

// MarkdownOptions controls Markdown rendering.
type MarkdownOptions struct {
	Attribution bool
}

// Attribution returns the credit line required by the image source.
func Attribution(img Image) string {
	if img.Author == "" {
		return ""
	}
	if img.Source == "" {
		return "Photo by " + img.Author
	}
	return fmt.Sprintf("Photo by %s on %s", img.Author, img.Source)
}

// Markdown renders img as a Markdown image, optionally followed by an italic
// attribution paragraph.
func Markdown(img Image, opts MarkdownOptions) string {
	alt := img.Title
	if alt == "" {
		alt = img.Description
	}
	if alt == "" {
		alt = "Article image"
	}
	alt = strings.NewReplacer("[", "", "]", "").Replace(alt)

	var b strings.Builder
	if img.Title != "" {
		fmt.Fprintf(&b, "![%s](%s %q)", alt, img.URL, img.Title)
	} else {
		fmt.Fprintf(&b, "![%s](%s)", alt, img.URL)
	}
	if opts.Attribution {
		if a := Attribution(img); a != "" {
			b.WriteString("\n\n*" + a + "*")
		}
	}
	return b.String()
}
