package draft

import (
	"time"

	"github.com/gosimple/slug"
)

// Slugify derives the URL-safe slug for a title.
func Slugify(title string) string {
	s := slug.Make(title)
	if s == "" {
		return "untitled"
	}
	return s
}

// Filename returns the draft filename for title created at t.
func Filename(title string, t time.Time) string {
	return t.Format(time.DateOnly) + "-" + Slugify(title) + ".md"
}
