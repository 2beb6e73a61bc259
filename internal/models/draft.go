// Package models defines the domain types shared by the draft store, the
// index and the transports.
package models

import "time"

// FileInfo is a lightweight listing entry for one Markdown file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft is a parsed article file.
type Draft struct {
	Filename    string         `json:"filename"`
	Path        string         `json:"path"` // relative to the content root
	Title       string         `json:"title"`
	Slug        string         `json:"slug,omitempty"`
	Publish     bool           `json:"publish"`
	CreatedDate string         `json:"created_date,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Image       string         `json:"featured_image,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Keys        []string       `json:"-"`
	Body        string         `json:"body,omitempty"`
	Preview     string         `json:"preview,omitempty"`
	Checksum    string         `json:"checksum"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Stats are the pure text metrics of a draft body.
type Stats struct {
	Words           int    `json:"words"`
	Characters      int    `json:"characters"`
	ReadingMinutes  int    `json:"reading_minutes"`
	ReadingTimeText string `json:"reading_time"`
}

// SearchHit is one full-text search result from the index.
type SearchHit struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Publish bool   `json:"publish"`
}
