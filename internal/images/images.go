// Package images contains the stock-photo providers, the image provider
// manager and the helpers used to pick and render a featured image.
package images

import (
	"context"
	"log/slog"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/provider"
)

// Domain is the manager domain label used in logs and metrics.
const Domain = "image"

// Orientations accepted by Query and Filters.
const (
	Landscape = "landscape"
	Portrait  = "portrait"
	Square    = "square"
)

// Image is one search hit normalised across providers.
type Image struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	DownloadURL string   `json:"download_url,omitempty"`
	PageURL     string   `json:"page_url,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	AuthorURL   string   `json:"author_url,omitempty"`
	Source      string   `json:"source"`
	License     string   `json:"license,omitempty"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Color       string   `json:"color,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Query is one image search.
type Query struct {
	Keywords    []string
	Limit       int
	Page        int
	Orientation string
	OrderBy     string
	Filters     Filters
	SortBy      string
}

// Provider is an image search backend.
type Provider = provider.Provider[Query, []Image]

// Manager is the image provider manager.
type Manager = provider.Manager[Query, []Image]

// InvokeOptions selects the preferred provider for one call.
type InvokeOptions = provider.InvokeOptions

// NewManager creates a manager that treats an empty image list as a failed attempt.
func NewManager(defaultProvider string, maxRetries int, logger *slog.Logger, obs provider.Observer) *Manager {
	opts := []provider.ManagerOption[Query, []Image]{
		provider.WithDefault[Query, []Image](defaultProvider),
		provider.WithMaxRetries[Query, []Image](maxRetries),
		provider.WithEmpty[Query, []Image](func(imgs []Image) bool { return len(imgs) == 0 }),
	}
	if logger != nil {
		opts = append(opts, provider.WithLogger[Query, []Image](logger))
	}
	if obs != nil {
		opts = append(opts, provider.WithObserver[Query, []Image](obs))
	}
	return provider.NewManager[Query, []Image](Domain, opts...)
}

// Selection is the image chosen for a topic plus the runners-up.
type Selection struct {
	Image        Image    `json:"image"`
	Alternatives []Image  `json:"alternatives,omitempty"`
	Keywords     []string `json:"keywords"`
	Provider     string   `json:"provider"`
}

// BestForTopic searches for landscape images of at least 800x600 that match
// topic and returns the most relevant one. It fails with NO_SUITABLE_IMAGES
// when every provider fails or nothing passes the filters.
func BestForTopic(ctx context.Context, m *Manager, topic string, opts InvokeOptions) (Selection, error) {
	keywords := SearchKeywords(topic)
	q := Query{
		Keywords:    keywords,
		Limit:       5,
		Orientation: Landscape,
		Filters: Filters{
			MinWidth:    800,
			MinHeight:   600,
			Orientation: Landscape,
		},
		SortBy: SortRelevance,
	}

	res, err := m.Invoke(ctx, q, opts)
	if err != nil {
		return Selection{}, apperr.Wrap(apperr.KindNoSuitableImages, "no image for "+topic, err)
	}
	return Selection{
		Image:        res.Value[0],
		Alternatives: res.Value[1:],
		Keywords:     keywords,
		Provider:     res.Provider,
	}, nil
}
