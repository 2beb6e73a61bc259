package images

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultUnsplashBaseURL = "https://api.unsplash.com"

// UnsplashConfig configures the Unsplash provider.
type UnsplashConfig struct {
	AccessKey   string
	PerPage     int
	Orientation string
	Size        string // raw, full, regular, small, thumb
	BaseURL     string
	Timeout     time.Duration
}

// Unsplash searches photos through the Unsplash REST API.
type Unsplash struct {
	cfg    UnsplashConfig
	client *http.Client
	logger *slog.Logger
}

// NewUnsplash creates the provider.
func NewUnsplash(cfg UnsplashConfig, logger *slog.Logger) *Unsplash {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultUnsplashBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 10
	}
	if cfg.Orientation == "" {
		cfg.Orientation = Landscape
	}
	if cfg.Size == "" {
		cfg.Size = "regular"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Unsplash{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (u *Unsplash) Name() string { return "unsplash" }

func (u *Unsplash) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Client-ID "+u.cfg.AccessKey)
	h.Set("Accept-Version", "v1")
	return h
}

func (u *Unsplash) endpoint(path string) string {
	return strings.TrimRight(u.cfg.BaseURL, "/") + path
}

// Available requires an access key and a successful one-photo listing.
func (u *Unsplash) Available(ctx context.Context) (bool, error) {
	if u.cfg.AccessKey == "" {
		return false, nil
	}
	err := getJSON(ctx, u.client, "unsplash", u.endpoint("/photos"), url.Values{"per_page": {"1"}}, u.header(), nil)
	if err != nil {
		u.logger.Warn("unsplash: availability check failed", slog.String("error", err.Error()))
		return false, nil
	}
	return true, nil
}

type unsplashPhoto struct {
	ID             string `json:"id"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Color          string `json:"color"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Raw     string `json:"raw"`
		Full    string `json:"full"`
		Regular string `json:"regular"`
		Small   string `json:"small"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	Links struct {
		HTML     string `json:"html"`
		Download string `json:"download"`
	} `json:"links"`
	User struct {
		Name  string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
	Tags []struct {
		Title string `json:"title"`
	} `json:"tags"`
}

type unsplashSearch struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []unsplashPhoto `json:"results"`
}

// Invoke runs /search/photos and applies the query's filters locally.
func (u *Unsplash) Invoke(ctx context.Context, q Query) ([]Image, error) {
	kw, err := validateQuery(q)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = u.cfg.PerPage
	}
	page := max(q.Page, 1)
	orientation := q.Orientation
	if orientation == "" {
		orientation = u.cfg.Orientation
	}
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "relevant"
	}

	params := url.Values{
		"query":       {strings.Join(kw, " ")},
		"page":        {strconv.Itoa(page)},
		"per_page":    {strconv.Itoa(min(limit, 30))},
		"orientation": {orientation},
		"order_by":    {orderBy},
	}

	var out unsplashSearch
	if err := getJSON(ctx, u.client, "unsplash", u.endpoint("/search/photos"), params, u.header(), &out); err != nil {
		return nil, err
	}

	imgs := make([]Image, 0, len(out.Results))
	for _, p := range out.Results {
		imgs = append(imgs, u.convert(p))
	}
	imgs = apply(imgs, q)
	u.logger.Info("unsplash: search done",
		slog.String("query", params.Get("query")),
		slog.Int("total", out.Total),
		slog.Int("kept", len(imgs)))
	return imgs, nil
}

func (u *Unsplash) convert(p unsplashPhoto) Image {
	src := p.URLs.Regular
	switch u.cfg.Size {
	case "raw":
		src = p.URLs.Raw
	case "full":
		src = p.URLs.Full
	case "small":
		src = p.URLs.Small
	case "thumb":
		src = p.URLs.Thumb
	}
	if src == "" {
		src = p.URLs.Regular
	}

	title := p.AltDescription
	if title == "" {
		title = p.Description
	}
	desc := p.Description
	if desc == "" {
		desc = p.AltDescription
	}

	img := Image{
		ID:          p.ID,
		URL:         src,
		Thumbnail:   p.URLs.Thumb,
		DownloadURL: p.Links.Download,
		PageURL:     p.Links.HTML,
		Title:       title,
		Description: desc,
		Author:      p.User.Name,
		AuthorURL:   p.User.Links.HTML,
		Source:      "Unsplash",
		License:     "Unsplash License",
		Width:       p.Width,
		Height:      p.Height,
		Color:       p.Color,
	}
	for _, t := range p.Tags {
		img.Tags = append(img.Tags, t.Title)
	}
	return img
}
