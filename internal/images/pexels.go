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

const defaultPexelsBaseURL = "https://api.pexels.com"

// PexelsConfig configures the Pexels provider.
type PexelsConfig struct {
	APIKey  string
	PerPage int
	BaseURL string
	Timeout time.Duration
}

// Pexels searches photos through the Pexels REST API.
type Pexels struct {
	cfg    PexelsConfig
	client *http.Client
	logger *slog.Logger
}

// NewPexels creates the provider.
func NewPexels(cfg PexelsConfig, logger *slog.Logger) *Pexels {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPexelsBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pexels{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (p *Pexels) Name() string { return "pexels" }

// Available reports whether an API key is configured.
func (p *Pexels) Available(context.Context) (bool, error) {
	return p.cfg.APIKey != "", nil
}

type pexelsPhoto struct {
	ID              int64  `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	URL             string `json:"url"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	AvgColor        string `json:"avg_color"`
	Alt             string `json:"alt"`
	Src             struct {
		Original  string `json:"original"`
		Large2x   string `json:"large2x"`
		Large     string `json:"large"`
		Medium    string `json:"medium"`
		Small     string `json:"small"`
		Landscape string `json:"landscape"`
		Tiny      string `json:"tiny"`
	} `json:"src"`
}

type pexelsSearch struct {
	TotalResults int           `json:"total_results"`
	Photos       []pexelsPhoto `json:"photos"`
}

// Invoke runs /v1/search.
func (p *Pexels) Invoke(ctx context.Context, q Query) ([]Image, error) {
	kw, err := validateQuery(q)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = p.cfg.PerPage
	}
	params := url.Values{
		"query":    {strings.Join(kw, " ")},
		"page":     {strconv.Itoa(max(q.Page, 1))},
		"per_page": {strconv.Itoa(min(limit, 80))},
	}
	if q.Orientation != "" {
		params.Set("orientation", q.Orientation)
	}

	h := http.Header{}
	h.Set("Authorization", p.cfg.APIKey)

	var out pexelsSearch
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/search"
	if err := getJSON(ctx, p.client, "pexels", endpoint, params, h, &out); err != nil {
		return nil, err
	}

	imgs := make([]Image, 0, len(out.Photos))
	for _, ph := range out.Photos {
		imgs = append(imgs, Image{
			ID:          strconv.FormatInt(ph.ID, 10),
			URL:         ph.Src.Large,
			Thumbnail:   ph.Src.Tiny,
			DownloadURL: ph.Src.Original,
			PageURL:     ph.URL,
			Title:       ph.Alt,
			Description: ph.Alt,
			Author:      ph.Photographer,
			AuthorURL:   ph.PhotographerURL,
			Source:      "Pexels",
			License:     "Pexels License",
			Width:       ph.Width,
			Height:      ph.Height,
			Color:       ph.AvgColor,
		})
	}
	imgs = apply(imgs, q)
	p.logger.Info("pexels: search done",
		slog.String("query", params.Get("query")),
		slog.Int("total", out.TotalResults),
		slog.Int("kept", len(imgs)))
	return imgs, nil
}
