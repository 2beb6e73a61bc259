package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skyboj/obsidian-ai-blogger/internal/blogservice"
	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
)

type routerOptions struct {
	limiter  Limiter
	onReject func(reason string)
}

// RouterOption configures NewRouter.
type RouterOption func(*routerOptions)

// WithLimiter gates generation and the publish pipeline behind l, keyed as
// ratelimit.APIClient. onReject may be nil.
func WithLimiter(l Limiter, onReject func(reason string)) RouterOption {
	return func(o *routerOptions) {
		o.limiter = l
		o.onReject = onReject
	}
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *blogservice.Service, authEnabled bool, token string, sseHandler http.Handler, opts ...RouterOption) chi.Router {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Drafts.
	r.Get("/drafts", h.ListDrafts)
	r.Get("/drafts/{name}", h.GetDraft)
	r.Post("/drafts/{name}/mark", h.MarkDraft)
	r.Post("/drafts/{name}/publish", h.PublishDraft)

	// Generation and publication spend AI credit and run deploy commands.
	r.Group(func(r chi.Router) {
		if o.limiter != nil {
			r.Use(RateLimitMiddleware(o.limiter, ratelimit.APIClient, o.onReject))
		}
		r.Post("/generate", h.Generate)
		r.Post("/publish", h.RunPipeline)
	})

	r.Get("/status", h.Status)
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
