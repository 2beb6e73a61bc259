package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skyboj/obsidian-ai-blogger/internal/blogservice"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	svc *blogservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *blogservice.Service) *Handler {
	return &Handler{svc: svc}
}

// draftName extracts the {name} URL parameter. Encoded slashes are
// accepted so stored paths like drafts%2Fa.md work.
func draftName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDrafts handles GET /api/drafts.
//
//	@Summary		List articles with optional pagination and filtering
//	@Tags			drafts
//	@Produce		json
//	@Param			folder	query		string	false	"Folder (drafts for drafts only, empty for all)"
//	@Param			publish	query		bool	false	"Filter by publish flag"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	DraftListResponse
//	@Security		BearerAuth
//	@Router			/drafts [get]
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := index.Filter{Folder: q.Get("folder"), Tag: q.Get("tag")}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if v := q.Get("publish"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("publish must be a boolean"))
			return
		}
		f.Publish = &b
	}

	rows, total, err := h.svc.ListDrafts(r.Context(), f)
	if err != nil {
		writeError(w, "list drafts", err)
		return
	}
	writeJSON(w, http.StatusOK, DraftListResponse{Drafts: rows, Total: total})
}

// GetDraft handles GET /api/drafts/{name}.
//
//	@Summary		Get one article with frontmatter, body and stats
//	@Tags			drafts
//	@Produce		json
//	@Param			name	path		string	true	"Filename or stored path"
//	@Success		200		{object}	DraftDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drafts/{name} [get]
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDraft(r.Context(), draftName(r))
	if err != nil {
		writeError(w, "get draft", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// MarkDraft handles POST /api/drafts/{name}/mark.
//
//	@Summary		Mark a draft for publication
//	@Tags			drafts
//	@Produce		json
//	@Param			name	path		string	true	"Draft filename"
//	@Success		200		{object}	DraftDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drafts/{name}/mark [post]
func (h *Handler) MarkDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.MarkPublish(r.Context(), draftName(r))
	if err != nil {
		writeError(w, "mark draft", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// PublishDraft handles POST /api/drafts/{name}/publish.
//
//	@Summary		Copy a draft into the ready folder
//	@Tags			drafts
//	@Produce		json
//	@Param			name	path		string	true	"Draft filename"
//	@Success		200		{object}	PublishDraftResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drafts/{name}/publish [post]
func (h *Handler) PublishDraft(w http.ResponseWriter, r *http.Request) {
	target, err := h.svc.PublishDraft(r.Context(), draftName(r))
	if err != nil {
		writeError(w, "publish draft", err)
		return
	}
	writeJSON(w, http.StatusOK, PublishDraftResponse{Path: target})
}

// Generate handles POST /api/generate.
//
//	@Summary		Generate a draft article about a topic
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GenerateRequest	true	"Generation request"
//	@Success		201		{object}	generator.Result
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("topic is required"))
		return
	}
	res, err := h.svc.Generate(r.Context(), req.Topic, generator.Options{
		Template:      req.Template,
		Title:         req.Title,
		Variables:     req.Variables,
		AIProvider:    req.AIProvider,
		ImageProvider: req.ImageProvider,
		SkipImage:     req.SkipImage,
	})
	if err != nil {
		writeError(w, "generate", err)
		return
	}
	res.Draft.Body = ""
	writeJSON(w, http.StatusCreated, res)
}

// RunPipeline handles POST /api/publish.
//
//	@Summary		Run the publish pipeline (sync, build, deploy)
//	@Tags			publication
//	@Produce		json
//	@Success		200		{object}	PipelineResponse
//	@Failure		500		{object}	PipelineResponse
//	@Security		BearerAuth
//	@Router			/publish [post]
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	log, err := h.svc.RunPipeline(r.Context())
	if err != nil && len(log.Steps) == 0 {
		writeError(w, "publish", err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, pipelineResponse(log))
}

// Status handles GET /api/status.
//
//	@Summary		Provider health and draft counts
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	blogservice.Status
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across articles
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}
