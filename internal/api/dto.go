package api

import (
	"github.com/skyboj/obsidian-ai-blogger/internal/blogservice"
	"github.com/skyboj/obsidian-ai-blogger/internal/index"
	"github.com/skyboj/obsidian-ai-blogger/internal/models"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
)

// GenerateRequest is the request body for POST /api/generate.
type GenerateRequest struct {
	Topic         string            `json:"topic" example:"Healthy Eating Habits" validate:"required"`
	Template      string            `json:"template,omitempty" example:"article"`
	Title         string            `json:"title,omitempty"`
	Variables     map[string]string `json:"variables,omitempty"`
	AIProvider    string            `json:"ai_provider,omitempty" example:"openai"`
	ImageProvider string            `json:"image_provider,omitempty" example:"unsplash"`
	SkipImage     bool              `json:"skip_image,omitempty"`
}

// DraftDetail is the full draft response type (aliased from the domain layer).
type DraftDetail = blogservice.DraftDetail

// DraftListResponse wraps paginated draft listings.
type DraftListResponse struct {
	Drafts []index.Row `json:"drafts" validate:"required"`
	Total  int         `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// PublishDraftResponse is returned after a draft is copied to the ready folder.
type PublishDraftResponse struct {
	Path string `json:"path" example:"2025-05-01-healthy-eating-habits.md" validate:"required"`
}

// StepResponse is one publish step in a pipeline response.
type StepResponse struct {
	Name       string `json:"name" example:"build"`
	OK         bool   `json:"ok"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// PipelineResponse reports a publish pipeline run.
type PipelineResponse struct {
	OK    bool           `json:"ok"`
	Steps []StepResponse `json:"steps"`
}

func pipelineResponse(log publish.Log) PipelineResponse {
	_, failed := log.Failed()
	resp := PipelineResponse{OK: !failed, Steps: make([]StepResponse, len(log.Steps))}
	for i, st := range log.Steps {
		resp.Steps[i] = StepResponse{
			Name:       st.Name,
			OK:         st.OK(),
			Output:     st.Output,
			DurationMS: st.Duration.Milliseconds(),
		}
		if st.Err != nil {
			resp.Steps[i].Error = st.Err.Error()
		}
	}
	return resp
}
