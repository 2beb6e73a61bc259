// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes draft generation and publication tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/blogservice"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/index"
	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
)

const formatURI = "blogger://draft-format"

// Limiter admits or rejects a call for a client key.
type Limiter interface {
	Allow(key int64) ratelimit.Decision
}

// Server wraps the MCP server with the blogger tools.
type Server struct {
	mcp *server.MCPServer
	svc *blogservice.Service

	limiter  Limiter
	onReject func(reason string)
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter counts generate_article and publish_draft calls against l under
// ratelimit.MCPClient. onReject may be nil.
func WithLimiter(l Limiter, onReject func(reason string)) Option {
	return func(s *Server) {
		s.limiter = l
		s.onReject = onReject
	}
}

// New creates an MCP server with all tools registered.
func New(svc *blogservice.Service, version string, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"Obsidian AI Blogger",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("generate_article",
		mcp.WithDescription("Generate a new draft article about a topic with the configured AI and image providers. "+
			"The draft is written to the drafts folder with publish: false."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Article topic")),
		mcp.WithString("template", mcp.Description("Prompt template id (default: article)")),
		mcp.WithString("title", mcp.Description("Article title; defaults to the topic")),
		mcp.WithString("ai_provider", mcp.Description("Preferred AI provider")),
		mcp.WithBoolean("skip_image", mcp.Description("Do not look for a featured image")),
	), s.generateArticle)

	s.mcp.AddTool(mcp.NewTool("list_drafts",
		mcp.WithDescription("List articles. By default lists the drafts folder."),
		mcp.WithString("folder", mcp.Description("Folder to list (default: drafts; use \"\" with all=true for everything)")),
		mcp.WithBoolean("all", mcp.Description("List every article under the content root")),
	), s.listDrafts)

	s.mcp.AddTool(mcp.NewTool("read_draft",
		mcp.WithDescription("Read one article with its frontmatter, body and text stats."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Filename, stored path or a fuzzy name")),
	), s.readDraft)

	s.mcp.AddTool(mcp.NewTool("mark_for_publish",
		mcp.WithDescription("Set publish: true on a draft. Only that field changes."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Draft filename")),
	), s.markForPublish)

	s.mcp.AddTool(mcp.NewTool("publish_draft",
		mcp.WithDescription("Copy a draft into the ready folder. With run_pipeline the publish pipeline runs afterwards."),
		mcp.WithString("name", mcp.Description("Draft filename; omit to only run the pipeline")),
		mcp.WithBoolean("run_pipeline", mcp.Description("Run sync, build and deploy steps")),
	), s.publishDraft)

	s.mcp.AddTool(mcp.NewTool("search_drafts",
		mcp.WithDescription("Full-text search through article titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchDrafts)

	s.mcp.AddTool(mcp.NewTool("provider_status",
		mcp.WithDescription("Report AI and image provider health and draft counts."),
	), s.providerStatus)

	s.mcp.AddTool(mcp.NewTool("get_draft_format",
		mcp.WithDescription("Returns the draft file format contract."),
	), s.getDraftFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Draft Format Contract",
			mcp.WithResourceDescription("Markdown and frontmatter layout of generated drafts."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDraftFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if kind := apperr.KindOf(err); kind != apperr.KindUnknown {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", kind, apperr.UserMessage(err)))
	}
	return mcp.NewToolResultError(err.Error())
}

// rejected returns a tool error when the limiter refuses the call.
func (s *Server) rejected() *mcp.CallToolResult {
	if s.limiter == nil {
		return nil
	}
	d := s.limiter.Allow(ratelimit.MCPClient)
	if d.Allowed {
		return nil
	}
	if s.onReject != nil {
		s.onReject(d.Reason)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: rate limit exceeded, try again in %s",
		d.Reason, ratelimit.FormatWaitTime(d.ResetIn)))
}

func (s *Server) generateArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if r := s.rejected(); r != nil {
		return r, nil
	}
	res, err := s.svc.Generate(ctx, topic, generator.Options{
		Template:   req.GetString("template", ""),
		Title:      req.GetString("title", ""),
		AIProvider: req.GetString("ai_provider", ""),
		SkipImage:  req.GetBool("skip_image", false),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"path":         res.Draft.Path,
		"title":        res.Draft.Title,
		"words":        res.Stats.Words,
		"reading_time": res.Stats.ReadingTimeText,
		"ai_provider":  res.AIProvider,
		"image":        res.Image != nil,
		"job_id":       res.JobID,
	})
}

func (s *Server) listDrafts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := index.Filter{Folder: req.GetString("folder", "drafts"), Limit: 200}
	if req.GetBool("all", false) {
		f.Folder = ""
	}
	rows, _, err := s.svc.ListDrafts(ctx, f)
	if err != nil {
		return errorResult(err), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no drafts found"), nil
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		mark := " "
		if r.Publish {
			mark = "x"
		}
		lines[i] = fmt.Sprintf("[%s] %s  %s", mark, r.Path, r.Title)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetDraft(ctx, name)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(d)
}

func (s *Server) markForPublish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.MarkPublish(ctx, name)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("marked for publication: %s", d.Path)), nil
}

func (s *Server) publishDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	runPipeline := req.GetBool("run_pipeline", false)
	if name == "" && !runPipeline {
		return mcp.NewToolResultError("either name or run_pipeline is required"), nil
	}
	if r := s.rejected(); r != nil {
		return r, nil
	}

	var sb strings.Builder
	if name != "" {
		target, err := s.svc.PublishDraft(ctx, name)
		if err != nil {
			return errorResult(err), nil
		}
		fmt.Fprintf(&sb, "copied to %s\n", target)
	}
	if runPipeline {
		log, err := s.svc.RunPipeline(ctx)
		for _, st := range log.Steps {
			status := "ok"
			if !st.OK() {
				status = "failed: " + st.Err.Error()
			}
			fmt.Fprintf(&sb, "%s: %s (%s)\n", st.Name, status, st.Duration)
		}
		if err != nil {
			return mcp.NewToolResultError(sb.String() + err.Error()), nil
		}
	}
	return mcp.NewToolResultText(strings.TrimSpace(sb.String())), nil
}

func (s *Server) searchDrafts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) providerStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) getDraftFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DraftFormatContract), nil
}

func (s *Server) readDraftFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     DraftFormatContract,
		},
	}, nil
}
