package publish

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
)

// StepConfig describes an external command step in configuration.
type StepConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
}

// CommandStep runs an external program and captures its combined output.
type CommandStep struct {
	StepName string
	Command  string
	Args     []string
	Dir      string
	Env      []string
}

// NewCommandStep builds a CommandStep from configuration.
func NewCommandStep(c StepConfig) CommandStep {
	name := c.Name
	if name == "" {
		name = c.Command
	}
	return CommandStep{StepName: name, Command: c.Command, Args: c.Args, Dir: c.Dir}
}

func (s CommandStep) Name() string { return s.StepName }

func (s CommandStep) Run(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	// Children that inherit the output pipe must not keep Wait blocked after a kill.
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("%s: %w", s.Command, err)
	}
	return text, nil
}

// Syncer copies drafts marked for publication into the ready folder.
type Syncer interface {
	SyncReady() (draft.SyncResult, error)
}

// SyncStep runs the draft store sync.
type SyncStep struct {
	Store Syncer
}

func (SyncStep) Name() string { return "sync" }

func (s SyncStep) Run(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := s.Store.SyncReady()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("copied %d, skipped %d", len(res.Copied), len(res.Skipped)), nil
}

// BlogSyncer copies ready articles into the external blog folder.
type BlogSyncer interface {
	SyncBlog() (draft.SyncResult, error)
}

// BlogStep runs BlogSyncer.SyncBlog.
type BlogStep struct {
	Store BlogSyncer
}

func (BlogStep) Name() string { return "blog" }

func (s BlogStep) Run(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := s.Store.SyncBlog()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("copied %d, skipped %d", len(res.Copied), len(res.Skipped)), nil
}

// Build assembles the standard pipeline: a sync step followed by the
// configured command steps.
func Build(store Syncer, steps []StepConfig, opts ...Option) *Pipeline {
	all := make([]Step, 0, len(steps)+1)
	if store != nil {
		all = append(all, SyncStep{Store: store})
	}
	for _, c := range steps {
		all = append(all, NewCommandStep(c))
	}
	return NewPipeline(all, opts...)
}
