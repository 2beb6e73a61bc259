// Package bot implements the Telegram command surface: generating drafts,
// reviewing them, marking them for publication and running the publish
// pipeline.
package bot

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/models"
	"github.com/skyboj/obsidian-ai-blogger/internal/provider"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
)

const stateWaitingForTopic = "waiting_for_topic"

// Generator creates drafts from topics.
type Generator interface {
	Generate(ctx context.Context, topic string, opts generator.Options) (generator.Result, error)
}

// Drafts is the part of the draft store the bot uses.
type Drafts interface {
	List(subfolder string) ([]models.Draft, error)
	Read(rel string) (models.Draft, error)
	MarkPublish(filename string) (map[string]any, error)
	Publish(filename string) (string, error)
}

// Pipeline runs the publication steps and reports each one.
type Pipeline interface {
	RunWithProgress(ctx context.Context, fn func(publish.StepResult)) (publish.Log, error)
}

// HealthReporter probes a provider manager.
type HealthReporter interface {
	Health(ctx context.Context) []provider.Health
}

// Previewer publishes a readable preview of a draft and returns its URL.
type Previewer interface {
	Preview(ctx context.Context, title, markdown string) (string, error)
}

// Recorder receives bot metrics.
type Recorder interface {
	RecordCommand(name string)
	RecordRateLimited(reason string)
	RecordPublish(ok bool)
}

// Deps are the collaborators of a Bot. Pipeline, Preview, Images and
// Metrics are optional.
type Deps struct {
	Messenger Messenger
	Limiter   *ratelimit.Limiter
	Generator Generator
	Drafts    Drafts
	Pipeline  Pipeline
	Preview   Previewer
	AI        HealthReporter
	Images    HealthReporter
	Metrics   Recorder
	Logger    *slog.Logger
}

// Info identifies the bot in /start and /status.
type Info struct {
	Name      string
	Version   string
	Admins    []int64
	Commands  []Command
	Variables map[string]string // passed to every generation
}

// Bot dispatches updates to command handlers.
type Bot struct {
	Deps
	info Info

	mu     sync.Mutex
	states map[int64]string
	drafts map[int64][]models.Draft

	wg sync.WaitGroup
}

// New creates a bot.
func New(deps Deps, info Info) *Bot {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Bot{
		Deps:   deps,
		info:   info,
		states: map[int64]string{},
		drafts: map[int64][]models.Draft{},
	}
}

// Start registers the command menu and greets the admins.
func (b *Bot) Start(ctx context.Context) {
	if len(b.info.Commands) > 0 {
		if err := b.Messenger.SetCommands(ctx, b.info.Commands); err != nil {
			b.Logger.Warn("bot: set commands", slog.String("error", err.Error()))
		}
	}
	for _, id := range b.info.Admins {
		if _, err := b.Messenger.Send(ctx, id, startupText(b.info), SendOptions{}); err != nil {
			b.Logger.Warn("bot: startup notice", slog.Int64("chat_id", id), slog.String("error", err.Error()))
		}
	}
}

// Run handles updates from src until ctx is done, then waits for the
// handlers still in flight.
func (b *Bot) Run(ctx context.Context, src Source) error {
	b.Start(ctx)
	updates := src.Updates(ctx)
	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			return nil
		case upd, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.Handle(ctx, upd)
			}()
		}
	}
}

// Handle processes one update.
func (b *Bot) Handle(ctx context.Context, upd Update) {
	switch {
	case upd.Callback != nil:
		b.HandleCallback(ctx, *upd.Callback)
	case upd.Message != nil:
		b.HandleMessage(ctx, *upd.Message)
	}
}

func (b *Bot) authorized(userID int64) bool {
	return slices.Contains(b.info.Admins, userID)
}

func (b *Bot) setState(userID int64, state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state == "" {
		delete(b.states, userID)
		return
	}
	b.states[userID] = state
}

func (b *Bot) state(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[userID]
}

func (b *Bot) cacheDrafts(userID int64, list []models.Draft) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drafts[userID] = list
}

func (b *Bot) cachedDraft(userID int64, i int) (models.Draft, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.drafts[userID]
	if i < 0 || i >= len(list) {
		return models.Draft{}, false
	}
	return list[i], true
}

func (b *Bot) markCached(userID int64, i int) Keyboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.drafts[userID]
	if i >= 0 && i < len(list) {
		list[i].Publish = true
	}
	return draftsKeyboard(list)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) int {
	id, err := b.Messenger.Send(ctx, chatID, text, SendOptions{DisableWebPagePreview: true})
	if err != nil {
		b.Logger.Error("bot: send failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
	return id
}

// draftsDir is the subfolder listed by /drafts.
const draftsDir = draft.DraftsDir
