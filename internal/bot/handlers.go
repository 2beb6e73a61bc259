package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
	"github.com/skyboj/obsidian-ai-blogger/internal/telegraph"
)

const (
	previewChars = 600
	maxListed    = 20
)

// HandleMessage authorises, rate-limits and dispatches a text message.
func (b *Bot) HandleMessage(ctx context.Context, m Message) {
	log := b.Logger.With(slog.Int64("user_id", m.UserID), slog.String("command", m.Command))
	if !b.authorized(m.UserID) {
		log.Warn("bot: unauthorized user", slog.String("username", m.Username))
		b.send(ctx, m.ChatID, "Access denied. This bot is private.")
		return
	}
	if wait, ok := b.allow(log, m.UserID); !ok {
		b.send(ctx, m.ChatID, fmt.Sprintf("Rate limit exceeded. Please try again in %s.", wait))
		return
	}

	if m.Command == "" {
		if b.state(m.UserID) == stateWaitingForTopic {
			b.generate(ctx, m, m.Text)
			return
		}
		b.send(ctx, m.ChatID, "Send /help to see the available commands.")
		return
	}

	if b.Metrics != nil {
		b.Metrics.RecordCommand(m.Command)
	}
	switch m.Command {
	case "start":
		b.send(ctx, m.ChatID, startText(b.info))
	case "help":
		b.send(ctx, m.ChatID, helpText)
	case "generate":
		b.generate(ctx, m, m.Args)
	case "drafts":
		b.listDrafts(ctx, m)
	case "publish":
		b.publish(ctx, m, strings.TrimSpace(m.Args))
	case "status":
		b.status(ctx, m)
	default:
		b.send(ctx, m.ChatID, "Unknown command. Send /help to see the available commands.")
	}
}

func (b *Bot) generate(ctx context.Context, m Message, topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		b.setState(m.UserID, stateWaitingForTopic)
		b.send(ctx, m.ChatID, "Please send the topic for the article.\nFor example: /generate Best places to visit in Europe")
		return
	}
	b.setState(m.UserID, "")

	statusID := b.send(ctx, m.ChatID, fmt.Sprintf("⏳ Generating an article about %q. This may take a few minutes.", topic))
	res, err := b.Generator.Generate(ctx, topic, generator.Options{Variables: b.info.Variables})
	if err != nil {
		b.Logger.Error("bot: generation failed",
			slog.Int64("user_id", m.UserID),
			slog.String("topic", topic),
			slog.String("kind", string(apperr.KindOf(err))),
			slog.String("error", err.Error()),
		)
		b.reply(ctx, m.ChatID, statusID, fmt.Sprintf("❌ Generation failed: %s.", apperr.UserMessage(err)))
		return
	}
	b.reply(ctx, m.ChatID, statusID, generatedText(res))
}

// reply edits the status message when there is one, otherwise sends anew.
func (b *Bot) reply(ctx context.Context, chatID int64, messageID int, text string) {
	if messageID != 0 {
		if err := b.Messenger.Edit(ctx, chatID, messageID, text); err == nil {
			return
		}
	}
	b.send(ctx, chatID, text)
}

func (b *Bot) listDrafts(ctx context.Context, m Message) {
	list, err := b.Drafts.List(draftsDir)
	if err != nil {
		b.Logger.Error("bot: list drafts", slog.String("error", err.Error()))
		b.send(ctx, m.ChatID, "❌ Could not read the drafts.")
		return
	}
	if len(list) > maxListed {
		list = list[:maxListed]
	}
	b.cacheDrafts(m.UserID, list)
	if len(list) == 0 {
		b.send(ctx, m.ChatID, "You have no drafts yet.")
		return
	}
	if _, err := b.Messenger.Send(ctx, m.ChatID, "Here is the list of your drafts:", SendOptions{Keyboard: draftsKeyboard(list)}); err != nil {
		b.Logger.Error("bot: send drafts", slog.String("error", err.Error()))
	}
}

func (b *Bot) publish(ctx context.Context, m Message, filename string) {
	if filename != "" {
		target, err := b.Drafts.Publish(filename)
		if err != nil {
			b.Logger.Error("bot: publish draft",
				slog.Int64("user_id", m.UserID),
				slog.String("file", filename),
				slog.String("kind", string(apperr.KindOf(err))),
				slog.String("error", err.Error()),
			)
			if apperr.KindOf(err) == apperr.KindDraftNotFound {
				b.send(ctx, m.ChatID, fmt.Sprintf("❌ Draft not found: %s", filename))
			} else {
				b.send(ctx, m.ChatID, fmt.Sprintf("❌ Could not publish %s.", filename))
			}
			return
		}
		b.send(ctx, m.ChatID, fmt.Sprintf("📄 %s copied to the ready folder.", target))
	}
	if b.Pipeline == nil {
		return
	}

	b.send(ctx, m.ChatID, "🚀 Publication started...")
	_, err := b.Pipeline.RunWithProgress(ctx, func(r publish.StepResult) {
		b.send(ctx, m.ChatID, stepText(r))
	})
	if b.Metrics != nil {
		b.Metrics.RecordPublish(err == nil)
	}
	if err != nil {
		b.Logger.Error("bot: publish pipeline", slog.Int64("user_id", m.UserID), slog.String("error", err.Error()))
		b.send(ctx, m.ChatID, "❌ Publication failed. See the step output above.")
		return
	}
	b.send(ctx, m.ChatID, "🎉 Site built and published!")
}

func (b *Bot) status(ctx context.Context, m Message) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %s status\n", b.info.Name)
	if b.AI != nil {
		sb.WriteString("\nAI providers:\n")
		writeHealth(&sb, b.AI.Health(ctx))
	}
	if b.Images != nil {
		sb.WriteString("\nImage providers:\n")
		writeHealth(&sb, b.Images.Health(ctx))
	}
	if b.Limiter != nil {
		st := b.Limiter.Stats(m.UserID)
		fmt.Fprintf(&sb, "\nYour usage:\n• this hour: %d/%d\n• today: %d/%d\n",
			st.HourlyRequests, st.HourlyLimit, st.DailyRequests, st.DailyLimit)
	}
	b.send(ctx, m.ChatID, strings.TrimRight(sb.String(), "\n"))
}

// allow applies the limiter to userID. On rejection it returns the wait as
// display text.
func (b *Bot) allow(log *slog.Logger, userID int64) (string, bool) {
	if b.Limiter == nil {
		return "", true
	}
	d := b.Limiter.Allow(userID)
	if d.Allowed {
		return "", true
	}
	log.Warn("bot: rate limited", slog.String("reason", d.Reason), slog.Duration("reset_in", d.ResetIn))
	if b.Metrics != nil {
		b.Metrics.RecordRateLimited(d.Reason)
	}
	return ratelimit.FormatWaitTime(d.ResetIn), false
}

// HandleCallback authorises, rate-limits and processes an inline button press.
func (b *Bot) HandleCallback(ctx context.Context, c Callback) {
	log := b.Logger.With(slog.Int64("user_id", c.UserID), slog.String("callback", c.Data))
	if !b.authorized(c.UserID) {
		log.Warn("bot: unauthorized callback")
		b.answer(ctx, c.ID, "Access denied.", true)
		return
	}
	if wait, ok := b.allow(log, c.UserID); !ok {
		b.answer(ctx, c.ID, fmt.Sprintf("Rate limit exceeded. Please try again in %s.", wait), true)
		return
	}
	action, idx, ok := parseCallback(c.Data)
	if !ok {
		b.answer(ctx, c.ID, "", false)
		return
	}
	switch action {
	case "view_draft":
		b.viewDraft(ctx, c, idx)
		b.answer(ctx, c.ID, "", false)
	case "mark_publish":
		b.markPublish(ctx, c, idx)
	default:
		b.answer(ctx, c.ID, "", false)
	}
}

func parseCallback(data string) (string, int, bool) {
	action, rawIdx, found := strings.Cut(data, ":")
	if !found {
		return "", 0, false
	}
	idx, err := strconv.Atoi(rawIdx)
	if err != nil {
		return "", 0, false
	}
	return action, idx, true
}

func (b *Bot) viewDraft(ctx context.Context, c Callback, idx int) {
	cached, ok := b.cachedDraft(c.UserID, idx)
	if !ok {
		b.send(ctx, c.ChatID, "Draft not found. Please run /drafts again.")
		return
	}
	d, err := b.Drafts.Read(cached.Path)
	if err != nil {
		b.Logger.Error("bot: read draft", slog.String("path", cached.Path), slog.String("error", err.Error()))
		b.send(ctx, c.ChatID, "Draft not found. Please run /drafts again.")
		return
	}

	text := telegraph.TextPreview(d.Body, previewChars)
	if b.Preview != nil {
		u, err := b.Preview.Preview(ctx, d.Title, d.Body)
		if err == nil && u != "" {
			b.send(ctx, c.ChatID, fmt.Sprintf("📖 %s\n\n🔗 Read the full article: %s\n\n📝 Preview:\n%s", d.Title, u, text))
			return
		}
		if err != nil {
			b.Logger.Warn("bot: telegraph preview failed", slog.String("error", err.Error()))
		}
	}
	b.send(ctx, c.ChatID, fmt.Sprintf("📖 %s\n\n%s\n\n(Telegraph preview unavailable)", d.Title, text))
}

func (b *Bot) markPublish(ctx context.Context, c Callback, idx int) {
	d, ok := b.cachedDraft(c.UserID, idx)
	if !ok {
		b.answer(ctx, c.ID, "Draft not found. Please run /drafts again.", true)
		return
	}
	if d.Publish {
		b.answer(ctx, c.ID, "Already marked for publication.", false)
		return
	}
	if _, err := b.Drafts.MarkPublish(d.Path); err != nil {
		b.Logger.Error("bot: mark for publication", slog.String("path", d.Path), slog.String("error", err.Error()))
		b.answer(ctx, c.ID, "Failed to mark the draft for publication.", true)
		return
	}
	kb := b.markCached(c.UserID, idx)
	if err := b.Messenger.EditKeyboard(ctx, c.ChatID, c.MessageID, kb); err != nil {
		b.Logger.Warn("bot: refresh keyboard", slog.String("error", err.Error()))
	}
	b.answer(ctx, c.ID, fmt.Sprintf("✅ %s marked for publication.", d.Title), false)
}

func (b *Bot) answer(ctx context.Context, id, text string, alert bool) {
	if err := b.Messenger.AnswerCallback(ctx, id, text, alert); err != nil {
		b.Logger.Warn("bot: answer callback", slog.String("error", err.Error()))
	}
}
