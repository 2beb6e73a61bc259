package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/models"
	"github.com/skyboj/obsidian-ai-blogger/internal/provider"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
)

const helpText = `Available commands:

/generate [topic] - create a draft article on the topic. Without a topic I will ask for one.
/drafts - list your drafts. View them or mark them for publication from the list.
/publish [filename] - copy one draft to the ready folder (optional) and publish everything marked.
/status - provider health and your usage.
/help - this message.

Workflow:
1. /generate to create articles.
2. /drafts to review them and mark the good ones.
3. /publish to build and deploy the site.`

func startText(info Info) string {
	name := info.Name
	if name == "" {
		name = "Blogger bot"
	}
	return fmt.Sprintf("👋 Welcome to %s!\n\nI write blog drafts with AI, illustrate them and publish them to your site.\n\n%s", name, helpText)
}

func startupText(info Info) string {
	s := "🤖 Bot started"
	if info.Version != "" {
		s += " (version " + info.Version + ")"
	}
	return s + ". Send /help to see the commands."
}

func generatedText(res generator.Result) string {
	var sb strings.Builder
	sb.WriteString("✅ Article generated!\n\n")
	fmt.Fprintf(&sb, "📝 Title: %s\n", res.Draft.Title)
	fmt.Fprintf(&sb, "💾 File: %s\n", res.Draft.Filename)
	fmt.Fprintf(&sb, "📈 Words: %d\n", res.Stats.Words)
	fmt.Fprintf(&sb, "⏱ Reading time: %s\n", res.Stats.ReadingTimeText)
	if res.AIProvider != "" {
		model := res.AIProvider
		if res.Model != "" {
			model += " / " + res.Model
		}
		fmt.Fprintf(&sb, "🤖 Model: %s\n", model)
	}
	if res.Image != nil {
		fmt.Fprintf(&sb, "🖼 Image: %s\n", res.ImageProvider)
	} else {
		sb.WriteString("🖼 Image: none\n")
	}
	sb.WriteString("\nUse /drafts to review it and mark it for publication.")
	return sb.String()
}

func draftsKeyboard(list []models.Draft) Keyboard {
	kb := make(Keyboard, 0, len(list))
	for i, d := range list {
		status := "📝"
		if d.Publish {
			status = "✅"
		}
		kb = append(kb, []Button{
			{Text: status + " " + d.Title, Data: fmt.Sprintf("view_draft:%d", i)},
			{Text: "Mark for Publication", Data: fmt.Sprintf("mark_publish:%d", i)},
		})
	}
	return kb
}

func writeHealth(sb *strings.Builder, hs []provider.Health) {
	if len(hs) == 0 {
		sb.WriteString("• none configured\n")
		return
	}
	for _, h := range hs {
		icon := "✅"
		if h.Status != provider.StatusHealthy {
			icon = "❌"
		}
		fmt.Fprintf(sb, "%s %s: %s (%s)", icon, h.Name, h.Status, h.ResponseTime.Round(time.Millisecond))
		if h.Error != "" {
			fmt.Fprintf(sb, " - %s", h.Error)
		}
		sb.WriteString("\n")
	}
}

func stepText(r publish.StepResult) string {
	d := r.Duration.Round(100 * time.Millisecond)
	if r.Err != nil {
		return fmt.Sprintf("❌ %s failed after %s: %v", r.Name, d, r.Err)
	}
	return fmt.Sprintf("✅ %s done in %s", r.Name, d)
}
