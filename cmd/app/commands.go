package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/skyboj/obsidian-ai-blogger/internal"
	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/provider"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
)

// openApp builds the components for a one-shot command. Logs go to stderr
// at warn level so stdout stays readable.
func openApp(ctx context.Context, cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	level := cfg.App.LogLevel
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	} else if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return internal.NewApp(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogger(logger),
	)
}

var verboseFlag = &cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log at debug level"}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a draft article about a topic",
		ArgsUsage: "<topic>",
		Flags: []cli.Flag{
			verboseFlag,
			&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "Prompt template id"},
			&cli.StringFlag{Name: "title", Usage: "Article title (defaults to the topic)"},
			&cli.StringFlag{Name: "ai-provider", Usage: "Preferred AI provider"},
			&cli.StringFlag{Name: "image-provider", Usage: "Preferred image provider"},
			&cli.BoolFlag{Name: "no-image", Usage: "Skip the featured image"},
			&cli.StringSliceFlag{Name: "var", Usage: "Template variable as key=value (repeatable)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			topic := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if topic == "" {
				return errors.New("generate: topic is required")
			}
			vars, err := parseVars(cmd.StringSlice("var"))
			if err != nil {
				return err
			}
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service.Generate(ctx, topic, generator.Options{
				Template:      cmd.String("template"),
				Title:         cmd.String("title"),
				Variables:     vars,
				AIProvider:    cmd.String("ai-provider"),
				ImageProvider: cmd.String("image-provider"),
				SkipImage:     cmd.Bool("no-image"),
			})
			if err != nil {
				return fmt.Errorf("%s: %s", apperr.KindOf(err), apperr.UserMessage(err))
			}
			writeResult(os.Stdout, res)
			return nil
		},
	}
}

func parseVars(list []string) (map[string]string, error) {
	vars := make(map[string]string, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --var %q, want key=value", kv)
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}

func writeResult(w io.Writer, res generator.Result) {
	fmt.Fprintf(w, "Title:    %s\n", res.Draft.Title)
	fmt.Fprintf(w, "File:     %s\n", res.Draft.Path)
	fmt.Fprintf(w, "Words:    %d (%s)\n", res.Stats.Words, res.Stats.ReadingTimeText)
	fmt.Fprintf(w, "Provider: %s / %s\n", res.AIProvider, res.Model)
	if res.Image != nil {
		fmt.Fprintf(w, "Image:    %s (%s)\n", res.Image.URL, res.ImageProvider)
	}
}

func draftsCommand() *cli.Command {
	return &cli.Command{
		Name:  "drafts",
		Usage: "List drafts",
		Flags: []cli.Flag{
			verboseFlag,
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include the ready folder"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			list, err := app.Drafts.List(draft.DraftsDir)
			if cmd.Bool("all") {
				list, err = app.Drafts.ListAll()
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PUBLISH\tPATH\tTITLE\tUPDATED")
			for _, d := range list {
				mark := " "
				if d.Publish {
					mark = "x"
				}
				fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\n", mark, d.Path, d.Title, d.UpdatedAt.Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Copy a draft to the ready folder (optional) and run the publish pipeline",
		ArgsUsage: "[filename]",
		Flags: []cli.Flag{
			verboseFlag,
			&cli.BoolFlag{Name: "mark", Usage: "Mark the draft for publication instead of copying it"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if name := cmd.Args().First(); name != "" {
				if cmd.Bool("mark") {
					d, err := app.Service.MarkPublish(ctx, name)
					if err != nil {
						return err
					}
					fmt.Printf("marked %s for publication\n", d.Path)
				} else {
					target, err := app.Service.PublishDraft(ctx, name)
					if err != nil {
						return err
					}
					fmt.Printf("copied to %s\n", target)
				}
			}

			_, err = app.Pipeline.RunWithProgress(ctx, func(r publish.StepResult) {
				writeStep(os.Stdout, r)
			})
			return err
		},
	}
}

func writeStep(w io.Writer, r publish.StepResult) {
	d := r.Duration.Round(time.Millisecond)
	if r.Err != nil {
		fmt.Fprintf(w, "%s: failed after %s: %v\n", r.Name, d, r.Err)
	} else {
		fmt.Fprintf(w, "%s: ok (%s)\n", r.Name, d)
	}
	if out := strings.TrimSpace(r.Output); out != "" {
		for _, line := range strings.Split(out, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show provider health and draft counts",
		Flags: []cli.Flag{verboseFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			st, err := app.Service.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Println("AI providers:")
			writeHealth(os.Stdout, st.AI)
			fmt.Println("Image providers:")
			writeHealth(os.Stdout, st.Images)
			fmt.Printf("Drafts: %d (%d marked), ready: %d\n", st.Drafts, st.Marked, st.Published)
			return nil
		},
	}
}

func writeHealth(w io.Writer, hs []provider.Health) {
	if len(hs) == 0 {
		fmt.Fprintln(w, "  none configured")
		return
	}
	for _, h := range hs {
		fmt.Fprintf(w, "  %-10s %-12s %s", h.Name, h.Status, h.ResponseTime.Round(time.Millisecond))
		if h.Error != "" {
			fmt.Fprintf(w, "  %s", h.Error)
		}
		fmt.Fprintln(w)
	}
}

func templatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "List prompt templates",
		Flags: []cli.Flag{verboseFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLANGUAGE\tDESCRIPTION")
			for _, t := range app.Prompts.Templates() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Language, t.Description)
			}
			return tw.Flush()
		},
	}
}
