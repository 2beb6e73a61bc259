package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Telegram sends and receives through the Telegram Bot API. Outgoing calls
// share one rate limiter to stay under the API's global send limit.
type Telegram struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	timeout int
	logger  *slog.Logger
}

// NewTelegram authorises token and returns the transport. sendRate is the
// number of outgoing calls allowed per second.
func NewTelegram(token string, sendRate float64, pollTimeout int, logger *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: connect to telegram: %w", err)
	}
	if sendRate <= 0 {
		sendRate = 25
	}
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("bot: authorized", slog.String("username", api.Self.UserName))
	return &Telegram{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(sendRate), int(sendRate)+1),
		timeout: pollTimeout,
		logger:  logger,
	}, nil
}

// Username returns the bot's username.
func (t *Telegram) Username() string { return t.api.Self.UserName }

func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return t.api.Send(c)
}

func (t *Telegram) request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.api.Request(c)
	return err
}

// Send posts a text message and returns its id.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = opts.DisableWebPagePreview
	if len(opts.Keyboard) > 0 {
		msg.ReplyMarkup = markup(opts.Keyboard)
	}
	sent, err := t.send(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("bot: send: %w", err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text of a sent message.
func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := t.send(ctx, edit); err != nil {
		return fmt.Errorf("bot: edit: %w", err)
	}
	return nil
}

// EditKeyboard replaces the inline keyboard of a sent message.
func (t *Telegram) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb Keyboard) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup(kb))
	if _, err := t.send(ctx, edit); err != nil {
		return fmt.Errorf("bot: edit keyboard: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if err := t.request(ctx, cb); err != nil {
		return fmt.Errorf("bot: answer callback: %w", err)
	}
	return nil
}

// SetCommands registers the bot menu.
func (t *Telegram) SetCommands(ctx context.Context, cmds []Command) error {
	list := make([]tgbotapi.BotCommand, len(cmds))
	for i, c := range cmds {
		list[i] = tgbotapi.BotCommand{Command: c.Command, Description: c.Description}
	}
	if err := t.request(ctx, tgbotapi.NewSetMyCommands(list...)); err != nil {
		return fmt.Errorf("bot: set commands: %w", err)
	}
	return nil
}

// Updates long-polls Telegram and converts updates until ctx is done.
func (t *Telegram) Updates(ctx context.Context) <-chan Update {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.timeout
	u.AllowedUpdates = []string{"message", "callback_query"}
	in := t.api.GetUpdatesChan(u)

	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return
			case upd, ok := <-in:
				if !ok {
					return
				}
				conv, ok := convert(upd)
				if !ok {
					continue
				}
				select {
				case out <- conv:
				case <-ctx.Done():
					t.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

func convert(upd tgbotapi.Update) (Update, bool) {
	switch {
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.Message == nil || q.From == nil {
			return Update{}, false
		}
		return Update{Callback: &Callback{
			ID:        q.ID,
			ChatID:    q.Message.Chat.ID,
			MessageID: q.Message.MessageID,
			UserID:    q.From.ID,
			Data:      q.Data,
		}}, true
	case upd.Message != nil:
		m := upd.Message
		if m.From == nil || m.Chat == nil {
			return Update{}, false
		}
		msg := &Message{
			ChatID:   m.Chat.ID,
			UserID:   m.From.ID,
			Username: m.From.UserName,
			Text:     m.Text,
		}
		if m.IsCommand() {
			msg.Command = m.Command()
			msg.Args = m.CommandArguments()
		}
		return Update{Message: msg}, true
	}
	return Update{}, false
}

func markup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
