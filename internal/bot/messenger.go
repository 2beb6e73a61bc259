package bot

import "context"

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, row by row.
type Keyboard [][]Button

// SendOptions control how a message is rendered.
type SendOptions struct {
	Keyboard              Keyboard
	DisableWebPagePreview bool
}

// Command is a bot menu entry.
type Command struct {
	Command     string `yaml:"command"`
	Description string `yaml:"description"`
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	SetCommands(ctx context.Context, cmds []Command) error
}

// Message is an incoming text message. Command and Args are set for
// "/command args" messages.
type Message struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
	Command  string
	Args     string
}

// Callback is an inline button press.
type Callback struct {
	ID        string
	ChatID    int64
	MessageID int
	UserID    int64
	Data      string
}

// Update carries exactly one of Message or Callback.
type Update struct {
	Message  *Message
	Callback *Callback
}

// Source delivers incoming updates until ctx is done.
type Source interface {
	Updates(ctx context.Context) <-chan Update
}
