package cmdHandlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ilinovom/feedbot/internal/logger"
	"github.com/ilinovom/feedbot/internal/repository"
	"github.com/ilinovom/feedbot/internal/service"
	"github.com/ilinovom/feedbot/pkg/telegram"
)

const (
	msgNotAllowed = "Not allowed"
	msgSendText   = "Send me a text message."
)

// ErrStore marks a state store failure on the dispatch path. The update loop
// stops on it.
var ErrStore = errors.New("state store failure")

// Sender is the part of the Telegram client the handler needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	SetCommands(ctx context.Context, commands []telegram.BotCommand) error
}

type CmdHandler struct {
	tgClient  Sender
	dialogues *service.DialogueService
	store     repository.StateStore
	allowlist *Allowlist
}

func NewCmdHandler(dialogues *service.DialogueService, store repository.StateStore, allowlist *Allowlist, tgClient Sender) *CmdHandler {
	return &CmdHandler{
		tgClient:  tgClient,
		dialogues: dialogues,
		store:     store,
		allowlist: allowlist,
	}
}

// HandleMessage runs one inbound message through the allow-list and the
// dialogue state machine, persists the new state and sends the replies.
// Only store failures are returned; they wrap ErrStore.
func (c *CmdHandler) HandleMessage(ctx context.Context, m *telegram.Message) error {
	if m.From == nil || !c.allowlist.Allowed(m.From.ID) {
		if m.From != nil {
			logger.Warnf("user %d(@%s) is not allowed", m.From.ID, m.From.Username)
		}
		c.sendMessage(ctx, m.Chat.ID, msgNotAllowed)
		return nil
	}
	logger.Infof("started on chat_id: %d", m.Chat.ID)

	if m.Text == "" {
		c.sendMessage(ctx, m.Chat.ID, msgSendText)
		return nil
	}
	if cmd := commandOf(m.Text); cmd != "" {
		logger.Infof("user %d(@%s) called %s", m.From.ID, m.From.Username, cmd)
	}

	key := repository.Key(m.Chat.ID)
	d, err := repository.Load(ctx, c.store, key)
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrStore, key, err)
	}

	next, replies := c.dialogues.Transition(ctx, d, service.Input{
		UserID: m.From.ID,
		ChatID: m.Chat.ID,
		Text:   m.Text,
	})
	if err := c.store.Save(ctx, key, next); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrStore, key, err)
	}

	for _, reply := range replies {
		if err := c.sendLongMessage(ctx, m.Chat.ID, reply); err != nil {
			break
		}
	}
	return nil
}

// Send delivers a feed notification; it makes the handler usable as the
// refresher's notifier.
func (c *CmdHandler) Send(ctx context.Context, chatID int64, text string) error {
	return c.sendLongMessage(ctx, chatID, text)
}

// sendMessage is a small wrapper around the Telegram client that logs failures
// but still returns the message ID to the caller.
func (c *CmdHandler) sendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	msgID, err := c.tgClient.SendMessage(ctx, chatID, text)
	if err != nil {
		logger.Errorf("telegram send message: %v\ntext: %s", err, text)
	}
	return msgID, err
}

// sendLongMessage splits a long message into several Telegram messages so that
// each part fits into the platform's limit.
func (c *CmdHandler) sendLongMessage(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text, telegram.MaxMessageLength) {
		if _, err := c.sendMessage(ctx, chatID, part); err != nil {
			return err
		}
	}
	return nil
}

// SetCommands registers the list of bot commands with Telegram so that users
// see available commands in the UI.
func (c *CmdHandler) SetCommands(ctx context.Context) {
	cmds := []telegram.BotCommand{
		{Command: strings.TrimPrefix(service.SubscribeCmd, "/"), Description: "Subscribe to a feed: /subscribe <url>"},
		{Command: strings.TrimPrefix(service.SubscriptionsCmd, "/"), Description: "List your subscriptions"},
		{Command: strings.TrimPrefix(service.UnsubscribeCmd, "/"), Description: "Remove a subscription: /unsubscribe <id>"},
		{Command: strings.TrimPrefix(service.SaveCmd, "/"), Description: "Save a message: /save <id>"},
	}
	if err := c.tgClient.SetCommands(ctx, cmds); err != nil {
		logger.Errorf("set commands: %v", err)
	}
}
