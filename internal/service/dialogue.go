package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ilinovom/feedbot/internal/logger"
	"github.com/ilinovom/feedbot/internal/model"
)

const (
	SubscribeCmd     = "/subscribe"
	UnsubscribeCmd   = "/unsubscribe"
	SubscriptionsCmd = "/subscriptions"
	SaveCmd          = "/save"
)

const (
	msgWelcome          = "Welcome"
	msgInvalidURL       = "invalid url"
	msgAlreadySub       = "already subscribed"
	msgTooManySubs      = "too many subscriptions"
	msgSubscribed       = "subscribed to: %s"
	msgSaved            = "saved!"
	msgInvalidID        = "invalid id"
	msgAlreadySaved     = "already saved"
	msgSubscriptions    = "your subscriptions: \n%s"
	msgRemoved          = "removed"
	msgUnsubscribeUsage = "Usage: /unsubscribe <id>"
)

// URLValidator is satisfied by SubscriptionValidator.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) bool
}

// Input is one inbound text message together with who sent it and where.
type Input struct {
	UserID int64
	ChatID int64
	Text   string
}

// DialogueService implements the per-conversation state machine.
type DialogueService struct {
	validator URLValidator
}

func NewDialogueService(v URLValidator) *DialogueService {
	return &DialogueService{validator: v}
}

// Transition computes the next dialogue and the replies for one message. It
// never touches the store and never mutates d; the caller persists the
// returned dialogue.
//
// The first message of a conversation opens the session, greets the user and
// is then handled as a regular command, so "/subscribe <url>" sent to a fresh
// chat subscribes right away.
func (s *DialogueService) Transition(ctx context.Context, d model.Dialogue, in Input) (model.Dialogue, []string) {
	if !d.IsRun() {
		logger.Infof("new chat: %d", in.ChatID)
		state := model.NewRunState(in.UserID, in.ChatID)
		replies := append([]string{msgWelcome}, s.run(ctx, state, in.Text)...)
		return model.Running(state), replies
	}
	state := d.Run.Clone()
	return model.Running(state), s.run(ctx, state, in.Text)
}

func (s *DialogueService) run(ctx context.Context, state *model.RunState, text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := commandName(fields[0]), fields[1:]

	switch cmd {
	case SubscribeCmd:
		return []string{s.subscribe(ctx, state, args)}
	case SaveCmd:
		return []string{save(state, args)}
	case SubscriptionsCmd:
		return []string{listSubscriptions(state)}
	case UnsubscribeCmd:
		return []string{unsubscribe(state, args)}
	default:
		return nil
	}
}

func (s *DialogueService) subscribe(ctx context.Context, state *model.RunState, args []string) string {
	if len(args) == 0 {
		logger.Debugf("%d> invalid url: <empty>", state.ChatID)
		return msgInvalidURL
	}
	url := args[0]
	if !s.validator.Validate(ctx, url) {
		logger.Debugf("%d> invalid url: %s", state.ChatID, url)
		return msgInvalidURL
	}
	switch err := state.AddSubscription(url); {
	case errors.Is(err, model.ErrAlreadySubscribed):
		logger.Debugf("%d> already subscribed: %s", state.ChatID, url)
		return msgAlreadySub
	case errors.Is(err, model.ErrTooManySubscriptions):
		logger.Debugf("%d> too many subscriptions, cannot subscribe: %s", state.ChatID, url)
		return msgTooManySubs
	case err != nil:
		logger.Errorf("%d> subscribe %s: %v", state.ChatID, url, err)
		return msgInvalidURL
	}
	logger.Debugf("%d> subscribed to: %s", state.ChatID, url)
	return fmt.Sprintf(msgSubscribed, url)
}

func save(state *model.RunState, args []string) string {
	if len(args) == 0 {
		return msgInvalidID
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return msgInvalidID
	}
	switch err := state.SaveMessage(id); {
	case errors.Is(err, model.ErrAlreadySaved):
		return msgAlreadySaved
	case err != nil:
		return msgInvalidID
	}
	return msgSaved
}

func listSubscriptions(state *model.RunState) string {
	lines := make([]string, len(state.Subscriptions))
	for i, u := range state.Subscriptions {
		lines[i] = fmt.Sprintf("%d: %s", i, u)
	}
	return fmt.Sprintf(msgSubscriptions, strings.Join(lines, "\n"))
}

func unsubscribe(state *model.RunState, args []string) string {
	if len(args) == 0 {
		return msgUnsubscribeUsage
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return msgUnsubscribeUsage
	}
	removed, err := state.RemoveSubscription(idx)
	if err != nil {
		logger.Debugf("%d> unsubscribe: %v", state.ChatID, err)
		return msgUnsubscribeUsage
	}
	logger.Debugf("%d> unsubscribed from: %s", state.ChatID, removed)
	return msgRemoved
}

// commandName strips a trailing "@botname" so group-chat commands match.
func commandName(s string) string {
	if i := strings.IndexByte(s, '@'); i > 0 {
		return s[:i]
	}
	return s
}
