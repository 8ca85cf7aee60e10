package app

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ilinovom/feedbot/internal/app/cmdHandlers"
	"github.com/ilinovom/feedbot/internal/config"
	"github.com/ilinovom/feedbot/internal/feed"
	"github.com/ilinovom/feedbot/internal/logger"
	"github.com/ilinovom/feedbot/internal/netguard"
	"github.com/ilinovom/feedbot/internal/refresher"
	"github.com/ilinovom/feedbot/internal/repository"
	"github.com/ilinovom/feedbot/internal/service"
	"github.com/ilinovom/feedbot/pkg/telegram"
)

const retryDelay = time.Second

// UpdateSource yields inbound Telegram updates.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int) ([]telegram.Update, error)
}

// App coordinates the update loop and the refresher. They share nothing but
// the state store.
type App struct {
	cfg        *config.Config
	repo       repository.StateStore
	updates    UpdateSource
	cmdHandler *cmdHandlers.CmdHandler
	refresher  *refresher.Refresher
}

func New(cfg *config.Config, repo repository.StateStore) *App {
	tgClient := telegram.NewClient(cfg.TelegramToken, telegram.WithRate(cfg.TelegramRate))

	policy := netguard.DefaultPolicy(net.DefaultResolver.LookupNetIP)
	validator := service.NewSubscriptionValidator(policy, feed.NewClient(cfg.ValidateTimeout, feed.WithPolicy(policy)))
	dialogues := service.NewDialogueService(validator)
	handler := cmdHandlers.NewCmdHandler(dialogues, repo, cmdHandlers.NewAllowlist(cfg.AllowlistFile), tgClient)

	sweeper := refresher.New(repo, feed.NewClient(cfg.FetchTimeout, feed.WithPolicy(policy)), handler, cfg.RefreshInterval, cfg.RefreshWorkers)

	return &App{
		cfg:        cfg,
		repo:       repo,
		updates:    tgClient,
		cmdHandler: handler,
		refresher:  sweeper,
	}
}

// Run serves updates and runs the refresher until ctx is cancelled, SIGINT or
// SIGTERM arrives, or the dispatch path hits a store failure.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.cmdHandler.SetCommands(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.handleUpdates(ctx)
	})
	g.Go(func() error {
		if err := a.refresher.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err := g.Wait()
	logger.Infof("bot stopped")
	return err
}

func (a *App) handleUpdates(ctx context.Context) error {
	offset := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := a.updates.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warnf("get updates: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			if err := a.cmdHandler.HandleMessage(ctx, u.Message); err != nil {
				logger.Errorf("handle message in chat %d: %v", u.Message.Chat.ID, err)
				return err
			}
		}
	}
}
