// Package refresher periodically polls every subscribed feed and pushes new
// items to the owning chats.
package refresher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/ilinovom/feedbot/internal/feed"
	"github.com/ilinovom/feedbot/internal/logger"
	"github.com/ilinovom/feedbot/internal/model"
	"github.com/ilinovom/feedbot/internal/repository"
)

const (
	DefaultInterval = 15 * time.Minute
	DefaultWorkers  = 4
)

// Fetcher downloads and parses one feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

// Notifier delivers a text message to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Stats summarizes one sweep.
type Stats struct {
	Conversations int64
	Skipped       int64
	Feeds         int64
	FailedFeeds   int64
	Sent          int64
	FailedSends   int64
}

// Refresher owns the sweep loop. Only one sweep runs at a time; items are
// compared against a single cursor set at the end of the previous sweep.
type Refresher struct {
	store    repository.StateStore
	fetcher  Fetcher
	notifier Notifier
	interval time.Duration
	workers  int
	now      func() time.Time

	lastRun time.Time
}

func New(store repository.StateStore, fetcher Fetcher, notifier Notifier, interval time.Duration, workers int) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	r := &Refresher{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		interval: interval,
		workers:  workers,
		now:      time.Now,
	}
	r.lastRun = r.now()
	return r
}

// LastRun returns the cursor the next sweep compares against.
func (r *Refresher) LastRun() time.Time {
	return r.lastRun
}

// Run sweeps, sleeps for the interval and repeats until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	logger.Infof("refresher running, interval %s, %d workers", r.interval, r.workers)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("refresher stopped")
			return ctx.Err()
		case <-timer.C:
		}

		start := time.Now()
		stats := r.Sweep(ctx)
		logger.Infof("sweep done in %s: conversations=%d skipped=%d feeds=%d failed_feeds=%d sent=%d failed_sends=%d",
			time.Since(start).Round(time.Millisecond), stats.Conversations, stats.Skipped, stats.Feeds, stats.FailedFeeds, stats.Sent, stats.FailedSends)

		timer.Reset(r.interval)
	}
}

// Sweep processes every stored conversation once and then advances the
// cursor. A failure in one conversation or one feed never aborts the rest.
func (r *Refresher) Sweep(ctx context.Context) Stats {
	var stats Stats
	since := r.lastRun

	keys, err := r.store.Keys(ctx)
	if err != nil {
		logger.Errorf("cannot retrieve keys from store: %v", err)
		return stats
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		key := key
		g.Go(func() error {
			r.refreshKey(ctx, key, since, &stats)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		r.lastRun = r.now()
	}
	return stats
}

func (r *Refresher) refreshKey(ctx context.Context, key string, since time.Time, stats *Stats) {
	defer func() {
		if p := recover(); p != nil {
			atomic.AddInt64(&stats.Skipped, 1)
			logger.Errorf("refresh panic for %s: %v", key, p)
		}
	}()

	d, err := r.store.Get(ctx, key)
	if err != nil {
		atomic.AddInt64(&stats.Skipped, 1)
		logger.Errorf("refresh error for %s: %v", key, err)
		return
	}
	if !d.IsRun() {
		atomic.AddInt64(&stats.Skipped, 1)
		logger.Debugf("refresh skipped for %s: stage %s", key, d.Stage)
		return
	}

	atomic.AddInt64(&stats.Conversations, 1)
	r.refresh(ctx, d.Run, since, stats)
	logger.Infof("refreshed for: %s", key)
}

// refresh walks the subscriptions of one conversation sequentially.
func (r *Refresher) refresh(ctx context.Context, state *model.RunState, since time.Time, stats *Stats) {
	for _, url := range state.Subscriptions {
		if ctx.Err() != nil {
			return
		}
		atomic.AddInt64(&stats.Feeds, 1)
		f, err := r.fetcher.Fetch(ctx, url)
		if err != nil {
			atomic.AddInt64(&stats.FailedFeeds, 1)
			logger.Errorf("error refreshing %s for chat_id %d: %v", url, state.ChatID, err)
			continue
		}
		for _, item := range feed.NewItems(f, since) {
			if err := r.notifier.Send(ctx, state.ChatID, feed.FormatItem(item)); err != nil {
				atomic.AddInt64(&stats.FailedSends, 1)
				logger.Errorf("error sending to chat_id %d: %v", state.ChatID, err)
				continue
			}
			atomic.AddInt64(&stats.Sent, 1)
			logger.Debugf("sent <%s> to <%d>", item.Link, state.ChatID)
		}
	}
}
