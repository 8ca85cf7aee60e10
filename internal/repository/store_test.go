package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/ilinovom/feedbot/internal/model"
)

// exerciseStore checks the behaviour every StateStore backend shares.
func exerciseStore(t *testing.T, s StateStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, Key(42)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	d, err := Load(ctx, s, Key(42))
	if err != nil || d.Stage != model.StageStart {
		t.Fatalf("load unknown: %#v %v", d, err)
	}

	run := model.NewRunState(7, 42)
	run.Subscriptions = []string{"https://example.com/feed.xml"}
	if err := s.Save(ctx, Key(42), model.Running(run)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, Key(-5), model.Start()); err != nil {
		t.Fatalf("save start: %v", err)
	}

	got, err := s.Get(ctx, Key(42))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsRun() || got.Run.Owner != 7 || len(got.Run.Subscriptions) != 1 {
		t.Fatalf("unexpected dialogue %#v", got.Run)
	}

	run.Subscriptions = append(run.Subscriptions, "https://example.org/rss")
	if err := s.Save(ctx, Key(42), model.Running(run)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = s.Get(ctx, Key(42))
	if err != nil || len(got.Run.Subscriptions) != 2 {
		t.Fatalf("overwrite not visible: %#v %v", got.Run, err)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if len(keys) != 2 || !seen["42"] || !seen["-5"] {
		t.Fatalf("unexpected keys %v", keys)
	}
}
