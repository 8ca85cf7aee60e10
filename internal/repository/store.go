package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ilinovom/feedbot/internal/model"
)

var (
	// ErrNotFound is returned by Get for a conversation that was never saved.
	ErrNotFound = errors.New("dialogue not found")
	// ErrCorrupt wraps values that cannot be decoded into a Dialogue.
	ErrCorrupt = errors.New("dialogue value is corrupt")
)

// StateStore persists one Dialogue per conversation key.
type StateStore interface {
	Keys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) (model.Dialogue, error)
	Save(ctx context.Context, key string, d model.Dialogue) error
	Close() error
}

// Key returns the store key of a chat.
func Key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// Load returns the stored dialogue or Start when the key is unknown.
func Load(ctx context.Context, s StateStore, key string) (model.Dialogue, error) {
	d, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return model.Start(), nil
	}
	return d, err
}

func decode(key string, b []byte) (model.Dialogue, error) {
	d, err := model.Decode(b)
	if err != nil {
		return model.Dialogue{}, fmt.Errorf("%w: key %s: %v", ErrCorrupt, key, err)
	}
	return d, nil
}
