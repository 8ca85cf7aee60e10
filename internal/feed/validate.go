package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// ErrInvalidFeed marks a feed that parsed but breaks its schema.
var ErrInvalidFeed = errors.New("invalid feed")

// Validate performs the structural checks a subscription needs: a known feed
// type, a channel title, items that carry a title or a description, and
// publication dates that parse when present.
func Validate(f *gofeed.Feed) error {
	if f == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidFeed)
	}
	switch f.FeedType {
	case "rss", "atom", "json":
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidFeed, f.FeedType)
	}
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidFeed)
	}
	for i, item := range f.Items {
		if item == nil {
			return fmt.Errorf("%w: item %d is empty", ErrInvalidFeed, i)
		}
		if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("%w: item %d has neither title nor description", ErrInvalidFeed, i)
		}
		if strings.TrimSpace(item.Published) != "" && item.PublishedParsed == nil {
			return fmt.Errorf("%w: item %d has unparseable date %q", ErrInvalidFeed, i, item.Published)
		}
	}
	return nil
}
