package feed

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
)

const descriptionLimit = 30

// NewItems returns the items published strictly after since. Items without a
// parseable publication date are skipped.
func NewItems(f *gofeed.Feed, since time.Time) []*gofeed.Item {
	if f == nil {
		return nil
	}
	var out []*gofeed.Item
	for _, item := range f.Items {
		if item == nil || strings.TrimSpace(item.Published) == "" || item.PublishedParsed == nil {
			continue
		}
		if item.PublishedParsed.After(since) {
			out = append(out, item)
		}
	}
	return out
}

// FormatItem renders the notification text for one item.
func FormatItem(item *gofeed.Item) string {
	title := orPlaceholder(item.Title, "<no title>")
	link := orPlaceholder(item.Link, "<no link>")
	description := "<no description>"
	if item.Description != "" {
		description = truncate(item.Description, descriptionLimit)
	}
	return fmt.Sprintf("%s: %s - %s", title, description, link)
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
