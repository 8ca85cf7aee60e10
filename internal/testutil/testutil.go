// Package testutil serves canned feeds to tests without opening sockets.
package testutil

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// FeedTransport is an http.RoundTripper answering from an in-memory table.
// Unknown URLs fail like an unreachable host.
type FeedTransport struct {
	mu     sync.RWMutex
	bodies map[string]string
	status map[string]int
	calls  atomic.Int64
}

func NewFeedTransport() *FeedTransport {
	return &FeedTransport{bodies: map[string]string{}, status: map[string]int{}}
}

// Serve registers body for url with status 200.
func (t *FeedTransport) Serve(url, body string) {
	t.ServeStatus(url, http.StatusOK, body)
}

// ServeStatus registers body and status for url.
func (t *FeedTransport) ServeStatus(url string, status int, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bodies[url] = body
	t.status[url] = status
}

// Calls returns how many requests reached the transport.
func (t *FeedTransport) Calls() int {
	return int(t.calls.Load())
}

func (t *FeedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	t.mu.RLock()
	body, ok := t.bodies[req.URL.String()]
	status := t.status[req.URL.String()]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", req.URL.Host)
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": []string{"application/rss+xml"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

// RSSItem describes one <item>. Empty fields are omitted from the document.
type RSSItem struct {
	Title       string
	Link        string
	GUID        string
	PubDate     string
	Description string
}

// RSSXML builds a minimal RSS 2.0 document.
func RSSXML(title string, items []RSSItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<rss version="2.0"><channel>`)
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(title))
	b.WriteString("<link>https://example.com/</link>")
	b.WriteString("<description>Test feed</description>")
	for _, item := range items {
		b.WriteString("<item>")
		writeElem(&b, "title", item.Title)
		writeElem(&b, "link", item.Link)
		writeElem(&b, "guid", item.GUID)
		writeElem(&b, "pubDate", item.PubDate)
		if item.Description != "" {
			fmt.Fprintf(&b, "<description><![CDATA[%s]]></description>", item.Description)
		}
		b.WriteString("</item>")
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func writeElem(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<%s>%s</%s>", name, html.EscapeString(value), name)
}
