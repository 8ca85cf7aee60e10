// Package feed fetches and inspects syndication feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ilinovom/feedbot/internal/netguard"
)

const (
	DefaultTimeout = 5 * time.Second
	userAgent      = "feedbot/1.0 (+https://github.com/ilinovom/feedbot)"
	maxBodyBytes   = 8 << 20
	maxRedirects   = 5
)

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("feed fetch failed")
	// ErrParse means the body is not a recognizable feed.
	ErrParse = errors.New("feed parse failed")
)

// Client performs bounded GET requests and parses the body with gofeed.
type Client struct {
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the round tripper, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithPolicy guards dials and redirects with the given address policy.
func WithPolicy(p *netguard.Policy) Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = p.Dialer().DialContext
		c.httpClient.Transport = transport
		c.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return p.CheckURL(req.URL)
		}
	}
}

// NewClient returns a Client whose every request is bounded by timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads url and parses it. Errors wrap ErrNetwork or ErrParse.
func (c *Client) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	f, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return f, nil
}
