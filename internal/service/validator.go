package service

import (
	"context"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/ilinovom/feedbot/internal/feed"
	"github.com/ilinovom/feedbot/internal/logger"
	"github.com/ilinovom/feedbot/internal/netguard"
)

// Fetcher is the part of feed.Client the validator needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

// SubscriptionValidator decides whether a URL may become a subscription.
type SubscriptionValidator struct {
	policy  *netguard.Policy
	fetcher Fetcher
}

func NewSubscriptionValidator(policy *netguard.Policy, fetcher Fetcher) *SubscriptionValidator {
	return &SubscriptionValidator{policy: policy, fetcher: fetcher}
}

// Validate runs the checks in order and stops at the first failure: absolute
// http(s) URL with a host, host outside internal ranges, live fetch, then
// feed parse and structural validation. A rejected host never reaches the
// network.
func (v *SubscriptionValidator) Validate(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Hostname() == "" {
		return false
	}
	if err := v.policy.CheckURL(u); err != nil {
		logger.Debugf("rejected %s: %v", rawURL, err)
		return false
	}
	if err := v.policy.CheckResolved(ctx, u.Hostname()); err != nil {
		logger.Debugf("rejected %s: %v", rawURL, err)
		return false
	}

	f, err := v.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		logger.Debugf("validate %s: %v", rawURL, err)
		return false
	}
	if err := feed.Validate(f); err != nil {
		logger.Debugf("validate %s: %v", rawURL, err)
		return false
	}
	return true
}
