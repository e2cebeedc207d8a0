package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/newsharvest/render"
)

// DefaultFeedTimeout bounds one feed fetch.
const DefaultFeedTimeout = 30 * time.Second

// FeedDiscoverer finds headline candidates in RSS and Atom listings.
type FeedDiscoverer struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

// NewFeedDiscoverer creates a discoverer. client may be nil.
func NewFeedDiscoverer(client *http.Client, userAgent string, timeout time.Duration) *FeedDiscoverer {
	fp := gofeed.NewParser()
	if client != nil {
		fp.Client = client
	}
	if userAgent != "" {
		fp.UserAgent = userAgent
	}
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	return &FeedDiscoverer{parser: fp, timeout: timeout}
}

// Discover fetches the feed at feedURL and returns its items in feed order.
// Items without a web link are skipped. A limit of 0 returns every item.
func (d *FeedDiscoverer) Discover(ctx context.Context, feedURL string, limit int) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	feed, err := d.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if !isWebURL(link) {
			continue
		}
		candidates = append(candidates, Candidate{
			URL:  link,
			Text: render.NormalizeText(item.Title),
		})
		if limit > 0 && len(candidates) == limit {
			break
		}
	}
	return candidates, nil
}

// DiscoverWithRetry is Discover with failed fetches retried under policy.
// Only MaxAttempts, Backoff and MaxBackoff apply; each attempt is bounded
// by the discoverer's own timeout. Exhaustion yields a *NavigationError.
func (d *FeedDiscoverer) DiscoverWithRetry(ctx context.Context, feedURL string, limit int, policy RetryPolicy) ([]Candidate, error) {
	var candidates []Candidate
	err := retry(ctx, feedURL, policy.withDefaults(), func(ctx context.Context) error {
		var err error
		candidates, err = d.Discover(ctx, feedURL, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
