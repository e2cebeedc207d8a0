package discovery

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pevans/newsharvest/render"
	"github.com/pevans/newsharvest/scraper"
)

// Candidate is a headline link found on a listing page.
type Candidate struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Discover returns the http(s) links matching selector in document order.
// Links without an href are skipped. A limit of 0 returns every link.
func Discover(ctx context.Context, session render.Session, selector string, limit int) ([]Candidate, error) {
	elements, err := session.QueryAll(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query headlines: %w", err)
	}

	candidates := make([]Candidate, 0, len(elements))
	for _, el := range elements {
		if !isWebURL(el.Href) {
			continue
		}
		candidates = append(candidates, Candidate{URL: el.Href, Text: el.Text})
		if limit > 0 && len(candidates) == limit {
			break
		}
	}
	return candidates, nil
}

// DiscoverHeadlines runs Discover with the descriptor's anchor selector and
// requested count.
func DiscoverHeadlines(ctx context.Context, session render.Session, desc *scraper.SiteDescriptor) ([]Candidate, error) {
	return Discover(ctx, session, desc.URLHTMLTag, desc.HeadlineCount)
}

func isWebURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
