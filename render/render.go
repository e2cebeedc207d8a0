// Package render defines the rendering session capability the scrape
// pipeline consumes, and ships a static HTML implementation of it.
package render

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Wait conditions for NavigateOptions.WaitUntil.
const (
	WaitLoad        = "load"
	WaitNetworkIdle = "networkidle"
)

var (
	// ErrNotNavigated is returned when a session is queried before a page
	// has loaded.
	ErrNotNavigated = errors.New("session has no page loaded")
	// ErrSelectorNotFound is returned by WaitForSelector when the selector
	// never matched.
	ErrSelectorNotFound = errors.New("selector not found")
	// ErrSessionClosed is returned by every call after Close.
	ErrSessionClosed = errors.New("session closed")
)

// Provider opens isolated browsing sessions. Sessions from one provider
// never share cookies or other state.
type Provider interface {
	Open(ctx context.Context) (Session, error)
}

// NavigateOptions controls a single navigation.
type NavigateOptions struct {
	WaitUntil string
	Timeout   time.Duration
}

// Element is what a DOM query yields for one matched element.
type Element struct {
	Href string // absolute href, empty if the element has none
	Text string // whitespace-normalized text content
}

// Session is one isolated, stateful browsing context.
type Session interface {
	// Navigate loads url, replacing the current page.
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	// WaitForSelector blocks until selector matches or timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// QueryAll returns every element matching selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// QueryAttribute returns attr of the first element matching selector.
	// ok is false when no element matched or the attribute is absent.
	QueryAttribute(ctx context.Context, selector, attr string) (value string, ok bool, err error)
	// ScrollHeight reports the page's current scrollable height in pixels.
	ScrollHeight(ctx context.Context) (int, error)
	// ScrollBy scrolls the viewport down by px pixels.
	ScrollBy(ctx context.Context, px int) error
	// URL returns the URL of the loaded page after redirects.
	URL() string
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// NormalizeText composes s to NFC and collapses runs of whitespace to a
// single space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// DefaultUserAgents is the pool a provider rotates through per session.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
}

// DefaultLocales is the Accept-Language pool rotated per session.
var DefaultLocales = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.8,es;q=0.5",
}

// Identity is the fingerprint one session presents.
type Identity struct {
	UserAgent string
	Locale    string
}

// PickIdentity draws a user agent and locale at random from the pools,
// falling back to the defaults when a pool is empty.
func PickIdentity(userAgents, locales []string) Identity {
	if len(userAgents) == 0 {
		userAgents = DefaultUserAgents
	}
	if len(locales) == 0 {
		locales = DefaultLocales
	}
	return Identity{
		UserAgent: userAgents[rand.IntN(len(userAgents))],
		Locale:    locales[rand.IntN(len(locales))],
	}
}
