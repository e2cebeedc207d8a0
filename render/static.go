package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html/charset"
)

// DefaultMaxBodyBytes caps how much of a page is read.
const DefaultMaxBodyBytes = 10 << 20

// HTTPProviderConfig configures HTTPProvider.
type HTTPProviderConfig struct {
	UserAgents   []string
	Locales      []string
	MaxBodyBytes int64
	// Transport is shared by all sessions; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// HTTPProvider renders pages by fetching their HTML and parsing it with
// goquery. It does not run scripts: pages have no scroll height and
// selectors either match on load or never.
type HTTPProvider struct {
	cfg HTTPProviderConfig
}

// NewHTTPProvider creates a provider.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &HTTPProvider{cfg: cfg}
}

// Open creates a session with its own cookie jar and a freshly drawn
// user agent and locale.
func (p *HTTPProvider) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &httpSession{
		client:   &http.Client{Jar: jar, Transport: p.cfg.Transport},
		identity: PickIdentity(p.cfg.UserAgents, p.cfg.Locales),
		maxBody:  p.cfg.MaxBodyBytes,
	}, nil
}

type httpSession struct {
	client   *http.Client
	identity Identity
	maxBody  int64

	doc    *goquery.Document
	page   *url.URL
	base   *url.URL
	closed bool
}

func (s *httpSession) Navigate(ctx context.Context, rawURL string, opts NavigateOptions) error {
	if s.closed {
		return ErrSessionClosed
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.identity.UserAgent)
	req.Header.Set("Accept-Language", s.identity.Locale)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, s.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	s.doc = doc
	s.page = resp.Request.URL
	s.base = baseURL(resp.Request.URL, doc)
	return nil
}

// baseURL honors a <base href> element if the page has one.
func baseURL(pageURL *url.URL, doc *goquery.Document) *url.URL {
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			return pageURL.ResolveReference(ref)
		}
	}
	return pageURL
}

func (s *httpSession) find(selector string) (*goquery.Selection, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.doc == nil {
		return nil, ErrNotNavigated
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return s.doc.FindMatcher(matcher), nil
}

func (s *httpSession) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	sel, err := s.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrSelectorNotFound, selector)
	}
	return nil
}

func (s *httpSession) QueryAll(_ context.Context, selector string) ([]Element, error) {
	sel, err := s.find(selector)
	if err != nil {
		return nil, err
	}

	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, el *goquery.Selection) {
		element := Element{Text: NormalizeText(el.Text())}
		if href, ok := el.Attr("href"); ok {
			element.Href = s.resolve(href)
		}
		elements = append(elements, element)
	})
	return elements, nil
}

func (s *httpSession) QueryAttribute(_ context.Context, selector, attr string) (string, bool, error) {
	sel, err := s.find(selector)
	if err != nil {
		return "", false, err
	}
	value, ok := sel.First().Attr(attr)
	return value, ok, nil
}

func (s *httpSession) ScrollHeight(context.Context) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	return 0, nil
}

func (s *httpSession) ScrollBy(context.Context, int) error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *httpSession) URL() string {
	if s.page == nil {
		return ""
	}
	return s.page.String()
}

func (s *httpSession) Close() error {
	s.closed = true
	s.doc = nil
	return nil
}

// resolve makes href absolute against the page. Unparseable and
// javascript: hrefs resolve to "".
func (s *httpSession) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if s.base == nil {
		return ref.String()
	}
	return s.base.ResolveReference(ref).String()
}
