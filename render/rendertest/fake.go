// Package rendertest provides an in-memory render.Provider for tests.
package rendertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pevans/newsharvest/render"
)

// Page is the canned DOM served for one URL. Selectors are matched
// literally.
type Page struct {
	Elements map[string][]render.Element
	Attrs    map[string]map[string]string
	// Errors makes queries for a selector fail.
	Errors map[string]error
	// Panics makes queries for a selector panic.
	Panics map[string]bool
	Height int
}

type failure struct {
	remaining int // -1 fails forever
	err       error
}

// Provider serves canned pages. It is safe for concurrent use.
type Provider struct {
	mu          sync.Mutex
	pages       map[string]*Page
	failures    map[string]*failure
	navigations map[string]int
	opened      int
	closed      int
	scrolled    int

	// OpenErr, when set, is returned by Open.
	OpenErr error
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{
		pages:       make(map[string]*Page),
		failures:    make(map[string]*failure),
		navigations: make(map[string]int),
	}
}

// AddPage serves page at url.
func (p *Provider) AddPage(url string, page *Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[url] = page
}

// FailNavigation makes the next n navigations to url fail with err. A
// negative n fails every navigation.
func (p *Provider) FailNavigation(url string, n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 0 {
		n = -1
	}
	p.failures[url] = &failure{remaining: n, err: err}
}

// Navigations returns how many times url was navigated to.
func (p *Provider) Navigations(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigations[url]
}

// Sessions returns how many sessions were opened and closed.
func (p *Provider) Sessions() (opened, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened, p.closed
}

// Scrolled returns the total pixels scrolled across all sessions.
func (p *Provider) Scrolled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolled
}

// Open returns a new session.
func (p *Provider) Open(ctx context.Context) (render.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	p.opened++
	return &session{provider: p}, nil
}

func (p *Provider) navigate(url string) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.navigations[url]++
	if f, ok := p.failures[url]; ok && f.remaining != 0 {
		if f.remaining > 0 {
			f.remaining--
		}
		return nil, f.err
	}

	page, ok := p.pages[url]
	if !ok {
		return nil, fmt.Errorf("HTTP error: 404 Not Found")
	}
	return page, nil
}

type session struct {
	provider *Provider
	page     *Page
	url      string
	closed   bool
}

func (s *session) Navigate(ctx context.Context, url string, _ render.NavigateOptions) error {
	if s.closed {
		return render.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := s.provider.navigate(url)
	if err != nil {
		return err
	}
	s.page = page
	s.url = url
	return nil
}

func (s *session) current(selector string) (*Page, error) {
	if s.closed {
		return nil, render.ErrSessionClosed
	}
	if s.page == nil {
		return nil, render.ErrNotNavigated
	}
	if s.page.Panics[selector] {
		panic("rendertest: query panicked for " + selector)
	}
	if err := s.page.Errors[selector]; err != nil {
		return nil, err
	}
	return s.page, nil
}

func (s *session) WaitForSelector(_ context.Context, selector string, _ time.Duration) error {
	page, err := s.current(selector)
	if err != nil {
		return err
	}
	if len(page.Elements[selector]) == 0 && len(page.Attrs[selector]) == 0 {
		return fmt.Errorf("%w: %s", render.ErrSelectorNotFound, selector)
	}
	return nil
}

func (s *session) QueryAll(_ context.Context, selector string) ([]render.Element, error) {
	page, err := s.current(selector)
	if err != nil {
		return nil, err
	}
	return append([]render.Element(nil), page.Elements[selector]...), nil
}

func (s *session) QueryAttribute(_ context.Context, selector, attr string) (string, bool, error) {
	page, err := s.current(selector)
	if err != nil {
		return "", false, err
	}
	value, ok := page.Attrs[selector][attr]
	return value, ok, nil
}

func (s *session) ScrollHeight(context.Context) (int, error) {
	if s.closed {
		return 0, render.ErrSessionClosed
	}
	if s.page == nil {
		return 0, render.ErrNotNavigated
	}
	return s.page.Height, nil
}

func (s *session) ScrollBy(_ context.Context, px int) error {
	if s.closed {
		return render.ErrSessionClosed
	}
	s.provider.mu.Lock()
	s.provider.scrolled += px
	s.provider.mu.Unlock()
	return nil
}

func (s *session) URL() string { return s.url }

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.provider.mu.Lock()
	s.provider.closed++
	s.provider.mu.Unlock()
	return nil
}
