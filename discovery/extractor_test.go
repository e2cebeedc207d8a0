package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pevans/newsharvest/logger"
	"github.com/pevans/newsharvest/render"
	"github.com/pevans/newsharvest/render/rendertest"
	"github.com/pevans/newsharvest/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const pageURL = "https://news.example/story"

func sessionFor(t *testing.T, page *rendertest.Page) render.Session {
	t.Helper()
	p := rendertest.NewProvider()
	p.AddPage(pageURL, page)
	s := openFake(t, p)
	require.NoError(t, s.Navigate(context.Background(), pageURL, render.NavigateOptions{}))
	return s
}

type verifierFunc func(ctx context.Context, imageURL string) bool

func (f verifierFunc) Verify(ctx context.Context, imageURL string) bool { return f(ctx, imageURL) }

// TestResolve_FallbackOrder verifies failed and empty strategies fall through
func TestResolve_FallbackOrder(t *testing.T) {
	session := sessionFor(t, &rendertest.Page{
		Elements: map[string][]render.Element{
			"h2.empty": {{Text: "   "}},
			"h1":       {{Text: "X"}},
			"h3":       {{Text: "Y"}},
		},
		Errors: map[string]error{"h1.broken": errors.New("detached node")},
	})
	e := NewExtractor(nil, nil)
	ctx := context.Background()

	got := e.Resolve(ctx, session, []scraper.SelectorSpec{
		scraper.Text("h1.broken"),
		scraper.Text("h2.empty"),
		scraper.Text("h1"),
	})
	assert.Equal(t, "X", got)

	got = e.Resolve(ctx, session, []scraper.SelectorSpec{scraper.Text("h3"), scraper.Text("h1")})
	assert.Equal(t, "Y", got, "first non-empty strategy wins")
}

// TestResolve_AllFail verifies an exhausted chain yields an empty string
func TestResolve_AllFail(t *testing.T) {
	session := sessionFor(t, &rendertest.Page{
		Errors: map[string]error{"h1": errors.New("boom")},
	})
	e := NewExtractor(nil, nil)

	got := e.Resolve(context.Background(), session, []scraper.SelectorSpec{
		scraper.Text("h1"),
		scraper.Text("missing"),
		{Selector: "h1", Mode: "bogus"},
	})
	assert.Equal(t, "", got)
}

// TestResolve_LogsExtractionErrorsAtDebug verifies strategy failures are
// logged and recovered
func TestResolve_LogsExtractionErrorsAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	session := sessionFor(t, &rendertest.Page{
		Errors: map[string]error{"h1": errors.New("boom")},
	})
	e := NewExtractor(logger.NewWithCore(core), nil)

	e.Resolve(context.Background(), session, []scraper.SelectorSpec{scraper.Text("h1")})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["error"], "boom")
}

// TestResolve_AttributeModes verifies attribute and date default chains
func TestResolve_AttributeModes(t *testing.T) {
	session := sessionFor(t, &rendertest.Page{
		Elements: map[string][]render.Element{
			"time":      {{Text: "March 10"}},
			"span.date": {{Text: "Yesterday"}},
		},
		Attrs: map[string]map[string]string{
			"time": {"datetime": "2024-03-10T08:00:00Z"},
		},
	})
	e := NewExtractor(nil, nil)
	ctx := context.Background()

	tags := scraper.ContentSelectors{PublishDate: scraper.Selector("time")}
	assert.Equal(t, "2024-03-10T08:00:00Z", e.Resolve(ctx, session, tags.PublishDateChain()))

	tags = scraper.ContentSelectors{PublishDate: scraper.Selector("span.date")}
	assert.Equal(t, "Yesterday", e.Resolve(ctx, session, tags.PublishDateChain()),
		"missing datetime attribute falls back to text")
}

// TestLastSrcsetURL verifies the last candidate's URL is chosen
func TestLastSrcsetURL(t *testing.T) {
	tests := []struct {
		name   string
		srcset string
		want   string
	}{
		{"width descriptors", "a.jpg 320w, b.jpg 640w, c.jpg 1280w", "c.jpg"},
		{"density descriptors", "/img/a.jpg 1x,/img/b.jpg 2x", "/img/b.jpg"},
		{"single entry", "only.jpg", "only.jpg"},
		{"trailing comma", "a.jpg 1x, b.jpg 2x,", "b.jpg"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastSrcsetURL(tt.srcset))
		})
	}
}

// TestResolveURL verifies relative URLs resolve against the origin
func TestResolveURL(t *testing.T) {
	tests := []struct {
		origin string
		raw    string
		want   string
	}{
		{"https://news.example", "/img/a.jpg", "https://news.example/img/a.jpg"},
		{"https://news.example", "img/a.jpg", "https://news.example/img/a.jpg"},
		{"https://news.example", "//cdn.example/a.jpg", "https://cdn.example/a.jpg"},
		{"https://news.example", "https://cdn.example/a.jpg", "https://cdn.example/a.jpg"},
		{"https://news.example", "data:image/png;base64,AAAA", ""},
		{"https://news.example", "ftp://files.example/a.jpg", ""},
		{"", "/img/a.jpg", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.origin, tt.raw))
		})
	}
}

// TestResolveImage_FallsThroughUnverified verifies rejected images fall to
// the next strategy
func TestResolveImage_FallsThroughUnverified(t *testing.T) {
	session := sessionFor(t, &rendertest.Page{
		Attrs: map[string]map[string]string{
			"img.hero": {
				"src":    "/broken.jpg",
				"srcset": "/small.jpg 320w, /large.jpg 1280w",
			},
		},
	})
	var checked []string
	verifier := verifierFunc(func(_ context.Context, u string) bool {
		checked = append(checked, u)
		return u != "https://news.example/broken.jpg"
	})
	e := NewExtractor(nil, verifier)

	tags := scraper.ContentSelectors{Image: scraper.Selector("img.hero")}
	got := e.ResolveImage(context.Background(), session, tags.ImageChain(), "https://news.example")

	assert.Equal(t, "https://news.example/large.jpg", got)
	assert.Equal(t, []string{"https://news.example/broken.jpg", "https://news.example/large.jpg"}, checked)
}

// TestResolveImage_Unreachable verifies an unverifiable image yields ""
func TestResolveImage_Unreachable(t *testing.T) {
	session := sessionFor(t, &rendertest.Page{
		Attrs: map[string]map[string]string{"img": {"src": "/gone.jpg"}},
	})
	e := NewExtractor(nil, verifierFunc(func(context.Context, string) bool { return false }))

	tags := scraper.ContentSelectors{Image: scraper.Selector("img")}
	assert.Equal(t, "", e.ResolveImage(context.Background(), session, tags.ImageChain(), "https://news.example"))
}

// TestCollect verifies all matches of the first productive strategy are kept
func TestCollect(t *testing.T) {
	session := sessionFor(t, &rendertest.Page{
		Elements: map[string][]render.Element{
			"div.empty p": {{Text: " "}},
			"div.body p":  {{Text: "First."}, {Text: ""}, {Text: "Second."}},
		},
	})
	e := NewExtractor(nil, nil)

	got := e.Collect(context.Background(), session, []scraper.SelectorSpec{
		scraper.Text("div.empty p"),
		scraper.Text("div.body p"),
	})
	assert.Equal(t, []string{"First.", "Second."}, got)
}

// TestHTTPImageVerifier verifies HEAD, GET fallback, and status handling
func TestHTTPImageVerifier(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/nohead.jpg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		assert.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
	})
	mux.HandleFunc("/moved.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere.jpg", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	v := NewHTTPImageVerifier(0, "test-agent")
	ctx := context.Background()

	assert.True(t, v.Verify(ctx, server.URL+"/ok.jpg"))
	assert.False(t, v.Verify(ctx, server.URL+"/missing.jpg"))
	assert.True(t, v.Verify(ctx, server.URL+"/nohead.jpg"), "GET fallback should be used")
	assert.True(t, v.Verify(ctx, server.URL+"/moved.jpg"), "3xx counts as reachable")
	assert.False(t, v.Verify(ctx, "data:image/gif;base64,R0lGOD"))
	assert.False(t, v.Verify(ctx, "http://127.0.0.1:1/unreachable.jpg"))
}
