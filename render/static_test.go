package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<ul>
  <li><a class="headline" href="/news/1">  First
      story </a></li>
  <li><a class="headline" href="https://other.example/news/2">Second story</a></li>
  <li><a class="headline">No link</a></li>
</ul>
<img class="hero" src="/img/hero.jpg" alt="Hero image">
</body></html>`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func openSession(t *testing.T, provider Provider) Session {
	t.Helper()
	session, err := provider.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

// TestHTTPSession_QueryAll verifies hrefs are resolved and text normalized
func TestHTTPSession_QueryAll(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(listingHTML))
	})

	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))
	ctx := context.Background()
	require.NoError(t, session.Navigate(ctx, server.URL+"/list", NavigateOptions{}))

	elements, err := session.QueryAll(ctx, "a.headline")
	require.NoError(t, err)
	require.Len(t, elements, 3)

	assert.Equal(t, server.URL+"/news/1", elements[0].Href)
	assert.Equal(t, "First story", elements[0].Text)
	assert.Equal(t, "https://other.example/news/2", elements[1].Href)
	assert.Equal(t, "", elements[2].Href)
	assert.Equal(t, server.URL+"/list", session.URL())
}

// TestHTTPSession_QueryAttribute verifies attribute lookups
func TestHTTPSession_QueryAttribute(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	})

	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))
	ctx := context.Background()
	require.NoError(t, session.Navigate(ctx, server.URL, NavigateOptions{}))

	value, ok, err := session.QueryAttribute(ctx, "img.hero", "alt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hero image", value)

	_, ok, err = session.QueryAttribute(ctx, "img.hero", "srcset")
	require.NoError(t, err)
	assert.False(t, ok, "absent attribute should report ok=false")

	_, ok, err = session.QueryAttribute(ctx, "video", "src")
	require.NoError(t, err)
	assert.False(t, ok, "no match should report ok=false")
}

// TestHTTPSession_WaitForSelector verifies present and absent selectors
func TestHTTPSession_WaitForSelector(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	})

	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))
	ctx := context.Background()
	require.NoError(t, session.Navigate(ctx, server.URL, NavigateOptions{}))

	assert.NoError(t, session.WaitForSelector(ctx, "ul li", 0))
	assert.ErrorIs(t, session.WaitForSelector(ctx, "article.body", 0), ErrSelectorNotFound)
}

// TestHTTPSession_InvalidSelector verifies selector syntax errors surface
func TestHTTPSession_InvalidSelector(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	})

	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))
	ctx := context.Background()
	require.NoError(t, session.Navigate(ctx, server.URL, NavigateOptions{}))

	_, err := session.QueryAll(ctx, "a[href")
	assert.Error(t, err)
}

// TestHTTPSession_HTTPError verifies non-2xx responses fail navigation
func TestHTTPSession_HTTPError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))
	err := session.Navigate(context.Background(), server.URL, NavigateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// TestHTTPSession_QueryBeforeNavigate verifies queries need a page
func TestHTTPSession_QueryBeforeNavigate(t *testing.T) {
	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))

	_, err := session.QueryAll(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotNavigated)
}

// TestHTTPSession_Closed verifies calls fail after Close
func TestHTTPSession_Closed(t *testing.T) {
	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))
	require.NoError(t, session.Close())
	require.NoError(t, session.Close(), "Close should be idempotent")

	err := session.Navigate(context.Background(), "http://127.0.0.1", NavigateOptions{})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

// TestHTTPSession_Charset verifies non-UTF-8 pages are decoded
func TestHTTPSession_Charset(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Café" in Latin-1
		w.Write([]byte("<html><body><h1>Caf\xe9</h1></body></html>"))
	})

	session := openSession(t, NewHTTPProvider(HTTPProviderConfig{}))
	ctx := context.Background()
	require.NoError(t, session.Navigate(ctx, server.URL, NavigateOptions{}))

	elements, err := session.QueryAll(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "Café", elements[0].Text)
}

// TestHTTPProvider_SessionIdentity verifies headers come from the pools
func TestHTTPProvider_SessionIdentity(t *testing.T) {
	var gotUA, gotLang string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte("<html></html>"))
	})

	provider := NewHTTPProvider(HTTPProviderConfig{
		UserAgents: []string{"test-agent/1.0"},
		Locales:    []string{"fr-FR"},
	})
	session := openSession(t, provider)
	require.NoError(t, session.Navigate(context.Background(), server.URL, NavigateOptions{}))

	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Equal(t, "fr-FR", gotLang)
}

// TestHTTPProvider_SessionsDoNotShareCookies verifies per-session jars
func TestHTTPProvider_SessionsDoNotShareCookies(t *testing.T) {
	var cookies []string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("visitor"); err == nil {
			cookies = append(cookies, c.Value)
		} else {
			cookies = append(cookies, "")
		}
		http.SetCookie(w, &http.Cookie{Name: "visitor", Value: "v1", Path: "/"})
		w.Write([]byte("<html></html>"))
	})

	provider := NewHTTPProvider(HTTPProviderConfig{})
	ctx := context.Background()

	first := openSession(t, provider)
	require.NoError(t, first.Navigate(ctx, server.URL, NavigateOptions{}))
	require.NoError(t, first.Navigate(ctx, server.URL, NavigateOptions{}))

	second := openSession(t, provider)
	require.NoError(t, second.Navigate(ctx, server.URL, NavigateOptions{}))

	assert.Equal(t, []string{"", "v1", ""}, cookies)
}

// TestPickIdentity_Defaults verifies empty pools fall back to defaults
func TestPickIdentity_Defaults(t *testing.T) {
	id := PickIdentity(nil, nil)

	assert.Contains(t, DefaultUserAgents, id.UserAgent)
	assert.Contains(t, DefaultLocales, id.Locale)
}
