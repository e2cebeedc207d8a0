package newsharvest

import (
	"encoding/json"
	"testing"

	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSiteResult_MarshalEchoesDescriptor verifies descriptor keys, unknown
// ones included, appear next to the result fields
func TestSiteResult_MarshalEchoesDescriptor(t *testing.T) {
	var site scraper.SiteDescriptor
	require.NoError(t, json.Unmarshal([]byte(`{
		"headlineUrl": "https://news.example/list",
		"urlHtmlTag": "a.headline",
		"headlineCount": 5,
		"channel": "world",
		"contentHtmlTags": {"title": "h1", "newsContent": "div.body p"},
		"tenant": "acme"
	}`), &site))

	result := SiteResult{
		Site:          site,
		ContentData:   []discovery.ArticleRecord{{ArticleURL: "https://news.example/a", Headline: "A", Content: "Body"}},
		HeadlineCount: 1,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "https://news.example/list", got["headlineUrl"])
	assert.Equal(t, "acme", got["tenant"])
	assert.Equal(t, float64(1), got["headlineCount"], "headlineCount is the accepted count")
	assert.NotContains(t, got, "error")

	content := got["contentData"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, "Body", content[0].(map[string]any)["content"])
}

// TestSiteResult_MarshalEmpty verifies failed results encode an empty array
// and the error
func TestSiteResult_MarshalEmpty(t *testing.T) {
	result := SiteResult{
		Site:  scraper.SiteDescriptor{HeadlineURL: "https://news.example/list"},
		Error: "site https://news.example/list: discover: timeout",
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &got))
	assert.JSONEq(t, `[]`, string(got["contentData"]))
	assert.JSONEq(t, `0`, string(got["headlineCount"]))
	assert.JSONEq(t, `"site https://news.example/list: discover: timeout"`, string(got["error"]))
}

// TestSiteResult_UnmarshalRoundTrip verifies a decoded result matches the
// original
func TestSiteResult_UnmarshalRoundTrip(t *testing.T) {
	original := SiteResult{
		Site: scraper.SiteDescriptor{
			HeadlineURL:   "https://news.example/list",
			URLHTMLTag:    "a.headline",
			HeadlineCount: 1,
			Extra:         map[string]json.RawMessage{"tenant": json.RawMessage(`"acme"`)},
		},
		ContentData:   []discovery.ArticleRecord{{ArticleURL: "https://news.example/a", Headline: "A", Content: "B"}},
		HeadlineCount: 1,
		Error:         "partial",
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded SiteResult
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.ContentData, decoded.ContentData)
	assert.Equal(t, original.HeadlineCount, decoded.HeadlineCount)
	assert.Equal(t, original.Error, decoded.Error)
	assert.Equal(t, original.Site.HeadlineURL, decoded.Site.HeadlineURL)
	assert.JSONEq(t, `"acme"`, string(decoded.Site.Extra["tenant"]))
	assert.NotContains(t, decoded.Site.Extra, "contentData")
}
