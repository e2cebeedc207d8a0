package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pevans/newsharvest"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []newsharvest.SiteResult {
	return []newsharvest.SiteResult{
		{
			Site: scraper.SiteDescriptor{HeadlineURL: "https://news.example/list"},
			ContentData: []discovery.ArticleRecord{{
				ArticleURL:  "https://news.example/a",
				Headline:    "Council\n  approves budget",
				PublishDate: "2026-10-01",
				Content:     "Body",
			}},
			HeadlineCount: 1,
		},
		{
			Site:  scraper.SiteDescriptor{HeadlineURL: "https://down.example/"},
			Error: "HTTP error: 503 Service Unavailable",
		},
	}
}

// TestPrintResultsTable verifies sites, errors and articles are listed
func TestPrintResultsTable(t *testing.T) {
	var buf bytes.Buffer
	printResultsTable(&buf, sampleResults())

	out := buf.String()
	assert.Contains(t, out, "https://news.example/list")
	assert.Contains(t, out, "503 Service Unavailable")
	assert.Contains(t, out, "Council approves budget")
	assert.Contains(t, out, "https://news.example/a")
	assert.Contains(t, out, "Total")
	assert.NotContains(t, out, "TOTAL", "footer keeps its casing")
}

// TestPrintResultsTable_Empty verifies the empty message
func TestPrintResultsTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	printResultsTable(&buf, nil)
	assert.Equal(t, "No sites scraped.\n", buf.String())
}

// TestPrintResultsJSON verifies the output is the result array
func TestPrintResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResultsJSON(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())

	buf.Reset()
	require.NoError(t, printResultsJSON(&buf, sampleResults()[:1]))
	assert.Contains(t, buf.String(), `"headlineCount": 1`)
}

// TestReadSites verifies descriptor files are parsed
func TestReadSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"headlineUrl": "https://news.example/list", "urlHtmlTag": "a.story"}]`), 0644))

	sites, err := readSites(path)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "a.story", sites[0].URLHTMLTag)

	_, err = readSites(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
