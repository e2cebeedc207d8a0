package newsharvest

import (
	"encoding/json"
	"fmt"

	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/scraper"
)

// SiteResult is the outcome for one descriptor. Exactly one is produced per
// descriptor, even when the site failed entirely.
type SiteResult struct {
	Site        scraper.SiteDescriptor
	ContentData []discovery.ArticleRecord
	// HeadlineCount is the number of accepted articles.
	HeadlineCount int
	// Error is empty unless the site failed.
	Error string
}

func newSiteResult(desc scraper.SiteDescriptor) SiteResult {
	return SiteResult{Site: desc, ContentData: []discovery.ArticleRecord{}}
}

// MarshalJSON encodes the descriptor's own keys, unknown ones included,
// alongside contentData, headlineCount and error.
func (r SiteResult) MarshalJSON() ([]byte, error) {
	fields, err := r.Site.Fields()
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}

	content := r.ContentData
	if content == nil {
		content = []discovery.ArticleRecord{}
	}
	if fields["contentData"], err = json.Marshal(content); err != nil {
		return nil, fmt.Errorf("failed to encode articles: %w", err)
	}
	if fields["headlineCount"], err = json.Marshal(r.HeadlineCount); err != nil {
		return nil, err
	}

	delete(fields, "error")
	if r.Error != "" {
		if fields["error"], err = json.Marshal(r.Error); err != nil {
			return nil, err
		}
	}

	return json.Marshal(fields)
}

// UnmarshalJSON decodes a result produced by MarshalJSON. The headlineCount
// key is shared, so Site.HeadlineCount comes back as the accepted count.
func (r *SiteResult) UnmarshalJSON(data []byte) error {
	var site scraper.SiteDescriptor
	if err := json.Unmarshal(data, &site); err != nil {
		return err
	}

	var out struct {
		ContentData   []discovery.ArticleRecord `json:"contentData"`
		HeadlineCount int                       `json:"headlineCount"`
		Error         string                    `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	for _, key := range []string{"contentData", "error"} {
		delete(site.Extra, key)
	}
	if len(site.Extra) == 0 {
		site.Extra = nil
	}

	*r = SiteResult{
		Site:          site,
		ContentData:   out.ContentData,
		HeadlineCount: out.HeadlineCount,
		Error:         out.Error,
	}
	if r.ContentData == nil {
		r.ContentData = []discovery.ArticleRecord{}
	}
	return nil
}
