package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/newsharvest/logger"
	"github.com/pevans/newsharvest/render"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/seen"
)

// RecordTimeout bounds the seen-store write for an accepted article.
const RecordTimeout = 5 * time.Second

// ArticleRecord is one extracted article. Only records with a headline and
// content are ever returned.
type ArticleRecord struct {
	ArticleURL  string `json:"articleUrl"`
	Channel     string `json:"channel"`
	Headline    string `json:"headline"`
	PublishDate string `json:"publishDate"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	ImageURL    string `json:"imageUrl"`
	ImageAlt    string `json:"imageAlt"`
	Content     string `json:"content"`
}

// ProcessorConfig holds the per-article timing knobs.
type ProcessorConfig struct {
	Retry           RetryPolicy
	SelectorTimeout time.Duration
	ScrollStep      int
	ScrollInterval  time.Duration
	ScrollTimeout   time.Duration
}

// DefaultProcessorConfig returns the default article timings.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Retry:           DefaultRetryPolicy(),
		SelectorTimeout: 10 * time.Second,
		ScrollStep:      100,
		ScrollInterval:  100 * time.Millisecond,
		ScrollTimeout:   15 * time.Second,
	}
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	d := DefaultProcessorConfig()
	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = d.SelectorTimeout
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = d.ScrollStep
	}
	if c.ScrollInterval < 0 {
		c.ScrollInterval = 0
	}
	if c.ScrollTimeout <= 0 {
		c.ScrollTimeout = d.ScrollTimeout
	}
	return c
}

// Processor extracts one article per call, each in its own session.
type Processor struct {
	provider  render.Provider
	store     seen.Store
	extractor *Extractor
	cfg       ProcessorConfig
	logger    logger.Logger
}

// NewProcessor creates a processor. Accepted articles are recorded in store.
func NewProcessor(provider render.Provider, store seen.Store, extractor *Extractor, cfg ProcessorConfig, log logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	if extractor == nil {
		extractor = NewExtractor(log, nil)
	}
	return &Processor{
		provider:  provider,
		store:     store,
		extractor: extractor,
		cfg:       cfg.withDefaults(),
		logger:    log,
	}
}

// Process opens a session on the candidate, extracts every field and
// records the URL on success. An article that cannot be used comes back as
// an *ArticleError; a store failure comes back as a *seen.StoreError.
func (p *Processor) Process(ctx context.Context, desc *scraper.SiteDescriptor, candidate Candidate) (record *ArticleRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = &ArticleError{URL: candidate.URL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	log := p.logger.With(logger.String("article_url", candidate.URL))

	session, err := p.provider.Open(ctx)
	if err != nil {
		return nil, &ArticleError{URL: candidate.URL, Err: fmt.Errorf("failed to open session: %w", err)}
	}
	defer session.Close()

	if err := Navigate(ctx, session, candidate.URL, p.cfg.Retry); err != nil {
		return nil, &ArticleError{URL: candidate.URL, Err: err}
	}

	if err := p.scrollToBottom(ctx, session); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Debug("Scroll stopped early", logger.Err(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, &ArticleError{URL: candidate.URL, Err: err}
	}

	tags := desc.ContentHTMLTags
	contentChain := tags.ContentChain()
	if len(contentChain) > 0 {
		if err := session.WaitForSelector(ctx, contentChain[0].Selector, p.cfg.SelectorTimeout); err != nil {
			log.Debug("Content selector not found", logger.String("selector", contentChain[0].Selector), logger.Err(err))
		}
	}

	record = &ArticleRecord{
		ArticleURL:  candidate.URL,
		Channel:     desc.Channel,
		Headline:    p.extractor.Resolve(ctx, session, tags.TitleChain()),
		PublishDate: p.extractor.Resolve(ctx, session, tags.PublishDateChain()),
		Author:      p.extractor.Resolve(ctx, session, tags.AuthorChain()),
		Publisher:   p.extractor.Resolve(ctx, session, tags.PublisherChain()),
		ImageURL:    p.extractor.ResolveImage(ctx, session, tags.ImageChain(), imageOrigin(desc, candidate.URL)),
		ImageAlt:    p.extractor.Resolve(ctx, session, tags.ImageAltChain()),
		Content:     strings.Join(p.extractor.Collect(ctx, session, contentChain), "\n\n"),
	}

	if record.Publisher == "" {
		record.Publisher = publisherHost(candidate.URL)
	}
	if record.Headline == "" {
		record.Headline = strings.TrimSpace(candidate.Text)
	}

	if record.Headline == "" || record.Content == "" {
		return nil, &ArticleError{URL: candidate.URL, Err: ErrIncomplete}
	}

	// The article is complete; record it even if ctx ran out during
	// extraction.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RecordTimeout)
	defer cancel()
	if err := p.store.Record(recordCtx, candidate.URL); err != nil {
		return nil, err
	}

	log.Debug("Article extracted", logger.Int("content_length", len(record.Content)))
	return record, nil
}

// scrollToBottom steps down the page until the scrolled distance reaches
// the page height, which is re-read after every step so pages that grow
// while loading are followed.
func (p *Processor) scrollToBottom(ctx context.Context, session render.Session) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ScrollTimeout)
	defer cancel()

	scrolled := 0
	for {
		height, err := session.ScrollHeight(ctx)
		if err != nil {
			return fmt.Errorf("failed to read scroll height: %w", err)
		}
		if scrolled >= height {
			return nil
		}

		if err := session.ScrollBy(ctx, p.cfg.ScrollStep); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		scrolled += p.cfg.ScrollStep

		if err := sleep(ctx, p.cfg.ScrollInterval); err != nil {
			return err
		}
	}
}

// imageOrigin is the listing site's origin, or the article's when the
// listing URL has none.
func imageOrigin(desc *scraper.SiteDescriptor, articleURL string) string {
	if origin := desc.Origin(); origin != "" {
		return origin
	}
	u, err := url.Parse(articleURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// publisherHost returns the article's hostname without a leading "www.".
func publisherHost(articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
