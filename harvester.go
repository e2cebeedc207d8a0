// Package newsharvest discovers, extracts and deduplicates news articles
// from a caller-supplied list of sites.
package newsharvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/logger"
	"github.com/pevans/newsharvest/render"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/seen"
)

// DefaultRunTimeout bounds one batch run.
const DefaultRunTimeout = 10 * time.Minute

// Config holds the harvester's tunables.
type Config struct {
	// Concurrency is how many sites run at once.
	Concurrency int
	RunTimeout  time.Duration
	// Article timings. Retry also governs listing page navigation.
	Article           discovery.ProcessorConfig
	ImageCheckTimeout time.Duration
}

// DefaultConfig returns one site at a time with a ten minute run budget.
func DefaultConfig() Config {
	return Config{
		Concurrency:       1,
		RunTimeout:        DefaultRunTimeout,
		Article:           discovery.DefaultProcessorConfig(),
		ImageCheckTimeout: discovery.DefaultImageCheckTimeout,
	}
}

// Option customizes a Harvester.
type Option func(*Harvester)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(h *Harvester) { h.logger = log }
}

// WithSink sets where results are delivered. nil disables delivery.
func WithSink(sink Sink) Option {
	return func(h *Harvester) { h.sink = sink }
}

// WithPacer sets the delay between articles of one site.
func WithPacer(pacer discovery.Pacer) Option {
	return func(h *Harvester) { h.pacer = pacer }
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Harvester) { h.metrics = m }
}

// WithImageVerifier replaces the HTTP image check.
func WithImageVerifier(v discovery.ImageVerifier) Option {
	return func(h *Harvester) { h.verifier = v }
}

// WithFeedDiscoverer replaces the RSS/Atom listing reader.
func WithFeedDiscoverer(d *discovery.FeedDiscoverer) Option {
	return func(h *Harvester) { h.feeds = d }
}

// Harvester runs scrape batches. The seen store is its only state that
// outlives a run.
type Harvester struct {
	provider render.Provider
	store    seen.Store
	cfg      Config

	logger    logger.Logger
	sink      Sink
	pacer     discovery.Pacer
	metrics   *Metrics
	verifier  discovery.ImageVerifier
	feeds     *discovery.FeedDiscoverer
	processor *discovery.Processor
}

// NewHarvester creates a harvester. By default results are delivered with a
// WebhookSink and articles are paced with a RandomPacer.
func NewHarvester(provider render.Provider, store seen.Store, cfg Config, opts ...Option) *Harvester {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}

	h := &Harvester{
		provider: provider,
		store:    store,
		cfg:      cfg,
		logger:   logger.NewNop(),
		sink:     NewWebhookSink(nil, DefaultWebhookTimeout),
		pacer:    discovery.NewRandomPacer(),
		verifier: discovery.NewHTTPImageVerifier(cfg.ImageCheckTimeout, render.DefaultUserAgents[0]),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.feeds == nil {
		h.feeds = discovery.NewFeedDiscoverer(nil, render.DefaultUserAgents[0], cfg.Article.Retry.AttemptTimeout)
	}
	if h.pacer == nil {
		h.pacer = discovery.NoPacing()
	}

	extractor := discovery.NewExtractor(h.logger, h.verifier)
	h.processor = discovery.NewProcessor(provider, store, extractor, cfg.Article, h.logger)
	return h
}

// ScrapeWebsites sweeps the seen store, scrapes every site and delivers
// results with articles to their webhooks. Results are in input order. The
// only error returned is a store failure, which aborts the run.
func (h *Harvester) ScrapeWebsites(ctx context.Context, sites []scraper.SiteDescriptor) ([]SiteResult, error) {
	start := time.Now()
	log := h.logger.With(logger.String("run_id", uuid.NewString()))
	defer func() { h.metrics.run(time.Since(start)) }()

	runCtx, cancel := context.WithTimeout(ctx, h.cfg.RunTimeout)
	defer cancel()

	removed, err := h.store.Sweep(runCtx, seen.Retention)
	if err != nil {
		log.Error("Failed to sweep seen articles", logger.Err(err))
		return nil, fmt.Errorf("failed to sweep seen articles: %w", err)
	}
	log.Info("Run starting", logger.Int("sites", len(sites)), logger.Int64("swept", removed))

	results, err := h.scrapeAll(runCtx, sites, log)
	if err != nil {
		log.Error("Run aborted", logger.Err(err))
		return nil, err
	}

	// Deliveries use the caller's context so results gathered before the
	// run deadline still go out.
	for i := range results {
		h.deliver(ctx, &results[i], log)
	}

	log.Info("Run finished", logger.Duration("duration", time.Since(start)))
	return results, nil
}

// scrapeAll runs sites through a semaphore of cfg.Concurrency slots.
func (h *Harvester) scrapeAll(ctx context.Context, sites []scraper.SiteDescriptor, log logger.Logger) ([]SiteResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]SiteResult, len(sites))
	started := make([]bool, len(sites))
	sem := make(chan struct{}, h.cfg.Concurrency)

	var (
		wg        sync.WaitGroup
		fatalOnce sync.Once
		fatal     error
	)

launch:
	for i := range sites {
		select {
		case <-ctx.Done():
			break launch
		case sem <- struct{}{}:
		}

		started[i] = true
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := h.scrapeSite(ctx, &sites[i], log)
			results[i] = result
			if err != nil {
				fatalOnce.Do(func() {
					fatal = err
					cancel()
				})
			}
		}(i)
	}
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}

	for i := range sites {
		if !started[i] {
			results[i] = newSiteResult(sites[i])
			siteErr := &SiteError{HeadlineURL: sites[i].HeadlineURL, Stage: "discover", Err: ctx.Err()}
			results[i].Error = siteErr.Error()
			h.metrics.site(OutcomeError)
		}
	}
	return results, nil
}

// ScrapeSite scrapes one site. Every failure except a store failure is
// folded into the result's Error.
func (h *Harvester) ScrapeSite(ctx context.Context, site scraper.SiteDescriptor) (SiteResult, error) {
	return h.scrapeSite(ctx, &site, h.logger)
}

func (h *Harvester) scrapeSite(ctx context.Context, site *scraper.SiteDescriptor, log logger.Logger) (result SiteResult, fatal error) {
	log = log.With(logger.String("site", site.HeadlineURL))
	result = newSiteResult(*site)

	fail := func(stage string, err error) {
		siteErr := &SiteError{HeadlineURL: site.HeadlineURL, Stage: stage, Err: err}
		result.Error = siteErr.Error()
		log.Warn("Site failed", logger.String("stage", stage), logger.Err(err))
	}

	defer func() {
		if r := recover(); r != nil {
			fail("extract", fmt.Errorf("panic: %v", r))
		}
		result.HeadlineCount = len(result.ContentData)
		switch {
		case fatal != nil:
		case result.Error != "":
			h.metrics.site(OutcomeError)
		case result.HeadlineCount == 0:
			h.metrics.site(OutcomeEmpty)
		default:
			h.metrics.site(OutcomeOK)
		}
	}()

	if err := site.Validate(); err != nil {
		fail("validate", err)
		return result, nil
	}

	candidates, err := h.discover(ctx, site)
	if err != nil {
		fail("discover", err)
		return result, nil
	}

	candidates, err = h.filter(ctx, candidates, site.HeadlineCount)
	if err != nil {
		if storeFailure(ctx, err) {
			return result, err
		}
		fail("filter", err)
		return result, nil
	}
	log.Info("Headlines discovered", logger.Int("unseen", len(candidates)))

articles:
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			fail("extract", err)
			break
		}
		if i > 0 {
			if err := h.pacer.Wait(ctx); err != nil {
				fail("extract", err)
				break
			}
		}

		record, err := h.processor.Process(ctx, site, candidate)
		if err != nil {
			var storeErr *seen.StoreError
			switch {
			case storeFailure(ctx, err):
				return result, err
			case errors.As(err, &storeErr):
				h.metrics.article(OutcomeFailed)
				fail("extract", err)
				break articles
			case errors.Is(err, discovery.ErrIncomplete):
				h.metrics.article(OutcomeIncomplete)
				log.Info("Article incomplete", logger.String("article_url", candidate.URL))
			default:
				h.metrics.article(OutcomeFailed)
				log.Warn("Article failed", logger.String("article_url", candidate.URL), logger.Err(err))
			}
			continue
		}

		h.metrics.article(OutcomeAccepted)
		result.ContentData = append(result.ContentData, *record)
	}

	log.Info("Site finished", logger.Int("accepted", len(result.ContentData)))
	return result, nil
}

// storeFailure reports whether err means the seen store is unavailable.
// A store call cut short because ctx ended is an ordinary site failure.
func storeFailure(ctx context.Context, err error) bool {
	var storeErr *seen.StoreError
	return errors.As(err, &storeErr) && ctx.Err() == nil
}

// discover lists every candidate on the site's listing page. Truncation
// happens after filtering.
func (h *Harvester) discover(ctx context.Context, site *scraper.SiteDescriptor) ([]discovery.Candidate, error) {
	if site.IsFeed() {
		return h.feeds.DiscoverWithRetry(ctx, site.HeadlineURL, 0, h.cfg.Article.Retry)
	}

	session, err := h.provider.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	if err := discovery.Navigate(ctx, session, site.HeadlineURL, h.cfg.Article.Retry); err != nil {
		return nil, err
	}
	return discovery.Discover(ctx, session, site.URLHTMLTag, 0)
}

// filter drops candidates already in the store and repeats within the
// listing, then keeps at most limit of the rest.
func (h *Harvester) filter(ctx context.Context, candidates []discovery.Candidate, limit int) ([]discovery.Candidate, error) {
	listed := make(map[string]bool, len(candidates))
	kept := make([]discovery.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if listed[c.URL] {
			continue
		}
		listed[c.URL] = true

		has, err := h.store.Has(ctx, c.URL)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}

		kept = append(kept, c)
		if limit > 0 && len(kept) == limit {
			break
		}
	}
	return kept, nil
}

// deliver posts result to its webhook when it has articles. Failures are
// logged and dropped.
func (h *Harvester) deliver(ctx context.Context, result *SiteResult, log logger.Logger) {
	if h.sink == nil || result.Site.WebhookURL == "" || result.HeadlineCount == 0 {
		return
	}

	if err := h.sink.Deliver(ctx, result.Site.WebhookURL, *result); err != nil {
		h.metrics.delivery(OutcomeFailed)
		log.Warn("Delivery failed", logger.String("site", result.Site.HeadlineURL), logger.Err(err))
		return
	}
	h.metrics.delivery(OutcomeDelivered)
	log.Info("Results delivered", logger.String("site", result.Site.HeadlineURL),
		logger.String("webhook", result.Site.WebhookURL))
}

// Sweep removes seen articles older than the retention window.
func (h *Harvester) Sweep(ctx context.Context) (int64, error) {
	return h.store.Sweep(ctx, seen.Retention)
}
