package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/newsharvest/logger"
	"github.com/pevans/newsharvest/render"
	"github.com/pevans/newsharvest/scraper"
)

// DefaultImageCheckTimeout bounds one image verification.
const DefaultImageCheckTimeout = 5 * time.Second

// ImageVerifier decides whether an image URL is worth keeping.
type ImageVerifier interface {
	Verify(ctx context.Context, imageURL string) bool
}

// Extractor resolves article fields from ordered fallback chains. A
// strategy that fails is logged at debug level and skipped.
type Extractor struct {
	logger   logger.Logger
	verifier ImageVerifier
}

// NewExtractor creates an extractor. A nil verifier accepts every image URL.
func NewExtractor(log logger.Logger, verifier ImageVerifier) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{logger: log, verifier: verifier}
}

// Resolve evaluates chain left to right and returns the first non-empty
// trimmed value, or "" when every strategy fails or yields nothing.
func (e *Extractor) Resolve(ctx context.Context, session render.Session, chain []scraper.SelectorSpec) string {
	for _, spec := range chain {
		value, err := e.evaluate(ctx, session, spec)
		if err != nil {
			e.logger.Debug("Field strategy failed", logger.String("selector", spec.Selector), logger.Err(err))
			continue
		}
		if value != "" {
			return value
		}
	}
	return ""
}

// ResolveImage is Resolve for image URLs. Each candidate is made absolute
// against origin and must pass the verifier; rejected candidates fall
// through to the next strategy.
func (e *Extractor) ResolveImage(ctx context.Context, session render.Session, chain []scraper.SelectorSpec, origin string) string {
	for _, spec := range chain {
		value, err := e.evaluate(ctx, session, spec)
		if err != nil {
			e.logger.Debug("Image strategy failed", logger.String("selector", spec.Selector), logger.Err(err))
			continue
		}
		if value == "" {
			continue
		}

		imageURL := ResolveURL(origin, value)
		if imageURL == "" {
			e.logger.Debug("Image URL unusable", logger.String("value", value))
			continue
		}
		if e.verifier != nil && !e.verifier.Verify(ctx, imageURL) {
			e.logger.Debug("Image URL failed verification", logger.String("url", imageURL))
			continue
		}
		return imageURL
	}
	return ""
}

// Collect returns the text of every element matching the first strategy
// that yields any, blank entries dropped. Non-text strategies contribute
// their single value.
func (e *Extractor) Collect(ctx context.Context, session render.Session, chain []scraper.SelectorSpec) []string {
	for _, spec := range chain {
		var texts []string

		if spec.EffectiveMode() == scraper.ModeText {
			elements, err := session.QueryAll(ctx, spec.Selector)
			if err != nil {
				e.logger.Debug("Content strategy failed", logger.String("selector", spec.Selector),
					logger.Err(&ExtractionError{Spec: spec, Err: err}))
				continue
			}
			for _, el := range elements {
				if text := strings.TrimSpace(el.Text); text != "" {
					texts = append(texts, text)
				}
			}
		} else if value := e.Resolve(ctx, session, []scraper.SelectorSpec{spec}); value != "" {
			texts = append(texts, value)
		}

		if len(texts) > 0 {
			return texts
		}
	}
	return nil
}

// evaluate runs one strategy. A selector with no match yields "" and no
// error.
func (e *Extractor) evaluate(ctx context.Context, session render.Session, spec scraper.SelectorSpec) (string, error) {
	if spec.Selector == "" {
		return "", &ExtractionError{Spec: spec, Err: errors.New("empty selector")}
	}

	switch spec.EffectiveMode() {
	case scraper.ModeText:
		elements, err := session.QueryAll(ctx, spec.Selector)
		if err != nil {
			return "", &ExtractionError{Spec: spec, Err: err}
		}
		if len(elements) == 0 {
			return "", nil
		}
		return strings.TrimSpace(elements[0].Text), nil

	case scraper.ModeAttribute:
		if spec.Attr == "" {
			return "", &ExtractionError{Spec: spec, Err: errors.New("attribute mode requires attr")}
		}
		value, _, err := session.QueryAttribute(ctx, spec.Selector, spec.Attr)
		if err != nil {
			return "", &ExtractionError{Spec: spec, Err: err}
		}
		return strings.TrimSpace(value), nil

	case scraper.ModeSrcsetLast:
		attr := spec.Attr
		if attr == "" {
			attr = "srcset"
		}
		value, _, err := session.QueryAttribute(ctx, spec.Selector, attr)
		if err != nil {
			return "", &ExtractionError{Spec: spec, Err: err}
		}
		return LastSrcsetURL(value), nil
	}

	return "", &ExtractionError{Spec: spec, Err: fmt.Errorf("unknown mode %q", spec.Mode)}
}

// LastSrcsetURL returns the URL of the last candidate in a srcset value.
func LastSrcsetURL(srcset string) string {
	var last string
	for entry := range strings.SplitSeq(srcset, ",") {
		if fields := strings.Fields(entry); len(fields) > 0 {
			last = fields[0]
		}
	}
	return last
}

// ResolveURL makes raw absolute against origin. It returns "" for data:
// URLs, non-http schemes, and relative URLs with no origin to resolve
// against.
func ResolveURL(origin, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return ""
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	if !ref.IsAbs() {
		base, err := url.Parse(origin)
		if err != nil || base.Scheme == "" || base.Host == "" {
			return ""
		}
		ref = base.ResolveReference(ref)
	}

	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// HTTPImageVerifier checks that an image URL answers with 2xx or 3xx. It
// tries HEAD first and falls back to a one-byte ranged GET when the server
// refuses HEAD.
type HTTPImageVerifier struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewHTTPImageVerifier creates a verifier. Redirects are not followed: a
// 3xx answer already counts as reachable.
func NewHTTPImageVerifier(timeout time.Duration, userAgent string) *HTTPImageVerifier {
	if timeout <= 0 {
		timeout = DefaultImageCheckTimeout
	}
	return &HTTPImageVerifier{
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Verify reports whether imageURL is reachable.
func (v *HTTPImageVerifier) Verify(ctx context.Context, imageURL string) bool {
	if strings.HasPrefix(strings.ToLower(imageURL), "data:") {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	status, err := v.probe(ctx, http.MethodHead, imageURL)
	if err != nil {
		return false
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented || status == http.StatusForbidden {
		status, err = v.probe(ctx, http.MethodGet, imageURL)
		if err != nil {
			return false
		}
	}
	return status >= 200 && status < 400
}

func (v *HTTPImageVerifier) probe(ctx context.Context, method, imageURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, imageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch image: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
