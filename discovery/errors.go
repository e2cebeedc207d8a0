package discovery

import (
	"errors"
	"fmt"

	"github.com/pevans/newsharvest/scraper"
)

// ErrIncomplete is returned when an article lacks a headline or content.
var ErrIncomplete = errors.New("article missing headline or content")

// NavigationError reports a navigation that failed on every attempt.
type NavigationError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to navigate to %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionError reports one field strategy that could not be evaluated.
// The extractor logs and recovers these.
type ExtractionError struct {
	Spec scraper.SelectorSpec
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s from %q: %v", e.Spec.EffectiveMode(), e.Spec.Selector, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ArticleError reports a fault while processing one article. The article
// is skipped; the site carries on.
type ArticleError struct {
	URL string
	Err error
}

func (e *ArticleError) Error() string {
	return fmt.Sprintf("article %s: %v", e.URL, e.Err)
}

func (e *ArticleError) Unwrap() error { return e.Err }
