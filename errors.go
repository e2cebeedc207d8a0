package newsharvest

import (
	"fmt"
)

// SiteError reports a fault while processing one site. It ends up in the
// site's result and never stops other sites.
type SiteError struct {
	HeadlineURL string
	Stage       string // "validate", "discover", "filter" or "extract"
	Err         error
}

func (e *SiteError) Error() string {
	return fmt.Sprintf("site %s: %s: %v", e.HeadlineURL, e.Stage, e.Err)
}

func (e *SiteError) Unwrap() error { return e.Err }

// DeliveryError reports a webhook that could not be delivered.
type DeliveryError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery to %s failed: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("delivery to %s failed: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
