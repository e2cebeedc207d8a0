package discovery

import (
	"context"
	"time"

	"github.com/pevans/newsharvest/render"
)

// RetryPolicy bounds how hard Navigate tries a single URL.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int
	// AttemptTimeout applies to each attempt independently.
	AttemptTimeout time.Duration
	// Backoff is the delay before the first retry; it doubles per retry.
	Backoff time.Duration
	// MaxBackoff caps the doubled delay.
	MaxBackoff time.Duration
	// WaitUntil is passed through to the session.
	WaitUntil string
}

// DefaultRetryPolicy returns three attempts of 30 seconds each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		AttemptTimeout: 30 * time.Second,
		Backoff:        time.Second,
		MaxBackoff:     10 * time.Second,
		WaitUntil:      render.WaitNetworkIdle,
	}
}

// withDefaults fills zero fields from DefaultRetryPolicy. A negative
// Backoff means retry immediately.
func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	if p.Backoff == 0 {
		p.Backoff = d.Backoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.WaitUntil == "" {
		p.WaitUntil = d.WaitUntil
	}
	return p
}

// Navigate loads url in session, retrying failed attempts with exponential
// backoff. It returns a *NavigationError carrying the last attempt's error
// once the policy is exhausted or ctx is done.
func Navigate(ctx context.Context, session render.Session, url string, policy RetryPolicy) error {
	policy = policy.withDefaults()
	opts := render.NavigateOptions{WaitUntil: policy.WaitUntil, Timeout: policy.AttemptTimeout}

	return retry(ctx, url, policy, func(ctx context.Context) error {
		return session.Navigate(ctx, url, opts)
	})
}

// retry runs load until it succeeds or policy is exhausted. policy must
// already have its defaults filled.
func retry(ctx context.Context, url string, policy RetryPolicy, load func(context.Context) error) error {
	delay := policy.Backoff
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = load(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return &NavigationError{URL: url, Attempts: attempt, Err: lastErr}
		}
		if attempt == policy.MaxAttempts {
			break
		}

		if delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				return &NavigationError{URL: url, Attempts: attempt, Err: err}
			}
			delay = min(delay*2, policy.MaxBackoff)
		}
	}

	return &NavigationError{URL: url, Attempts: policy.MaxAttempts, Err: lastErr}
}
