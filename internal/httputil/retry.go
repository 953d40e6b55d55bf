// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP plumbing shared by backend clients and
// the PDF downloader: rate-limit aware retries and per-source limiters.
package httputil

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrRetriesExhausted is returned when a source keeps signalling rate
// limiting after the retry policy's attempts or wait budget run out.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryBaseDelay is the backoff base used when a policy leaves BaseDelay
// unset. Tests override this to avoid real sleeps.
var RetryBaseDelay = time.Second

const (
	defaultMaxRetries = 4
	defaultMaxWait    = 30 * time.Second
	defaultJitter     = 0.25
)

// RetryPolicy bounds retries on rate-limit signals (HTTP 429 and 503).
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the first backoff; it doubles on each retry.
	BaseDelay time.Duration

	// MaxWait caps the total time spent sleeping between attempts.
	MaxWait time.Duration

	// Jitter is the random spread applied to each delay as a fraction
	// (0.25 means plus or minus 25%).
	Jitter float64

	// Logger receives backoff decisions. Nil discards them.
	Logger *zap.Logger
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = RetryBaseDelay
	}
	if p.MaxWait <= 0 {
		p.MaxWait = defaultMaxWait
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = defaultJitter
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// backoff returns the jittered delay before retry number attempt (0-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.Jitter > 0 {
		d *= 1 + p.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// IsRateLimited reports whether status is a rate-limit signal.
func IsRateLimited(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// DoWithRetry executes req and retries while the server answers with a
// rate-limit signal. Each retry waits for the server's Retry-After value
// when present, otherwise an exponentially growing jittered delay. The
// limiter, when non-nil, is acquired before every attempt. A returned
// response holds its slot until the caller closes the body; a rate-limited
// one gives it back before any sleep.
//
// Non rate-limit responses are returned to the caller unchanged, whatever
// their status. When the policy runs out of retries or wait budget the last
// response is drained and an error wrapping ErrRetriesExhausted is returned.
// Context cancellation during a wait returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, lim *Limiter, policy RetryPolicy) (*http.Response, error) {
	policy = policy.withDefaults()
	var waited time.Duration

	for attempt := 0; ; attempt++ {
		release, err := lim.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			release()
			return nil, err
		}
		if !IsRateLimited(resp.StatusCode) {
			resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
			return resp, nil
		}

		status := resp.StatusCode
		delay, fromServer := retryAfter(resp.Header.Get("Retry-After"), time.Now())
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		release()

		if !fromServer {
			delay = policy.backoff(attempt)
		}
		if attempt >= policy.MaxRetries || waited+delay > policy.MaxWait {
			return nil, eris.Wrapf(ErrRetriesExhausted, "%s: HTTP %d after %d attempts", req.URL.Host, status, attempt+1)
		}

		policy.Logger.Debug("rate limited, backing off",
			zap.String("host", req.URL.Host),
			zap.Int("status", status),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		waited += delay
	}
}

// releasingBody gives a limiter slot back when the body is closed.
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

// retryAfter parses a Retry-After header given either as delta seconds or
// as an HTTP date. It reports false when the header is absent or invalid.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
