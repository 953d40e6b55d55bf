// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter enforces one source's quota: a request rate and a bound on
// in-flight requests. It is safe for concurrent use and is typically shared
// by every client that talks to the same service.
type Limiter struct {
	rate *rate.Limiter
	sem  *semaphore.Weighted
}

// NewLimiter creates a limiter allowing perSecond requests with the given
// burst and at most maxConcurrent requests in flight. A non-positive rate
// disables rate limiting; a non-positive maxConcurrent disables the
// concurrency bound.
func NewLimiter(perSecond float64, burst, maxConcurrent int) *Limiter {
	l := &Limiter{}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		l.rate = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	if maxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return l
}

// Acquire blocks until a request may start. The returned release must be
// called when the request completes. A nil Limiter never blocks.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if l == nil {
		return func() {}, nil
	}
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, eris.Wrap(err, "limiter: waiting for slot")
		}
	}
	if l.rate != nil {
		if err := l.rate.Wait(ctx); err != nil {
			if l.sem != nil {
				l.sem.Release(1)
			}
			return nil, eris.Wrap(err, "limiter: waiting for token")
		}
	}
	if l.sem == nil {
		return func() {}, nil
	}
	return func() { l.sem.Release(1) }, nil
}
