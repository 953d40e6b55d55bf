// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend implements clients for the external metadata sources:
// DBLP, Semantic Scholar, the ACL Anthology (through Semantic Scholar's
// venue filter), arXiv, and Crossref. Clients return opaque source records;
// turning them into papers is the normalize package's job.
//
// Every client owns a rate limiter and a per-call timeout. Rate-limit
// responses are retried with backoff; persistent failure surfaces as
// ErrSourceUnavailable. Clients never retry on their own beyond that.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/paperfinder/internal/httputil"
	"github.com/pdiddy/paperfinder/pkg/types"
)

var (
	// ErrSourceUnavailable means the source could not be reached, timed out,
	// kept rate limiting, or returned a response that could not be parsed.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotFound means the source answered but has no record for the id.
	ErrNotFound = errors.New("not found")
)

// Backend is one external metadata source.
type Backend interface {
	// Name returns the backend id used in routing plans and provenance.
	Name() string

	// Search returns at most limit records matching text. It may return
	// records together with a *PartialError when some entries could not
	// be parsed.
	Search(ctx context.Context, text string, limit int) ([]Record, error)

	// FetchByID returns the record for an identifier the source understands,
	// or ErrNotFound.
	FetchByID(ctx context.Context, id string) (Record, error)
}

// Record is a source-specific record. Payload holds one of the payload types
// of this package (*DBLPInfo, *S2Paper, *ArxivEntry, *CrossrefWork).
type Record struct {
	Backend string
	Payload any
}

// PartialError reports entries that a backend dropped while parsing an
// otherwise usable response.
type PartialError struct {
	Backend string
	Dropped int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s: dropped %d malformed entries", e.Backend, e.Dropped)
}

// maxResponseBytes bounds metadata response bodies.
const maxResponseBytes = 8 << 20

// Client is the HTTP plumbing shared by the source clients.
type Client struct {
	HTTP      *http.Client
	Limiter   *httputil.Limiter
	Retry     httputil.RetryPolicy
	Timeout   time.Duration
	UserAgent string
}

// get fetches rawURL under the client's limiter, retry policy, and per-call
// timeout. A 404 maps to ErrNotFound; every other failure wraps
// ErrSourceUnavailable.
func (c *Client) get(ctx context.Context, name, rawURL string, header http.Header) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(ErrSourceUnavailable, "%s: creating request: %v", name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, httpClient, req, c.Limiter, c.Retry)
	if err != nil {
		return nil, eris.Wrapf(ErrSourceUnavailable, "%s: %v", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "%s: HTTP 404", name)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Wrapf(ErrSourceUnavailable, "%s: HTTP %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrapf(ErrSourceUnavailable, "%s: reading response: %v", name, err)
	}
	return body, nil
}

// partial returns records with a *PartialError when entries were dropped.
func partial(name string, recs []Record, dropped int) ([]Record, error) {
	if dropped > 0 {
		return recs, &PartialError{Backend: name, Dropped: dropped}
	}
	return recs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 5
	case limit > 100:
		return 100
	}
	return limit
}

// defaultLimits are the per-source quotas used when config leaves them
// unset. Semantic Scholar without an API key allows one request per second.
var defaultLimits = map[string]types.BackendConfig{
	types.BackendDBLP:            {RatePerSecond: 2, Burst: 2, MaxConcurrent: 2},
	types.BackendSemanticScholar: {RatePerSecond: 1, Burst: 1, MaxConcurrent: 1},
	types.BackendArxiv:           {RatePerSecond: 1.0 / 3, Burst: 1, MaxConcurrent: 1},
	types.BackendCrossref:        {RatePerSecond: 10, Burst: 5, MaxConcurrent: 3},
}

// keyedSemanticLimit applies when a Semantic Scholar API key is configured.
var keyedSemanticLimit = types.BackendConfig{RatePerSecond: 10, Burst: 5, MaxConcurrent: 4}

// NewSet builds every backend from cfg, keyed by backend id. Disabled
// backends are left out; the orchestrator reports them as unavailable when
// a plan names them. The Semantic Scholar and ACL Anthology clients share
// one limiter because they draw on the same quota. logger receives retry
// decisions; nil discards them.
func NewSet(cfg types.ResolverConfig, httpClient *http.Client, logger *zap.Logger) map[string]Backend {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientFor := func(id string, lim *httputil.Limiter) *Client {
		bc := cfg.Backends[id]
		timeout := bc.CallTimeout
		if timeout <= 0 {
			timeout = cfg.Timeout
		}
		return &Client{
			HTTP:      httpClient,
			Limiter:   lim,
			Retry: httputil.RetryPolicy{
				MaxRetries: bc.MaxRetries,
				MaxWait:    bc.MaxRetryWait,
				Logger:     logger.With(zap.String("backend", id)),
			},
			Timeout:   timeout,
			UserAgent: cfg.UserAgent,
		}
	}
	limiterFor := func(id string) *httputil.Limiter {
		def := defaultLimits[id]
		if id == types.BackendSemanticScholar && cfg.SemanticScholarAPIKey != "" {
			def = keyedSemanticLimit
		}
		bc := cfg.Backends[id]
		if bc.RatePerSecond > 0 {
			def.RatePerSecond = bc.RatePerSecond
		}
		if bc.Burst > 0 {
			def.Burst = bc.Burst
		}
		if bc.MaxConcurrent > 0 {
			def.MaxConcurrent = bc.MaxConcurrent
		}
		return httputil.NewLimiter(def.RatePerSecond, def.Burst, def.MaxConcurrent)
	}
	enabled := func(id string) bool {
		bc, ok := cfg.Backends[id]
		return !ok || bc.Enabled
	}

	set := make(map[string]Backend)
	s2Limiter := limiterFor(types.BackendSemanticScholar)
	if enabled(types.BackendDBLP) {
		set[types.BackendDBLP] = &DBLPBackend{Client: clientFor(types.BackendDBLP, limiterFor(types.BackendDBLP))}
	}
	if enabled(types.BackendSemanticScholar) {
		set[types.BackendSemanticScholar] = &SemanticScholarBackend{
			Client: clientFor(types.BackendSemanticScholar, s2Limiter),
			APIKey: cfg.SemanticScholarAPIKey,
		}
	}
	if enabled(types.BackendACL) {
		set[types.BackendACL] = &ACLBackend{
			Client: clientFor(types.BackendACL, s2Limiter),
			APIKey: cfg.SemanticScholarAPIKey,
		}
	}
	if enabled(types.BackendArxiv) {
		set[types.BackendArxiv] = &ArxivBackend{Client: clientFor(types.BackendArxiv, limiterFor(types.BackendArxiv))}
	}
	if enabled(types.BackendCrossref) {
		set[types.BackendCrossref] = &CrossrefBackend{
			Client: clientFor(types.BackendCrossref, limiterFor(types.BackendCrossref)),
			Mailto: cfg.Mailto,
		}
	}
	return set
}
