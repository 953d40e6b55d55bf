// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolver is the entry point of the citation pipeline. It turns
// query text into ranked candidate papers: route, try the identifier fast
// path, fan out to backends, then deduplicate and rank. Refinement from
// full text is offered as a separate operation.
package resolver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/paperfinder/internal/backend"
	"github.com/pdiddy/paperfinder/internal/dedup"
	"github.com/pdiddy/paperfinder/internal/httputil"
	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/internal/normalize"
	"github.com/pdiddy/paperfinder/internal/refine"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/internal/search"
	"github.com/pdiddy/paperfinder/internal/webmeta"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// ErrNoResults is returned when every consulted backend came back empty or
// unavailable.
var ErrNoResults = errors.New("no results found")

// DefaultMaxCandidates bounds the candidate list when the config leaves it
// unset.
const DefaultMaxCandidates = 5

// Result is the outcome of one resolution.
type Result struct {
	RequestID string       `json:"request_id" yaml:"request_id"`
	Query     string       `json:"query" yaml:"query"`
	Domain    route.Domain `json:"domain" yaml:"domain"`

	// Candidates are ranked best first.
	Candidates []types.Paper `json:"candidates" yaml:"candidates"`

	// Direct reports that the identifier fast path answered and ranking
	// was skipped.
	Direct bool `json:"direct" yaml:"direct"`

	Events []types.Event `json:"events,omitempty" yaml:"events,omitempty"`
}

// Resolver runs the pipeline. It is safe for concurrent use.
type Resolver struct {
	router        route.Router
	orch          *search.Orchestrator
	refiner       *refine.Refiner
	pages         *webmeta.Fetcher
	deadline      time.Duration
	maxCandidates int
	logger        *zap.Logger
}

type options struct {
	httpClient *http.Client
	backends   map[string]backend.Backend
	extractor  refine.TextExtractor
	logger     *zap.Logger
}

// Option configures a Resolver.
type Option func(*options)

// WithHTTPClient sets the client shared by backends and refinement.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithBackends replaces the backends built from configuration.
func WithBackends(b map[string]backend.Backend) Option { return func(o *options) { o.backends = b } }

// WithExtractor replaces the PDF text extractor used by refinement and by
// URL queries that point at a PDF.
func WithExtractor(e refine.TextExtractor) Option { return func(o *options) { o.extractor = e } }

// WithLogger sets the debug logger passed to every stage.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// New builds a Resolver and its stages from cfg.
func New(cfg types.Config, opts ...Option) *Resolver {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.backends == nil {
		o.backends = backend.NewSet(cfg.Resolver, o.httpClient, o.logger)
	}

	caps := make(map[string]int)
	for id, bc := range cfg.Resolver.Backends {
		if bc.Cap > 0 {
			caps[id] = bc.Cap
		}
	}
	deadline := cfg.Resolver.Deadline
	if deadline <= 0 {
		deadline = search.DefaultDeadline
	}
	maxCandidates := cfg.Resolver.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	refineOpts := []refine.Option{
		refine.WithLogger(o.logger.Named("refine")),
		refine.WithMailto(cfg.Resolver.Mailto),
	}
	if o.extractor != nil {
		refineOpts = append(refineOpts, refine.WithExtractor(o.extractor))
	}
	pages := &webmeta.Fetcher{
		Client:    o.httpClient,
		Limiter:   httputil.NewLimiter(2, 2, 2),
		Retry:     httputil.RetryPolicy{MaxRetries: 2, Logger: o.logger.Named("webpage")},
		UserAgent: cfg.Resolver.UserAgent,
		Timeout:   cfg.Resolver.Timeout,
	}
	return &Resolver{
		router:        route.Router{Caps: caps},
		orch:          search.New(o.backends, deadline, o.logger.Named("search")),
		refiner:       refine.New(cfg.Refine, o.httpClient, refineOpts...),
		pages:         pages,
		deadline:      deadline,
		maxCandidates: maxCandidates,
		logger:        o.logger,
	}
}

// Plan returns the routing plan text would use, without calling out.
func (r *Resolver) Plan(text string) (route.Plan, error) {
	q, err := route.NewQuery(text)
	if err != nil {
		return route.Plan{}, err
	}
	return r.router.Route(q), nil
}

// Resolve returns ranked candidates for text. It fails with
// route.ErrInvalidQuery before any backend call when text is unusable, and
// with ErrNoResults when nothing was found; the Result is still returned
// in that case so its events explain why. Every other failure is reported
// as an event.
//
// The whole call runs under one deadline. A URL query first reads the
// page it points at, and the identifier fast path gets part of the time
// that remains; the fan-out keeps the rest.
func (r *Resolver) Resolve(ctx context.Context, text string) (Result, error) {
	q, err := route.NewQuery(text)
	if err != nil {
		return Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	plan := r.router.Route(q)
	res := Result{RequestID: uuid.NewString(), Query: q.Text()}
	log := r.logger.With(zap.String("request_id", res.RequestID))

	if plan.Direct == nil && plan.Hint.Kind == ident.KindURL {
		pageURL := plan.Hint.Value
		page, ev := r.readPage(ctx, pageURL)
		res.Events = append(res.Events, ev)
		q, plan = r.planFromPage(q, plan, page)
		log.Debug("read page", zap.String("url", pageURL), zap.String("found", page.Found()))
	}
	res.Domain = plan.Domain
	log.Debug("routed",
		zap.String("domain", string(plan.Domain)),
		zap.Strings("order", plan.Order()),
		zap.Stringer("hint", plan.Hint.Kind),
	)

	if plan.Direct != nil {
		p, ok, ev := r.direct(ctx, plan)
		res.Events = append(res.Events, ev)
		if ok {
			res.Direct = true
			res.Candidates = []types.Paper{p}
			res.tag()
			return res, nil
		}
	}

	out := r.orch.Resolve(ctx, q, plan.Steps)
	candidates, merges := dedup.Rank(out.Papers, plan.Order())
	res.Events = append(res.Events, out.Events...)
	res.Events = append(res.Events, merges...)
	if len(candidates) > r.maxCandidates {
		candidates = candidates[:r.maxCandidates]
	}
	res.Candidates = candidates
	res.tag()

	log.Debug("resolved",
		zap.Int("records", len(out.Papers)),
		zap.Int("candidates", len(candidates)),
		zap.Int("events", len(res.Events)),
	)
	if len(candidates) == 0 {
		return res, eris.Wrapf(ErrNoResults, "query %q", res.Query)
	}
	return res, nil
}

// direct fetches the plan's identifier from its direct backend. It reports
// ok only for exactly one record carrying the same identifier.
func (r *Resolver) direct(ctx context.Context, plan route.Plan) (types.Paper, bool, types.Event) {
	name := plan.Direct.Backend
	miss := func(format string, args ...any) (types.Paper, bool, types.Event) {
		return types.Paper{}, false, types.NewEvent(types.EventDirectResolve, name, format, args...).
			With("outcome", "miss").With("id", plan.Hint.Value)
	}

	b, ok := r.orch.Backend(name)
	if !ok {
		return miss("backend is not configured")
	}
	ctx, cancel := share(ctx)
	defer cancel()

	rec, err := b.FetchByID(ctx, plan.Hint.Value)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return miss("no record for %s", plan.Hint.Value)
	case err != nil:
		return miss("%v", err)
	}
	p, err := normalize.Normalize(rec)
	if err != nil {
		return miss("%v", err)
	}
	if !matchesHint(p.Identifiers, plan.Hint) {
		return miss("record does not carry %s", plan.Hint.Value)
	}
	return p, true, types.NewEvent(types.EventDirectResolve, name, "exact identifier match").
		With("outcome", "hit").With("id", plan.Hint.Value)
}

func matchesHint(ids types.Identifiers, h ident.Hint) bool {
	switch h.Kind {
	case ident.KindArxiv:
		return ids.ArXiv == h.Value
	case ident.KindACL:
		return strings.EqualFold(ids.ACL, h.Value)
	case ident.KindDOI:
		if strings.EqualFold(ids.DOI, h.Value) {
			return true
		}
		// arXiv DataCite DOIs are stored as arXiv ids.
		const prefix = "10.48550/arxiv."
		lower := strings.ToLower(h.Value)
		return strings.HasPrefix(lower, prefix) && ids.ArXiv == ident.NormalizeArxiv(h.Value[len(prefix):])
	}
	return false
}

// Refine improves one candidate from its full text.
func (r *Resolver) Refine(ctx context.Context, p types.Paper) (types.Paper, []types.Event) {
	return r.refiner.Refine(ctx, p)
}

// RefineAll refines candidates concurrently, keeping their order.
func (r *Resolver) RefineAll(ctx context.Context, papers []types.Paper) ([]types.Paper, []types.Event) {
	return r.refiner.RefineAll(ctx, papers)
}

func (res *Result) tag() {
	for i := range res.Events {
		res.Events[i].RequestID = res.RequestID
	}
}
