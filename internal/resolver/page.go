// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/internal/webmeta"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// PageSource names events raised while reading a URL query's target.
const PageSource = "webpage"

// readPage returns the metadata behind a URL query. PDF links go through
// the refiner's extractor; anything else is read as a landing page, and a
// landing page that turns out to be a PDF is retried as one.
func (r *Resolver) readPage(ctx context.Context, rawURL string) (webmeta.Page, types.Event) {
	ctx, cancel := share(ctx)
	defer cancel()

	var (
		page webmeta.Page
		err  error
		pdf  = webmeta.IsPDFURL(rawURL)
	)
	if !pdf {
		page, err = r.pages.Fetch(ctx, rawURL)
		pdf = errors.Is(err, webmeta.ErrNotHTML)
	}
	if pdf {
		page, err = r.inspectPDF(ctx, rawURL)
	}
	if err != nil {
		return webmeta.Page{}, types.NewEvent(types.EventSourceUnavailable, PageSource, "%v", err).
			With("url", rawURL)
	}
	return page, types.NewEvent(types.EventPageMetadata, PageSource, "read %s from page", page.Found()).
		With("url", rawURL).With("found", page.Found())
}

func (r *Resolver) inspectPDF(ctx context.Context, rawURL string) (webmeta.Page, error) {
	f, err := r.refiner.Inspect(ctx, rawURL)
	if err != nil {
		return webmeta.Page{}, err
	}
	return webmeta.Page{Title: f.Title, Authors: f.Authors, Year: f.Year, DOI: f.DOI, ArXiv: f.ArXiv}, nil
}

// planFromPage rewrites a URL query's plan with what its page yielded: an
// identifier enables the direct path and a title replaces the URL as the
// search text. A domain inferred from the identifier is preferred over one
// inferred from the title. The returned query is the one to fan out with.
func (r *Resolver) planFromPage(q route.Query, plan route.Plan, page webmeta.Page) (route.Query, route.Plan) {
	if h := page.Hint(); h.Kind != ident.KindUnknown {
		if idq, err := route.NewQuery(h.Value); err == nil {
			if idPlan := r.router.Route(idq); idPlan.Direct != nil {
				q, plan = idq, idPlan
			}
		}
	}
	if page.Title == "" {
		return q, plan
	}
	tq, err := route.NewQuery(page.Title)
	if err != nil {
		return q, plan
	}
	if plan.Direct == nil || plan.Domain == route.DomainOther {
		titlePlan := r.router.Route(tq)
		plan.Domain, plan.Steps = titlePlan.Domain, titlePlan.Steps
	}
	return tq, plan
}

// directShare is the divisor applied to the remaining request time for a
// step that runs ahead of the fan-out.
const directShare = 2

// share derives a context holding part of ctx's remaining time, so a step
// run before the fan-out cannot consume the whole request deadline.
func share(ctx context.Context) (context.Context, context.CancelFunc) {
	dl, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(dl)/directShare)
}
