// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paperfinder/internal/resolver"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// DefaultConcurrency bounds in-flight resolutions in ResolveAll. Backend
// limiters still apply across them.
const DefaultConcurrency = 4

// Resolver resolves one query. *resolver.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, text string) (resolver.Result, error)
}

// Resolution pairs a reference with the outcome of resolving it.
type Resolution struct {
	Reference Reference       `json:"reference" yaml:"reference"`
	Query     string          `json:"query" yaml:"query"`
	Result    resolver.Result `json:"result" yaml:"result"`
	Err       error           `json:"-" yaml:"-"`
}

// Best returns the top candidate, if any.
func (r Resolution) Best() (types.Paper, bool) {
	if r.Err != nil || len(r.Result.Candidates) == 0 {
		return types.Paper{}, false
	}
	return r.Result.Candidates[0], true
}

// ResolveAll resolves every reference with at most concurrency queries in
// flight. Results keep the order of refs; a failed reference carries its
// error and does not stop the others.
func ResolveAll(ctx context.Context, r Resolver, refs []Reference, concurrency int) []Resolution {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	out := make([]Resolution, len(refs))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			q := ref.Query()
			res, err := r.Resolve(ctx, q)
			out[i] = Resolution{Reference: ref, Query: q, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
