// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans a routed query out to its backends concurrently and
// collects normalized papers under one request deadline. Backend failures
// become events; the outcome is whatever arrived in time.
package search

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paperfinder/internal/backend"
	"github.com/pdiddy/paperfinder/internal/normalize"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// DefaultDeadline bounds a fan-out when the orchestrator has none set.
const DefaultDeadline = 20 * time.Second

// Outcome is the merged result of one fan-out. Papers keep routed step
// order, and within a step the backend's own order.
type Outcome struct {
	Papers []types.Paper
	Events []types.Event
}

// Orchestrator runs routing plans against a fixed set of backends.
type Orchestrator struct {
	backends map[string]backend.Backend
	deadline time.Duration
	logger   *zap.Logger
}

// New creates an orchestrator. A zero deadline uses DefaultDeadline and a
// nil logger discards output.
func New(backends map[string]backend.Backend, deadline time.Duration, logger *zap.Logger) *Orchestrator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{backends: backends, deadline: deadline, logger: logger}
}

// Backend returns the backend registered under id.
func (o *Orchestrator) Backend(id string) (backend.Backend, bool) {
	b, ok := o.backends[id]
	return b, ok
}

type stepResult struct {
	index   int
	papers  []types.Paper
	events  []types.Event
	elapsed time.Duration
}

// Resolve queries every step's backend concurrently with q's search text
// and waits at most until the deadline. Backends that have not answered by
// then are reported as SourceUnavailable and their goroutines are left to
// observe the cancelled context; results are delivered on a buffered
// channel so those goroutines never block.
func (o *Orchestrator) Resolve(ctx context.Context, q route.Query, steps []route.Step) Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	text := q.SearchText()
	results := make([]*stepResult, len(steps))
	ch := make(chan stepResult, len(steps))
	pending := 0

	for i, step := range steps {
		b, ok := o.backends[step.Backend]
		if !ok {
			results[i] = &stepResult{index: i, events: []types.Event{
				types.NewEvent(types.EventSourceUnavailable, step.Backend, "backend is not configured"),
			}}
			continue
		}
		pending++
		go func(i int, step route.Step, b backend.Backend) {
			start := time.Now()
			recs, err := b.Search(ctx, text, step.Cap)
			r := collect(step.Backend, recs, err)
			r.index = i
			r.elapsed = time.Since(start)
			ch <- r
		}(i, step, b)
	}

	// The caller's deadline may be earlier than the orchestrator's.
	dl, _ := ctx.Deadline()
	limit := time.Until(dl).Round(time.Millisecond)

	for pending > 0 {
		select {
		case r := <-ch:
			pending--
			o.logger.Debug("backend answered",
				zap.String("backend", steps[r.index].Backend),
				zap.Int("papers", len(r.papers)),
				zap.Int("events", len(r.events)),
				zap.Duration("elapsed", r.elapsed),
			)
			results[r.index] = &r
		case <-ctx.Done():
			o.logger.Debug("fan-out deadline reached", zap.Int("pending", pending), zap.Error(ctx.Err()))
			pending = 0
		}
	}

	var out Outcome
	for i, r := range results {
		if r == nil {
			out.Events = append(out.Events, types.NewEvent(types.EventSourceUnavailable, steps[i].Backend,
				"no response within %s", limit))
			continue
		}
		out.Papers = append(out.Papers, r.papers...)
		out.Events = append(out.Events, r.events...)
	}
	return out
}

// collect turns one backend's answer into papers and events.
func collect(name string, recs []backend.Record, err error) stepResult {
	var r stepResult

	var pe *backend.PartialError
	switch {
	case err == nil:
	case errors.As(err, &pe):
		r.events = append(r.events, types.NewEvent(types.EventPartialResponse, name,
			"dropped %d malformed entries", pe.Dropped).With("dropped", strconv.Itoa(pe.Dropped)))
	case errors.Is(err, backend.ErrNotFound):
		return r
	default:
		r.events = append(r.events, types.NewEvent(types.EventSourceUnavailable, name, "%v", err))
		return r
	}

	incomplete := 0
	for _, rec := range recs {
		p, nerr := normalize.Normalize(rec)
		if nerr != nil {
			incomplete++
			continue
		}
		r.papers = append(r.papers, p)
	}
	if incomplete > 0 {
		r.events = append(r.events, types.NewEvent(types.EventPartialResponse, name,
			"dropped %d records missing required fields", incomplete).With("dropped", strconv.Itoa(incomplete)))
	}
	return r
}
