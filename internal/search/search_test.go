// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfinder/internal/backend"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// fakeBackend returns canned records after an optional delay. A negative
// delay blocks until the context is cancelled.
type fakeBackend struct {
	name    string
	recs    []backend.Record
	err     error
	delay   time.Duration
	gotCap  int
	gotText string
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(ctx context.Context, text string, limit int) ([]backend.Record, error) {
	f.gotCap = limit
	f.gotText = text
	if f.delay < 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.recs, f.err
}

func (f *fakeBackend) FetchByID(context.Context, string) (backend.Record, error) {
	return backend.Record{}, backend.ErrNotFound
}

func s2Record(name, title string) backend.Record {
	return backend.Record{Backend: name, Payload: &backend.S2Paper{Title: title, Year: 2020}}
}

func mustQuery(t *testing.T, text string) route.Query {
	t.Helper()
	q, err := route.NewQuery(text)
	require.NoError(t, err)
	return q
}

func TestResolve_MergesInStepOrder(t *testing.T) {
	slow := &fakeBackend{name: "a", recs: []backend.Record{s2Record("a", "First")}, delay: 30 * time.Millisecond}
	fast := &fakeBackend{name: "b", recs: []backend.Record{s2Record("b", "Second"), s2Record("b", "Third")}}
	o := New(map[string]backend.Backend{"a": slow, "b": fast}, time.Second, nil)

	out := o.Resolve(context.Background(), mustQuery(t, "graph neural networks"),
		[]route.Step{{Backend: "a", Cap: 3}, {Backend: "b", Cap: 7}})

	require.Len(t, out.Papers, 3)
	assert.Equal(t, "First", out.Papers[0].Title, "papers follow routed order, not arrival order")
	assert.Equal(t, "Second", out.Papers[1].Title)
	assert.Equal(t, []string{"b"}, out.Papers[2].Provenance)
	assert.Empty(t, out.Events)
	assert.Equal(t, 3, slow.gotCap)
	assert.Equal(t, 7, fast.gotCap)
	assert.Equal(t, "graph neural networks", fast.gotText)
}

func TestResolve_DeadlineAbandonsSlowBackend(t *testing.T) {
	stuck := &fakeBackend{name: "stuck", delay: -1}
	ok := &fakeBackend{name: "ok", recs: []backend.Record{s2Record("ok", "Fast Paper")}}
	o := New(map[string]backend.Backend{"stuck": stuck, "ok": ok}, 100*time.Millisecond, nil)

	start := time.Now()
	out := o.Resolve(context.Background(), mustQuery(t, "fast paper"),
		[]route.Step{{Backend: "stuck", Cap: 5}, {Backend: "ok", Cap: 5}})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	require.Len(t, out.Papers, 1)
	assert.Equal(t, "Fast Paper", out.Papers[0].Title)
	require.Len(t, out.Events, 1)
	assert.Equal(t, types.EventSourceUnavailable, out.Events[0].Kind)
	assert.Equal(t, "stuck", out.Events[0].Backend)
}

func TestResolve_NeverRespondingBackendReturnsByDeadline(t *testing.T) {
	// A backend that ignores cancellation entirely must not hold the request.
	block := make(chan struct{})
	defer close(block)
	hung := &hangingBackend{release: block}
	o := New(map[string]backend.Backend{"hung": hung}, 50*time.Millisecond, nil)

	start := time.Now()
	out := o.Resolve(context.Background(), mustQuery(t, "anything"), []route.Step{{Backend: "hung", Cap: 1}})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, out.Papers)
	assert.Equal(t, 1, types.CountKind(out.Events, types.EventSourceUnavailable))
}

type hangingBackend struct{ release chan struct{} }

func (h *hangingBackend) Name() string { return "hung" }
func (h *hangingBackend) Search(context.Context, string, int) ([]backend.Record, error) {
	<-h.release
	return nil, nil
}
func (h *hangingBackend) FetchByID(context.Context, string) (backend.Record, error) {
	return backend.Record{}, backend.ErrNotFound
}

func TestResolve_FailuresBecomeEvents(t *testing.T) {
	down := &fakeBackend{name: "down", err: eris.Wrap(backend.ErrSourceUnavailable, "HTTP 503")}
	partial := &fakeBackend{
		name: "partial",
		recs: []backend.Record{
			s2Record("partial", "Kept"),
			{Backend: "partial", Payload: &backend.S2Paper{Title: ""}},
		},
		err: &backend.PartialError{Backend: "partial", Dropped: 2},
	}
	o := New(map[string]backend.Backend{"down": down, "partial": partial}, time.Second, nil)

	out := o.Resolve(context.Background(), mustQuery(t, "kept"), []route.Step{
		{Backend: "down", Cap: 5},
		{Backend: "partial", Cap: 5},
		{Backend: "unknown", Cap: 5},
	})

	require.Len(t, out.Papers, 1)
	assert.Equal(t, "Kept", out.Papers[0].Title)
	assert.Equal(t, 2, types.CountKind(out.Events, types.EventSourceUnavailable), "down and unknown")
	assert.Equal(t, 2, types.CountKind(out.Events, types.EventPartialResponse), "parse drops and incomplete records")
}

func TestResolve_ParentCancellation(t *testing.T) {
	stuck := &fakeBackend{name: "stuck", delay: -1}
	o := New(map[string]backend.Backend{"stuck": stuck}, time.Minute, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	out := o.Resolve(ctx, mustQuery(t, "x1"), []route.Step{{Backend: "stuck", Cap: 1}})
	assert.Equal(t, 1, types.CountKind(out.Events, types.EventSourceUnavailable))
}

func TestResolve_NoSteps(t *testing.T) {
	out := New(nil, 0, nil).Resolve(context.Background(), mustQuery(t, "x1"), nil)
	assert.Empty(t, out.Papers)
	assert.Empty(t, out.Events)
}
