// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfinder/internal/backend"
	"github.com/pdiddy/paperfinder/internal/refine"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/pkg/types"
)

type docExtractor struct{ doc refine.Document }

func (e docExtractor) Extract(string) (refine.Document, error) { return e.doc, nil }

func pageServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.URL.Path == "/paper.pdf" {
			w.Header().Set("Content-Type", "application/pdf")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newPageResolver(f fixture, ts *httptest.Server, opts ...Option) *Resolver {
	cfg := types.Config{Resolver: types.ResolverConfig{Deadline: 2 * time.Second}}
	opts = append([]Option{WithBackends(f.backends()), WithHTTPClient(ts.Client())}, opts...)
	return New(cfg, opts...)
}

func TestResolve_URLPageDOIUsesDirectPath(t *testing.T) {
	ts := pageServer(t, map[string]string{
		"/doi/abs/x": `<html><head>
<meta name="citation_title" content="Graph Learning for the Web">
<meta name="citation_doi" content="` + webConfDOI + `">
</head><body></body></html>`,
	})
	f := newFixture()
	f.crossref.byID = map[string]backend.Record{webConfDOI: crossrefWC}

	res, err := newPageResolver(f, ts).Resolve(context.Background(), ts.URL+"/doi/abs/x")
	require.NoError(t, err)

	assert.True(t, res.Direct)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, webConfDOI, res.Candidates[0].Identifiers.DOI)
	assert.Equal(t, route.DomainCSAI, res.Domain)
	assert.Zero(t, f.searches())
	require.Len(t, res.Events, 2)
	assert.Equal(t, types.EventPageMetadata, res.Events[0].Kind)
	assert.Equal(t, "doi", res.Events[0].Fields["found"])
	assert.Equal(t, types.EventDirectResolve, res.Events[1].Kind)
	assert.Equal(t, "hit", res.Events[1].Fields["outcome"])
}

func TestResolve_URLPageTitleDrivesSearch(t *testing.T) {
	ts := pageServer(t, map[string]string{
		"/project": `<html><head><title>Attention Is All You Need</title></head><body>Code and slides.</body></html>`,
	})
	f := newFixture()
	f.dblp.results = []backend.Record{dblpAttention}

	res, err := newPageResolver(f, ts).Resolve(context.Background(), ts.URL+"/project")
	require.NoError(t, err)

	assert.False(t, res.Direct)
	assert.Equal(t, route.DomainCSAI, res.Domain)
	assert.Equal(t, "Attention Is All You Need", f.dblp.lastText.Load())
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "NIPS", res.Candidates[0].Venue)
	assert.Equal(t, ts.URL+"/project", res.Query)
	assert.Equal(t, "title", res.Events[0].Fields["found"])
}

func TestResolve_URLToPDFUsesExtractor(t *testing.T) {
	ts := pageServer(t, map[string]string{"/paper.pdf": "%PDF-1.4 test"})
	f := newFixture()
	f.arxiv.byID = map[string]backend.Record{"1706.03762": arxivAttention}
	ex := docExtractor{doc: refine.Document{
		FirstPage: "Attention Is All You Need\nAshish Vaswani\narXiv:1706.03762v7 [cs.CL] 6 Dec 2017",
		Pages:     1,
	}}

	res, err := newPageResolver(f, ts, WithExtractor(ex)).Resolve(context.Background(), ts.URL+"/paper.pdf")
	require.NoError(t, err)

	assert.True(t, res.Direct)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "1706.03762", res.Candidates[0].Identifiers.ArXiv)
	assert.Equal(t, "arxiv", res.Events[0].Fields["found"])
}

func TestResolve_URLPageUnreachable(t *testing.T) {
	ts := pageServer(t, nil)
	f := newFixture()
	res, _ := newPageResolver(f, ts).Resolve(context.Background(), ts.URL+"/gone")

	require.NotEmpty(t, res.Events)
	assert.Equal(t, types.EventSourceUnavailable, res.Events[0].Kind)
	assert.Equal(t, PageSource, res.Events[0].Backend)
	assert.Contains(t, res.Events[0].Message, "HTTP 500")
	assert.Positive(t, f.searches(), "search still runs on the URL text")
}

// blockingBackend answers only when its context ends.
type blockingBackend struct{ name string }

func (b blockingBackend) Name() string { return b.name }

func (b blockingBackend) Search(ctx context.Context, _ string, _ int) ([]backend.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b blockingBackend) FetchByID(ctx context.Context, _ string) (backend.Record, error) {
	<-ctx.Done()
	return backend.Record{}, ctx.Err()
}

func TestResolve_OneDeadlineCoversDirectAndFanOut(t *testing.T) {
	set := make(map[string]backend.Backend)
	for _, id := range []string{types.BackendDBLP, types.BackendSemanticScholar, types.BackendArxiv,
		types.BackendACL, types.BackendCrossref} {
		set[id] = blockingBackend{name: id}
	}
	deadline := 300 * time.Millisecond
	r := New(types.Config{Resolver: types.ResolverConfig{Deadline: deadline}}, WithBackends(set))

	start := time.Now()
	res, err := r.Resolve(context.Background(), "arXiv:1706.03762")
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, ErrNoResults), "got %v", err)
	assert.Less(t, elapsed, deadline+deadline/2, "direct path and fan-out share one deadline")
	require.NotEmpty(t, res.Events)
	assert.Equal(t, types.EventDirectResolve, res.Events[0].Kind)
	assert.Equal(t, "miss", res.Events[0].Fields["outcome"])
	assert.Positive(t, types.CountKind(res.Events, types.EventSourceUnavailable))
}

func TestShare(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sub, subCancel := share(ctx)
	defer subCancel()

	parent, _ := ctx.Deadline()
	got, ok := sub.Deadline()
	require.True(t, ok)
	assert.True(t, got.Before(parent))
	assert.InDelta(t, 500*time.Millisecond, time.Until(got), float64(100*time.Millisecond))

	free, freeCancel := share(context.Background())
	defer freeCancel()
	_, ok = free.Deadline()
	assert.False(t, ok)
}
