// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfinder/internal/backend"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// stubBackend serves canned search results and id lookups.
type stubBackend struct {
	name     string
	results  []backend.Record
	err      error
	byID     map[string]backend.Record
	searches atomic.Int32
	fetches  atomic.Int32
	lastText atomic.Value
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Search(_ context.Context, text string, limit int) ([]backend.Record, error) {
	s.searches.Add(1)
	s.lastText.Store(text)
	recs := s.results
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, s.err
}

func (s *stubBackend) FetchByID(_ context.Context, id string) (backend.Record, error) {
	s.fetches.Add(1)
	if rec, ok := s.byID[id]; ok {
		return rec, nil
	}
	return backend.Record{}, backend.ErrNotFound
}

type fixture struct {
	dblp, s2, arxiv, acl, crossref *stubBackend
}

func (f fixture) backends() map[string]backend.Backend {
	return map[string]backend.Backend{
		types.BackendDBLP:            f.dblp,
		types.BackendSemanticScholar: f.s2,
		types.BackendArxiv:           f.arxiv,
		types.BackendACL:             f.acl,
		types.BackendCrossref:        f.crossref,
	}
}

func (f fixture) searches() int32 {
	return f.dblp.searches.Load() + f.s2.searches.Load() + f.arxiv.searches.Load() +
		f.acl.searches.Load() + f.crossref.searches.Load()
}

func newFixture() fixture {
	return fixture{
		dblp:     &stubBackend{name: types.BackendDBLP},
		s2:       &stubBackend{name: types.BackendSemanticScholar},
		arxiv:    &stubBackend{name: types.BackendArxiv},
		acl:      &stubBackend{name: types.BackendACL},
		crossref: &stubBackend{name: types.BackendCrossref},
	}
}

func newResolver(f fixture, max int) *Resolver {
	cfg := types.Config{Resolver: types.ResolverConfig{Deadline: time.Second, MaxCandidates: max}}
	return New(cfg, WithBackends(f.backends()))
}

var (
	dblpAttention = backend.Record{Backend: types.BackendDBLP, Payload: &backend.DBLPInfo{
		Title: "Attention is All you Need.",
		Venue: backend.StringList{"NIPS"},
		Year:  "2017",
		Type:  "Conference and Workshop Papers",
		Key:   "conf/nips/VaswaniSPUJGKP17",
		Authors: backend.DBLPAuthors{Author: []backend.DBLPAuthor{
			{Text: "Ashish Vaswani"}, {Text: "Noam Shazeer"}, {Text: "Niki Parmar"},
		}},
	}}
	arxivAttention = backend.Record{Backend: types.BackendArxiv, Payload: &backend.ArxivEntry{
		ArxivID:   "1706.03762",
		Title:     "Attention Is All You Need",
		Summary:   "The dominant sequence transduction models are based on complex recurrent networks.",
		Published: "2017-06-12T17:57:34Z",
		Authors:   []backend.ArxivAuthor{{Name: "Ashish Vaswani"}, {Name: "Noam Shazeer"}},
	}}
	webConfDOI = "10.1145/3442381.3449802"
	crossrefWC = backend.Record{Backend: types.BackendCrossref, Payload: &backend.CrossrefWork{
		DOI:            webConfDOI,
		Title:          []string{"Graph Learning for the Web"},
		Author:         []backend.CrossrefAuthor{{Given: "Jane", Family: "Doe"}},
		ContainerTitle: []string{"Proceedings of the Web Conference 2021"},
		Type:           "proceedings-article",
		Issued:         backend.CrossrefDate{DateParts: [][]int{{2021, 4}}},
	}}
)

func TestResolve_AttentionMergesConferenceAndPreprint(t *testing.T) {
	f := newFixture()
	f.dblp.results = []backend.Record{dblpAttention}
	f.arxiv.results = []backend.Record{arxivAttention}
	f.s2.err = eris.Wrap(backend.ErrSourceUnavailable, "HTTP 503")

	res, err := newResolver(f, 0).Resolve(context.Background(), "Attention is all you need")
	require.NoError(t, err)

	assert.Equal(t, route.DomainCSAI, res.Domain)
	assert.False(t, res.Direct)
	require.Len(t, res.Candidates, 1)
	got := res.Candidates[0]
	assert.Equal(t, types.VenueConference, got.VenueKind)
	assert.Equal(t, "NIPS", got.Venue)
	assert.Equal(t, 2017, got.Year)
	assert.Equal(t, "1706.03762", got.Identifiers.ArXiv)
	assert.NotEmpty(t, got.Abstract, "abstract backfilled from the preprint")
	assert.ElementsMatch(t, []string{types.BackendDBLP, types.BackendArxiv}, got.Provenance)

	assert.Equal(t, 1, types.CountKind(res.Events, types.EventSourceUnavailable))
	assert.Equal(t, 1, types.CountKind(res.Events, types.EventMergeDecision))
	require.NotEmpty(t, res.RequestID)
	for _, ev := range res.Events {
		assert.Equal(t, res.RequestID, ev.RequestID)
	}
}

func TestResolve_DOIDirectBypassesRanking(t *testing.T) {
	f := newFixture()
	f.crossref.byID = map[string]backend.Record{webConfDOI: crossrefWC}
	f.dblp.results = []backend.Record{dblpAttention}

	res, err := newResolver(f, 0).Resolve(context.Background(), webConfDOI)
	require.NoError(t, err)

	assert.True(t, res.Direct)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, webConfDOI, res.Candidates[0].Identifiers.DOI)
	assert.Equal(t, types.VenueConference, res.Candidates[0].VenueKind)
	assert.Equal(t, int32(1), f.crossref.fetches.Load())
	assert.Zero(t, f.searches(), "no fan-out after an exact direct match")
	require.Len(t, res.Events, 1)
	assert.Equal(t, types.EventDirectResolve, res.Events[0].Kind)
	assert.Equal(t, "hit", res.Events[0].Fields["outcome"])
}

func TestResolve_DirectMissFallsBackToSearch(t *testing.T) {
	f := newFixture()
	f.arxiv.results = []backend.Record{arxivAttention}

	res, err := newResolver(f, 0).Resolve(context.Background(), "arXiv:1706.03762")
	require.NoError(t, err)

	assert.False(t, res.Direct)
	assert.Equal(t, int32(1), f.arxiv.fetches.Load())
	assert.Equal(t, int32(1), f.arxiv.searches.Load())
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "miss", res.Events[0].Fields["outcome"])
}

func TestResolve_DirectRequiresExactIdentifier(t *testing.T) {
	f := newFixture()
	wrong := *crossrefWC.Payload.(*backend.CrossrefWork)
	wrong.DOI = "10.1145/0000000.0000000"
	f.crossref.byID = map[string]backend.Record{webConfDOI: {Backend: types.BackendCrossref, Payload: &wrong}}
	f.s2.results = []backend.Record{{Backend: types.BackendSemanticScholar, Payload: &backend.S2Paper{
		Title: "Graph Learning for the Web", Year: 2021,
		ExternalIDs: backend.S2ExternalIDs{DOI: webConfDOI},
	}}}

	res, err := newResolver(f, 0).Resolve(context.Background(), webConfDOI)
	require.NoError(t, err)
	assert.False(t, res.Direct)
	assert.Equal(t, int32(1), f.s2.searches.Load())
}

func TestResolve_NoResults(t *testing.T) {
	f := newFixture()
	f.s2.err = eris.Wrap(backend.ErrSourceUnavailable, "timeout")

	res, err := newResolver(f, 0).Resolve(context.Background(), "quantum gravity in curved spacetime")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoResults), "got %v", err)
	assert.Empty(t, res.Candidates)
	assert.NotEmpty(t, res.Events, "events explain the empty result")
}

func TestResolve_InvalidQueryCallsNothing(t *testing.T) {
	f := newFixture()
	_, err := newResolver(f, 0).Resolve(context.Background(), "  ?!  ")
	assert.True(t, errors.Is(err, route.ErrInvalidQuery), "got %v", err)
	assert.Zero(t, f.searches())
}

func TestResolve_TruncatesCandidates(t *testing.T) {
	f := newFixture()
	for _, title := range []string{"Graph Neural Networks", "Convolutional Networks", "Recurrent Networks"} {
		f.dblp.results = append(f.dblp.results, backend.Record{Backend: types.BackendDBLP, Payload: &backend.DBLPInfo{
			Title: title, Year: "2020", Venue: backend.StringList{"ICML"}, Type: "Conference and Workshop Papers",
		}})
	}

	res, err := newResolver(f, 2).Resolve(context.Background(), "neural networks")
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Graph Neural Networks", res.Candidates[0].Title)
}

func TestPlan(t *testing.T) {
	r := newResolver(newFixture(), 0)
	plan, err := r.Plan("BERT fine-tuning for named entity recognition")
	require.NoError(t, err)
	assert.Equal(t, route.DomainNLP, plan.Domain)
	assert.Equal(t, types.BackendACL, plan.Order()[0])

	_, err = r.Plan("")
	assert.True(t, errors.Is(err, route.ErrInvalidQuery))
}

func TestMatchesHint(t *testing.T) {
	r := newResolver(newFixture(), 0)
	plan, err := r.Plan("10.48550/arXiv.1706.03762")
	require.NoError(t, err)
	assert.True(t, matchesHint(types.Identifiers{ArXiv: "1706.03762"}, plan.Hint))
	assert.False(t, matchesHint(types.Identifiers{ArXiv: "1706.00000"}, plan.Hint))
}
