// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfinder/internal/resolver"
	"github.com/pdiddy/paperfinder/internal/route"
	"github.com/pdiddy/paperfinder/pkg/types"
)

type fakeService struct {
	result    resolver.Result
	err       error
	refined   int
	gotQuery  string
	gotRefine types.Paper
}

func (f *fakeService) Resolve(_ context.Context, text string) (resolver.Result, error) {
	f.gotQuery = text
	return f.result, f.err
}

func (f *fakeService) Refine(_ context.Context, p types.Paper) (types.Paper, []types.Event) {
	f.gotRefine = p
	p.Year = 2017
	return p, []types.Event{types.NewEvent(types.EventFieldConflict, "pdf", "title differs")}
}

func (f *fakeService) RefineAll(ctx context.Context, papers []types.Paper) ([]types.Paper, []types.Event) {
	f.refined += len(papers)
	out := make([]types.Paper, len(papers))
	var events []types.Event
	for i, p := range papers {
		rp, ev := f.Refine(ctx, p)
		out[i] = rp
		events = append(events, ev...)
	}
	return out, events
}

func serve(t *testing.T, svc Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	NewRouter(svc, types.ServerConfig{}, nil).ServeHTTP(rec, req)
	return rec
}

func attentionResult() resolver.Result {
	return resolver.Result{
		RequestID: "req-1",
		Query:     "attention is all you need",
		Domain:    route.DomainCSAI,
		Candidates: []types.Paper{{
			Title: "Attention is All you Need", Authors: []string{"Ashish Vaswani"},
			Venue: "NIPS", VenueKind: types.VenueConference, Provenance: []string{"dblp"},
		}},
	}
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeService{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestResolve(t *testing.T) {
	svc := &fakeService{result: attentionResult()}
	rec := serve(t, svc, http.MethodPost, "/v1/resolve", `{"query":"attention is all you need"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attention is all you need", svc.gotQuery)
	assert.Zero(t, svc.refined)

	var got resolver.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "NIPS", got.Candidates[0].Venue)
	assert.Equal(t, route.DomainCSAI, got.Domain)
}

func TestResolveWithRefine(t *testing.T) {
	svc := &fakeService{result: attentionResult()}
	rec := serve(t, svc, http.MethodPost, "/v1/resolve", `{"query":"attention","refine":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got resolver.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, svc.refined)
	assert.Equal(t, 2017, got.Candidates[0].Year)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "req-1", got.Events[0].RequestID)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"invalid query", eris.Wrap(route.ErrInvalidQuery, "query is empty"), `{"query":""}`, http.StatusBadRequest},
		{"no results", eris.Wrap(resolver.ErrNoResults, "nothing"), `{"query":"x1"}`, http.StatusNotFound},
		{"internal", eris.New("boom"), `{"query":"x1"}`, http.StatusInternalServerError},
		{"bad body", nil, `{"query":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &fakeService{err: tt.err}, http.MethodPost, "/v1/resolve", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRefine(t *testing.T) {
	svc := &fakeService{}
	rec := serve(t, svc, http.MethodPost, "/v1/refine", `{"paper":{"title":"Attention Is All You Need"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Attention Is All You Need", svc.gotRefine.Title)
	var got refineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2017, got.Paper.Year)
	assert.Len(t, got.Events, 1)

	rec = serve(t, svc, http.MethodPost, "/v1/refine", `{"paper":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCite(t *testing.T) {
	body := `{"papers":[
		{"title":"Attention is All you Need","authors":["Ashish Vaswani"],"venue":"NIPS","venue_kind":"conference","year":2017},
		{"title":"Other","authors":["Ashish Vaswani"],"year":2017}
	],"format":"bibtex"}`
	rec := serve(t, &fakeService{}, http.MethodPost, "/v1/cite", body)

	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "@inproceedings{Vaswani2017,")
	assert.Contains(t, out, "@misc{Vaswani2017a,")

	rec = serve(t, &fakeService{}, http.MethodPost, "/v1/cite", `{"papers":[{"title":"T","year":2020}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got citeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "Anonymous2020", got.Citations[0].Entry.Key)

	rec = serve(t, &fakeService{}, http.MethodPost, "/v1/cite", `{"papers":[{"title":"T"}],"format":"ris"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &fakeService{}, http.MethodPost, "/v1/cite", `{"papers":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(t, &fakeService{}, http.MethodGet, "/v1/resolve", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
