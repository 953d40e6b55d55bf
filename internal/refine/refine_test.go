// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfinder/internal/httputil"
	"github.com/pdiddy/paperfinder/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const attentionFirstPage = `Attention Is All You Need
Ashish Vaswani
Google Brain
Abstract
The dominant sequence transduction models are based on complex recurrent networks.
31st Conference on Neural Information Processing Systems (NIPS 2017), Long Beach, CA, USA.
arXiv:1706.03762v7 [cs.CL] 6 Dec 2017`

// fakeExtractor returns a canned document and records whether the file it
// was given existed.
type fakeExtractor struct {
	doc     Document
	err     error
	sawFile atomic.Bool
	calls   atomic.Int32
}

func (f *fakeExtractor) Extract(path string) (Document, error) {
	f.calls.Add(1)
	if _, err := os.Stat(path); err == nil {
		f.sawFile.Store(true)
	}
	return f.doc, f.err
}

func pdfServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/paper.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestRefiner(t *testing.T, ts *httptest.Server, ex TextExtractor, maxBytes int64) (*Refiner, string) {
	t.Helper()
	dir := t.TempDir()
	r := New(types.RefineConfig{MaxBytes: maxBytes, TempDir: dir}, ts.Client(), WithExtractor(ex))
	return r, dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files must be removed")
}

func TestRefine_FillsEmptyFields(t *testing.T) {
	ts := pdfServer(t, "%PDF-1.4 test")
	ex := &fakeExtractor{doc: Document{FirstPage: attentionFirstPage, LastPage: "References", Pages: 15}}
	r, dir := newTestRefiner(t, ts, ex, 0)

	in := types.Paper{
		Title:      "Attention Is All You Need",
		Authors:    []string{"Ashish Vaswani"},
		PDFURL:     ts.URL + "/paper.pdf",
		Provenance: []string{types.BackendSemanticScholar},
	}
	out, events := r.Refine(context.Background(), in)

	assert.Empty(t, events)
	assert.True(t, ex.sawFile.Load())
	assert.Equal(t, 2017, out.Year)
	assert.Equal(t, "1706.03762", out.Identifiers.ArXiv)
	assert.Equal(t, "31st Conference on Neural Information Processing Systems (NIPS 2017), Long Beach, CA, USA", out.Venue)
	assert.Equal(t, types.VenueConference, out.VenueKind)
	assert.Equal(t, []string{types.BackendSemanticScholar, Source}, out.Provenance)
	assert.Equal(t, []string{types.BackendSemanticScholar}, in.Provenance, "input is not modified")
	assertDirEmpty(t, dir)
}

func TestRefine_ConflictsDoNotOverwrite(t *testing.T) {
	ts := pdfServer(t, "%PDF-1.4 test")
	ex := &fakeExtractor{doc: Document{FirstPage: attentionFirstPage}}
	r, _ := newTestRefiner(t, ts, ex, 0)

	in := types.Paper{
		Title:       "Attention Is All You Need",
		Venue:       "NeurIPS",
		VenueKind:   types.VenueConference,
		Year:        2016,
		Identifiers: types.Identifiers{ArXiv: "1706.03762"},
		PDFURL:      ts.URL + "/paper.pdf",
		Provenance:  []string{types.BackendDBLP},
	}
	out, events := r.Refine(context.Background(), in)

	assert.Equal(t, in, out, "nothing empty to fill")
	require.Equal(t, 1, types.CountKind(events, types.EventFieldConflict))
	assert.Equal(t, "year", events[0].Fields["field"])
	assert.Equal(t, "2016", events[0].Fields["record"])
	assert.Equal(t, "2017", events[0].Fields["pdf"])
}

func TestRefine_SkipsWithoutLocation(t *testing.T) {
	r := New(types.RefineConfig{}, nil, WithExtractor(&fakeExtractor{}))
	in := types.Paper{Title: "Unreachable", Provenance: []string{types.BackendDBLP}}

	out, events := r.Refine(context.Background(), in)
	assert.Equal(t, in, out)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventRefinementSkipped, events[0].Kind)
	assert.Equal(t, "Unreachable", events[0].Fields["title"])
}

func TestRefine_SkipsOnDownloadFailure(t *testing.T) {
	ts := pdfServer(t, "")
	ex := &fakeExtractor{}
	r, dir := newTestRefiner(t, ts, ex, 0)

	in := types.Paper{Title: "Missing", PDFURL: ts.URL + "/gone.pdf"}
	out, events := r.Refine(context.Background(), in)
	assert.Equal(t, in, out)
	assert.Equal(t, 1, types.CountKind(events, types.EventRefinementSkipped))
	assert.Contains(t, events[0].Message, "HTTP 404")
	assert.Zero(t, ex.calls.Load())
	assertDirEmpty(t, dir)
}

func TestRefine_SkipsOversizedPDF(t *testing.T) {
	ts := pdfServer(t, strings.Repeat("x", 100))
	r, dir := newTestRefiner(t, ts, &fakeExtractor{}, 10)

	in := types.Paper{Title: "Huge", PDFURL: ts.URL + "/paper.pdf"}
	out, events := r.Refine(context.Background(), in)
	assert.Equal(t, in, out)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, ErrTooLarge.Error())
	assertDirEmpty(t, dir)
}

func TestRefine_SkipsOnExtractionError(t *testing.T) {
	ts := pdfServer(t, "%PDF-1.4 test")
	ex := &fakeExtractor{err: errors.New("broken xref")}
	r, dir := newTestRefiner(t, ts, ex, 0)

	in := types.Paper{Title: "Broken", PDFURL: ts.URL + "/paper.pdf"}
	out, events := r.Refine(context.Background(), in)
	assert.Equal(t, in, out)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventRefinementSkipped, events[0].Kind)
	assert.Contains(t, events[0].Message, "broken xref")
	assertDirEmpty(t, dir)
}

func TestRefine_OpenAlexLocation(t *testing.T) {
	var oaPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/works/"):
			oaPath = r.URL.Path
			assert.Equal(t, "me@example.org", r.URL.Query().Get("mailto"))
			w.Write([]byte(`{"best_oa_location":{"pdf_url":"` + "http://" + r.Host + `/oa.pdf"}}`))
		case r.URL.Path == "/oa.pdf":
			w.Write([]byte("%PDF-1.4 oa"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	orig := openAlexAPIBase
	openAlexAPIBase = ts.URL + "/works/"
	defer func() { openAlexAPIBase = orig }()

	ex := &fakeExtractor{doc: Document{FirstPage: "Learning Things and Stuff Together\nProceedings of the Web Conference 2021"}}
	r := New(types.RefineConfig{TempDir: t.TempDir()}, ts.Client(), WithExtractor(ex), WithMailto("me@example.org"))

	in := types.Paper{Title: "Learning Things and Stuff Together", Identifiers: types.Identifiers{DOI: "10.1145/3442381.3449802"}}
	out, events := r.Refine(context.Background(), in)

	assert.Empty(t, events)
	assert.Equal(t, "/works/https://doi.org/10.1145/3442381.3449802", oaPath)
	assert.Equal(t, ts.URL+"/oa.pdf", out.PDFURL)
	assert.Equal(t, 2021, out.Year)
	assert.Equal(t, "Proceedings of the Web Conference 2021", out.Venue)
}

func TestRefine_OpenAlexWithoutCopy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"best_oa_location":null}`))
	}))
	defer ts.Close()

	orig := openAlexAPIBase
	openAlexAPIBase = ts.URL + "/works/"
	defer func() { openAlexAPIBase = orig }()

	r := New(types.RefineConfig{}, ts.Client(), WithExtractor(&fakeExtractor{}))
	_, events := r.Refine(context.Background(), types.Paper{Title: "Closed", Identifiers: types.Identifiers{DOI: "10.1000/closed"}})
	require.Len(t, events, 1)
	assert.Equal(t, "no PDF location known", events[0].Message)
}

func TestRefineAll_KeepsOrder(t *testing.T) {
	ts := pdfServer(t, "%PDF-1.4 test")
	ex := &fakeExtractor{doc: Document{FirstPage: attentionFirstPage}}
	r, _ := newTestRefiner(t, ts, ex, 0)

	papers := []types.Paper{
		{Title: "Attention Is All You Need", PDFURL: ts.URL + "/paper.pdf"},
		{Title: "No Location"},
		{Title: "Attention Is All You Need", PDFURL: ts.URL + "/paper.pdf"},
	}
	out, events := r.RefineAll(context.Background(), papers)

	require.Len(t, out, 3)
	assert.Equal(t, 2017, out[0].Year)
	assert.Equal(t, "No Location", out[1].Title)
	assert.Zero(t, out[1].Year)
	assert.Equal(t, 2017, out[2].Year)
	assert.Equal(t, 1, types.CountKind(events, types.EventRefinementSkipped))
	assert.Equal(t, int32(2), ex.calls.Load())
}

func TestInspect(t *testing.T) {
	ts := pdfServer(t, "%PDF-1.4 test")
	ex := &fakeExtractor{doc: Document{FirstPage: attentionFirstPage}}
	r, dir := newTestRefiner(t, ts, ex, 0)

	f, err := r.Inspect(context.Background(), ts.URL+"/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need", f.Title)
	assert.Equal(t, "1706.03762", f.ArXiv)
	assert.True(t, ex.sawFile.Load())
	assertDirEmpty(t, dir)

	_, err = r.Inspect(context.Background(), ts.URL+"/gone.pdf")
	assert.ErrorContains(t, err, "HTTP 404")
	assertDirEmpty(t, dir)
}

func TestPDFExtractor_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("<html>not a pdf</html>"), 0o644))

	_, err := PDFExtractor{}.Extract(path)
	assert.Error(t, err)

	_, err = ReadText(path)
	assert.Error(t, err)
}
