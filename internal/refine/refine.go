// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refine improves a candidate record from its full text. It finds a
// PDF, downloads it to a temporary file, extracts bibliographic fields, and
// fills the record's empty fields with them. Refinement never fails a
// request: any problem leaves the candidate unchanged and is reported as a
// RefinementSkipped event.
package refine

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paperfinder/internal/dedup"
	"github.com/pdiddy/paperfinder/internal/httputil"
	"github.com/pdiddy/paperfinder/internal/normalize"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// Source is the provenance name added when PDF text filled a field.
const Source = "pdf"

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxBytes    = 50 << 20
	defaultConcurrency = 2
)

// Refiner runs PDF refinement. It is safe for concurrent use.
type Refiner struct {
	client    *http.Client
	cfg       types.RefineConfig
	mailto    string
	limiter   *httputil.Limiter
	extractor TextExtractor
	logger    *zap.Logger
}

// Option configures a Refiner.
type Option func(*Refiner)

// WithExtractor replaces the default ledongthuc/pdf extractor.
func WithExtractor(e TextExtractor) Option { return func(r *Refiner) { r.extractor = e } }

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option { return func(r *Refiner) { r.logger = l } }

// WithMailto identifies the caller to OpenAlex's polite pool.
func WithMailto(mailto string) Option { return func(r *Refiner) { r.mailto = mailto } }

// New creates a Refiner. Zero config values take defaults: a 60s download
// timeout, a 50 MiB size cap, and two concurrent refinements.
func New(cfg types.RefineConfig, client *http.Client, opts ...Option) *Refiner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if client == nil {
		client = &http.Client{}
	}
	r := &Refiner{
		client:    client,
		cfg:       cfg,
		limiter:   httputil.NewLimiter(10, 5, 2),
		extractor: PDFExtractor{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refine returns p improved with fields recovered from its PDF, plus the
// events raised on the way. Populated fields of p are never overwritten;
// disagreements are reported as FieldConflict events. Temporary files are
// removed before Refine returns.
func (r *Refiner) Refine(ctx context.Context, p types.Paper) (types.Paper, []types.Event) {
	skip := func(format string, args ...any) (types.Paper, []types.Event) {
		ev := types.NewEvent(types.EventRefinementSkipped, Source, format, args...).With("title", p.Title)
		r.logger.Debug("refinement skipped", zap.String("title", p.Title), zap.String("reason", ev.Message))
		return p, []types.Event{ev}
	}

	loc, err := r.locate(ctx, p)
	if err != nil {
		return skip("looking up open-access copy: %v", err)
	}
	if loc == "" {
		return skip("no PDF location known")
	}

	path, err := r.download(ctx, loc)
	if err != nil {
		return skip("downloading %s: %v", loc, err)
	}
	defer os.Remove(path)

	doc, err := r.extractor.Extract(path)
	if err != nil {
		return skip("extracting text: %v", err)
	}

	out, events := reconcile(p, ExtractFields(doc))
	if out.PDFURL == "" {
		out.PDFURL = loc
	}
	r.logger.Debug("refined",
		zap.String("title", p.Title),
		zap.Int("pages", doc.Pages),
		zap.Int("conflicts", types.CountKind(events, types.EventFieldConflict)),
	)
	return out, events
}

// Inspect downloads the PDF at pdfURL and returns the fields its text
// yields. The temporary file is removed before Inspect returns.
func (r *Refiner) Inspect(ctx context.Context, pdfURL string) (Fields, error) {
	path, err := r.download(ctx, pdfURL)
	if err != nil {
		return Fields{}, eris.Wrapf(err, "downloading %s", pdfURL)
	}
	defer os.Remove(path)

	doc, err := r.extractor.Extract(path)
	if err != nil {
		return Fields{}, eris.Wrap(err, "extracting text")
	}
	return ExtractFields(doc), nil
}

// RefineAll refines papers concurrently, at most cfg.Concurrency at a time.
// Results keep input order.
func (r *Refiner) RefineAll(ctx context.Context, papers []types.Paper) ([]types.Paper, []types.Event) {
	out := make([]types.Paper, len(papers))
	perPaper := make([][]types.Event, len(papers))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, p := range papers {
		g.Go(func() error {
			out[i], perPaper[i] = r.Refine(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	var events []types.Event
	for _, evs := range perPaper {
		events = append(events, evs...)
	}
	return out, events
}

// reconcile fills p's empty fields from f and reports fields where both
// carry different values. "pdf" joins the provenance when anything was
// filled.
func reconcile(p types.Paper, f Fields) (types.Paper, []types.Event) {
	out := p.Clone()
	var events []types.Event
	filled := false

	conflict := func(field, record, found string) {
		events = append(events, types.NewEvent(types.EventFieldConflict, Source,
			"%s differs between record and PDF", field).
			With("field", field).With("record", record).With("pdf", found))
	}

	switch {
	case f.Title == "":
	case out.Title == "":
		out.Title, filled = f.Title, true
	case !dedup.TitlesMatch(out.Title, f.Title):
		conflict("title", out.Title, f.Title)
	}

	if len(out.Authors) == 0 && len(f.Authors) > 0 {
		out.Authors, filled = append([]string(nil), f.Authors...), true
	}

	switch {
	case f.Year == 0:
	case out.Year == 0:
		out.Year, filled = f.Year, true
	case out.Year != f.Year:
		conflict("year", strconv.Itoa(out.Year), strconv.Itoa(f.Year))
	}

	switch {
	case f.DOI == "":
	case out.Identifiers.DOI == "":
		out.Identifiers.DOI, filled = f.DOI, true
	case !strings.EqualFold(out.Identifiers.DOI, f.DOI):
		conflict("doi", out.Identifiers.DOI, f.DOI)
	}

	switch {
	case f.ArXiv == "":
	case out.Identifiers.ArXiv == "":
		out.Identifiers.ArXiv, filled = f.ArXiv, true
	case out.Identifiers.ArXiv != f.ArXiv:
		conflict("arxiv", out.Identifiers.ArXiv, f.ArXiv)
	}

	if out.Venue == "" && f.Venue != "" {
		out.Venue, filled = f.Venue, true
		if out.VenueKind == types.VenueUnknown {
			out.VenueKind = normalize.ClassifyVenue(f.Venue)
		}
	}

	if filled {
		out.AddProvenance(Source)
	}
	return out, events
}
