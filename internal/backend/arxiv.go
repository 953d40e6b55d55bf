// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivBackend queries the arXiv preprint index.
type ArxivBackend struct {
	Client *Client
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return types.BackendArxiv }

// Search queries arXiv across all fields, ordered by relevance.
func (b *ArxivBackend) Search(ctx context.Context, text string, limit int) ([]Record, error) {
	q := buildArxivQuery(text)
	if q == "" {
		return nil, nil
	}
	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(clampLimit(limit))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	body, err := b.Client.get(ctx, b.Name(), arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return parseArxiv(b.Name(), body)
}

// FetchByID fetches one paper by arXiv id.
func (b *ArxivBackend) FetchByID(ctx context.Context, id string) (Record, error) {
	norm := ident.NormalizeArxiv(id)
	if norm == "" {
		return Record{}, eris.Wrapf(ErrNotFound, "arxiv: %q is not an arXiv id", id)
	}
	body, err := b.Client.get(ctx, b.Name(), arxivAPIBase+"?"+url.Values{"id_list": {norm}}.Encode(), nil)
	if err != nil {
		return Record{}, err
	}
	recs, err := parseArxiv(b.Name(), body)
	if len(recs) == 0 {
		if err == nil {
			err = eris.Wrapf(ErrNotFound, "arxiv: %s", norm)
		}
		return Record{}, err
	}
	return recs[0], nil
}

// buildArxivQuery turns free text into an all-fields conjunction.
func buildArxivQuery(text string) string {
	var terms []string
	for _, t := range strings.Fields(text) {
		t = strings.Trim(t, `"'():,;`)
		if t != "" {
			terms = append(terms, "all:"+t)
		}
	}
	return strings.Join(terms, " AND ")
}

// parseArxiv decodes an Atom feed. Entries without a recognizable arXiv id
// (the API reports errors as such entries) are dropped.
func parseArxiv(name string, body []byte) ([]Record, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, eris.Wrapf(ErrSourceUnavailable, "arxiv: parsing feed: %v", err)
	}

	var recs []Record
	dropped := 0
	for i := range feed.Entries {
		e := feed.Entries[i]
		if strings.Contains(e.ID, "/api/errors") {
			continue
		}
		e.ArxivID = extractArxivID(e.ID)
		if e.ArxivID == "" {
			dropped++
			continue
		}
		recs = append(recs, Record{Backend: name, Payload: &e})
	}
	return partial(name, recs, dropped)
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []ArxivEntry `xml:"entry"`
}

// ArxivEntry is one Atom entry of an arXiv query response.
type ArxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	Authors    []ArxivAuthor `xml:"author"`
	Links      []ArxivLink   `xml:"link"`
	DOI        string        `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string        `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Comment    string        `xml:"http://arxiv.org/schemas/atom comment"`
	Category   ArxivCategory `xml:"http://arxiv.org/schemas/atom primary_category"`

	// ArxivID is the bare id parsed from ID.
	ArxivID string `xml:"-"`
}

// ArxivAuthor is an entry author.
type ArxivAuthor struct {
	Name string `xml:"name"`
}

// ArxivLink is an entry link; the PDF link has title "pdf".
type ArxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// ArxivCategory is the primary subject category.
type ArxivCategory struct {
	Term string `xml:"term,attr"`
}

// extractArxivID pulls the arXiv id from an entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	i := strings.Index(idURL, "/abs/")
	if i < 0 {
		return ""
	}
	return ident.NormalizeArxiv(idURL[i+len("/abs/"):])
}
