// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

// CrossrefBackend resolves DOIs and searches bibliographic metadata.
type CrossrefBackend struct {
	Client *Client

	// Mailto identifies the caller for Crossref's polite pool.
	Mailto string
}

// Name returns the backend identifier.
func (b *CrossrefBackend) Name() string { return types.BackendCrossref }

// Search runs a bibliographic query.
func (b *CrossrefBackend) Search(ctx context.Context, text string, limit int) ([]Record, error) {
	params := url.Values{
		"query.bibliographic": {text},
		"rows":                {strconv.Itoa(clampLimit(limit))},
	}
	if b.Mailto != "" {
		params.Set("mailto", b.Mailto)
	}
	body, err := b.Client.get(ctx, b.Name(), crossrefAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Message struct {
			Items []json.RawMessage `json:"items"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(ErrSourceUnavailable, "crossref: parsing response: %v", err)
	}

	var recs []Record
	dropped := 0
	for _, raw := range resp.Message.Items {
		var w CrossrefWork
		if err := json.Unmarshal(raw, &w); err != nil {
			dropped++
			continue
		}
		recs = append(recs, Record{Backend: b.Name(), Payload: &w})
	}
	return partial(b.Name(), recs, dropped)
}

// FetchByID fetches the work registered under a DOI.
func (b *CrossrefBackend) FetchByID(ctx context.Context, id string) (Record, error) {
	doi := ident.NormalizeDOI(id)
	if doi == "" {
		return Record{}, eris.Wrapf(ErrNotFound, "crossref: %q is not a DOI", id)
	}
	reqURL := crossrefAPIBase + "/" + strings.ReplaceAll(url.PathEscape(doi), "%2F", "/")
	if b.Mailto != "" {
		reqURL += "?" + url.Values{"mailto": {b.Mailto}}.Encode()
	}
	body, err := b.Client.get(ctx, b.Name(), reqURL, nil)
	if err != nil {
		return Record{}, err
	}

	var resp struct {
		Status  string       `json:"status"`
		Message CrossrefWork `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Record{}, eris.Wrapf(ErrSourceUnavailable, "crossref: parsing work: %v", err)
	}
	if resp.Message.DOI == "" {
		return Record{}, eris.Wrapf(ErrNotFound, "crossref: %s", doi)
	}
	return Record{Backend: b.Name(), Payload: &resp.Message}, nil
}

// CrossrefWork is a Crossref work record.
type CrossrefWork struct {
	DOI             string           `json:"DOI"`
	Title           []string         `json:"title"`
	Author          []CrossrefAuthor `json:"author"`
	ContainerTitle  []string         `json:"container-title"`
	Event           *CrossrefEvent   `json:"event"`
	Type            string           `json:"type"`
	URL             string           `json:"URL"`
	Abstract        string           `json:"abstract"`
	PublishedPrint  CrossrefDate     `json:"published-print"`
	PublishedOnline CrossrefDate     `json:"published-online"`
	Issued          CrossrefDate     `json:"issued"`
	Link            []CrossrefLink   `json:"link"`
}

// CrossrefAuthor is a contributor. Organizations carry Name only.
type CrossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

// CrossrefEvent names the conference of a proceedings article.
type CrossrefEvent struct {
	Name string `json:"name"`
}

// CrossrefDate is a partial date: [[year, month, day]].
type CrossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year part, or 0.
func (d CrossrefDate) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// CrossrefLink is a full-text link.
type CrossrefLink struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}
