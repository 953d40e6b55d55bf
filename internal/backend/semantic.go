// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "title,abstract,authors,externalIds,year,venue,publicationVenue,publicationTypes,openAccessPdf,url"

// aclVenues restricts Semantic Scholar searches to ACL Anthology venues.
const aclVenues = "ACL,EMNLP,NAACL,EACL,COLING,CoNLL,TACL,Findings of the Association for Computational Linguistics,Transactions of the Association for Computational Linguistics,Computational Linguistics"

// SemanticScholarBackend queries the Semantic Scholar Graph API.
type SemanticScholarBackend struct {
	Client *Client
	APIKey string
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return types.BackendSemanticScholar }

// Search queries Semantic Scholar's relevance search.
func (b *SemanticScholarBackend) Search(ctx context.Context, text string, limit int) ([]Record, error) {
	return semanticSearch(ctx, b.Client, b.Name(), b.APIKey, text, limit, "")
}

// FetchByID fetches a paper by Semantic Scholar id or by a recognized
// arXiv id, DOI, or ACL Anthology id.
func (b *SemanticScholarBackend) FetchByID(ctx context.Context, id string) (Record, error) {
	return semanticFetch(ctx, b.Client, b.Name(), b.APIKey, semanticPaperID(id))
}

// ACLBackend is the NLP venue index: Semantic Scholar restricted to ACL
// Anthology venues, fetching by ACL Anthology id.
type ACLBackend struct {
	Client *Client
	APIKey string
}

// Name returns the backend identifier.
func (b *ACLBackend) Name() string { return types.BackendACL }

// Search queries Semantic Scholar limited to ACL Anthology venues.
func (b *ACLBackend) Search(ctx context.Context, text string, limit int) ([]Record, error) {
	return semanticSearch(ctx, b.Client, b.Name(), b.APIKey, text, limit, aclVenues)
}

// FetchByID fetches an ACL Anthology paper ("N19-1423", "2020.acl-main.463").
func (b *ACLBackend) FetchByID(ctx context.Context, id string) (Record, error) {
	return semanticFetch(ctx, b.Client, b.Name(), b.APIKey, "ACL:"+id)
}

// semanticPaperID maps an identifier to the Graph API's prefixed form.
func semanticPaperID(id string) string {
	switch kind, norm := ident.Classify(id); kind {
	case ident.KindArxiv:
		return "ARXIV:" + norm
	case ident.KindDOI:
		return "DOI:" + norm
	case ident.KindACL:
		return "ACL:" + norm
	case ident.KindURL:
		return "URL:" + norm
	default:
		return id
	}
}

func semanticHeader(apiKey string) http.Header {
	h := http.Header{}
	if apiKey != "" {
		h.Set("x-api-key", apiKey)
	}
	return h
}

func semanticSearch(ctx context.Context, c *Client, name, apiKey, text string, limit int, venues string) ([]Record, error) {
	params := url.Values{
		"query":  {text},
		"limit":  {strconv.Itoa(clampLimit(limit))},
		"fields": {semanticFields},
	}
	if venues != "" {
		params.Set("venue", venues)
	}
	body, err := c.get(ctx, name, semanticAPIBase+"/paper/search?"+params.Encode(), semanticHeader(apiKey))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Total int               `json:"total"`
		Data  []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(ErrSourceUnavailable, "%s: parsing response: %v", name, err)
	}

	var recs []Record
	dropped := 0
	for _, raw := range resp.Data {
		var p S2Paper
		if err := json.Unmarshal(raw, &p); err != nil {
			dropped++
			continue
		}
		recs = append(recs, Record{Backend: name, Payload: &p})
	}
	return partial(name, recs, dropped)
}

func semanticFetch(ctx context.Context, c *Client, name, apiKey, paperID string) (Record, error) {
	reqURL := semanticAPIBase + "/paper/" + strings.ReplaceAll(url.PathEscape(paperID), "%2F", "/") + "?" + url.Values{"fields": {semanticFields}}.Encode()
	body, err := c.get(ctx, name, reqURL, semanticHeader(apiKey))
	if err != nil {
		return Record{}, err
	}
	var p S2Paper
	if err := json.Unmarshal(body, &p); err != nil {
		return Record{}, eris.Wrapf(ErrSourceUnavailable, "%s: parsing paper: %v", name, err)
	}
	if p.PaperID == "" && p.Title == "" {
		return Record{}, eris.Wrapf(ErrNotFound, "%s: %s", name, paperID)
	}
	return Record{Backend: name, Payload: &p}, nil
}

// S2Paper is a Semantic Scholar Graph API paper.
type S2Paper struct {
	PaperID          string           `json:"paperId"`
	Title            string           `json:"title"`
	Abstract         string           `json:"abstract"`
	Year             int              `json:"year"`
	Venue            string           `json:"venue"`
	PublicationVenue *S2Venue         `json:"publicationVenue"`
	PublicationTypes []string         `json:"publicationTypes"`
	Authors          []S2Author       `json:"authors"`
	ExternalIDs      S2ExternalIDs    `json:"externalIds"`
	OpenAccessPDF    *S2OpenAccessPDF `json:"openAccessPdf"`
	URL              string           `json:"url"`
}

// S2Venue is the structured venue of a paper.
type S2Venue struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// S2Author is an author entry.
type S2Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// S2ExternalIDs lists identifiers known to Semantic Scholar.
type S2ExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
	ACL   string `json:"ACL"`
	DBLP  string `json:"DBLP"`
}

// S2OpenAccessPDF is the open-access PDF location.
type S2OpenAccessPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}
