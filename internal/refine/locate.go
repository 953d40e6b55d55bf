// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/internal/httputil"
	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// openAlexWork captures the fields needed from an OpenAlex work record.
type openAlexWork struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// locate returns where p's full text can be downloaded: the record's own
// PDF link, a location derived from its arXiv or ACL id, or an open-access
// copy of its DOI found through OpenAlex. It returns "" when none is known.
func (r *Refiner) locate(ctx context.Context, p types.Paper) (string, error) {
	switch {
	case p.PDFURL != "":
		return p.PDFURL, nil
	case p.Identifiers.ArXiv != "":
		return ident.PDFURL(ident.KindArxiv, p.Identifiers.ArXiv), nil
	case p.Identifiers.ACL != "":
		return ident.PDFURL(ident.KindACL, p.Identifiers.ACL), nil
	case p.Identifiers.DOI != "":
		return r.openAccess(ctx, p.Identifiers.DOI)
	}
	return "", nil
}

// openAccess asks OpenAlex for the best open-access PDF of doi.
func (r *Refiner) openAccess(ctx context.Context, doi string) (string, error) {
	apiURL := openAlexAPIBase + "https://doi.org/" + doi
	if r.mailto != "" {
		apiURL += "?mailto=" + url.QueryEscape(r.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "creating OpenAlex request")
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, r.client, req, r.limiter, httputil.RetryPolicy{Logger: r.logger})
	if err != nil {
		return "", eris.Wrap(err, "OpenAlex request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", eris.Errorf("OpenAlex returned HTTP %d", resp.StatusCode)
	}

	var work openAlexWork
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&work); err != nil {
		return "", eris.Wrap(err, "parsing OpenAlex response")
	}
	if work.BestOALocation == nil {
		return "", nil
	}
	return work.BestOALocation.PDFURL, nil
}
