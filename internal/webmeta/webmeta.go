// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package webmeta reads bibliographic metadata from paper landing pages.
// Publisher and repository pages carry Highwire-style citation_* meta tags
// (citation_title, citation_doi, citation_arxiv_id, citation_author);
// pages without them may still mention an identifier in their text.
package webmeta

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/internal/httputil"
	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/internal/normalize"
)

// ErrNotHTML is returned by Fetch when the server answered with something
// other than a web page, typically a PDF.
var ErrNotHTML = errors.New("response is not an HTML page")

// maxPageBytes bounds how much of a landing page is read.
const maxPageBytes = 4 << 20

const defaultTimeout = 15 * time.Second

// Page is the metadata a landing page exposes. Empty values were not found.
type Page struct {
	Title   string
	Authors []string
	Year    int
	DOI     string
	ArXiv   string
}

// Hint returns the page's identifier, DOI first. It is empty when the page
// named neither a DOI nor an arXiv id.
func (p Page) Hint() ident.Hint {
	switch {
	case p.DOI != "":
		return ident.Hint{Kind: ident.KindDOI, Value: p.DOI}
	case p.ArXiv != "":
		return ident.Hint{Kind: ident.KindArxiv, Value: p.ArXiv}
	}
	return ident.Hint{}
}

// Found names what the page yielded: "doi", "arxiv", "title", or "none".
func (p Page) Found() string {
	switch {
	case p.DOI != "":
		return "doi"
	case p.ArXiv != "":
		return "arxiv"
	case p.Title != "":
		return "title"
	}
	return "none"
}

var (
	metaTag    = regexp.MustCompile(`(?is)<meta\s[^>]*?(?:property|name)\s*=\s*["']([^"']+)["'][^>]*?content\s*=\s*["']([^"']*)["']`)
	metaTagRev = regexp.MustCompile(`(?is)<meta\s[^>]*?content\s*=\s*["']([^"']*)["'][^>]*?(?:property|name)\s*=\s*["']([^"']+)["']`)
	titleTag   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	hiddenText = regexp.MustCompile(`(?is)<head\b.*?</head>|<script\b.*?</script>|<style\b.*?</style>`)
	anyTag     = regexp.MustCompile(`(?s)<[^>]*>`)
)

// Parse extracts metadata from an HTML document. Meta tags win; the
// <title> element is the title of last resort, and identifiers are looked
// for in the visible text only when no meta tag carried one.
func Parse(html string) Page {
	meta := metaValues(html)
	first := func(names ...string) string {
		for _, n := range names {
			for _, v := range meta[n] {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
		return ""
	}

	var p Page
	p.Title = normalize.CleanTitle(first("citation_title", "dc.title", "og:title"))
	if p.Title == "" {
		if m := titleTag.FindStringSubmatch(html); m != nil {
			p.Title = normalize.CleanTitle(m[1])
		}
	}

	authors := meta["citation_author"]
	if len(authors) == 0 {
		authors = meta["dc.creator"]
	}
	for _, a := range authors {
		if a = normalize.CleanAuthor(a); a != "" {
			p.Authors = append(p.Authors, a)
		}
	}

	p.Year = normalize.ParseYear(first("citation_publication_date", "citation_date", "citation_year", "dc.date"))
	p.DOI = ident.NormalizeDOI(first("citation_doi", "dc.identifier", "prism.doi"))
	p.ArXiv = ident.NormalizeArxiv(first("citation_arxiv_id"))

	if p.DOI == "" && p.ArXiv == "" {
		text := normalize.CleanText(anyTag.ReplaceAllString(hiddenText.ReplaceAllString(html, " "), " "))
		p.ArXiv = ident.FindArxiv(text)
		if p.ArXiv == "" {
			p.DOI = ident.FindDOI(text)
		}
	}
	// arXiv DataCite DOIs name the preprint.
	const arxivDOI = "10.48550/arxiv."
	if strings.HasPrefix(strings.ToLower(p.DOI), arxivDOI) {
		if p.ArXiv == "" {
			p.ArXiv = ident.NormalizeArxiv(p.DOI[len(arxivDOI):])
		}
		p.DOI = ""
	}
	return p
}

// metaValues maps lowercase meta names and properties to their contents in
// document order. Both attribute orders are understood.
func metaValues(html string) map[string][]string {
	out := make(map[string][]string)
	for _, m := range metaTag.FindAllStringSubmatch(html, -1) {
		name := strings.ToLower(m[1])
		out[name] = append(out[name], m[2])
	}
	for _, m := range metaTagRev.FindAllStringSubmatch(html, -1) {
		name := strings.ToLower(m[2])
		out[name] = append(out[name], m[1])
	}
	return out
}

// IsPDFURL reports whether raw points at a PDF by its path.
func IsPDFURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.HasSuffix(path, ".pdf") || strings.Contains(path, "/pdf/")
}

// Fetcher downloads landing pages.
type Fetcher struct {
	Client    *http.Client
	Limiter   *httputil.Limiter
	Retry     httputil.RetryPolicy
	UserAgent string

	// Timeout bounds one fetch, retries included. Zero uses 15 seconds.
	Timeout time.Duration
}

// Fetch downloads rawURL and parses it. It fails with ErrNotHTML when the
// server sends a PDF or another non-HTML body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, eris.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, f.Limiter, f.Retry)
	if err != nil {
		return Page{}, eris.Wrapf(err, "fetching %s", req.URL.Host)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, eris.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, _ := mime.ParseMediaType(ct)
		if mt != "text/html" && mt != "application/xhtml+xml" {
			return Page{}, eris.Wrapf(ErrNotHTML, "%s sent %s", req.URL.Host, mt)
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, eris.Wrap(err, "reading page")
	}
	return Parse(string(body)), nil
}
