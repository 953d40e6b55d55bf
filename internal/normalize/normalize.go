// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize maps source-specific records onto the canonical Paper.
// Each backend payload type has one mapping; all of them share the title,
// author, year, and identifier cleanup defined here.
package normalize

import (
	"errors"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paperfinder/internal/backend"
	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// ErrIncomplete is returned for records missing a required field (title).
var ErrIncomplete = errors.New("incomplete record")

// arxivDOIPrefix marks DataCite DOIs minted for arXiv preprints.
const arxivDOIPrefix = "10.48550/arxiv."

var (
	markup         = regexp.MustCompile(`<[^>]+>`)
	disambiguator  = regexp.MustCompile(`\s+\d{4}$`)
	yearPrefix     = regexp.MustCompile(`^\s*(\d{4})(?:\D|$)`)
	corrArxivVenue = regexp.MustCompile(`^abs/(\d{4}\.\d{4,5})`)
)

// Normalize converts rec into a Paper whose provenance is rec.Backend. It
// fails with ErrIncomplete when the record has no title.
func Normalize(rec backend.Record) (types.Paper, error) {
	var p types.Paper
	switch src := rec.Payload.(type) {
	case *backend.DBLPInfo:
		p = fromDBLP(src)
	case *backend.S2Paper:
		p = fromSemantic(src)
	case *backend.ArxivEntry:
		p = fromArxiv(src)
	case *backend.CrossrefWork:
		p = fromCrossref(src)
	default:
		return types.Paper{}, eris.Errorf("normalize: unsupported payload %T from %s", rec.Payload, rec.Backend)
	}

	if p.Title == "" {
		return types.Paper{}, eris.Wrapf(ErrIncomplete, "%s record has no title", rec.Backend)
	}
	if p.PDFURL == "" {
		p.PDFURL = derivePDF(p.Identifiers)
	}
	p.Provenance = []string{rec.Backend}
	return p, nil
}

func fromDBLP(src *backend.DBLPInfo) types.Paper {
	p := types.Paper{
		Title:     strings.TrimSuffix(CleanTitle(src.Title), "."),
		Venue:     CleanText(src.Venue.First()),
		Year:      ParseYear(src.Year),
		VenueKind: ClassifyVenue(src.Venue.First(), src.Type),
	}
	for _, a := range src.Authors.Author {
		if name := CleanAuthor(disambiguator.ReplaceAllString(a.Text, "")); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	p.Identifiers.DOI = ident.NormalizeDOI(src.DOI)
	for _, v := range src.Venue {
		if m := corrArxivVenue.FindStringSubmatch(v); m != nil {
			p.Identifiers.ArXiv = m[1]
		}
	}
	for _, ee := range src.EE {
		if h, ok := ident.FromURL(ee); ok {
			switch h.Kind {
			case ident.KindArxiv:
				p.Identifiers.ArXiv = h.Value
			case ident.KindACL:
				p.Identifiers.ACL = h.Value
			case ident.KindDOI:
				if p.Identifiers.DOI == "" {
					p.Identifiers.DOI = h.Value
				}
			}
		}
	}
	if ee := src.EE.First(); ee != "" {
		p.Identifiers.URL = ee
	} else {
		p.Identifiers.URL = src.URL
	}
	splitArxivDOI(&p.Identifiers)
	return p
}

func fromSemantic(src *backend.S2Paper) types.Paper {
	venue := src.Venue
	var hints []string
	if src.PublicationVenue != nil {
		if src.PublicationVenue.Name != "" {
			venue = src.PublicationVenue.Name
		}
		hints = append(hints, src.PublicationVenue.Type)
	}
	// Semantic Scholar tags most proceedings papers as both JournalArticle
	// and Conference; the conference label is the more specific one.
	for _, t := range src.PublicationTypes {
		if strings.EqualFold(t, "Conference") {
			hints = append(hints, t)
		}
	}
	hints = append(hints, src.PublicationTypes...)

	p := types.Paper{
		Title:     CleanTitle(src.Title),
		Venue:     CleanText(venue),
		VenueKind: ClassifyVenue(venue, hints...),
		Abstract:  CleanText(src.Abstract),
		Identifiers: types.Identifiers{
			ArXiv: ident.NormalizeArxiv(src.ExternalIDs.ArXiv),
			DOI:   ident.NormalizeDOI(src.ExternalIDs.DOI),
			ACL:   strings.TrimSpace(src.ExternalIDs.ACL),
			URL:   src.URL,
		},
	}
	if types.ValidYear(src.Year) {
		p.Year = src.Year
	}
	for _, a := range src.Authors {
		if name := CleanAuthor(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	if src.OpenAccessPDF != nil {
		p.PDFURL = src.OpenAccessPDF.URL
	}
	splitArxivDOI(&p.Identifiers)
	return p
}

func fromArxiv(src *backend.ArxivEntry) types.Paper {
	p := types.Paper{
		Title:     CleanTitle(src.Title),
		Venue:     "arXiv",
		VenueKind: types.VenuePreprint,
		Year:      ParseYear(src.Published),
		Abstract:  CleanText(src.Summary),
		Identifiers: types.Identifiers{
			ArXiv: src.ArxivID,
			DOI:   ident.NormalizeDOI(src.DOI),
			URL:   "https://arxiv.org/abs/" + src.ArxivID,
		},
	}
	for _, a := range src.Authors {
		if name := CleanAuthor(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, l := range src.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	splitArxivDOI(&p.Identifiers)
	return p
}

func fromCrossref(src *backend.CrossrefWork) types.Paper {
	var title, venue string
	if len(src.Title) > 0 {
		title = src.Title[0]
	}
	if len(src.ContainerTitle) > 0 {
		venue = src.ContainerTitle[0]
	} else if src.Event != nil {
		venue = src.Event.Name
	}

	p := types.Paper{
		Title:     CleanTitle(title),
		Venue:     CleanText(venue),
		VenueKind: ClassifyVenue(venue, src.Type),
		Abstract:  CleanText(markup.ReplaceAllString(src.Abstract, " ")),
		Identifiers: types.Identifiers{
			DOI: ident.NormalizeDOI(src.DOI),
			URL: src.URL,
		},
	}
	for _, d := range []backend.CrossrefDate{src.PublishedPrint, src.PublishedOnline, src.Issued} {
		if y := d.Year(); types.ValidYear(y) {
			p.Year = y
			break
		}
	}
	for _, a := range src.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = a.Name
		}
		if name = CleanAuthor(name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, l := range src.Link {
		if l.ContentType == "application/pdf" {
			p.PDFURL = l.URL
			break
		}
	}
	splitArxivDOI(&p.Identifiers)
	return p
}

// splitArxivDOI moves an arXiv DataCite DOI into the arXiv slot so records
// of the same preprint share an arXiv id and the DOI slot stays free for
// the published version.
func splitArxivDOI(ids *types.Identifiers) {
	lower := strings.ToLower(ids.DOI)
	if !strings.HasPrefix(lower, arxivDOIPrefix) {
		return
	}
	if ids.ArXiv == "" {
		ids.ArXiv = ident.NormalizeArxiv(ids.DOI[len(arxivDOIPrefix):])
	}
	ids.DOI = ""
}

// derivePDF returns the download location implied by an identifier.
func derivePDF(ids types.Identifiers) string {
	switch {
	case ids.ArXiv != "":
		return ident.PDFURL(ident.KindArxiv, ids.ArXiv)
	case ids.ACL != "":
		return ident.PDFURL(ident.KindACL, ids.ACL)
	}
	return ""
}

// CleanText unescapes HTML entities, composes accents to NFC, and
// collapses whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(html.UnescapeString(s))), " ")
}

// CleanTitle removes inline markup, unescapes entities, and collapses
// whitespace. Published casing is preserved.
func CleanTitle(s string) string {
	return CleanText(markup.ReplaceAllString(s, ""))
}

// CleanAuthor normalizes an author display name.
func CleanAuthor(s string) string {
	return strings.Trim(CleanText(s), ",;")
}

// ParseYear reads a leading four-digit year ("2017", "2017-06-12T...").
// Anything else yields 0.
func ParseYear(s string) int {
	m := yearPrefix.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, err := strconv.Atoi(m[1])
	if err != nil || !types.ValidYear(y) {
		return 0
	}
	return y
}
