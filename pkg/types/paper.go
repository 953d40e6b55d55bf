// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paperfinder pipeline:
// the canonical Paper record, pipeline events, citation entries, and stage
// configuration.
package types

import "strings"

// VenueKind classifies where a paper was published. The empty value means
// the kind could not be determined.
type VenueKind string

const (
	VenueConference VenueKind = "conference"
	VenueJournal    VenueKind = "journal"
	VenueWorkshop   VenueKind = "workshop"
	VenuePreprint   VenueKind = "preprint"
	VenueUnknown    VenueKind = ""
)

// Rank orders venue kinds by publication quality: formal venues (conference,
// journal) over workshops over preprints over unknown.
func (k VenueKind) Rank() int {
	switch k {
	case VenueConference, VenueJournal:
		return 3
	case VenueWorkshop:
		return 2
	case VenuePreprint:
		return 1
	default:
		return 0
	}
}

// IsFormal reports whether the kind is a conference or journal.
func (k VenueKind) IsFormal() bool {
	return k == VenueConference || k == VenueJournal
}

// Identifiers holds at most one authoritative value per identifier kind.
type Identifiers struct {
	// ArXiv is the bare arXiv id without version (e.g. "1706.03762").
	ArXiv string `json:"arxiv,omitempty" yaml:"arxiv,omitempty"`

	// DOI is the bare DOI (e.g. "10.1145/3442381.3449802").
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// ACL is the ACL Anthology id (e.g. "N19-1423" or "2020.acl-main.463").
	ACL string `json:"acl,omitempty" yaml:"acl,omitempty"`

	// URL is the landing page of the work.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IsEmpty reports whether no identifier is set.
func (ids Identifiers) IsEmpty() bool {
	return ids.ArXiv == "" && ids.DOI == "" && ids.ACL == "" && ids.URL == ""
}

// Shares reports whether ids and other carry the same value for at least
// one identifier kind. DOIs compare case-insensitively.
func (ids Identifiers) Shares(other Identifiers) bool {
	switch {
	case ids.DOI != "" && strings.EqualFold(ids.DOI, other.DOI):
		return true
	case ids.ArXiv != "" && ids.ArXiv == other.ArXiv:
		return true
	case ids.ACL != "" && strings.EqualFold(ids.ACL, other.ACL):
		return true
	}
	return false
}

// Backfill fills empty kinds of ids from src. Populated kinds are kept.
func (ids *Identifiers) Backfill(src Identifiers) {
	if ids.ArXiv == "" {
		ids.ArXiv = src.ArXiv
	}
	if ids.DOI == "" {
		ids.DOI = src.DOI
	}
	if ids.ACL == "" {
		ids.ACL = src.ACL
	}
	if ids.URL == "" {
		ids.URL = src.URL
	}
}

// Paper is the canonical, source-independent record of a scholarly work.
type Paper struct {
	// Title is the title with published casing preserved.
	Title string `json:"title" yaml:"title"`

	// Authors lists author display names in publication order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Venue is the conference, journal, or repository name.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// VenueKind classifies Venue.
	VenueKind VenueKind `json:"venue_kind,omitempty" yaml:"venue_kind,omitempty"`

	// Year is the four-digit publication year; 0 means unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	Identifiers Identifiers `json:"identifiers" yaml:"identifiers"`

	// PDFURL is a location from which the full text can be downloaded.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Provenance names the backends that contributed to this record.
	Provenance []string `json:"provenance" yaml:"provenance"`
}

// PopulatedFields counts the quality-relevant fields that carry a value:
// authors, venue, year, and any identifier.
func (p Paper) PopulatedFields() int {
	n := 0
	if len(p.Authors) > 0 {
		n++
	}
	if p.Venue != "" {
		n++
	}
	if p.Year != 0 {
		n++
	}
	if !p.Identifiers.IsEmpty() {
		n++
	}
	return n
}

// Clone returns a deep copy of p so callers can mutate slices freely.
func (p Paper) Clone() Paper {
	c := p
	c.Authors = append([]string(nil), p.Authors...)
	c.Provenance = append([]string(nil), p.Provenance...)
	return c
}

// AddProvenance appends names not already present, keeping first-seen order.
func (p *Paper) AddProvenance(names ...string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		found := false
		for _, existing := range p.Provenance {
			if existing == n {
				found = true
				break
			}
		}
		if !found {
			p.Provenance = append(p.Provenance, n)
		}
	}
}

// ValidYear reports whether y is a plausible four-digit publication year.
func ValidYear(y int) bool {
	return y >= 1000 && y <= 9999
}

// Backend identifiers. Each names one external metadata source.
const (
	// BackendDBLP is the formal computer-science index.
	BackendDBLP = "dblp"
	// BackendSemanticScholar is the general metadata index.
	BackendSemanticScholar = "semantic_scholar"
	// BackendArxiv is the preprint index.
	BackendArxiv = "arxiv"
	// BackendACL is the NLP venue index.
	BackendACL = "acl_anthology"
	// BackendCrossref resolves DOIs.
	BackendCrossref = "crossref"
)
