// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident recognizes scholarly identifiers (arXiv ids, DOIs, ACL
// Anthology ids, URLs) in query text and maps them to download locations.
package ident

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind classifies an identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindArxiv
	KindDOI
	KindACL
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindArxiv:
		return "arxiv"
	case KindDOI:
		return "doi"
	case KindACL:
		return "acl"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Hint is an identifier recognized in a query.
type Hint struct {
	Kind  Kind   `json:"kind" yaml:"kind"`
	Value string `json:"value" yaml:"value"`
	// Host is set for KindURL hints and for ids recovered from a URL.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
}

// IsZero reports whether no identifier was recognized.
func (h Hint) IsZero() bool { return h.Kind == KindUnknown }

// Base URLs for identifier resolution. Declared as vars so tests can
// substitute httptest servers.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	aclBase      = "https://aclanthology.org/"
)

var (
	// arxivPattern matches new-style ids ("1706.03762", "arXiv:2301.07041v2")
	// and old-style ids ("hep-th/9901001").
	arxivPattern = regexp.MustCompile(`^(?i:arxiv:)?(\d{4}\.\d{4,5}|[a-z\-]+(?:\.[A-Z]{2})?/\d{7})(v\d+)?$`)

	// doiPattern matches bare DOIs: "10.1145/1234567.1234568".
	doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

	// aclPattern matches ACL Anthology ids: "P19-1001", "2020.acl-main.463".
	aclPattern = regexp.MustCompile(`^([A-Z]\d{2}-\d{4}|\d{4}\.[a-z0-9]+-[a-z0-9]+\.\d+)$`)

	// Patterns used when scanning free text.
	arxivInText = regexp.MustCompile(`(?i)(?:arxiv:\s*|arxiv\.org/(?:abs|pdf)/)(\d{4}\.\d{4,5})(?:v\d+)?`)
	bareArxiv   = regexp.MustCompile(`\b(\d{4}\.\d{4,5})(?:v\d+)?\b`)
	doiInText   = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^\[\]` + "`" + `]+`)
	urlInText   = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
)

// Classify determines the identifier kind of a whole token and returns its
// normalized form: arXiv ids lose the "arXiv:" prefix and version, DOIs lose
// "doi:" and resolver prefixes, URLs pointing at arXiv, doi.org, or the ACL
// Anthology are reduced to the id they carry.
func Classify(identifier string) (Kind, string) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return KindUnknown, ""
	}

	if m := arxivPattern.FindStringSubmatch(identifier); m != nil {
		return KindArxiv, m[1]
	}

	lower := strings.ToLower(identifier)
	if strings.HasPrefix(lower, "doi:") {
		identifier = strings.TrimSpace(identifier[4:])
	}
	if doiPattern.MatchString(identifier) {
		return KindDOI, trimDOI(identifier)
	}

	if aclPattern.MatchString(identifier) {
		return KindACL, identifier
	}

	if strings.ContainsAny(identifier, " \t\n") {
		return KindUnknown, identifier
	}
	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		if h, ok := FromURL(identifier); ok {
			return h.Kind, h.Value
		}
		return KindURL, identifier
	}

	return KindUnknown, identifier
}

// FromURL extracts an identifier from a landing-page or PDF URL on a known
// host. It reports false for URLs that carry no recognizable id.
func FromURL(raw string) (Hint, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Hint{}, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.Trim(u.Path, "/")

	switch {
	case host == "arxiv.org" || host == "export.arxiv.org":
		for _, prefix := range []string{"abs/", "pdf/"} {
			if strings.HasPrefix(path, prefix) {
				id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), ".pdf")
				if m := arxivPattern.FindStringSubmatch(id); m != nil {
					return Hint{Kind: KindArxiv, Value: m[1], Host: host}, true
				}
			}
		}
	case host == "doi.org" || host == "dx.doi.org":
		if doiPattern.MatchString(path) {
			return Hint{Kind: KindDOI, Value: trimDOI(path), Host: host}, true
		}
	case host == "aclanthology.org":
		id := strings.TrimSuffix(path, ".pdf")
		if aclPattern.MatchString(id) {
			return Hint{Kind: KindACL, Value: id, Host: host}, true
		}
	}
	return Hint{}, false
}

// Extract scans free text for the first identifier hint. The whole text is
// tried first as a single token, then URLs, explicit arXiv references,
// DOIs, and finally bare new-style arXiv ids.
func Extract(text string) Hint {
	text = strings.TrimSpace(text)
	if kind, norm := Classify(text); kind != KindUnknown {
		h := Hint{Kind: kind, Value: norm}
		if kind == KindURL {
			if u, err := url.Parse(norm); err == nil {
				h.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
			}
		}
		return h
	}

	if m := urlInText.FindString(text); m != "" {
		m = strings.TrimRight(m, ".,;:)")
		if h, ok := FromURL(m); ok {
			return h
		}
		if u, err := url.Parse(m); err == nil {
			return Hint{Kind: KindURL, Value: m, Host: strings.TrimPrefix(strings.ToLower(u.Host), "www.")}
		}
	}
	if m := arxivInText.FindStringSubmatch(text); m != nil {
		return Hint{Kind: KindArxiv, Value: m[1]}
	}
	if m := doiInText.FindString(text); m != "" {
		return Hint{Kind: KindDOI, Value: trimDOI(m)}
	}
	if m := bareArxiv.FindStringSubmatch(text); m != nil {
		return Hint{Kind: KindArxiv, Value: m[1]}
	}
	return Hint{}
}

// FindDOI returns the first DOI in text, or "".
func FindDOI(text string) string {
	if m := doiInText.FindString(text); m != "" {
		return trimDOI(m)
	}
	return ""
}

// FindArxiv returns the first explicit arXiv reference in text, or "".
func FindArxiv(text string) string {
	if m := arxivInText.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// NormalizeArxiv strips prefix and version from an arXiv id. It returns ""
// when s is not an arXiv id.
func NormalizeArxiv(s string) string {
	if m := arxivPattern.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		return m[1]
	}
	return ""
}

// NormalizeDOI strips resolver prefixes and trailing punctuation from a DOI.
// It returns "" when s does not contain a DOI.
func NormalizeDOI(s string) string {
	return FindDOI(s)
}

// PDFURL returns the download URL for ids whose PDF location is derivable.
func PDFURL(kind Kind, id string) string {
	switch kind {
	case KindArxiv:
		return arxivPDFBase + id
	case KindACL:
		return aclBase + id + ".pdf"
	default:
		return ""
	}
}

// trimDOI removes resolver prefixes and trailing sentence punctuation.
func trimDOI(doi string) string {
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			doi = doi[len(prefix):]
		}
	}
	return strings.TrimRight(doi, ".,;:)")
}
