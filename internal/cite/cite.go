// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cite turns canonical papers into citation entries. A Synthesizer
// assigns each entry a key of the form {Surname}{Year} that is unique within
// its batch, picks the entry type from the venue kind, and escapes field
// values for BibTeX.
package cite

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// anonymous is the key stem used when the first author has no usable surname.
const anonymous = "Anonymous"

// Synthesizer builds entries for one batch. Keys stay unique across every
// call on the same Synthesizer. It is not safe for concurrent use.
type Synthesizer struct {
	used  map[string]bool
	count map[string]int
}

// NewSynthesizer creates a Synthesizer with an empty key space.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{used: make(map[string]bool), count: make(map[string]int)}
}

// Citation pairs a paper with the entry synthesized for it.
type Citation struct {
	Paper types.Paper `json:"paper" yaml:"paper"`
	Entry types.Entry `json:"entry" yaml:"entry"`
}

// Cite synthesizes an entry for every paper, in order.
func (s *Synthesizer) Cite(papers ...types.Paper) []Citation {
	out := make([]Citation, len(papers))
	for i, p := range papers {
		out[i] = Citation{Paper: p, Entry: s.Synthesize(p)}
	}
	return out
}

// Synthesize returns the citation entry for p. Fields without a value are
// omitted.
func (s *Synthesizer) Synthesize(p types.Paper) types.Entry {
	e := types.Entry{Key: s.nextKey(KeyStem(p)), Fields: make(map[string]string)}
	set := func(field, value string) {
		if value = strings.TrimSpace(value); value != "" {
			e.Fields[field] = value
		}
	}

	set("title", Escape(p.Title))
	set("author", Escape(strings.Join(p.Authors, " and ")))
	if p.Year != 0 {
		set("year", strconv.Itoa(p.Year))
	}

	switch p.VenueKind {
	case types.VenueConference:
		e.Type = types.EntryInProceedings
		set("booktitle", Escape(p.Venue))
	case types.VenueWorkshop:
		e.Type = types.EntryInProceedings
		set("booktitle", Escape(workshopTitle(p.Venue)))
	case types.VenueJournal:
		e.Type = types.EntryArticle
		set("journal", Escape(p.Venue))
	default:
		e.Type = types.EntryMisc
		set("howpublished", Escape(p.Venue))
		if p.Identifiers.ArXiv != "" {
			set("eprint", EscapeVerbatim(p.Identifiers.ArXiv))
			set("archiveprefix", "arXiv")
		}
	}

	set("doi", EscapeVerbatim(p.Identifiers.DOI))
	set("url", EscapeVerbatim(landingURL(p)))
	return e
}

// nextKey returns stem, or stem with the next free suffix (a, b, ... z,
// aa, ab, ...) when stem is already taken in this batch.
func (s *Synthesizer) nextKey(stem string) string {
	for {
		n := s.count[stem]
		s.count[stem] = n + 1
		key := stem + suffix(n)
		if !s.used[key] {
			s.used[key] = true
			return key
		}
	}
}

// suffix maps 0 to "", 1 to "a", 26 to "z", 27 to "aa", and so on.
func suffix(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('a' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// KeyStem returns the unsuffixed key for p: the first author's surname,
// folded to ASCII letters, followed by the year when known.
func KeyStem(p types.Paper) string {
	stem := anonymous
	if len(p.Authors) > 0 {
		if s := keySurname(p.Authors[0]); s != "" {
			stem = s
		}
	}
	if p.Year != 0 {
		stem += strconv.Itoa(p.Year)
	}
	return stem
}

// keySurname folds the family name of an author display name to ASCII
// letters. Both "Given Family" and "Family, Given" forms are understood.
func keySurname(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, ","); i > 0 {
		name = name[:i]
	} else if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[len(fields)-1]
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	return strings.ToUpper(out[:1]) + out[1:]
}

func workshopTitle(venue string) string {
	if venue == "" || strings.Contains(strings.ToLower(venue), "workshop") {
		return venue
	}
	return venue + " Workshop"
}

// landingURL prefers the record's own landing page, then the page implied
// by an identifier.
func landingURL(p types.Paper) string {
	switch {
	case p.Identifiers.URL != "":
		return p.Identifiers.URL
	case p.Identifiers.DOI != "":
		return "https://doi.org/" + p.Identifiers.DOI
	case p.Identifiers.ArXiv != "":
		return "https://arxiv.org/abs/" + p.Identifiers.ArXiv
	case p.Identifiers.ACL != "":
		return "https://aclanthology.org/" + p.Identifiers.ACL
	}
	return ""
}

var (
	textEscaper = strings.NewReplacer(
		`\`, `\textbackslash{}`,
		`&`, `\&`,
		`%`, `\%`,
		`$`, `\$`,
		`#`, `\#`,
		`_`, `\_`,
		`{`, `\{`,
		`}`, `\}`,
		`~`, `\textasciitilde{}`,
		`^`, `\textasciicircum{}`,
	)
	verbatimEscaper = strings.NewReplacer(`{`, `\{`, `}`, `\}`, `%`, `\%`)
)

// Escape makes s safe inside a braced BibTeX text field.
func Escape(s string) string {
	return textEscaper.Replace(s)
}

// EscapeVerbatim escapes s for fields that BibTeX styles print verbatim
// (doi, url, eprint), where only braces and comment markers need escaping.
func EscapeVerbatim(s string) string {
	return verbatimEscaper.Replace(s)
}
