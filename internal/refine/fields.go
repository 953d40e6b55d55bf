// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"regexp"
	"strings"

	"github.com/pdiddy/paperfinder/internal/ident"
	"github.com/pdiddy/paperfinder/internal/normalize"
)

// Fields are the bibliographic values recovered from a PDF. Empty values
// were not found.
type Fields struct {
	Title   string
	Authors []string
	Year    int
	DOI     string
	ArXiv   string
	Venue   string
}

var (
	venueLine     = regexp.MustCompile(`(?i)\b(proceedings of|conference on|workshop on|symposium on|transactions on|journal of)\b`)
	yearInText    = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)
	arxivStamp    = regexp.MustCompile(`(?i)arxiv:\S+\s+\[[^\]]+\]\s+\d{1,2}\s+[a-z]{3}\s+(\d{4})`)
	copyrightYear = regexp.MustCompile(`(?i)(?:©|\(c\)|copyright)\s*(\d{4})`)
	fileLikeTitle = regexp.MustCompile(`(?i)(\.(pdf|dvi|tex|docx?|ps)$|^microsoft word|^untitled)`)
	authorSep     = regexp.MustCompile(`\s*(?:;|,|\band\b|&)\s*`)
	headerWords   = regexp.MustCompile(`(?i)(journal|volume|copyright|preprint|under review|arxiv:|doi:|https?://)`)
	refsHeading   = regexp.MustCompile(`(?im)^\s*(?:\d+\.?\s+)?(?:references|bibliography|works cited)\s*:?\s*$`)
)

const (
	minTitleRunes = 10
	maxTitleRunes = 300
	maxVenueRunes = 200
)

// ExtractFields applies the title, author, identifier, venue, and year
// heuristics to doc. Metadata wins over page text for title and authors.
func ExtractFields(doc Document) Fields {
	var f Fields

	if t := normalize.CleanTitle(doc.Info["Title"]); plausibleTitle(t) {
		f.Title = t
	} else {
		f.Title = firstTitleLine(doc.FirstPage)
	}

	for _, a := range authorSep.Split(doc.Info["Author"], -1) {
		if a = normalize.CleanAuthor(a); a != "" {
			f.Authors = append(f.Authors, a)
		}
	}

	// The last page usually carries the reference list; only the text
	// ahead of it describes this paper.
	body := beforeReferences(doc.LastPage)
	for _, text := range []string{doc.Info["Subject"], doc.FirstPage, body} {
		if doi := ident.FindDOI(text); doi != "" {
			f.DOI = doi
			break
		}
	}
	f.ArXiv = ident.FindArxiv(doc.FirstPage)
	if strings.HasPrefix(strings.ToLower(f.DOI), "10.48550/arxiv.") {
		if f.ArXiv == "" {
			f.ArXiv = ident.NormalizeArxiv(f.DOI[len("10.48550/arxiv."):])
		}
		f.DOI = ""
	}

	f.Venue = findVenue(doc.FirstPage)
	if f.Venue == "" {
		f.Venue = findVenue(body)
	}

	f.Year = yearFrom(yearInText, f.Venue)
	if f.Year == 0 {
		f.Year = yearFrom(arxivStamp, doc.FirstPage)
	}
	if f.Year == 0 {
		f.Year = yearFrom(copyrightYear, doc.FirstPage)
	}
	return f
}

// beforeReferences returns text up to its first references heading.
func beforeReferences(text string) string {
	if loc := refsHeading.FindStringIndex(text); loc != nil {
		return text[:loc[0]]
	}
	return text
}

func plausibleTitle(t string) bool {
	n := len([]rune(t))
	return n >= minTitleRunes && n <= maxTitleRunes && !fileLikeTitle.MatchString(t)
}

// firstTitleLine returns the first substantial line of page text that does
// not look like a running header.
func firstTitleLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = normalize.CleanText(line)
		if len([]rune(line)) <= 20 || !plausibleTitle(line) {
			continue
		}
		if headerWords.MatchString(line) || venueLine.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

func findVenue(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = normalize.CleanText(line)
		if line == "" || len([]rune(line)) > maxVenueRunes {
			continue
		}
		if venueLine.MatchString(line) {
			return strings.TrimRight(line, ". ")
		}
	}
	return ""
}

func yearFrom(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return normalize.ParseYear(m[1])
}
