// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// fieldOrder fixes the order of known BibTeX fields; others follow sorted.
var fieldOrder = []string{
	"title", "author", "booktitle", "journal", "howpublished", "year",
	"doi", "eprint", "archiveprefix", "url",
}

// WriteBibTeX renders entries as BibTeX, separated by blank lines. Output is
// deterministic for a given input.
func WriteBibTeX(w io.Writer, entries []types.Entry) error {
	bw := bufio.NewWriter(w)
	for i, e := range entries {
		if i > 0 {
			bw.WriteString("\n")
		}
		bw.WriteString("@" + e.Type + "{" + e.Key + ",\n")
		for _, k := range orderedFields(e.Fields) {
			bw.WriteString("  " + k + " = {" + e.Fields[k] + "},\n")
		}
		bw.WriteString("}\n")
	}
	return bw.Flush()
}

func orderedFields(fields map[string]string) []string {
	known := make(map[string]bool, len(fieldOrder))
	var keys []string
	for _, k := range fieldOrder {
		known[k] = true
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range fields {
		if !known[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

var cslTypes = map[types.VenueKind]string{
	types.VenueConference: "paper-conference",
	types.VenueWorkshop:   "paper-conference",
	types.VenueJournal:    "article-journal",
}

// WriteCSL writes citations as a CSL-YAML list to w. Values come from the
// unescaped paper; ids are the synthesized keys.
func WriteCSL(w io.Writer, cites []Citation) error {
	items := make([]CSLItem, len(cites))
	for i, c := range cites {
		items[i] = toCSLItem(c)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(c Citation) CSLItem {
	p := c.Paper
	item := CSLItem{
		ID:       c.Entry.Key,
		Type:     "article",
		Title:    p.Title,
		DOI:      p.Identifiers.DOI,
		URL:      landingURL(p),
		Abstract: p.Abstract,
	}
	if t, ok := cslTypes[p.VenueKind]; ok {
		item.Type = t
		item.ContainerTitle = p.Venue
		if p.VenueKind == types.VenueWorkshop {
			item.ContainerTitle = workshopTitle(p.Venue)
		}
	}
	for _, a := range p.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if p.Year != 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{p.Year}}}
	}
	return item
}

// parseAuthorName splits a full name string into CSL family/given parts.
// "Family, Given" is split on the comma; otherwise the last token is the
// family name. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	if i := strings.Index(name, ","); i > 0 {
		return CSLName{Family: strings.TrimSpace(name[:i]), Given: strings.TrimSpace(name[i+1:])}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
