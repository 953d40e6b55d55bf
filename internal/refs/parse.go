// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refs reads the reference list of a paper or draft and turns each
// entry into a query for the resolver. Entries may be numbered ("[1] ...",
// "1. ...") or separated by blank lines; lines wrapped by PDF extraction are
// joined back onto their entry.
package refs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/paperfinder/internal/ident"
)

// Reference is one parsed bibliography entry.
type Reference struct {
	// Label is the entry's number as written, or its position when the
	// list is unnumbered.
	Label   string   `json:"label" yaml:"label"`
	Raw     string   `json:"raw" yaml:"raw"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Title   string   `json:"title,omitempty" yaml:"title,omitempty"`
	Year    int      `json:"year,omitempty" yaml:"year,omitempty"`
	Venue   string   `json:"venue,omitempty" yaml:"venue,omitempty"`
}

var (
	// entryStart matches "[12] rest", "12. rest", and "12) rest".
	entryStart = regexp.MustCompile(`^\s*(?:\[(\d{1,3})\]|(\d{1,3})[.)])\s+(.+)$`)

	// authorBlock separates a leading author list such as "Smith, A. and
	// Jones, B." or "Brown, T. et al." from the title that follows.
	authorBlock = regexp.MustCompile(
		`^((?:[A-Z][a-z]+(?:,\s+[A-Z]\.?)?(?:,?\s+(?:and|&)\s+|,\s+)?)+(?:\s*et\s+al\.)?)\s*[.]?\s+(.+)$`,
	)

	// yearAfterAuthors matches "Authors. 2017. Title. Venue." and
	// "Authors (2017). Title. Venue."
	yearAfterAuthors = regexp.MustCompile(`^(.+?)(?:\.\s+|\s+\()((?:19|20)\d{2})[a-z]?\)?\.\s+(.+)$`)

	yearRe    = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	initialRe = regexp.MustCompile(`\b([A-Z])\.`)
)

// Section returns the text under a "References" or "Bibliography" heading,
// up to the next heading of the same kind. A heading is a Markdown heading
// or a short line consisting of the word alone. When no such heading
// exists the whole content is returned.
func Section(content string) string {
	lines := strings.Split(content, "\n")
	start := -1
	for i, line := range lines {
		if isReferencesHeading(line) {
			start = i + 1
			continue
		}
		if start >= 0 && strings.HasPrefix(strings.TrimSpace(line), "#") {
			return strings.Join(lines[start:i], "\n")
		}
	}
	if start < 0 {
		return content
	}
	return strings.Join(lines[start:], "\n")
}

func isReferencesHeading(line string) bool {
	t := strings.ToLower(strings.TrimSpace(line))
	md := strings.HasPrefix(t, "#")
	t = strings.TrimSpace(strings.TrimLeft(t, "#"))
	t = strings.TrimRight(t, ":")
	switch t {
	case "references", "bibliography", "works cited", "literature cited":
		return true
	}
	return md && (strings.Contains(t, "references") || strings.Contains(t, "bibliography"))
}

// Parse extracts the entries of content's reference section.
func Parse(content string) []Reference {
	section := Section(content)
	raws := numbered(section)
	if len(raws) == 0 {
		raws = paragraphs(section)
	}
	out := make([]Reference, 0, len(raws))
	for _, r := range raws {
		out = append(out, parseEntry(r[0], r[1]))
	}
	return out
}

// numbered splits section into (label, text) pairs at numbered entry
// starts. Lines before the first entry are ignored.
func numbered(section string) [][2]string {
	var out [][2]string
	for _, line := range strings.Split(section, "\n") {
		if m := entryStart.FindStringSubmatch(line); m != nil {
			label := m[1]
			if label == "" {
				label = m[2]
			}
			out = append(out, [2]string{label, strings.TrimSpace(m[3])})
			continue
		}
		t := strings.TrimSpace(line)
		if t == "" || len(out) == 0 {
			continue
		}
		out[len(out)-1][1] = joinWrapped(out[len(out)-1][1], t)
	}
	return out
}

func paragraphs(section string) [][2]string {
	var out [][2]string
	var cur string
	flush := func() {
		if cur != "" {
			out = append(out, [2]string{strconv.Itoa(len(out) + 1), cur})
			cur = ""
		}
	}
	for _, line := range strings.Split(section, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			flush()
			continue
		}
		cur = joinWrapped(cur, t)
	}
	flush()
	return out
}

// joinWrapped appends a continuation line, rejoining words hyphenated at
// the line break.
func joinWrapped(prev, next string) string {
	switch {
	case prev == "":
		return next
	case strings.HasSuffix(prev, "-") && len(prev) > 1 && isLower(prev[len(prev)-2]) && next != "" && isLower(next[0]):
		return prev[:len(prev)-1] + next
	default:
		return prev + " " + next
	}
}

func isLower(b byte) bool { return b >= 'a' && b <= 'z' }

// parseEntry pulls authors, title, venue, and year out of one entry.
func parseEntry(label, raw string) Reference {
	ref := Reference{Label: label, Raw: raw}
	if m := yearRe.FindStringSubmatch(raw); m != nil {
		ref.Year, _ = strconv.Atoi(m[1])
	}

	rest := raw
	if m := yearAfterAuthors.FindStringSubmatch(raw); m != nil {
		ref.Authors = splitAuthors(strings.TrimRight(m[1], ". "))
		rest = m[3]
	} else if m := authorBlock.FindStringSubmatch(raw); m != nil && isAuthorList(m[1]) {
		ref.Authors = splitAuthors(strings.TrimRight(m[1], ". "))
		rest = m[2]
	}
	parts := splitOnPeriods(rest)
	if len(parts) >= 1 {
		ref.Title = strings.Trim(parts[0], ` "“”`)
	}
	if len(parts) >= 2 {
		ref.Venue = cleanVenue(parts[1])
	}
	return ref
}

// splitOnPeriods splits text at sentence boundaries, leaving "et al.",
// "e.g.", "i.e.", and single-letter initials intact.
func splitOnPeriods(text string) []string {
	safe := strings.ReplaceAll(text, "et al.", "et al\x00")
	safe = strings.ReplaceAll(safe, "e.g.", "e\x00g\x00")
	safe = strings.ReplaceAll(safe, "i.e.", "i\x00e\x00")
	safe = initialRe.ReplaceAllString(safe, "${1}\x00")

	var out []string
	for _, p := range strings.Split(safe, ". ") {
		p = strings.ReplaceAll(p, "\x00", ".")
		p = strings.TrimSpace(strings.TrimRight(p, "."))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitAuthors splits "Smith, A., Jones, B. and Lee, C." into names.
func splitAuthors(block string) []string {
	block = strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(block), "."), "et al")
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}
	block = strings.ReplaceAll(block, " & ", " and ")
	block = strings.ReplaceAll(block, ", and ", " and ")
	var out []string
	for _, half := range strings.Split(block, " and ") {
		half = strings.Trim(strings.TrimSpace(half), ",")
		// "Smith, A., Jones, B." pairs a surname with its initials.
		pieces := strings.Split(half, ",")
		for i := 0; i < len(pieces); i++ {
			name := strings.TrimSpace(pieces[i])
			if i+1 < len(pieces) && isInitials(strings.TrimSpace(pieces[i+1])) {
				name += ", " + strings.TrimSpace(pieces[i+1])
				i++
			}
			if name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// isAuthorList rejects a lone capitalized word, which is usually the
// first word of a title.
func isAuthorList(block string) bool {
	return strings.ContainsAny(block, ",&") || strings.Contains(block, " and ") || strings.Contains(block, "et al")
}

func isInitials(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && r != '.' && r != ' ' && r != '-' {
			return false
		}
	}
	return true
}

func cleanVenue(text string) string {
	text = yearRe.ReplaceAllString(text, "")
	text = strings.TrimPrefix(strings.TrimSpace(text), "In ")
	return strings.TrimSpace(strings.TrimRight(text, "., ("))
}

// Query returns the text to resolve for r: an identifier when the entry
// carries one, otherwise its title, otherwise the raw entry.
func (r Reference) Query() string {
	switch h := ident.Extract(r.Raw); h.Kind {
	case ident.KindDOI, ident.KindArxiv, ident.KindACL:
		return h.Value
	}
	if len(strings.Fields(r.Title)) >= 2 {
		return r.Title
	}
	return r.Raw
}
