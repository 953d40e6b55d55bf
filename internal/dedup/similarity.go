// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// Matching thresholds.
const (
	// editSimilarity is the minimum normalized Levenshtein similarity for two
	// titles to match. It tolerates OCR noise and a stray character or two.
	editSimilarity = 0.90

	// tokenJaccard is the minimum token overlap for titles with at least
	// minJaccardTokens tokens. It tolerates reordered or dropped short words.
	tokenJaccard     = 0.85
	minJaccardTokens = 4

	// authorOverlap is the minimum fraction of the shorter author list whose
	// surnames appear in the other list.
	authorOverlap = 0.5
)

// NormalizeTitle folds a title for comparison: compatibility decomposition,
// diacritics removed, lowercase, every non-alphanumeric rune turned into a
// space, whitespace collapsed.
func NormalizeTitle(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// TitlesMatch reports whether two titles name the same work: identical once
// normalized, close in edit distance, or (for longer titles) sharing nearly
// all tokens. Empty titles never match.
func TitlesMatch(a, b string) bool {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if levenshtein.Similarity(na, nb, nil) >= editSimilarity {
		return true
	}
	ta, tb := strings.Fields(na), strings.Fields(nb)
	if len(ta) < minJaccardTokens || len(tb) < minJaccardTokens {
		return false
	}
	return jaccard(ta, tb) >= tokenJaccard
}

// Similar is the pairwise predicate used for clustering: the titles match
// and either an identifier is shared, or the author lists overlap and the
// years agree (or one is unknown).
func Similar(a, b types.Paper) bool {
	if !TitlesMatch(a.Title, b.Title) {
		return false
	}
	if a.Identifiers.Shares(b.Identifiers) {
		return true
	}
	if a.Year != 0 && b.Year != 0 && a.Year != b.Year {
		return false
	}
	return surnameOverlap(a.Authors, b.Authors) >= authorOverlap
}

// Surname returns the folded family name of an author display name. Both
// "Given Family" and "Family, Given" forms are understood.
func Surname(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.Index(name, ","); i > 0 {
		name = name[:i]
	} else if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[len(fields)-1]
	}
	return strings.ReplaceAll(NormalizeTitle(name), " ", "")
}

// surnameOverlap returns the fraction of the shorter list's surnames found
// in the longer list. Either list being empty yields 0.
func surnameOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	other := make(map[string]bool, len(b))
	for _, n := range b {
		if s := Surname(n); s != "" {
			other[s] = true
		}
	}
	hits := 0
	for _, n := range a {
		if other[Surname(n)] {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

func jaccard(a, b []string) float64 {
	set := make(map[string]int, len(a))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}
