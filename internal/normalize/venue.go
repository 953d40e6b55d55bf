// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"regexp"
	"strings"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// hintKinds maps source-specific publication type labels (lowercased) to
// venue kinds: DBLP "type", Semantic Scholar publicationVenue.type and
// publicationTypes, Crossref "type".
var hintKinds = map[string]types.VenueKind{
	// DBLP
	"conference and workshop papers":  types.VenueConference,
	"journal articles":                types.VenueJournal,
	"informal publications":           types.VenuePreprint,
	"informal and other publications": types.VenuePreprint,

	// Semantic Scholar
	"conference":     types.VenueConference,
	"journal":        types.VenueJournal,
	"journalarticle": types.VenueJournal,

	// Crossref
	"proceedings-article": types.VenueConference,
	"journal-article":     types.VenueJournal,
	"posted-content":      types.VenuePreprint,
}

var (
	preprintVenue = regexp.MustCompile(`(?i)\b(arxiv|corr|biorxiv|medrxiv|ssrn|preprint|e-?prints?)\b`)
	workshopVenue = regexp.MustCompile(`(?i)\bworkshops?\b`)

	// conferenceVenue covers proceedings wording and the venues the router's
	// domains care about most.
	conferenceVenue = regexp.MustCompile(`(?i)\b(proceedings|conference|symposium|congress|neurips|nips|icml|iclr|aaai|ijcai|acl|emnlp|naacl|eacl|coling|conll|cvpr|iccv|eccv|kdd|sigir|sigmod|vldb|www|icra|iros|uai|aistats|colt)\b`)
	journalVenue    = regexp.MustCompile(`(?i)\b(journal|transactions|letters|review|magazine|annals|jmlr|tacl|tpami)\b`)
)

// ClassifyVenue decides the venue kind from the venue name and source type
// labels. A workshop or preprint server named in the venue wins over type
// labels, which are coarse (DBLP files workshops under "Conference and
// Workshop Papers"). Otherwise the first recognized hint decides, and the
// venue name's wording is the last resort.
func ClassifyVenue(venue string, hints ...string) types.VenueKind {
	if workshopVenue.MatchString(venue) {
		return types.VenueWorkshop
	}
	if preprintVenue.MatchString(venue) {
		return types.VenuePreprint
	}
	for _, h := range hints {
		if k, ok := hintKinds[strings.ToLower(strings.TrimSpace(h))]; ok {
			return k
		}
	}
	switch {
	case journalVenue.MatchString(venue):
		return types.VenueJournal
	case conferenceVenue.MatchString(venue):
		return types.VenueConference
	}
	return types.VenueUnknown
}
