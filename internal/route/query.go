// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package route

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/internal/ident"
)

// ErrInvalidQuery is returned when query text cannot be used to search.
var ErrInvalidQuery = errors.New("invalid query")

// maxQueryRunes bounds the length of accepted query text.
const maxQueryRunes = 2000

// Query is an immutable, classified search request.
type Query struct {
	text   string
	domain Domain
	hint   ident.Hint
}

// NewQuery validates text, extracts an identifier hint, and classifies the
// domain. It fails with ErrInvalidQuery for empty text, text without any
// letter or digit, and overlong text.
func NewQuery(text string) (Query, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Query{}, eris.Wrap(ErrInvalidQuery, "query is empty")
	}
	if utf8.RuneCountInString(text) > maxQueryRunes {
		return Query{}, eris.Wrapf(ErrInvalidQuery, "query exceeds %d characters", maxQueryRunes)
	}
	if strings.IndexFunc(text, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return Query{}, eris.Wrap(ErrInvalidQuery, "query has no searchable terms")
	}

	hint := ident.Extract(text)
	return Query{
		text:   text,
		hint:   hint,
		domain: Classify(text, hint),
	}, nil
}

// Text returns the whitespace-normalized query text.
func (q Query) Text() string { return q.text }

// Domain returns the inferred domain tag.
func (q Query) Domain() Domain { return q.domain }

// Hint returns the identifier recognized in the query, if any.
func (q Query) Hint() ident.Hint { return q.hint }

// SearchText returns the text sent to keyword backends. URLs pointing at
// unknown hosts are not useful search terms, so they are dropped.
func (q Query) SearchText() string {
	if q.hint.Kind != ident.KindURL {
		return q.text
	}
	rest := strings.TrimSpace(strings.Replace(q.text, q.hint.Value, "", 1))
	if rest == "" {
		return q.text
	}
	return rest
}
