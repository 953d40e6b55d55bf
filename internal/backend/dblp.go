// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// dblpAPIBase is the DBLP publication search endpoint. Declared as a var so
// tests can substitute an httptest server.
var dblpAPIBase = "https://dblp.org/search/publ/api"

// DBLPBackend queries the DBLP publication index.
type DBLPBackend struct {
	Client *Client
}

// Name returns the backend identifier.
func (b *DBLPBackend) Name() string { return types.BackendDBLP }

// Search queries DBLP for text.
func (b *DBLPBackend) Search(ctx context.Context, text string, limit int) ([]Record, error) {
	params := url.Values{
		"q":      {text},
		"format": {"json"},
		"h":      {strconv.Itoa(clampLimit(limit))},
	}
	body, err := b.Client.get(ctx, b.Name(), dblpAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return parseDBLP(b.Name(), body)
}

// FetchByID looks a record up by DBLP key (e.g. "conf/nips/VaswaniSPUJGKP17")
// or DOI. DBLP has no id endpoint in its search API, so the id is searched
// and an exact key or DOI match is required.
func (b *DBLPBackend) FetchByID(ctx context.Context, id string) (Record, error) {
	recs, err := b.Search(ctx, id, 10)
	if err != nil && len(recs) == 0 {
		return Record{}, err
	}
	for _, r := range recs {
		info := r.Payload.(*DBLPInfo)
		if info.Key == id || (info.DOI != "" && strings.EqualFold(info.DOI, id)) {
			return r, nil
		}
	}
	return Record{}, eris.Wrapf(ErrNotFound, "dblp: %s", id)
}

// parseDBLP decodes a search response, dropping hits whose info block does
// not decode.
func parseDBLP(name string, body []byte) ([]Record, error) {
	var resp dblpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(ErrSourceUnavailable, "dblp: parsing response: %v", err)
	}

	var recs []Record
	dropped := 0
	for _, h := range resp.Result.Hits.Hit {
		var info DBLPInfo
		if err := json.Unmarshal(h.Info, &info); err != nil {
			dropped++
			continue
		}
		recs = append(recs, Record{Backend: name, Payload: &info})
	}
	return partial(name, recs, dropped)
}

// DBLP search API JSON structures.
type dblpResponse struct {
	Result struct {
		Hits struct {
			Total string    `json:"@total"`
			Hit   []dblpHit `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type dblpHit struct {
	Info json.RawMessage `json:"info"`
}

// DBLPInfo is one DBLP publication record.
type DBLPInfo struct {
	Authors DBLPAuthors `json:"authors"`
	Title   string      `json:"title"`
	Venue   StringList  `json:"venue"`
	Year    string      `json:"year"`
	Type    string      `json:"type"`
	Key     string      `json:"key"`
	DOI     string      `json:"doi"`
	EE      StringList  `json:"ee"`
	URL     string      `json:"url"`
}

// DBLPAuthor is an author entry with its DBLP person id.
type DBLPAuthor struct {
	PID  string `json:"@pid"`
	Text string `json:"text"`
}

// DBLPAuthors holds the "authors" block. DBLP encodes "author" as a bare
// string, a single object, or an array of either.
type DBLPAuthors struct {
	Author []DBLPAuthor
}

// UnmarshalJSON accepts every shape DBLP emits for the author field.
func (a *DBLPAuthors) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Author json.RawMessage `json:"author"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	raw := bytes.TrimSpace(wrapper.Author)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		a.Author = nil
		return nil
	}

	var items []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
	} else {
		items = []json.RawMessage{raw}
	}

	a.Author = make([]DBLPAuthor, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			a.Author = append(a.Author, DBLPAuthor{Text: s})
			continue
		}
		var obj DBLPAuthor
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		a.Author = append(a.Author, obj)
	}
	return nil
}

// StringList decodes a JSON value that is either a string or an array of
// strings.
type StringList []string

// UnmarshalJSON accepts a string, an array of strings, or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = StringList{s}
	return nil
}

// First returns the first element or "".
func (l StringList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}
