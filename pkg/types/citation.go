// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Citation entry types.
const (
	EntryInProceedings = "inproceedings"
	EntryArticle       = "article"
	EntryMisc          = "misc"
)

// Entry is a structured citation ready for formatting: an entry type, a
// citation key unique within its batch, and a map of non-empty fields.
type Entry struct {
	// Type is the entry type (inproceedings, article, misc).
	Type string `json:"type" yaml:"type"`

	// Key is the citation key (e.g. "Vaswani2017").
	Key string `json:"key" yaml:"key"`

	// Fields maps field names (title, author, year, ...) to escaped values.
	// Fields without a value are absent.
	Fields map[string]string `json:"fields" yaml:"fields"`
}
