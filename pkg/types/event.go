// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
	"strings"
)

// EventKind names a recoverable condition observed while resolving a query.
type EventKind string

const (
	// EventSourceUnavailable: a backend could not be reached, timed out,
	// or exhausted its retries.
	EventSourceUnavailable EventKind = "SourceUnavailable"

	// EventPartialResponse: a backend returned some malformed records,
	// which were dropped.
	EventPartialResponse EventKind = "PartialResponse"

	// EventRefinementSkipped: PDF refinement could not run; the candidate
	// is unchanged.
	EventRefinementSkipped EventKind = "RefinementSkipped"

	// EventFieldConflict: a value extracted from the PDF disagrees with the
	// record.
	EventFieldConflict EventKind = "FieldConflict"

	// EventMergeDecision: deduplication collapsed several records into one.
	EventMergeDecision EventKind = "MergeDecision"

	// EventDirectResolve: outcome of the identifier fast path.
	EventDirectResolve EventKind = "DirectResolve"

	// EventPageMetadata: what a landing page or linked PDF yielded for a
	// URL query.
	EventPageMetadata EventKind = "PageMetadata"
)

// Event is a structured condition emitted by the pipeline. Events are values
// returned to the caller, which decides how to persist or log them.
type Event struct {
	Kind      EventKind         `json:"kind" yaml:"kind"`
	Backend   string            `json:"backend,omitempty" yaml:"backend,omitempty"`
	Message   string            `json:"message" yaml:"message"`
	Fields    map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// NewEvent builds an event with a formatted message.
func NewEvent(kind EventKind, backend, format string, args ...any) Event {
	return Event{Kind: kind, Backend: backend, Message: fmt.Sprintf(format, args...)}
}

// With returns a copy of e with key set to value in Fields.
func (e Event) With(key, value string) Event {
	fields := make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	e.Fields = fields
	return e
}

func (e Event) String() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Backend != "" {
		b.WriteString("[" + e.Backend + "]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%q", k, e.Fields[k])
		}
	}
	return b.String()
}

// CountKind returns how many events in events have the given kind.
func CountKind(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
