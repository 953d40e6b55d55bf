// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// logEvents writes pipeline events to the log. Merges, direct-path
// outcomes, and page metadata are informational; everything else is a
// warning.
func logEvents(l *zap.Logger, events []types.Event) {
	for _, e := range events {
		level := zapcore.WarnLevel
		switch e.Kind {
		case types.EventMergeDecision, types.EventDirectResolve, types.EventPageMetadata:
			level = zapcore.InfoLevel
		}
		if ce := l.Check(level, e.Message); ce != nil {
			ce.Write(eventFields(e)...)
		}
	}
}

func eventFields(e types.Event) []zap.Field {
	fields := []zap.Field{zap.String("kind", string(e.Kind))}
	if e.Backend != "" {
		fields = append(fields, zap.String("backend", e.Backend))
	}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.String(k, e.Fields[k]))
	}
	return fields
}
