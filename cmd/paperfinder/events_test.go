// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/paperfinder/pkg/types"
)

func TestLogEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	events := []types.Event{
		types.NewEvent(types.EventSourceUnavailable, types.BackendDBLP, "timed out").With("attempts", "3"),
		types.NewEvent(types.EventMergeDecision, "", "merged 2 records"),
	}
	events[0].RequestID = "req-1"

	logEvents(zap.New(core), events)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "timed out", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "SourceUnavailable", ctx["kind"])
	assert.Equal(t, "dblp", ctx["backend"])
	assert.Equal(t, "req-1", ctx["request_id"])
	assert.Equal(t, "3", ctx["attempts"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
}
