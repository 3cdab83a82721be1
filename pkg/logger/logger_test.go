package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

// --- New ---

func TestNewWithWriter_EmitsServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("accountsvc", "info", &buf)
	l.Info("hello")

	m := logLine(t, &buf)
	assert.Equal(t, "accountsvc", m["service"])
	assert.Equal(t, "hello", m["msg"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("accountsvc", "warn", &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("accountsvc", "verbose", &buf)

	l.Debug("dropped")
	assert.Zero(t, buf.Len())

	l.Info("kept")
	assert.NotZero(t, buf.Len())
}

// --- Context helpers ---

func TestCorrelationID_RoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-123")
	assert.Equal(t, "corr-123", CorrelationIDFromContext(ctx))
}

func TestCorrelationID_MissingReturnsEmpty(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestAccountID_RoundTrip(t *testing.T) {
	ctx := WithAccountID(context.Background(), "42")
	assert.Equal(t, "42", AccountIDFromContext(ctx))
}

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	stored := NewWithWriter("accountsvc", "info", &buf)
	ctx := NewContext(context.Background(), stored)
	assert.Same(t, stored, FromContext(ctx))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

// --- WithContext enrichment ---

func TestWithContext_AddsCorrelationAndAccountID(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter("accountsvc", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "corr-9")
	ctx = WithAccountID(ctx, "7")

	WithContext(ctx, base).Info("enriched")

	m := logLine(t, &buf)
	assert.Equal(t, "corr-9", m["correlation_id"])
	assert.Equal(t, "7", m["account_id"])
}

func TestWithContext_NoFieldsOnEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter("accountsvc", "info", &buf)

	WithContext(context.Background(), base).Info("plain")

	m := logLine(t, &buf)
	assert.NotContains(t, m, "correlation_id")
	assert.NotContains(t, m, "account_id")
	assert.NotContains(t, m, "trace_id")
}
