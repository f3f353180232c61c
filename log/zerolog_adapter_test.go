package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestZerologAdapter_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapter(zerolog.New(&buf))

	traceID := trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	spanID := trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.With(map[string]interface{}{"component": "http"}).
		Info(ctx, "request", map[string]interface{}{"status": 200})

	entry := decode(t, &buf)
	assert.Equal(t, "request", entry["message"])
	assert.Equal(t, traceID.String(), entry["trace_id"])
	assert.Equal(t, spanID.String(), entry["span_id"])
	assert.Equal(t, "http", entry["component"])
	assert.EqualValues(t, 200, entry["status"])
}

func TestZerologAdapter_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	NewZerologAdapter(zerolog.New(&buf)).Error(context.Background(), "failed", errors.New("boom"))

	entry := decode(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "trace_id")
}

func TestSetupWithWriter_Level(t *testing.T) {
	prev, prevLogger := zerolog.GlobalLevel(), zlog.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		zlog.Logger = prevLogger
	})

	var buf bytes.Buffer
	logger := SetupWithWriter(&buf, "WARN", false)
	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, zerolog.InfoLevel, SetupWithWriter(&buf, "nonsense", false).GetLevel())
}
