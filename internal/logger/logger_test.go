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

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		debugOn bool
	}{
		{"debug level text", &Config{Level: "debug", Format: "text"}, true},
		{"info level json", &Config{Level: "info", Format: "json"}, false},
		{"warn level text", &Config{Level: "warn", Format: "text"}, false},
		{"default level", &Config{Level: "invalid", Format: "text"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitWriter(tt.config, &buf)
			slog.Debug("debug message")
			assert.Equal(t, tt.debugOn, bytes.Contains(buf.Bytes(), []byte("debug message")))
		})
	}
}

func TestWithContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&Config{Level: "info", Format: "json"}, &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	ctx = WithAnalysisID(ctx, "an-1")
	Info(ctx, "analysis completed", "score", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "analysis completed", line["msg"])
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "an-1", line["analysis_id"])
	assert.EqualValues(t, 7, line["score"])
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&Config{Level: "debug", Format: "text"}, &buf)
	ctx := context.Background()

	for _, tc := range []struct {
		fn  func(context.Context, string, ...any)
		msg string
	}{
		{Info, "info message"},
		{Debug, "debug message"},
		{Warn, "warn message"},
		{Error, "error message"},
	} {
		buf.Reset()
		tc.fn(ctx, tc.msg)
		assert.Contains(t, buf.String(), tc.msg)
	}
}
