package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(opts Options) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	opts.ServiceName = "test"
	opts.Output = buf
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return New(opts), buf
}

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	log, buf := newBufferLogger(Options{Level: zerolog.DebugLevel})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithSessionID(ctx, "sess-1")
	ctx = log.WithCartID(ctx, "gid://shopify/Cart/abc")
	log.Error(ctx, "cart.set_bundle failed", errors.New("backend timeout"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "gid://shopify/Cart/abc", entry["cart_id"])
	assert.Equal(t, "backend timeout", entry["error"])
	assert.Equal(t, "test", entry["service"])
	assert.NotEmpty(t, entry["stack"])
}

func TestLoggerFieldsDoNotLeakAcrossContexts(t *testing.T) {
	log, buf := newBufferLogger(Options{})

	base := context.Background()
	tagged := log.WithFields(base, map[string]any{"b": 2, "a": 1})
	log.Info(base, "plain")
	log.Info(tagged, "tagged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], `"a":1`)
	assert.Less(t, strings.Index(lines[1], `"a":1`), strings.Index(lines[1], `"b":2`))
}

func TestLoggerWarnStackToggle(t *testing.T) {
	log, buf := newBufferLogger(Options{WarnStack: true})
	log.Warn(context.Background(), "pricing table reloaded from env")
	assert.Contains(t, buf.String(), `"stack"`)

	quiet, buf := newBufferLogger(Options{})
	quiet.Warn(context.Background(), "pricing table reloaded from env")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerDebugFilteredByLevel(t *testing.T) {
	log, buf := newBufferLogger(Options{Level: zerolog.InfoLevel})
	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestLoggerConsoleFormat(t *testing.T) {
	log, buf := newBufferLogger(Options{Format: FormatConsole})
	log.Info(context.Background(), "api server listening")
	assert.Contains(t, buf.String(), "api server listening")
	assert.False(t, json.Valid(buf.Bytes()), "console output is not JSON")
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}
